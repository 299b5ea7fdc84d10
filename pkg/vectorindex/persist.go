package vectorindex

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"studymate-be/pkg/fileutil"
)

// fileMagic tags the on-disk layout: magic, dim (u32), nextID (i64), n (u32), then per vector
// id (i64) followed by dim little-endian float32 values.
var fileMagic = [4]byte{'S', 'V', 'I', '1'}

// Save writes the current state to the configured path.
func (f *FlatIndex) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.save()
}

// save expects the caller to hold f.mu.
func (f *FlatIndex) save() error {
	if f.path == "" {
		return nil
	}
	return fileutil.WriteAtomic(f.path, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if _, err := bw.Write(fileMagic[:]); err != nil {
			return fmt.Errorf("write magic: %w", err)
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(f.dim)); err != nil {
			return fmt.Errorf("write dimensions: %w", err)
		}
		if err := binary.Write(bw, binary.LittleEndian, f.nextID); err != nil {
			return fmt.Errorf("write next id: %w", err)
		}
		if err := binary.Write(bw, binary.LittleEndian, uint32(len(f.ids))); err != nil {
			return fmt.Errorf("write count: %w", err)
		}
		buf := make([]byte, f.dim*4)
		for i, id := range f.ids {
			if err := binary.Write(bw, binary.LittleEndian, id); err != nil {
				return fmt.Errorf("write id: %w", err)
			}
			for j, v := range f.vectors[i] {
				binary.LittleEndian.PutUint32(buf[j*4:], math.Float32bits(v))
			}
			if _, err := bw.Write(buf); err != nil {
				return fmt.Errorf("write vector: %w", err)
			}
		}
		return bw.Flush()
	})
}

func (f *FlatIndex) load() error {
	if f.path == "" {
		return nil
	}
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer file.Close()
	r := bufio.NewReader(file)

	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if magic != fileMagic {
		return fmt.Errorf("index file %s has unknown format", f.path)
	}
	var dim, n uint32
	var nextID int64
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != f.dim {
		return fmt.Errorf("dimension mismatch: file has %d, index expects %d", dim, f.dim)
	}
	if err := binary.Read(r, binary.LittleEndian, &nextID); err != nil {
		return fmt.Errorf("read next id: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID = nextID
	f.ids = make([]int64, 0, n)
	f.vectors = make([][]float32, 0, n)
	f.pos = make(map[int64]int, n)
	buf := make([]byte, f.dim*4)
	for i := uint32(0); i < n; i++ {
		var id int64
		if err := binary.Read(r, binary.LittleEndian, &id); err != nil {
			return fmt.Errorf("read id: %w", err)
		}
		if _, err := io.ReadFull(r, buf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		vec := make([]float32, f.dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(buf[j*4:]))
		}
		f.pos[id] = len(f.ids)
		f.ids = append(f.ids, id)
		f.vectors = append(f.vectors, vec)
		if id >= f.nextID {
			f.nextID = id + 1
		}
	}
	return nil
}
