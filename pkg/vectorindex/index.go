// Package vectorindex provides the in-process nearest-neighbour index used as the hot tier of
// the session vector store. Vectors are addressed by int64 ids handed out from a persisted
// high-water mark, so ids are never recycled after a delete.
package vectorindex

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"studymate-be/pkg/apperr"
)

// NoID fills result slots when the index holds fewer than k candidates.
const NoID int64 = -1

// Hit is a single search result. Distance is the squared L2 distance.
type Hit struct {
	ID       int64
	Distance float32
}

// FlatIndex is an exact L2 index with id mapping. Every mutating call is persisted to path
// before it returns; a failed write rolls the in-memory change back.
type FlatIndex struct {
	dim     int
	path    string
	nextID  int64
	ids     []int64
	vectors [][]float32
	pos     map[int64]int
	mu      sync.RWMutex
}

// New creates an empty index. An empty path disables persistence.
func New(dim int, path string) (*FlatIndex, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{
		dim:  dim,
		path: path,
		pos:  make(map[int64]int),
	}, nil
}

// Open loads the index stored at path, or returns an empty index if the file does not exist.
func Open(dim int, path string) (*FlatIndex, error) {
	idx, err := New(dim, path)
	if err != nil {
		return nil, err
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Dim returns the configured vector dimension.
func (f *FlatIndex) Dim() int {
	return f.dim
}

// Ntotal returns the number of live vectors.
func (f *FlatIndex) Ntotal() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.ids)
}

// NextID returns the id the next Add will start from. Every id ever handed out is below it.
func (f *FlatIndex) NextID() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nextID
}

// Contains reports whether id is still present.
func (f *FlatIndex) Contains(id int64) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.pos[id]
	return ok
}

// IDs returns the live ids in insertion order.
func (f *FlatIndex) IDs() []int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]int64, len(f.ids))
	copy(out, f.ids)
	return out
}

// Add appends vectors and returns their contiguous new ids.
func (f *FlatIndex) Add(vectors [][]float32) ([]int64, error) {
	for i, v := range vectors {
		if len(v) != f.dim {
			return nil, fmt.Errorf("vector %d dimension mismatch: got %d, expected %d", i, len(v), f.dim)
		}
	}
	if len(vectors) == 0 {
		return []int64{}, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prevNext, prevLen := f.nextID, len(f.ids)
	assigned := make([]int64, len(vectors))
	for i, v := range vectors {
		id := f.nextID
		f.nextID++
		vec := make([]float32, f.dim)
		copy(vec, v)
		f.pos[id] = len(f.ids)
		f.ids = append(f.ids, id)
		f.vectors = append(f.vectors, vec)
		assigned[i] = id
	}

	if err := f.save(); err != nil {
		for _, id := range assigned {
			delete(f.pos, id)
		}
		f.ids = f.ids[:prevLen]
		f.vectors = f.vectors[:prevLen]
		f.nextID = prevNext
		return nil, err
	}
	return assigned, nil
}

// Remove deletes the given ids and returns how many were present. Remaining ids keep their value.
func (f *FlatIndex) Remove(ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	drop := make(map[int64]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prevIDs, prevVectors, prevPos := f.ids, f.vectors, f.pos
	newIDs := make([]int64, 0, len(f.ids))
	newVectors := make([][]float32, 0, len(f.vectors))
	newPos := make(map[int64]int, len(f.ids))
	removed := 0
	for i, id := range f.ids {
		if drop[id] {
			removed++
			continue
		}
		newPos[id] = len(newIDs)
		newIDs = append(newIDs, id)
		newVectors = append(newVectors, f.vectors[i])
	}
	if removed == 0 {
		return 0, nil
	}
	f.ids, f.vectors, f.pos = newIDs, newVectors, newPos

	if err := f.save(); err != nil {
		f.ids, f.vectors, f.pos = prevIDs, prevVectors, prevPos
		return 0, err
	}
	return removed, nil
}

// Reconstruct returns a copy of the stored vector for id.
func (f *FlatIndex) Reconstruct(id int64) ([]float32, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	i, ok := f.pos[id]
	if !ok {
		return nil, fmt.Errorf("%w: local id %d", apperr.ErrNotFound, id)
	}
	out := make([]float32, f.dim)
	copy(out, f.vectors[i])
	return out, nil
}

// Search returns exactly k slots ordered by ascending distance. Slots beyond the number of
// stored vectors carry NoID. Equal distances keep insertion order.
func (f *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	return f.SearchFiltered(query, k, nil)
}

// SearchFiltered is Search restricted to ids accepted by allow. A nil allow accepts everything.
func (f *FlatIndex) SearchFiltered(query []float32, k int, allow func(int64) bool) ([]Hit, error) {
	if len(query) != f.dim {
		return nil, fmt.Errorf("query dimension mismatch: got %d, expected %d", len(query), f.dim)
	}
	if k <= 0 {
		return []Hit{}, nil
	}

	f.mu.RLock()
	scored := make([]Hit, 0, len(f.ids))
	for i, id := range f.ids {
		if allow != nil && !allow(id) {
			continue
		}
		scored = append(scored, Hit{ID: id, Distance: L2Squared(query, f.vectors[i])})
	}
	f.mu.RUnlock()

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Distance < scored[j].Distance })

	out := make([]Hit, k)
	for i := range out {
		if i < len(scored) {
			out[i] = scored[i]
			continue
		}
		out[i] = Hit{ID: NoID, Distance: math.MaxFloat32}
	}
	return out, nil
}

// L2Squared returns the squared euclidean distance between a and b.
func L2Squared(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}
