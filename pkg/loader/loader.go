// Package loader turns a source reference (local path or http(s) URL) into text chunks ready
// for embedding.
package loader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"studymate-be/pkg/apperr"
	"studymate-be/pkg/utils"
)

const (
	DefaultChunkSize    = 600
	DefaultChunkOverlap = 200

	// DefaultMaxDownload caps the size of a remote source.
	DefaultMaxDownload int64 = 50 << 20
)

// Page is one logical unit of an extracted document. Formats without pages yield a single
// Page numbered 1.
type Page struct {
	Number int
	Text   string
}

// Chunk is a piece of a page, numbered across the whole document.
type Chunk struct {
	Index int
	Page  int
	Text  string
}

type Loader struct {
	client       *http.Client
	tempDir      string
	chunkSize    int
	chunkOverlap int
	maxDownload  int64
}

type Option func(*Loader)

func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) { l.client = c }
}

func WithTempDir(dir string) Option {
	return func(l *Loader) { l.tempDir = dir }
}

func WithChunking(size, overlap int) Option {
	return func(l *Loader) {
		l.chunkSize = size
		l.chunkOverlap = overlap
	}
}

// WithMaxDownload caps remote sources at n bytes. n <= 0 keeps the default.
func WithMaxDownload(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxDownload = n
		}
	}
}

func New(opts ...Option) *Loader {
	l := &Loader{
		client:       &http.Client{Timeout: 2 * time.Minute},
		tempDir:      os.TempDir(),
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
		maxDownload:  DefaultMaxDownload,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// IsRemote reports whether source is an http(s) URL.
func IsRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// Load extracts and chunks source. Remote sources are downloaded to a temporary file that is
// removed before Load returns.
func (l *Loader) Load(ctx context.Context, source string) ([]Chunk, error) {
	pages, err := l.LoadPages(ctx, source)
	if err != nil {
		return nil, err
	}
	return l.Split(pages), nil
}

// LoadPages extracts source without chunking.
func (l *Loader) LoadPages(ctx context.Context, source string) ([]Page, error) {
	if strings.TrimSpace(source) == "" {
		return nil, apperr.Invalid("source is empty")
	}

	localPath := source
	if IsRemote(source) {
		tmp, err := l.download(ctx, source)
		if err != nil {
			return nil, err
		}
		defer os.Remove(tmp)
		localPath = tmp
	}

	ext := strings.ToLower(filepath.Ext(localPath))
	if !Supported(ext) {
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnsupportedFormat, ext)
	}

	content, err := os.ReadFile(localPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: source %s", apperr.ErrNotFound, source)
		}
		return nil, fmt.Errorf("read source: %w", err)
	}

	return ExtractPages(content, ext)
}

// Split chunks pages and numbers the chunks consecutively from 0.
func (l *Loader) Split(pages []Page) []Chunk {
	var chunks []Chunk
	for _, p := range pages {
		for _, text := range utils.SplitText(p.Text, l.chunkSize, l.chunkOverlap) {
			chunks = append(chunks, Chunk{Index: len(chunks), Page: p.Number, Text: text})
		}
	}
	return chunks
}

func (l *Loader) download(ctx context.Context, source string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", apperr.Invalid("source url: %v", err)
	}
	ext := strings.ToLower(path.Ext(u.Path))
	if !Supported(ext) {
		return "", fmt.Errorf("%w: %q", apperr.ErrUnsupportedFormat, ext)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return "", apperr.Invalid("source url: %v", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download source: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", fmt.Errorf("%w: source %s", apperr.ErrNotFound, source)
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("download source: status %d", resp.StatusCode)
	case resp.ContentLength > l.maxDownload:
		return "", apperr.Invalid("source is larger than %d bytes", l.maxDownload)
	}

	tmp := filepath.Join(l.tempDir, uuid.NewString()+ext)
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, io.LimitReader(resp.Body, l.maxDownload+1))
	if err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("download source: %w", err)
	}
	if n > l.maxDownload {
		f.Close()
		os.Remove(tmp)
		return "", apperr.Invalid("source is larger than %d bytes", l.maxDownload)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("download source: %w", err)
	}
	return tmp, nil
}
