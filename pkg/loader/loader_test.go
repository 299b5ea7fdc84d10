package loader

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"studymate-be/pkg/apperr"
)

func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractPlain(t *testing.T) {
	pages, err := ExtractPages([]byte("hello\x80world"), ".txt")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "hello�world", pages[0].Text)
}

func TestExtractDOCX(t *testing.T) {
	doc := `<w:document><w:body>` +
		`<w:p w:rsidR="00A1"><w:r><w:t>Cell </w:t></w:r><w:r><w:t xml:space="preserve">biology</w:t></w:r></w:p>` +
		`<w:p><w:r><w:t>Mitochondria &amp; ATP</w:t></w:r></w:p>` +
		`</w:body></w:document>`
	content := zipBytes(t, map[string]string{"word/document.xml": doc})

	pages, err := ExtractPages(content, ".docx")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Cell biology\nMitochondria & ATP", pages[0].Text)
}

func TestExtractDOCXMissingBody(t *testing.T) {
	content := zipBytes(t, map[string]string{"other.xml": "<x/>"})
	_, err := ExtractPages(content, ".docx")
	assert.Error(t, err)
}

func TestExtractPPTXOrdersSlides(t *testing.T) {
	content := zipBytes(t, map[string]string{
		"ppt/slides/slide10.xml": `<p:sld><a:t>ten</a:t></p:sld>`,
		"ppt/slides/slide2.xml":  `<p:sld><a:t>two</a:t><a:t xml:space="preserve"> more </a:t></p:sld>`,
		"ppt/slides/slide3.xml":  `<p:sld></p:sld>`,
	})

	pages, err := ExtractPages(content, ".pptx")
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, Page{Number: 2, Text: "two\nmore"}, pages[0])
	assert.Equal(t, Page{Number: 10, Text: "ten"}, pages[1])
}

func TestExtractXLSX(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Term"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Definition"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Osmosis"))
	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)

	pages, err := ExtractPages(buf.Bytes(), ".xlsx")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "Term\tDefinition\nOsmosis", pages[0].Text)
}

func TestExtractUnsupported(t *testing.T) {
	_, err := ExtractPages([]byte("x"), ".exe")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedFormat)
	assert.False(t, Supported(".exe"))
	assert.True(t, Supported(".PDF"))
}

func TestExtractInvalidPDF(t *testing.T) {
	_, err := ExtractPages([]byte("not a pdf"), ".pdf")
	assert.Error(t, err)
}

func TestLoadLocalFile(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "notes.md")
	require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("word ", 300)), 0o644))

	chunks, err := New().Load(context.Background(), p)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)
	for i, c := range chunks {
		assert.Equal(t, i, c.Index)
		assert.Equal(t, 1, c.Page)
		assert.LessOrEqual(t, len([]rune(c.Text)), DefaultChunkSize)
	}
}

func TestLoadErrors(t *testing.T) {
	l := New()
	ctx := context.Background()

	_, err := l.Load(ctx, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidInput)

	_, err = l.Load(ctx, filepath.Join(t.TempDir(), "missing.txt"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = l.Load(ctx, "slides.key")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedFormat)
}

func TestLoadRemoteRemovesTempFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/gone.txt" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("photosynthesis converts light into chemical energy"))
	}))
	defer srv.Close()

	tmp := t.TempDir()
	l := New(WithTempDir(tmp), WithHTTPClient(srv.Client()))

	chunks, err := l.Load(context.Background(), srv.URL+"/lecture.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "photosynthesis converts light into chemical energy", chunks[0].Text)

	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)

	_, err = l.Load(context.Background(), srv.URL+"/gone.txt")
	assert.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = l.Load(context.Background(), srv.URL+"/archive.zip")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedFormat)
}

func TestLoadRemoteChecksFormatBeforeFetching(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("MZ"))
	}))
	defer srv.Close()

	l := New(WithTempDir(t.TempDir()), WithHTTPClient(srv.Client()))
	_, err := l.Load(context.Background(), srv.URL+"/setup.exe")
	assert.ErrorIs(t, err, apperr.ErrUnsupportedFormat)
	assert.Zero(t, hits.Load())
}

func TestLoadRemoteEnforcesMaxDownload(t *testing.T) {
	body := strings.Repeat("a", 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/chunked.txt" {
			// Flushing first forces a chunked response with no Content-Length.
			w.(http.Flusher).Flush()
		} else {
			w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		}
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	tmp := t.TempDir()
	l := New(WithTempDir(tmp), WithHTTPClient(srv.Client()), WithMaxDownload(32))
	for _, p := range []string{"/sized.txt", "/chunked.txt"} {
		_, err := l.Load(context.Background(), srv.URL+p)
		assert.ErrorIs(t, err, apperr.ErrInvalidInput, p)
	}
	entries, err := os.ReadDir(tmp)
	require.NoError(t, err)
	assert.Empty(t, entries)

	chunks, err := New(WithTempDir(tmp), WithHTTPClient(srv.Client()), WithMaxDownload(64)).Load(context.Background(), srv.URL+"/chunked.txt")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, body, chunks[0].Text)
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/a.pdf"))
	assert.True(t, IsRemote("http://example.com/a.pdf"))
	assert.False(t, IsRemote("/tmp/a.pdf"))
}
