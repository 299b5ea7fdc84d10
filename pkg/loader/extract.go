package loader

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"studymate-be/pkg/apperr"
)

var extractors = map[string]func([]byte) ([]Page, error){
	".pdf":  extractPDF,
	".docx": extractDOCX,
	".pptx": extractPPTX,
	".xlsx": extractXLSX,
	".txt":  extractPlain,
	".md":   extractPlain,
}

// Supported reports whether ext (with leading dot) has an extractor.
func Supported(ext string) bool {
	_, ok := extractors[strings.ToLower(ext)]
	return ok
}

// ExtractPages extracts content according to ext. Pages with no text are dropped.
func ExtractPages(content []byte, ext string) ([]Page, error) {
	fn, ok := extractors[strings.ToLower(ext)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", apperr.ErrUnsupportedFormat, ext)
	}
	pages, err := fn(content)
	if err != nil {
		return nil, err
	}
	out := pages[:0]
	for _, p := range pages {
		if strings.TrimSpace(p.Text) != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func extractPlain(content []byte) ([]Page, error) {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "�"))
	}
	return []Page{{Number: 1, Text: string(content)}}, nil
}
