package loader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const docxDocumentXMLPath = "word/document.xml"

var (
	// <w:t> and <a:t> carry attributes in real documents, e.g. xml:space="preserve".
	wtTag       = regexp.MustCompile(`<w:t[^>]*>([^<]*)</w:t>`)
	atTag       = regexp.MustCompile(`<a:t[^>]*>([^<]*)</a:t>`)
	slideName   = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)
	xmlEntities = strings.NewReplacer("&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`, "&apos;", "'")
)

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func extractDOCX(content []byte) ([]Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract DOCX: not a zip: %w", err)
	}

	for _, f := range zr.File {
		if f.Name != docxDocumentXMLPath {
			continue
		}
		body, err := readZipEntry(f)
		if err != nil {
			return nil, fmt.Errorf("extract DOCX: read %s: %w", f.Name, err)
		}
		// One line per paragraph so the splitter can cut on them.
		var b strings.Builder
		for _, para := range strings.Split(string(body), "</w:p>") {
			parts := wtTag.FindAllStringSubmatch(para, -1)
			if len(parts) == 0 {
				continue
			}
			for _, p := range parts {
				b.WriteString(xmlEntities.Replace(p[1]))
			}
			b.WriteByte('\n')
		}
		return []Page{{Number: 1, Text: strings.TrimSpace(b.String())}}, nil
	}
	return nil, fmt.Errorf("extract DOCX: %s not found", docxDocumentXMLPath)
}

// extractPPTX yields one page per slide, ordered by slide number.
func extractPPTX(content []byte) ([]Page, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("extract PPTX: not a zip: %w", err)
	}

	var pages []Page
	for _, f := range zr.File {
		m := slideName.FindStringSubmatch(f.Name)
		if m == nil {
			continue
		}
		n, _ := strconv.Atoi(m[1])
		body, err := readZipEntry(f)
		if err != nil {
			return nil, fmt.Errorf("extract PPTX: read %s: %w", f.Name, err)
		}
		var texts []string
		for _, p := range atTag.FindAllStringSubmatch(string(body), -1) {
			if t := strings.TrimSpace(xmlEntities.Replace(p[1])); t != "" {
				texts = append(texts, t)
			}
		}
		pages = append(pages, Page{Number: n, Text: strings.Join(texts, "\n")})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	return pages, nil
}

// extractXLSX yields one page per sheet with tab-separated rows.
func extractXLSX(content []byte) ([]Page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var pages []Page
	for i, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var b strings.Builder
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		pages = append(pages, Page{Number: i + 1, Text: strings.TrimSpace(b.String())})
	}
	return pages, nil
}
