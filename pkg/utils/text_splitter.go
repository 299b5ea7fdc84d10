package utils

import "strings"

// separators are tried in order when looking for a place to cut a chunk.
var separators = []string{"\n\n", "\n", ". ", " "}

// SplitText splits text into chunks of at most chunkSize runes, each sharing up to overlap
// runes with its predecessor. Cuts prefer paragraph, line, sentence and word boundaries in
// that order and fall back to a hard cut. Whitespace-only input yields no chunks.
func SplitText(text string, chunkSize int, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" || chunkSize <= 0 {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}
	if overlap < 0 || overlap >= chunkSize {
		overlap = 0
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(start+chunkSize, len(runes))
		if end < len(runes) {
			if cut := breakPoint(runes[start:end]); cut > overlap {
				end = start + cut
			}
		}

		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}

// breakPoint returns the rune offset just past the last separator in window, searching only
// its second half, or 0 when none is found.
func breakPoint(window []rune) int {
	s := string(window)
	half := len(string(window[:len(window)/2]))
	for _, sep := range separators {
		if i := strings.LastIndex(s, sep); i >= half {
			return len([]rune(s[:i+len(sep)]))
		}
	}
	return 0
}
