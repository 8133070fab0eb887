// Package pdf extracts page-level text from PDF binaries and segments it
// into fixed-size word-count chunks for storage. Extraction uses the pure-Go
// github.com/ledongthuc/pdf reader; segmentation is a simple fixed-window
// split on whitespace, not sentence- or token-aware.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ExtractPages parses the PDF in data and returns the plain text of every
// page, in order. Pages the reader cannot decode yield an empty string
// rather than failing the whole document; the caller decides how empty
// pages count. The returned slice length equals the document's page count.
func ExtractPages(data []byte) ([]string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	total := reader.NumPage()
	pages := make([]string, 0, total)
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Keep the page slot so page counting stays accurate.
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

// SplitWords segments text into chunks of at most maxWords whitespace-
// separated words, rejoined with single spaces. Whitespace-only input yields
// no chunks. maxWords < 1 is coerced to 1.
func SplitWords(text string, maxWords int) []string {
	if maxWords < 1 {
		maxWords = 1
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	chunks := make([]string, 0, (len(words)+maxWords-1)/maxWords)
	for start := 0; start < len(words); start += maxWords {
		end := start + maxWords
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, strings.Join(words[start:end], " "))
	}
	return chunks
}

// ChunkPages applies SplitWords to every page, skipping pages whose text is
// empty or whitespace-only, and returns the flat ordered chunk list.
func ChunkPages(pages []string, maxWords int) []string {
	var out []string
	for _, p := range pages {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, SplitWords(p, maxWords)...)
	}
	return out
}
