package extract

import (
	"bytes"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"
)

// pageTexts returns the plain text of each page, at most maxPages of them,
// and the document's total page count. Pages whose text cannot be decoded
// are returned empty.
func pageTexts(content []byte, maxPages int) ([]string, int, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, 0, fmt.Errorf("open PDF: %w", err)
	}

	numPages := r.NumPage()
	limit := numPages
	if maxPages > 0 && limit > maxPages {
		limit = maxPages
	}

	texts := make([]string, 0, limit)
	for i := 1; i <= limit; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			texts = append(texts, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			slog.Warn("failed to extract page text", "page", i, "error", err)
			text = ""
		}
		texts = append(texts, text)
	}
	return texts, numPages, nil
}
