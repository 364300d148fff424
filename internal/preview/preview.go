// Package preview reads page count and plain text out of a compiled PDF.
package preview

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/hyperjump/vibetex/internal/models"
	"github.com/hyperjump/vibetex/pkg/utils"
)

// Inspect parses data as a PDF and extracts the text of every page. Text is
// cut to maxText characters when maxText is positive.
func Inspect(data []byte, maxText int) (p *models.ArtifactPreview, err error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty artifact")
	}
	// The PDF reader panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			p, err = nil, fmt.Errorf("read PDF: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	var buf strings.Builder
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		buf.WriteString(text)
		if i < numPages {
			buf.WriteByte('\n')
		}
	}
	return &models.ArtifactPreview{
		Pages: numPages,
		Bytes: len(data),
		Text:  utils.Truncate(buf.String(), maxText),
	}, nil
}
