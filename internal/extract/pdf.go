package extract

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/mohammad-safakhou/legalmcp/internal/legal"
)

// PDFExtractor converts a PDF buffer to text.
type PDFExtractor interface {
	Text(data []byte) (string, error)
}

// PDFFunc adapts a function to PDFExtractor.
type PDFFunc func(data []byte) (string, error)

func (f PDFFunc) Text(data []byte) (string, error) { return f(data) }

// PDF is the default extractor backed by ledongthuc/pdf.
var PDF PDFExtractor = PDFFunc(PDFText)

// PDFText extracts the plain text of every page. Malformed documents return
// an error instead of panicking.
func PDFText(data []byte) (text string, err error) {
	if len(data) == 0 {
		return "", errors.New("empty pdf body")
	}
	if !bytes.HasPrefix(bytes.TrimLeft(data, "\x00\t\r\n "), []byte("%PDF")) {
		return "", errors.New("body is not a pdf document")
	}
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("malformed pdf: %v", r)
		}
	}()
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return legal.CollapseSpace(buf.String()), nil
}
