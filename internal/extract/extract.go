package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

var pdfMagic = []byte("%PDF-")

// IsSupported reports whether a document with the given filename can be analyzed.
func IsSupported(filename string) bool {
	return strings.EqualFold(filepath.Ext(strings.TrimSpace(filename)), ".pdf")
}

// IsPDF reports whether content starts with the PDF header.
func IsPDF(content []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(content, "\x00\t\r\n "), pdfMagic)
}

// Extractor turns PDF bytes into plain text.
type Extractor struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{logger: logger}
}

// Extract returns the plain text of a PDF document. Malformed or non-PDF
// input yields an empty string.
func (e *Extractor) Extract(content []byte) string {
	if !IsPDF(content) {
		e.logger.Debug("document is not a pdf", zap.Int("bytes", len(content)))
		return ""
	}

	text, err := plainText(content)
	if err != nil {
		e.logger.Warn("pdf text extraction failed", zap.Error(err))
		return ""
	}

	return strings.TrimSpace(text)
}

func plainText(content []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("copy pdf text: %w", err)
	}

	return buf.String(), nil
}
