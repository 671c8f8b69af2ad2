// Package extract converts raw document buffers into plain text.
// Format-specific knowledge lives entirely in this package: callers dispatch
// on a Format tag derived from the file extension and always get back either
// valid UTF-8 text or a classified error, never a panic from a parser.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Format identifies a supported document format.
type Format string

const (
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
	FormatDocx Format = "docx"
)

// String returns the format tag as a plain string.
func (f Format) String() string {
	return string(f)
}

// FormatForFilename derives the document format from the file extension.
// The second return value is false when the extension is not supported.
func FormatForFilename(name string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(name))) {
	case ".txt", ".text":
		return FormatText, true
	case ".pdf":
		return FormatPDF, true
	case ".docx":
		return FormatDocx, true
	default:
		return "", false
	}
}

// Supported reports whether the format has a registered extractor.
func Supported(format Format) bool {
	switch format {
	case FormatText, FormatPDF, FormatDocx:
		return true
	default:
		return false
	}
}

// Extract converts data into plain text according to format.
// Parser faults are caught here and converted to ErrParse so no
// format-library panic crosses this boundary.
func Extract(data []byte, format Format) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = fmt.Errorf("%w: %s parser fault: %v", ErrParse, format, r)
		}
	}()

	switch format {
	case FormatText:
		return extractText(data)
	case FormatPDF:
		return extractPDF(data)
	case FormatDocx:
		return extractDocx(data)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupported, format)
	}
}

func extractText(data []byte) (string, error) {
	if !utf8.Valid(data) {
		return "", ErrDecode
	}
	return string(data), nil
}
