// Package extract reads the info dictionary and embedded XMP metadata of PDF files.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"strconv"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"docgraph/backend/internal/document"
	apperrors "docgraph/backend/pkg/errors"
	"docgraph/backend/pkg/logger"
)

// maxXMPBytes bounds the metadata stream read from one document
const maxXMPBytes = 4 << 20

// PDFExtractor pulls metadata out of PDF bytes. It is stateless and safe
// for concurrent use.
type PDFExtractor struct {
	logger *zap.Logger
}

// NewPDFExtractor creates an extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{logger: logger.With("extract")}
}

// Extract returns the document's info dictionary and XMP metadata. Either
// may be nil when the file carries none. A file that cannot be opened as a
// PDF yields *apperrors.ErrMalformedDocument; an unreadable XMP packet is
// logged and dropped so the info dictionary is still used.
func (e *PDFExtractor) Extract(data []byte) (extracted *document.Extracted, err error) {
	defer func() {
		if r := recover(); r != nil {
			extracted = nil
			err = apperrors.NewMalformedDocument("parser panic", fmt.Errorf("%v", r))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, apperrors.NewMalformedDocument("cannot open PDF", err)
	}

	trailer := reader.Trailer()
	extracted = &document.Extracted{
		Info: readInfo(trailer.Key("Info")),
	}

	metadata, err := readXMP(trailer.Key("Root").Key("Metadata"))
	if err != nil {
		e.logger.Warn("Ignoring unreadable XMP metadata", zap.Error(err))
	} else {
		extracted.Metadata = metadata
	}
	return extracted, nil
}

func readInfo(v pdf.Value) document.Info {
	if v.Kind() != pdf.Dict {
		return nil
	}
	info := make(document.Info)
	for _, key := range v.Keys() {
		if text, ok := valueText(v.Key(key)); ok {
			info[key] = text
		}
	}
	return info
}

func valueText(v pdf.Value) (string, bool) {
	switch v.Kind() {
	case pdf.String:
		return v.Text(), true
	case pdf.Name:
		return v.Name(), true
	case pdf.Integer:
		return strconv.FormatInt(v.Int64(), 10), true
	case pdf.Real:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64), true
	case pdf.Bool:
		return strconv.FormatBool(v.Bool()), true
	case pdf.Null:
		return "", false
	default:
		return v.String(), true
	}
}

func readXMP(v pdf.Value) (meta document.Metadata, err error) {
	if v.Kind() != pdf.Stream {
		return nil, nil
	}

	// Unsupported stream filters panic inside the reader
	defer func() {
		if r := recover(); r != nil {
			meta = nil
			err = fmt.Errorf("metadata stream: %v", r)
		}
	}()

	rc := v.Reader()
	defer rc.Close()

	packet, err := io.ReadAll(io.LimitReader(rc, maxXMPBytes))
	if err != nil {
		return nil, fmt.Errorf("metadata stream: %w", err)
	}
	if len(bytes.TrimSpace(packet)) == 0 {
		return nil, nil
	}
	return ParseXMP(packet)
}
