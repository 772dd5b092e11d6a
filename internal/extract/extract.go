// Package extract decides how a downloaded document is presented to the structuring service.
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/Ge9Nico/SWYM/internal/models"
)

const (
	mimePDF     = "application/pdf"
	imagePrefix = "image/"

	// DefaultMinTextLength is the shortest trimmed text layer treated as a real one.
	// Scanned PDFs usually carry no text layer or only a few stray characters.
	DefaultMinTextLength = 50
)

// ErrUnsupportedContentType is wrapped by the error for declared types other than images and PDFs.
var ErrUnsupportedContentType = errors.New("unsupported file type")

// Strategy is how document content reaches the structuring service.
type Strategy string

const (
	StrategyText       Strategy = "text"
	StrategyMultimodal Strategy = "multimodal"
)

// Result is the extracted payload. Text is set for StrategyText, Data for StrategyMultimodal.
type Result struct {
	Strategy  Strategy
	Text      string
	Data      []byte
	MIMEType  string
	PageCount int
}

// TextLayer reads the embedded text of a PDF.
type TextLayer interface {
	Text(data []byte) (string, error)
}

// PageCounter counts the pages of the PDF at path.
type PageCounter func(path string) (int, error)

// Extractor applies the per-content-type decision table.
type Extractor struct {
	textLayer     TextLayer
	countPages    PageCounter
	minTextLength int
}

// Option customizes an Extractor.
type Option func(*Extractor)

// WithTextLayer replaces the PDF text-layer reader.
func WithTextLayer(tl TextLayer) Option {
	return func(e *Extractor) { e.textLayer = tl }
}

// WithPageCounter replaces the PDF page counter.
func WithPageCounter(pc PageCounter) Option {
	return func(e *Extractor) { e.countPages = pc }
}

// New returns an Extractor. minTextLength <= 0 selects DefaultMinTextLength.
func New(minTextLength int, opts ...Option) *Extractor {
	if minTextLength <= 0 {
		minTextLength = DefaultMinTextLength
	}
	e := &Extractor{
		textLayer:     PDFTextLayer{},
		countPages:    api.PageCountFile,
		minTextLength: minTextLength,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract reads the file at path and chooses a strategy from its declared content type:
// images always go multimodal, PDFs go as text unless their text layer is unreadable or
// shorter than the threshold, and anything else is rejected as UnsupportedContentType.
func (e *Extractor) Extract(ctx context.Context, path, contentType string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.NewProcessingError(models.KindExtractionFailure, err)
	}
	mimeType := NormalizeContentType(contentType)

	switch {
	case strings.HasPrefix(mimeType, imagePrefix):
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		return &Result{Strategy: StrategyMultimodal, Data: data, MIMEType: mimeType}, nil

	case mimeType == mimePDF:
		data, err := readFile(path)
		if err != nil {
			return nil, err
		}
		res := &Result{MIMEType: mimeType}
		res.PageCount = e.safePageCount(path)

		text, err := e.safeText(data)
		if err != nil || utf8.RuneCountInString(strings.TrimSpace(text)) < e.minTextLength {
			res.Strategy = StrategyMultimodal
			res.Data = data
			return res, nil
		}
		res.Strategy = StrategyText
		res.Text = text
		return res, nil

	default:
		return nil, models.NewProcessingError(models.KindUnsupportedContentType,
			fmt.Errorf("%w: %s", ErrUnsupportedContentType, contentType))
	}
}

// NormalizeContentType lower-cases a declared content type and drops its parameters.
func NormalizeContentType(contentType string) string {
	return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
}

// safeText turns a panic inside the PDF parser into an error; malformed files can trigger one.
func (e *Extractor) safeText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf text layer: %v", r)
		}
	}()
	return e.textLayer.Text(data)
}

// safePageCount returns 0 when the page count is unavailable; it is informational only.
func (e *Extractor) safePageCount(path string) (n int) {
	defer func() {
		if r := recover(); r != nil {
			n = 0
		}
	}()
	n, err := e.countPages(path)
	if err != nil {
		return 0
	}
	return n
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, models.Errorf(models.KindExtractionFailure, "read downloaded file: %w", err)
	}
	return data, nil
}

// PDFTextLayer reads text with github.com/ledongthuc/pdf.
type PDFTextLayer struct{}

func (PDFTextLayer) Text(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}
	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
