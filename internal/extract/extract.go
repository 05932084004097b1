// Package extract turns construction documents into page-level text.
//
// A Parser produces native text and embedded images per page; the Coordinator
// decides per page whether the native text is usable or OCR has to take over.
// Scanned drawing sets routinely mix born-digital schedule pages with raster
// plan sheets, so the decision is per page, not per document.
package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// ErrDocumentOpen is returned when the source document cannot be opened or
// parsed at all. Downstream recovery is impossible in that case; partial
// extraction failures surface as warnings instead.
var ErrDocumentOpen = errors.New("failed to open document")

// Metadata holds document-level metadata from the PDF info dictionary.
type Metadata struct {
	Title         string
	Author        string
	PageCount     int
	FileSizeBytes int64
}

// Page is one extracted page.
type Page struct {
	// Number is the 1-based page number.
	Number int

	// Text is the extracted text, native or OCR.
	Text string

	// OCRApplied reports whether OCR text replaced the native text.
	OCRApplied bool
}

// Document is the extraction result for one source file.
type Document struct {
	Path     string
	Pages    []Page
	Metadata Metadata
	Warnings []string
}

// Text returns the concatenated text of all pages.
func (d *Document) Text() string {
	parts := make([]string, 0, len(d.Pages))
	for _, p := range d.Pages {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// OCRPageCount returns the number of pages where OCR text was used.
func (d *Document) OCRPageCount() int {
	n := 0
	for _, p := range d.Pages {
		if p.OCRApplied {
			n++
		}
	}
	return n
}

// ParsedPage is a parser's raw output for one page.
type ParsedPage struct {
	// Text is the native (embedded) text of the page.
	Text string

	// Images holds PNG-encoded embedded images, the OCR input for raster
	// pages.
	Images [][]byte
}

// Parsed is a parser's raw output for one document.
type Parsed struct {
	Pages    []ParsedPage
	Metadata Metadata
}

// Parser extracts native text, embedded images, and metadata from a document.
type Parser interface {
	Parse(ctx context.Context, path string) (*Parsed, error)
}

// ImageExtractor writes a document's embedded page images to files so the
// vision and CV services can consume them.
type ImageExtractor interface {
	ExtractImages(ctx context.Context, path, outDir string) ([]string, error)
}

// OCR recognizes text in an image. Implementations may be unavailable at
// runtime (engine not compiled in); the coordinator degrades to native text.
type OCR interface {
	Recognize(imageData []byte) (string, error)
}

// Config holds coordinator configuration.
type Config struct {
	// MinPageTextForOCR is the native-text length below which a page is
	// routed to OCR.
	MinPageTextForOCR int

	// ParseWorkers bounds concurrent document parses across goroutines.
	ParseWorkers int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MinPageTextForOCR == 0 {
		c.MinPageTextForOCR = 100
	}
	if c.ParseWorkers == 0 {
		c.ParseWorkers = 4
	}
}

// Coordinator extracts text from documents, falling back to OCR per page.
type Coordinator struct {
	parser      Parser
	ocr         OCR // nil when OCR support is unavailable
	sem         *semaphore.Weighted
	minPageText int
	logger      *zap.Logger
}

// NewCoordinator creates an extraction coordinator. The ocr argument may be
// nil; pages needing OCR then keep their native text and a warning is
// recorded.
func NewCoordinator(parser Parser, ocr OCR, cfg Config, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()

	return &Coordinator{
		parser:      parser,
		ocr:         ocr,
		sem:         semaphore.NewWeighted(int64(cfg.ParseWorkers)),
		minPageText: cfg.MinPageTextForOCR,
		logger:      logger,
	}
}

// Extract parses the document at path and resolves per-page text.
//
// A page goes through OCR when forceOCR is set or its native text is shorter
// than the configured minimum. OCR output only replaces native text when it is
// longer; a failed or unavailable OCR pass keeps the native text and records
// a warning.
func (c *Coordinator) Extract(ctx context.Context, path string, forceOCR bool) (*Document, error) {
	// Parsing decompresses whole PDFs in memory; bound the concurrency.
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquiring parse slot: %w", err)
	}
	defer c.sem.Release(1)

	parsed, err := c.parser.Parse(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s", ErrDocumentOpen, path, err)
	}

	doc := &Document{
		Path:     path,
		Pages:    make([]Page, 0, len(parsed.Pages)),
		Metadata: parsed.Metadata,
	}

	for i, pp := range parsed.Pages {
		pageNum := i + 1
		native := strings.TrimSpace(pp.Text)
		page := Page{Number: pageNum, Text: native}

		if forceOCR || len(native) < c.minPageText {
			ocrText, warn := c.runOCR(pageNum, pp)
			if warn != "" {
				doc.Warnings = append(doc.Warnings, warn)
			}
			if len(ocrText) > len(native) {
				page.Text = ocrText
				page.OCRApplied = true
			}
		}

		doc.Pages = append(doc.Pages, page)
	}

	c.logger.Debug("document extracted",
		zap.String("path", path),
		zap.Int("pages", len(doc.Pages)),
		zap.Int("ocr_pages", doc.OCRPageCount()),
		zap.Int("text_len", len(doc.Text())),
	)

	return doc, nil
}

// runOCR recognizes every embedded image on a page and concatenates the
// results. Returns the recognized text and an optional warning.
func (c *Coordinator) runOCR(pageNum int, pp ParsedPage) (string, string) {
	if c.ocr == nil {
		return "", fmt.Sprintf("page %d: OCR needed but not available", pageNum)
	}
	if len(pp.Images) == 0 {
		return "", fmt.Sprintf("page %d: OCR needed but page has no embedded images", pageNum)
	}

	var parts []string
	for imgIdx, img := range pp.Images {
		text, err := c.ocr.Recognize(img)
		if err != nil {
			c.logger.Warn("OCR failed for page image",
				zap.Int("page", pageNum),
				zap.Int("image", imgIdx),
				zap.Error(err),
			)
			continue
		}
		if text = strings.TrimSpace(text); text != "" {
			parts = append(parts, text)
		}
	}

	if len(parts) == 0 {
		return "", fmt.Sprintf("page %d: OCR produced no text", pageNum)
	}
	return strings.Join(parts, "\n"), ""
}
