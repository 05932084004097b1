package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tsawler/tabula"
	"github.com/tsawler/tabula/core"
	"github.com/tsawler/tabula/reader"
	"go.uber.org/zap"
)

// TabulaParser implements Parser and ImageExtractor for PDF files using the
// tabula toolkit.
type TabulaParser struct {
	logger *zap.Logger
}

// NewTabulaParser creates a PDF parser.
func NewTabulaParser(logger *zap.Logger) *TabulaParser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TabulaParser{logger: logger}
}

// Parse extracts per-page text, embedded images, and metadata from the PDF at
// path. A page whose text extraction fails yields an empty-text page rather
// than failing the whole document.
func (p *TabulaParser) Parse(ctx context.Context, path string) (*Parsed, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer r.Close()

	pageCount, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("reading page count: %w", err)
	}

	parsed := &Parsed{
		Pages:    make([]ParsedPage, 0, pageCount),
		Metadata: p.metadata(r, pageCount),
	}

	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		pp := ParsedPage{}

		text, warnings, err := tabula.FromReader(r).Pages(i).Text()
		if err != nil {
			p.logger.Warn("page text extraction failed",
				zap.String("path", path),
				zap.Int("page", i),
				zap.Error(err),
			)
		} else {
			pp.Text = text
		}
		if len(warnings) > 0 {
			p.logger.Debug("page text warnings",
				zap.String("path", path),
				zap.Int("page", i),
				zap.Int("count", len(warnings)),
			)
		}

		pp.Images = p.pageImages(r, i)
		parsed.Pages = append(parsed.Pages, pp)
	}

	return parsed, nil
}

// metadata reads the PDF info dictionary. Everything here is optional.
func (p *TabulaParser) metadata(r *reader.Reader, pageCount int) Metadata {
	meta := Metadata{
		PageCount:     pageCount,
		FileSizeBytes: r.FileSize(),
	}

	info, err := r.GetInfo()
	if err != nil || info == nil {
		return meta
	}
	if title, ok := info.Get("Title").(core.String); ok {
		meta.Title = strings.TrimSpace(string(title))
	}
	if author, ok := info.Get("Author").(core.String); ok {
		meta.Author = strings.TrimSpace(string(author))
	}
	return meta
}

// pageImages extracts the embedded images of page pageNum (1-based) as PNGs.
func (p *TabulaParser) pageImages(r *reader.Reader, pageNum int) [][]byte {
	page, err := r.GetPage(pageNum - 1)
	if err != nil {
		p.logger.Debug("page lookup failed", zap.Int("page", pageNum), zap.Error(err))
		return nil
	}

	images, err := r.ExtractPageImages(page)
	if err != nil {
		p.logger.Debug("image extraction failed", zap.Int("page", pageNum), zap.Error(err))
		return nil
	}

	var out [][]byte
	for _, img := range images {
		png, err := img.ToPNG()
		if err != nil {
			p.logger.Debug("image PNG conversion failed",
				zap.Int("page", pageNum),
				zap.String("image", img.Name),
				zap.Error(err),
			)
			continue
		}
		out = append(out, png)
	}
	return out
}

// ExtractImages writes every embedded page image of the PDF at path into
// outDir as PNG files and returns their paths. A PDF without embedded images
// yields an empty slice, not an error; vector-only drawings simply give the
// vision fallbacks nothing to look at.
func (p *TabulaParser) ExtractImages(ctx context.Context, path, outDir string) ([]string, error) {
	r, err := reader.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer r.Close()

	pageCount, err := r.PageCount()
	if err != nil {
		return nil, fmt.Errorf("reading page count: %w", err)
	}

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("creating image directory: %w", err)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

	var paths []string
	for i := 1; i <= pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for imgIdx, png := range p.pageImages(r, i) {
			name := fmt.Sprintf("%s_page%d_img%d.png", base, i, imgIdx+1)
			outPath := filepath.Join(outDir, name)
			if err := os.WriteFile(outPath, png, 0644); err != nil {
				return nil, fmt.Errorf("writing image %s: %w", outPath, err)
			}
			paths = append(paths, outPath)
		}
	}

	if len(paths) == 0 {
		p.logger.Info("no embedded images found in document", zap.String("path", path))
	}

	return paths, nil
}

// Ensure interfaces are implemented at compile time.
var (
	_ Parser         = (*TabulaParser)(nil)
	_ ImageExtractor = (*TabulaParser)(nil)
)
