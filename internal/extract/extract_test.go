package extract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeParser returns a canned Parsed or error.
type fakeParser struct {
	parsed *Parsed
	err    error
}

func (f *fakeParser) Parse(_ context.Context, _ string) (*Parsed, error) {
	return f.parsed, f.err
}

// fakeOCR maps image bytes to recognized text.
type fakeOCR struct {
	texts map[string]string
	err   error
}

func (f *fakeOCR) Recognize(imageData []byte) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[string(imageData)], nil
}

func TestCoordinator_Extract_NativeText(t *testing.T) {
	longText := strings.Repeat("schedule row ", 20) // well above the OCR threshold
	parser := &fakeParser{parsed: &Parsed{
		Pages:    []ParsedPage{{Text: longText}},
		Metadata: Metadata{Title: "Floor Plans", PageCount: 1},
	}}
	c := NewCoordinator(parser, &fakeOCR{}, Config{}, nil)

	doc, err := c.Extract(context.Background(), "plans.pdf", false)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.False(t, doc.Pages[0].OCRApplied)
	assert.Equal(t, strings.TrimSpace(longText), doc.Pages[0].Text)
	assert.Equal(t, "Floor Plans", doc.Metadata.Title)
	assert.Empty(t, doc.Warnings)
}

func TestCoordinator_Extract_OCRFallbackOnShortPage(t *testing.T) {
	parser := &fakeParser{parsed: &Parsed{
		Pages: []ParsedPage{
			{Text: "A1", Images: [][]byte{[]byte("img1")}},
		},
	}}
	ocr := &fakeOCR{texts: map[string]string{
		"img1": "Bedroom 12' x 10'\nKitchen 8' x 9'",
	}}
	c := NewCoordinator(parser, ocr, Config{MinPageTextForOCR: 100}, nil)

	doc, err := c.Extract(context.Background(), "scan.pdf", false)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 1)
	assert.True(t, doc.Pages[0].OCRApplied)
	assert.Contains(t, doc.Pages[0].Text, "Bedroom 12' x 10'")
	assert.Equal(t, 1, doc.OCRPageCount())
}

func TestCoordinator_Extract_OCRKeepsLongerNativeText(t *testing.T) {
	native := "Room schedule with dimensions 12x10"
	parser := &fakeParser{parsed: &Parsed{
		Pages: []ParsedPage{
			{Text: native, Images: [][]byte{[]byte("img1")}},
		},
	}}
	ocr := &fakeOCR{texts: map[string]string{"img1": "12x10"}}
	c := NewCoordinator(parser, ocr, Config{MinPageTextForOCR: 100}, nil)

	doc, err := c.Extract(context.Background(), "mixed.pdf", false)
	require.NoError(t, err)
	assert.False(t, doc.Pages[0].OCRApplied)
	assert.Equal(t, native, doc.Pages[0].Text)
}

func TestCoordinator_Extract_ForceOCR(t *testing.T) {
	longText := strings.Repeat("native ", 30)
	parser := &fakeParser{parsed: &Parsed{
		Pages: []ParsedPage{
			{Text: longText, Images: [][]byte{[]byte("img1")}},
		},
	}}
	ocr := &fakeOCR{texts: map[string]string{"img1": strings.Repeat("recognized ", 40)}}
	c := NewCoordinator(parser, ocr, Config{}, nil)

	doc, err := c.Extract(context.Background(), "scan.pdf", true)
	require.NoError(t, err)
	assert.True(t, doc.Pages[0].OCRApplied)
}

func TestCoordinator_Extract_NoOCRAvailable(t *testing.T) {
	parser := &fakeParser{parsed: &Parsed{
		Pages: []ParsedPage{{Text: "short", Images: [][]byte{[]byte("img1")}}},
	}}
	c := NewCoordinator(parser, nil, Config{}, nil)

	doc, err := c.Extract(context.Background(), "scan.pdf", false)
	require.NoError(t, err)
	assert.False(t, doc.Pages[0].OCRApplied)
	assert.Equal(t, "short", doc.Pages[0].Text)
	require.Len(t, doc.Warnings, 1)
	assert.Contains(t, doc.Warnings[0], "OCR needed but not available")
}

func TestCoordinator_Extract_PageWithoutImages(t *testing.T) {
	parser := &fakeParser{parsed: &Parsed{
		Pages: []ParsedPage{{Text: ""}},
	}}
	c := NewCoordinator(parser, &fakeOCR{}, Config{}, nil)

	doc, err := c.Extract(context.Background(), "empty.pdf", false)
	require.NoError(t, err)
	require.Len(t, doc.Warnings, 1)
	assert.Contains(t, doc.Warnings[0], "no embedded images")
}

func TestCoordinator_Extract_OCRErrorKeepsNative(t *testing.T) {
	parser := &fakeParser{parsed: &Parsed{
		Pages: []ParsedPage{{Text: "tiny", Images: [][]byte{[]byte("img1")}}},
	}}
	ocr := &fakeOCR{err: errors.New("engine crashed")}
	c := NewCoordinator(parser, ocr, Config{}, nil)

	doc, err := c.Extract(context.Background(), "scan.pdf", false)
	require.NoError(t, err)
	assert.Equal(t, "tiny", doc.Pages[0].Text)
	require.Len(t, doc.Warnings, 1)
	assert.Contains(t, doc.Warnings[0], "OCR produced no text")
}

func TestCoordinator_Extract_OpenFailure(t *testing.T) {
	parser := &fakeParser{err: errors.New("not a PDF")}
	c := NewCoordinator(parser, nil, Config{}, nil)

	_, err := c.Extract(context.Background(), "corrupt.pdf", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDocumentOpen)
}

func TestDocument_Text(t *testing.T) {
	doc := &Document{Pages: []Page{
		{Number: 1, Text: "first"},
		{Number: 2, Text: ""},
		{Number: 3, Text: "third"},
	}}
	assert.Equal(t, "first\nthird", doc.Text())
}
