package specs

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/vectorstore"
)

const (
	defaultChunkSize    = 1000
	defaultChunkOverlap = 200
)

// sectionMarkers start a new section when found in an uppercased line.
var sectionMarkers = []string{"DIVISION", "SECTION", "PART", "CHAPTER"}

// Chunker splits specification documents into overlapping chunks sized for
// embedding.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
	logger       *zap.Logger
}

// NewChunker creates a chunker. Non-positive size or overlap select the
// defaults (1000 / 200).
func NewChunker(chunkSize, chunkOverlap int, logger *zap.Logger) *Chunker {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
	}
	if chunkOverlap <= 0 || chunkOverlap >= chunkSize {
		chunkOverlap = defaultChunkOverlap
		if chunkOverlap >= chunkSize {
			chunkOverlap = chunkSize / 5
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{chunkSize: chunkSize, chunkOverlap: chunkOverlap, logger: logger}
}

// ChunkDocument splits content into overlapping chunks, each carrying the
// given metadata plus its index and size. IDs are fresh UUIDs.
func (c *Chunker) ChunkDocument(content string, metadata map[string]string) []vectorstore.Document {
	chunks := c.splitText(content)

	docs := make([]vectorstore.Document, 0, len(chunks))
	for i, chunk := range chunks {
		md := make(map[string]string, len(metadata)+3)
		for k, v := range metadata {
			md[k] = v
		}
		md["chunk_index"] = strconv.Itoa(i)
		md["total_chunks"] = strconv.Itoa(len(chunks))
		md["chunk_size"] = strconv.Itoa(len(chunk))

		docs = append(docs, vectorstore.Document{
			ID:       uuid.New().String(),
			Content:  chunk,
			Metadata: md,
		})
	}

	c.logger.Info("chunked document", zap.Int("chunks", len(docs)))
	return docs
}

// ChunkSpecification chunks a specification document section by section so
// chunks never straddle a DIVISION/SECTION boundary.
func (c *Chunker) ChunkSpecification(content, docID, division string) []vectorstore.Document {
	base := map[string]string{
		"doc_id":        docID,
		"document_type": "specification",
	}
	if division != "" {
		base["division"] = division
	}

	var docs []vectorstore.Document
	for _, sec := range extractSections(content) {
		md := make(map[string]string, len(base)+1)
		for k, v := range base {
			md[k] = v
		}
		md["section"] = sec.name
		docs = append(docs, c.ChunkDocument(sec.content, md)...)
	}
	return docs
}

type section struct {
	name    string
	content string
}

// extractSections splits on specification section headers, keeping the
// header line as the section name. Content before the first header lands in
// an "Introduction" section.
func extractSections(content string) []section {
	var sections []section
	current := section{name: "Introduction"}
	var lines []string

	flush := func() {
		if len(lines) > 0 {
			current.content = strings.Join(lines, "\n")
			if strings.TrimSpace(current.content) != "" {
				sections = append(sections, current)
			}
			lines = nil
		}
	}

	for _, line := range strings.Split(content, "\n") {
		if isSectionHeader(line) {
			flush()
			current = section{name: strings.TrimSpace(line)}
			continue
		}
		lines = append(lines, line)
	}
	flush()

	if len(sections) == 0 {
		return []section{{name: "Full Document", content: content}}
	}
	return sections
}

func isSectionHeader(line string) bool {
	upper := strings.ToUpper(line)
	for _, marker := range sectionMarkers {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// splitText greedily packs paragraphs into chunks up to chunkSize, carrying
// chunkOverlap trailing characters into the next chunk for continuity.
// Oversized paragraphs are split on sentence and then word boundaries.
func (c *Chunker) splitText(content string) []string {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	if len(content) <= c.chunkSize {
		return []string{content}
	}

	var pieces []string
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) <= c.chunkSize {
			pieces = append(pieces, para)
			continue
		}
		pieces = append(pieces, splitOversized(para, c.chunkSize)...)
	}

	var chunks []string
	var cur strings.Builder
	seeded := false // cur holds only carried-over overlap text
	for _, piece := range pieces {
		if cur.Len() > 0 && !seeded && cur.Len()+len(piece)+1 > c.chunkSize {
			chunk := cur.String()
			chunks = append(chunks, chunk)
			cur.Reset()
			cur.WriteString(overlapTail(chunk, c.chunkOverlap))
			seeded = true
		}
		if cur.Len() > 0 {
			cur.WriteString("\n")
		}
		cur.WriteString(piece)
		seeded = false
	}
	if strings.TrimSpace(cur.String()) != "" {
		chunks = append(chunks, cur.String())
	}
	return chunks
}

// splitOversized breaks a paragraph that alone exceeds the chunk size by
// packing words up to the limit.
func splitOversized(text string, limit int) []string {
	var out []string
	var cur strings.Builder

	for _, word := range strings.Fields(text) {
		if cur.Len() > 0 && cur.Len()+len(word)+1 > limit {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// overlapTail returns the last n characters of chunk, snapped forward to a
// word boundary.
func overlapTail(chunk string, n int) string {
	if n <= 0 || len(chunk) <= n {
		return ""
	}
	tail := chunk[len(chunk)-n:]
	if idx := strings.IndexAny(tail, " \n"); idx >= 0 {
		tail = tail[idx+1:]
	}
	return strings.TrimSpace(tail)
}
