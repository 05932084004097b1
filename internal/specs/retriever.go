// Package specs reasons over construction specification corpora. A retriever
// pulls relevant passages from the vector store, a chunker prepares corpus
// documents for indexing, and the reasoner runs model passes over the
// retrieved context. All of it is advisory: failures degrade results instead
// of failing the pipeline.
package specs

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/vectorstore"
)

const defaultTopK = 5

// Passage is one retrieved specification excerpt.
type Passage struct {
	Content string  `json:"content"`
	Score   float64 `json:"score"`
	Source  string  `json:"source"`
	Section string  `json:"section,omitempty"`
}

// Retriever fetches specification passages by semantic similarity.
type Retriever struct {
	store  vectorstore.Store
	topK   int
	logger *zap.Logger
}

// NewRetriever creates a retriever. topK <= 0 selects the default of 5.
func NewRetriever(store vectorstore.Store, topK int, logger *zap.Logger) *Retriever {
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{store: store, topK: topK, logger: logger}
}

// Retrieve returns up to k passages for the query. k <= 0 uses the
// retriever's configured top-k.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = r.topK
	}

	results, err := r.store.Search(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("searching spec corpus: %w", err)
	}

	passages := make([]Passage, 0, len(results))
	for _, res := range results {
		p := Passage{
			Content: res.Content,
			Score:   res.Score,
			Source:  res.ID,
		}
		if src, ok := res.Metadata["source"]; ok && src != "" {
			p.Source = src
		}
		p.Section = res.Metadata["section"]
		passages = append(passages, p)
	}

	r.logger.Debug("retrieved spec passages",
		zap.String("query", query),
		zap.Int("count", len(passages)),
	)
	return passages, nil
}

// BuildContext renders passages into the context block fed to the model,
// one numbered section per passage with its relevance score and source.
func BuildContext(passages []Passage) string {
	parts := make([]string, 0, len(passages))
	for i, p := range passages {
		source := p.Source
		if source == "" {
			source = "unknown"
		}
		parts = append(parts, fmt.Sprintf(
			"Spec Section %d (Relevance: %.2f):\n%s\nSource: %s\n",
			i+1, p.Score, p.Content, source))
	}
	return strings.Join(parts, "\n\n")
}
