package specs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/vectorstore"
)

// fakeStore serves canned search results.
type fakeStore struct {
	results []vectorstore.SearchResult
	err     error
	queries []string
}

func (f *fakeStore) AddDocuments(_ context.Context, docs []vectorstore.Document) ([]string, error) {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func (f *fakeStore) Search(_ context.Context, query string, k int) ([]vectorstore.SearchResult, error) {
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	if k < len(f.results) {
		return f.results[:k], nil
	}
	return f.results, nil
}

func (f *fakeStore) Count(_ context.Context) (int, error) {
	return len(f.results), nil
}

// scriptedCompleter replies in order, one answer per call.
type scriptedCompleter struct {
	answers []string
	errs    []error
	calls   int
	prompts []string
}

func (s *scriptedCompleter) Complete(_ context.Context, _, user string, _ float64) (string, error) {
	idx := s.calls
	s.calls++
	s.prompts = append(s.prompts, user)
	if idx < len(s.errs) && s.errs[idx] != nil {
		return "", s.errs[idx]
	}
	if idx < len(s.answers) {
		return s.answers[idx], nil
	}
	return "", errors.New("no scripted answer")
}

func specResults() []vectorstore.SearchResult {
	return []vectorstore.SearchResult{
		{ID: "chunk-1", Content: "Doors shall be solid core.", Score: 0.91,
			Metadata: map[string]string{"source": "div8.pdf", "section": "SECTION 08 11 00"}},
		{ID: "chunk-2", Content: "Windows shall be double glazed.", Score: 0.74,
			Metadata: map[string]string{"section": "SECTION 08 50 00"}},
	}
}

func TestRetriever_Retrieve(t *testing.T) {
	store := &fakeStore{results: specResults()}
	r := NewRetriever(store, 0, nil)

	passages, err := r.Retrieve(context.Background(), "door requirements", 0)
	require.NoError(t, err)
	require.Len(t, passages, 2)

	assert.Equal(t, "div8.pdf", passages[0].Source)
	assert.Equal(t, "SECTION 08 11 00", passages[0].Section)
	// Falls back to the chunk id when no source metadata exists.
	assert.Equal(t, "chunk-2", passages[1].Source)
	assert.InDelta(t, 0.91, passages[0].Score, 0.001)
}

func TestBuildContext(t *testing.T) {
	passages := []Passage{
		{Content: "Doors shall be solid core.", Score: 0.91, Source: "div8.pdf"},
		{Content: "Windows shall be double glazed.", Score: 0.74},
	}

	ctx := BuildContext(passages)
	assert.Contains(t, ctx, "Spec Section 1 (Relevance: 0.91):")
	assert.Contains(t, ctx, "Source: div8.pdf")
	assert.Contains(t, ctx, "Spec Section 2 (Relevance: 0.74):")
	assert.Contains(t, ctx, "Source: unknown")
}

func TestChunker_SmallDocumentSingleChunk(t *testing.T) {
	c := NewChunker(0, 0, nil)

	docs := c.ChunkDocument("Doors shall be solid core.", map[string]string{"doc_id": "d1"})
	require.Len(t, docs, 1)
	assert.Equal(t, "d1", docs[0].Metadata["doc_id"])
	assert.Equal(t, "0", docs[0].Metadata["chunk_index"])
	assert.Equal(t, "1", docs[0].Metadata["total_chunks"])
	assert.NotEmpty(t, docs[0].ID)
}

func TestChunker_LargeDocumentSplits(t *testing.T) {
	c := NewChunker(200, 40, nil)
	content := strings.Repeat("All interior doors shall receive three hinges each. ", 30)

	docs := c.ChunkDocument(content, nil)
	require.Greater(t, len(docs), 1)
	for _, d := range docs {
		assert.LessOrEqual(t, len(d.Content), 200+40+1)
	}
	// Distinct IDs per chunk.
	assert.NotEqual(t, docs[0].ID, docs[1].ID)
}

func TestChunker_SpecificationSections(t *testing.T) {
	c := NewChunker(0, 0, nil)
	content := "General notes apply to all work.\n" +
		"SECTION 08 11 00 - METAL DOORS\n" +
		"Doors shall be solid core.\n" +
		"SECTION 09 91 00 - PAINTING\n" +
		"Two coats minimum on all surfaces."

	docs := c.ChunkSpecification(content, "spec-1", "8")
	require.Len(t, docs, 3)

	assert.Equal(t, "Introduction", docs[0].Metadata["section"])
	assert.Equal(t, "SECTION 08 11 00 - METAL DOORS", docs[1].Metadata["section"])
	assert.Equal(t, "SECTION 09 91 00 - PAINTING", docs[2].Metadata["section"])
	for _, d := range docs {
		assert.Equal(t, "spec-1", d.Metadata["doc_id"])
		assert.Equal(t, "specification", d.Metadata["document_type"])
		assert.Equal(t, "8", d.Metadata["division"])
	}
}

func TestReasoner_Reason(t *testing.T) {
	store := &fakeStore{results: specResults()}
	completer := &scriptedCompleter{answers: []string{
		"1. The query asks about doors.\n2. Section 08 11 00 applies.\n5. Solid core doors are required.",
		"The reasoning is consistent with the specifications.",
	}}
	r := NewReasoner(completer, NewRetriever(store, 5, nil), nil)

	res := r.Reason(context.Background(), "what door cores are required?")

	assert.Equal(t, reasoningConfidence, res.Confidence)
	assert.True(t, res.Valid)
	assert.Len(t, res.Citations, 2)
	assert.Len(t, res.Steps, 3)
	assert.Contains(t, res.SectionsUsed, "SECTION 08 11 00")
	assert.Empty(t, res.Errors)
	// Retrieved context flows into the reasoning prompt.
	assert.Contains(t, completer.prompts[0], "Doors shall be solid core.")
}

func TestReasoner_RetrievalFailureDegrades(t *testing.T) {
	store := &fakeStore{err: errors.New("store down")}
	completer := &scriptedCompleter{answers: []string{
		"No specification context was available; answering from general practice.",
		"consistent",
	}}
	r := NewReasoner(completer, NewRetriever(store, 5, nil), nil)

	res := r.Reason(context.Background(), "query")

	assert.Empty(t, res.Citations)
	assert.NotEmpty(t, res.Answer)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "retrieval failed")
}

func TestReasoner_ModelFailureDegrades(t *testing.T) {
	store := &fakeStore{results: specResults()}
	completer := &scriptedCompleter{errs: []error{errors.New("api down")}}
	r := NewReasoner(completer, NewRetriever(store, 5, nil), nil)

	res := r.Reason(context.Background(), "query")

	assert.Empty(t, res.Answer)
	assert.Zero(t, res.Confidence)
	assert.False(t, res.Valid)
	// Citations from the successful retrieval survive.
	assert.Len(t, res.Citations, 2)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "reasoning failed")
}

func TestReasoner_CheckCompliance(t *testing.T) {
	store := &fakeStore{results: specResults()}
	completer := &scriptedCompleter{answers: []string{
		"The door quantities are compliant with the specifications.",
		"non-compliant: window count exceeds the scheduled maximum.",
	}}
	r := NewReasoner(completer, NewRetriever(store, 5, nil), nil)

	res := r.CheckCompliance(context.Background(), map[string]map[string]float64{
		"doors":   {"doors": 8},
		"windows": {"windows": 900},
	})

	assert.False(t, res.Overall)
	assert.True(t, res.PerCategory["doors"].Compliant)
	assert.False(t, res.PerCategory["windows"].Compliant)
}

func TestReasoner_CheckComplianceAllPass(t *testing.T) {
	store := &fakeStore{results: specResults()}
	completer := &scriptedCompleter{answers: []string{"compliant"}}
	r := NewReasoner(completer, NewRetriever(store, 5, nil), nil)

	res := r.CheckCompliance(context.Background(), map[string]map[string]float64{
		"doors": {"doors": 8},
	})

	assert.True(t, res.Overall)
}

func TestExtractSteps_NoNumberedLines(t *testing.T) {
	steps := extractSteps("Solid core doors are required throughout.")
	require.Len(t, steps, 1)
	assert.Equal(t, "Solid core doors are required throughout.", steps[0])
}
