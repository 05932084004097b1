package specs

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/llm"
)

const (
	reasoningConfidence = 0.85
	reasoningTemp       = 0.2
	complianceTopK      = 3
)

const reasoningSystemPrompt = `You are an expert construction specification analyst.
Your task is to reason over construction specifications (Division 8/9) to answer questions.

Process:
1. Understand the query and identify relevant spec sections
2. Extract key requirements and constraints
3. Apply logical reasoning to connect requirements
4. Provide a clear answer with justification

Be precise and cite specific spec sections in your reasoning.`

const validationSystemPrompt = "You are a validation expert for construction specifications."

const complianceSystemPrompt = "You are a compliance checker for construction specifications."

// ReasoningResult is the outcome of reasoning over the spec corpus for one
// query. Degraded passes leave their fields empty rather than failing.
type ReasoningResult struct {
	Query           string    `json:"query"`
	Answer          string    `json:"answer"`
	Steps           []string  `json:"reasoning_steps"`
	Citations       []Passage `json:"citations"`
	Confidence      float64   `json:"confidence"`
	Valid           bool      `json:"is_valid"`
	ValidationNotes string    `json:"validation_notes,omitempty"`
	SectionsUsed    []string  `json:"spec_sections_used,omitempty"`
	Errors          []string  `json:"errors,omitempty"`
}

// CategoryCompliance is the compliance judgment for one quantity category.
type CategoryCompliance struct {
	Compliant bool   `json:"is_compliant"`
	Notes     string `json:"notes,omitempty"`
}

// ComplianceResult aggregates per-category compliance judgments.
type ComplianceResult struct {
	Overall     bool                          `json:"overall_compliance"`
	PerCategory map[string]CategoryCompliance `json:"category_results"`
}

// Reasoner runs model passes over retrieved specification context: one to
// reason, one to validate the reasoning, and one per quantity category to
// judge compliance. Each pass is independent; a failed pass degrades its
// slice of the result and the rest proceed.
type Reasoner struct {
	completer llm.Completer
	retriever *Retriever
	logger    *zap.Logger
}

// NewReasoner creates a reasoner.
func NewReasoner(completer llm.Completer, retriever *Retriever, logger *zap.Logger) *Reasoner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reasoner{completer: completer, retriever: retriever, logger: logger}
}

// Reason answers a query against the spec corpus. It never returns an
// error: retrieval or model failures are recorded on the result and leave
// the affected fields empty.
func (r *Reasoner) Reason(ctx context.Context, query string) *ReasoningResult {
	result := &ReasoningResult{Query: query}

	var passages []Passage
	if r.retriever != nil {
		var err error
		passages, err = r.retriever.Retrieve(ctx, query, 0)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("retrieval failed: %s", err))
			r.logger.Warn("spec retrieval failed", zap.Error(err))
		}
	}
	result.Citations = passages
	for _, p := range passages {
		if p.Section != "" {
			result.SectionsUsed = append(result.SectionsUsed, p.Section)
		}
	}

	specContext := BuildContext(passages)

	answer, err := r.reasonPass(ctx, query, specContext)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("reasoning failed: %s", err))
		r.logger.Warn("reasoning pass failed", zap.Error(err))
		return result
	}
	result.Answer = answer
	result.Steps = extractSteps(answer)
	result.Confidence = reasoningConfidence

	valid, notes, err := r.validatePass(ctx, answer, specContext)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("validation failed: %s", err))
		r.logger.Warn("validation pass failed", zap.Error(err))
		return result
	}
	result.Valid = valid
	result.ValidationNotes = notes

	return result
}

func (r *Reasoner) reasonPass(ctx context.Context, query, specContext string) (string, error) {
	if r.completer == nil {
		return "", fmt.Errorf("no language model configured")
	}

	prompt := fmt.Sprintf(`Query: %s

Relevant Specification Sections:
%s

Reason through this step-by-step:
1. What is the query asking?
2. Which spec sections are most relevant?
3. What are the key requirements?
4. How do they apply to the query?
5. What is the final answer?

Provide your reasoning and answer.`, query, specContext)

	return r.completer.Complete(ctx, reasoningSystemPrompt, prompt, reasoningTemp)
}

func (r *Reasoner) validatePass(ctx context.Context, answer, specContext string) (bool, string, error) {
	prompt := fmt.Sprintf(`Validate this reasoning against the specifications:

Reasoning: %s

Specifications:
%s

Check:
1. Is the reasoning consistent with the specs?
2. Are there any contradictions?
3. Are all requirements addressed?
4. Is the confidence level appropriate?

Return validation result.`, answer, specContext)

	response, err := r.completer.Complete(ctx, validationSystemPrompt, prompt, reasoningTemp)
	if err != nil {
		return false, "", err
	}
	return strings.Contains(strings.ToLower(response), "consistent"), response, nil
}

// CheckCompliance judges each quantity category against the spec corpus.
// Categories whose pass fails default to non-compliant with the error noted.
func (r *Reasoner) CheckCompliance(ctx context.Context, quantities map[string]map[string]float64) *ComplianceResult {
	result := &ComplianceResult{
		Overall:     len(quantities) > 0,
		PerCategory: make(map[string]CategoryCompliance, len(quantities)),
	}

	categories := make([]string, 0, len(quantities))
	for category := range quantities {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	for _, category := range categories {
		check := r.checkCategory(ctx, category, quantities[category])
		result.PerCategory[category] = check
		if !check.Compliant {
			result.Overall = false
		}
	}

	return result
}

func (r *Reasoner) checkCategory(ctx context.Context, category string, quantities map[string]float64) CategoryCompliance {
	var passages []Passage
	if r.retriever != nil {
		var err error
		passages, err = r.retriever.Retrieve(ctx, category+" requirements and specifications", complianceTopK)
		if err != nil {
			r.logger.Warn("compliance retrieval failed",
				zap.String("category", category), zap.Error(err))
		}
	}

	if r.completer == nil {
		return CategoryCompliance{Compliant: false, Notes: "no language model configured"}
	}

	prompt := fmt.Sprintf(`Check if these %s quantities comply with specifications:

Quantities: %s

Specifications:
%s

Determine compliance status. Answer "compliant" or "non-compliant" with justification.`,
		category, formatQuantities(quantities), BuildContext(passages))

	response, err := r.completer.Complete(ctx, complianceSystemPrompt, prompt, reasoningTemp)
	if err != nil {
		r.logger.Warn("compliance pass failed",
			zap.String("category", category), zap.Error(err))
		return CategoryCompliance{Compliant: false, Notes: fmt.Sprintf("check failed: %s", err)}
	}

	lower := strings.ToLower(response)
	compliant := strings.Contains(lower, "compliant") &&
		!strings.Contains(lower, "non-compliant") &&
		!strings.Contains(lower, "not compliant")
	return CategoryCompliance{Compliant: compliant, Notes: response}
}

// extractSteps pulls numbered reasoning steps out of a model answer; when
// the answer has no numbered lines the whole answer stands as one step.
func extractSteps(answer string) []string {
	var steps []string
	for _, line := range strings.Split(answer, "\n") {
		trimmed := strings.TrimSpace(line)
		for _, prefix := range []string{"1.", "2.", "3.", "4.", "5."} {
			if strings.HasPrefix(trimmed, prefix) {
				steps = append(steps, trimmed)
				break
			}
		}
	}
	if len(steps) == 0 {
		return []string{answer}
	}
	return steps
}

func formatQuantities(quantities map[string]float64) string {
	keys := make([]string, 0, len(quantities))
	for k := range quantities {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, quantities[k]))
	}
	return strings.Join(parts, ", ")
}
