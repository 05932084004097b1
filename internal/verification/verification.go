// Package verification cross-checks extracted quantities: static bounds,
// text-vs-vision consistency, completeness against the requested trades, and
// logical ratio checks, fused into one overall confidence.
package verification

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/llm"
)

const (
	boundsValidConfidence     = 0.9
	boundsViolationConfidence = 0.3
	boundsCheckPassConfidence = 0.9
	boundsCheckFailConfidence = 0.5

	categoryConsistentConfidence   = 0.9
	categoryInconsistentConfidence = 0.6
	checkConsistentConfidence      = 0.85
	checkInconsistentConfidence    = 0.6

	completenessFloor = 0.25

	logicalBaseline     = 0.9
	logicalIssuePenalty = 0.1

	hardwarePerDoorMax = 10.0
	hardwarePerDoorMin = 1.0
	windowsPerRoomMax  = 10.0

	// consistencyToleranceFloor is the absolute floor of the count
	// tolerance; the relative part is 10% of the text count.
	consistencyToleranceFloor = 2.0
	consistencyToleranceRatio = 0.1
)

// Bounds is the allowed range for a category total.
type Bounds struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

var categoryBounds = map[string]Bounds{
	"doors":         {Min: 0, Max: 500},
	"windows":       {Min: 0, Max: 1000},
	"rooms":         {Min: 1, Max: 100},
	"hardware":      {Min: 0, Max: 2000},
	"flooring":      {Min: 0, Max: 50000}, // sqft
	"painting":      {Min: 0, Max: 50000}, // sqft
	"drywall":       {Min: 0, Max: 10000}, // sheets
	"concrete":      {Min: 0, Max: 10000}, // cubic yards
	"doors_windows": {Min: 0, Max: 1000},
}

var defaultBounds = Bounds{Min: 0, Max: 10000}

// CategoryBoundsResult is the bounds verdict for one category.
type CategoryBoundsResult struct {
	Total      float64 `json:"total"`
	Bounds     Bounds  `json:"bounds"`
	Valid      bool    `json:"is_valid"`
	Confidence float64 `json:"confidence"`
}

// BoundsCheck is the quantity-bounds check result.
type BoundsCheck struct {
	AllWithinBounds bool                            `json:"all_within_bounds"`
	Categories      map[string]CategoryBoundsResult `json:"category_results"`
	Confidence      float64                         `json:"confidence"`
}

// CountComparison compares a text-derived count against a vision-derived
// count for one category.
type CountComparison struct {
	TextCount  float64 `json:"text_count"`
	CVCount    float64 `json:"cv_count"`
	Difference float64 `json:"difference"`
	Consistent bool    `json:"is_consistent"`
	Confidence float64 `json:"confidence"`
}

// ConsistencyCheck is the cross-signal consistency check result.
type ConsistencyCheck struct {
	Consistent bool                       `json:"is_consistent"`
	Categories map[string]CountComparison `json:"category_results"`
	Confidence float64                    `json:"confidence"`
}

// CompletenessCheck reports found vs expected categories.
type CompletenessCheck struct {
	Expected   []string `json:"expected_categories"`
	Found      []string `json:"found_categories"`
	Missing    []string `json:"missing_categories"`
	Score      float64  `json:"completeness_score"`
	Complete   bool     `json:"is_complete"`
	Confidence float64  `json:"confidence"`
}

// LogicalIssue is one ratio anomaly found by the logical check.
type LogicalIssue struct {
	Type     string `json:"type"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// LogicalCheck is the logical-consistency check result.
type LogicalCheck struct {
	Issues     []LogicalIssue `json:"issues"`
	Consistent bool           `json:"is_consistent"`
	Confidence float64        `json:"confidence"`
}

// Flag marks a failed check for downstream review routing.
type Flag struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Report is the full verification outcome. Consistency is nil when no
// vision counts were available to compare against.
type Report struct {
	OverallConfidence float64            `json:"overall_confidence"`
	Bounds            *BoundsCheck       `json:"quantity_bounds"`
	Consistency       *ConsistencyCheck  `json:"cv_text_consistency,omitempty"`
	Completeness      *CompletenessCheck `json:"completeness"`
	Logical           *LogicalCheck      `json:"logical_consistency"`
	Flags             []Flag             `json:"flags"`
	Recommendations   []string           `json:"recommendations"`
}

// Input carries the signals to verify. Categories maps a category name to
// its extracted total (count or sqft). CVCounts is nil when no vision signal
// exists; the consistency check is then skipped entirely.
type Input struct {
	Categories      map[string]float64
	CVCounts        map[string]float64
	RequestedTrades []string
}

// Engine runs the verification checks. The completer is optional and only
// used for advisory recommendation text when checks fail.
type Engine struct {
	completer      llm.Completer
	toleranceRatio float64
	logger         *zap.Logger
}

// NewEngine creates a verification engine.
func NewEngine(completer llm.Completer, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		completer:      completer,
		toleranceRatio: consistencyToleranceRatio,
		logger:         logger,
	}
}

// SetConsistencyTolerance overrides the relative tolerance used by the
// CV/text count comparison. Non-positive values keep the default.
func (e *Engine) SetConsistencyTolerance(ratio float64) {
	if ratio > 0 {
		e.toleranceRatio = ratio
	}
}

// Verify runs all applicable checks and fuses their confidences into the
// unweighted mean.
func (e *Engine) Verify(ctx context.Context, input Input) *Report {
	report := &Report{
		Bounds:       checkBounds(input.Categories),
		Completeness: checkCompleteness(input.Categories, input.RequestedTrades),
		Logical:      checkLogical(input.Categories),
	}
	if input.CVCounts != nil {
		report.Consistency = checkConsistency(input.Categories, input.CVCounts, e.toleranceRatio)
	}

	confidences := []float64{report.Bounds.Confidence, report.Completeness.Confidence, report.Logical.Confidence}
	if report.Consistency != nil {
		confidences = append(confidences, report.Consistency.Confidence)
	}
	sum := 0.0
	for _, c := range confidences {
		sum += c
	}
	report.OverallConfidence = sum / float64(len(confidences))

	report.Flags = generateFlags(report)
	report.Recommendations = e.recommendations(ctx, report)

	e.logger.Info("verification complete",
		zap.Float64("overall_confidence", report.OverallConfidence),
		zap.Int("flags", len(report.Flags)),
	)
	return report
}

func checkBounds(categories map[string]float64) *BoundsCheck {
	check := &BoundsCheck{
		AllWithinBounds: true,
		Categories:      make(map[string]CategoryBoundsResult, len(categories)),
	}

	for category, total := range categories {
		bounds, ok := categoryBounds[category]
		if !ok {
			bounds = defaultBounds
		}
		valid := total >= bounds.Min && total <= bounds.Max
		if !valid {
			check.AllWithinBounds = false
		}
		confidence := boundsValidConfidence
		if !valid {
			confidence = boundsViolationConfidence
		}
		check.Categories[category] = CategoryBoundsResult{
			Total:      total,
			Bounds:     bounds,
			Valid:      valid,
			Confidence: confidence,
		}
	}

	check.Confidence = boundsCheckPassConfidence
	if !check.AllWithinBounds {
		check.Confidence = boundsCheckFailConfidence
	}
	return check
}

func checkConsistency(categories, cvCounts map[string]float64, toleranceRatio float64) *ConsistencyCheck {
	check := &ConsistencyCheck{
		Consistent: true,
		Categories: make(map[string]CountComparison, 2),
	}

	for _, category := range []string{"doors", "windows"} {
		textCount := categories[category]
		cvCount := cvCounts[category]
		diff := math.Abs(textCount - cvCount)
		tolerance := math.Max(consistencyToleranceFloor, textCount*toleranceRatio)
		consistent := diff <= tolerance

		confidence := categoryConsistentConfidence
		if !consistent {
			confidence = categoryInconsistentConfidence
			check.Consistent = false
		}
		check.Categories[category] = CountComparison{
			TextCount:  textCount,
			CVCount:    cvCount,
			Difference: diff,
			Consistent: consistent,
			Confidence: confidence,
		}
	}

	check.Confidence = checkConsistentConfidence
	if !check.Consistent {
		check.Confidence = checkInconsistentConfidence
	}
	return check
}

func checkCompleteness(categories map[string]float64, requested []string) *CompletenessCheck {
	found := make([]string, 0, len(categories))
	for category := range categories {
		found = append(found, category)
	}
	sort.Strings(found)

	var missing []string
	for _, want := range requested {
		if _, ok := categories[want]; !ok {
			missing = append(missing, want)
		}
	}

	var score float64
	switch {
	case len(requested) > 0:
		score = float64(len(found)-len(missingExtras(found, requested))) / float64(len(requested))
	case len(found) > 0:
		score = 1.0
	}

	confidence := score
	if confidence <= 0 {
		confidence = completenessFloor
	}

	return &CompletenessCheck{
		Expected:   requested,
		Found:      found,
		Missing:    missing,
		Score:      score,
		Complete:   len(missing) == 0,
		Confidence: confidence,
	}
}

// missingExtras lists found categories that were not requested, so the
// completeness score counts only requested matches.
func missingExtras(found, requested []string) []string {
	want := make(map[string]bool, len(requested))
	for _, r := range requested {
		want[r] = true
	}
	var extras []string
	for _, f := range found {
		if !want[f] {
			extras = append(extras, f)
		}
	}
	return extras
}

func checkLogical(categories map[string]float64) *LogicalCheck {
	var issues []LogicalIssue

	doors := categories["doors"]
	hardware := categories["hardware"]
	if doors > 0 {
		perDoor := hardware / doors
		if perDoor > hardwarePerDoorMax {
			issues = append(issues, LogicalIssue{
				Type:     "excessive_hardware",
				Message:  fmt.Sprintf("Hardware count (%.0f) seems excessive for %.0f doors", hardware, doors),
				Severity: "medium",
			})
		} else if perDoor < hardwarePerDoorMin {
			issues = append(issues, LogicalIssue{
				Type:     "insufficient_hardware",
				Message:  fmt.Sprintf("Hardware count (%.0f) seems low for %.0f doors", hardware, doors),
				Severity: "low",
			})
		}
	}

	rooms := categories["rooms"]
	windows := categories["windows"]
	if rooms > 0 && windows/rooms > windowsPerRoomMax {
		issues = append(issues, LogicalIssue{
			Type:     "excessive_windows",
			Message:  fmt.Sprintf("Window count (%.0f) seems excessive for %.0f rooms", windows, rooms),
			Severity: "medium",
		})
	}

	return &LogicalCheck{
		Issues:     issues,
		Consistent: len(issues) == 0,
		Confidence: logicalBaseline - float64(len(issues))*logicalIssuePenalty,
	}
}

func generateFlags(report *Report) []Flag {
	var flags []Flag
	if report.Consistency != nil && !report.Consistency.Consistent {
		flags = append(flags, Flag{
			Type:     "cv_text_consistency",
			Severity: "medium",
			Message:  "Issue detected in cv_text_consistency",
		})
	}
	if !report.Logical.Consistent {
		flags = append(flags, Flag{
			Type:     "logical_consistency",
			Severity: "medium",
			Message:  "Issue detected in logical_consistency",
		})
	}
	return flags
}

// recommendations builds deterministic guidance from failed checks, with an
// optional model-written addendum when anything failed.
func (e *Engine) recommendations(ctx context.Context, report *Report) []string {
	var recs []string

	if !report.Bounds.AllWithinBounds {
		recs = append(recs, "Review quantity bounds - some values seem outside expected ranges")
	}
	if report.Consistency != nil && !report.Consistency.Consistent {
		recs = append(recs, "CV and text extraction show discrepancies - manual review recommended")
	}
	if !report.Completeness.Complete {
		recs = append(recs, fmt.Sprintf(
			"Missing categories detected: %s - consider re-extraction",
			strings.Join(report.Completeness.Missing, ", ")))
	}

	if len(recs) == 0 {
		return []string{"All checks passed - results look good!"}
	}

	if e.completer != nil {
		if advisory := e.modelRecommendation(ctx, recs); advisory != "" {
			recs = append(recs, advisory)
		}
	}
	return recs
}

func (e *Engine) modelRecommendation(ctx context.Context, recs []string) string {
	prompt := fmt.Sprintf(
		"These verification issues were found in a construction quantity take-off:\n%s\n\n"+
			"Suggest one concrete next step for the estimator, in a single sentence.",
		strings.Join(recs, "\n"))

	answer, err := e.completer.Complete(ctx,
		"You are a quality reviewer for construction quantity take-offs.", prompt, 0.0)
	if err != nil {
		e.logger.Warn("recommendation text generation failed", zap.Error(err))
		return ""
	}
	return strings.TrimSpace(answer)
}
