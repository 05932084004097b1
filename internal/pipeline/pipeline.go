// Package pipeline orchestrates a take-off run end to end: extraction, image
// extraction, dimension recovery, the per-trade quantity loop, spec
// reasoning, verification, and finalization. Stages fail independently;
// only an unreadable document or cancellation stops a run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/cv"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/dimensions"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/extract"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/specs"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/trades"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/verification"
)

// ErrCancelled is returned when a run observes its cancellation flag.
// Distinct from failure: a cancelled run produced no faulty output.
var ErrCancelled = errors.New("run cancelled")

// Stage names one pipeline stage, in execution order.
type Stage string

const (
	StageExtract           Stage = "extract"
	StageImageExtract      Stage = "image_extract"
	StageDimensionRecovery Stage = "dimension_recovery"
	StageTradeLoop         Stage = "trade_extraction"
	StageSpecReasoning     Stage = "spec_reasoning"
	StageVerify            Stage = "verification"
	StageFinalize          Stage = "finalize"
)

// stageProgress maps each stage to the percent reported when it starts.
var stageProgress = map[Stage]int{
	StageExtract:           5,
	StageImageExtract:      20,
	StageDimensionRecovery: 35,
	StageTradeLoop:         50,
	StageSpecReasoning:     70,
	StageVerify:            85,
	StageFinalize:          100,
}

// ProgressFunc receives stage progress events. May be nil.
type ProgressFunc func(stage Stage, percent int, message string)

// Config tunes orchestrator behavior.
type Config struct {
	// MinDocumentText triggers a forced-OCR re-extraction when the whole
	// document yields less text than this.
	MinDocumentText int
	// ImageDir is the base directory for extracted page images.
	ImageDir string
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.MinDocumentText == 0 {
		c.MinDocumentText = 500
	}
	if c.ImageDir == "" {
		c.ImageDir = "temp_images"
	}
}

// Request is one take-off run.
type Request struct {
	DocumentPath string
	ProjectID    string
	Trades       []string
	// Filename is the original upload name, used by the filename
	// dimension fallback. Defaults to the document path's base name.
	Filename string
	Progress ProgressFunc
}

// ExtractionSummary condenses the document extraction for the result.
type ExtractionSummary struct {
	PageCount  int      `json:"page_count"`
	TextLength int      `json:"text_length"`
	OCRPages   int      `json:"ocr_pages"`
	Warnings   []string `json:"warnings,omitempty"`
}

// Result is the complete output of one run. Partial data survives stage
// failures; Errors lists everything that went wrong along the way.
type Result struct {
	RunID             string                    `json:"run_id"`
	ProjectID         string                    `json:"project_id"`
	Status            RunStatus                 `json:"status"`
	Extraction        *ExtractionSummary        `json:"extraction,omitempty"`
	Dimensions        *dimensions.Result        `json:"dimensions,omitempty"`
	TradeQuantities   map[string]*trades.Result `json:"trade_quantities"`
	SpecReasoning     *specs.ReasoningResult    `json:"spec_reasoning,omitempty"`
	Compliance        *specs.ComplianceResult   `json:"compliance,omitempty"`
	Verification      *verification.Report      `json:"verification,omitempty"`
	Errors            []string                  `json:"errors"`
	StartedAt         time.Time                 `json:"started_at"`
	FinishedAt        time.Time                 `json:"finished_at"`
	ProcessingSeconds float64                   `json:"processing_seconds"`
	OverallConfidence float64                   `json:"overall_confidence"`
	Success           bool                      `json:"success"`
}

// Orchestrator wires the stage collaborators together. Optional
// collaborators (chain, reasoner, detector) may be nil; their stages are
// skipped or degraded.
type Orchestrator struct {
	coordinator *extract.Coordinator
	images      extract.ImageExtractor
	chain       *dimensions.Chain
	extractor   *trades.Extractor
	reasoner    *specs.Reasoner
	verifier    *verification.Engine
	detector    cv.Detector
	registry    *Registry
	cfg         Config
	logger      *zap.Logger
}

// NewOrchestrator creates a pipeline orchestrator.
func NewOrchestrator(
	coordinator *extract.Coordinator,
	images extract.ImageExtractor,
	chain *dimensions.Chain,
	extractor *trades.Extractor,
	reasoner *specs.Reasoner,
	verifier *verification.Engine,
	detector cv.Detector,
	registry *Registry,
	cfg Config,
	logger *zap.Logger,
) *Orchestrator {
	cfg.ApplyDefaults()
	if registry == nil {
		registry = NewRegistry(logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		coordinator: coordinator,
		images:      images,
		chain:       chain,
		extractor:   extractor,
		reasoner:    reasoner,
		verifier:    verifier,
		detector:    detector,
		registry:    registry,
		cfg:         cfg,
		logger:      logger,
	}
}

// Registry exposes the run registry for external cancel requests and status
// queries.
func (o *Orchestrator) Registry() *Registry {
	return o.registry
}

// Process runs the full pipeline for one document. It returns ErrCancelled
// when the run's cancellation flag was observed, an error only for a
// document that cannot be extracted at all, and otherwise a result carrying
// whatever each stage produced plus the accumulated error list.
func (o *Orchestrator) Process(ctx context.Context, req Request) (*Result, error) {
	if req.Filename == "" {
		req.Filename = filepath.Base(req.DocumentPath)
	}

	result := &Result{
		RunID:           uuid.New().String(),
		ProjectID:       req.ProjectID,
		Status:          StatusProcessing,
		TradeQuantities: make(map[string]*trades.Result),
		StartedAt:       time.Now(),
	}

	o.registry.BeginRun(req.ProjectID)
	o.logger.Info("pipeline run started",
		zap.String("run_id", result.RunID),
		zap.String("project_id", req.ProjectID),
		zap.Strings("trades", req.Trades),
	)

	// Stage 1: extraction. The only hard failure in the pipeline.
	if o.cancelled(ctx, req, result) {
		return result, ErrCancelled
	}
	o.publish(req, StageExtract, "extracting document text")

	doc, err := o.coordinator.Extract(ctx, req.DocumentPath, false)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("extraction: %s", err))
		o.finish(req, result, StatusFailed)
		return result, err
	}

	docText := doc.Text()
	if len(strings.TrimSpace(docText)) < o.cfg.MinDocumentText {
		o.logger.Info("document text is minimal, re-extracting with OCR",
			zap.Int("text_length", len(docText)))
		if ocrDoc, ocrErr := o.coordinator.Extract(ctx, req.DocumentPath, true); ocrErr == nil {
			doc = ocrDoc
			docText = doc.Text()
		} else {
			result.Errors = append(result.Errors, fmt.Sprintf("ocr re-extraction: %s", ocrErr))
		}
	}
	result.Extraction = &ExtractionSummary{
		PageCount:  len(doc.Pages),
		TextLength: len(docText),
		OCRPages:   doc.OCRPageCount(),
		Warnings:   doc.Warnings,
	}

	// Stage 2: image extraction. Failure degrades to a text-only run.
	if o.cancelled(ctx, req, result) {
		return result, ErrCancelled
	}
	o.publish(req, StageImageExtract, "extracting page images")

	var imagePaths []string
	if o.images != nil {
		outDir := filepath.Join(o.cfg.ImageDir, req.ProjectID)
		imagePaths, err = o.images.ExtractImages(ctx, req.DocumentPath, outDir)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("image extraction: %s", err))
			imagePaths = nil
		}
	}

	// Stage 3: dimension recovery. The chain never fails outright.
	if o.cancelled(ctx, req, result) {
		return result, ErrCancelled
	}
	o.publish(req, StageDimensionRecovery, "recovering room dimensions")

	if o.chain != nil {
		result.Dimensions = o.chain.Recover(ctx, imagePaths, docText, req.Filename)
		result.Errors = append(result.Errors, result.Dimensions.Errors...)
	}

	// Stage 4: per-trade extraction, fanned out. Each trade's failure is
	// recorded and substituted with a default result.
	if o.cancelled(ctx, req, result) {
		return result, ErrCancelled
	}
	o.publish(req, StageTradeLoop, "extracting trade quantities")

	o.runTradeLoop(ctx, req, result, docText)

	// Stage 5: spec reasoning, only when something was extracted.
	if anyQuantities(result.TradeQuantities) {
		if o.cancelled(ctx, req, result) {
			return result, ErrCancelled
		}
		o.publish(req, StageSpecReasoning, "reasoning over specifications")

		if o.reasoner != nil {
			query := "Analyze these construction quantities for compliance: " +
				summarizeQuantities(result.TradeQuantities)
			result.SpecReasoning = o.reasoner.Reason(ctx, query)
			result.Errors = append(result.Errors, result.SpecReasoning.Errors...)
			result.Compliance = o.reasoner.CheckCompliance(ctx, quantitiesByTrade(result.TradeQuantities))
		}
	}

	// Stage 6: verification.
	if o.cancelled(ctx, req, result) {
		return result, ErrCancelled
	}
	o.publish(req, StageVerify, "verifying quantities")

	if o.verifier != nil {
		roomCount := 0
		if result.Dimensions != nil {
			roomCount = len(result.Dimensions.Rooms)
		}
		result.Verification = o.verifier.Verify(ctx, verification.Input{
			Categories:      categoryTotals(result.TradeQuantities, roomCount),
			CVCounts:        o.cvCounts(ctx, result, imagePaths),
			RequestedTrades: req.Trades,
		})
	}

	// Stage 7: finalize.
	if o.cancelled(ctx, req, result) {
		return result, ErrCancelled
	}
	o.publish(req, StageFinalize, "finalizing results")

	result.OverallConfidence = meanConfidence(result.TradeQuantities)
	o.finish(req, result, StatusCompleted)
	return result, nil
}

// runTradeLoop extracts every requested trade concurrently, checking the
// cancellation flag before dispatching each one.
func (o *Orchestrator) runTradeLoop(ctx context.Context, req Request, result *Result, docText string) {
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)

	for _, name := range req.Trades {
		if o.registry.IsCancelled(req.ProjectID) {
			break
		}

		trade, err := trades.ParseTrade(name)
		if err != nil {
			mu.Lock()
			result.Errors = append(result.Errors, fmt.Sprintf("trade extraction (%s): %s", name, err))
			result.TradeQuantities[name] = trades.DefaultResult(trades.Trade(name), err)
			mu.Unlock()
			continue
		}

		g.Go(func() error {
			res, err := o.extractor.Extract(gctx, trade, docText, result.Dimensions)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("trade extraction (%s): %s", trade, err))
				result.TradeQuantities[string(trade)] = trades.DefaultResult(trade, err)
				return nil
			}
			result.TradeQuantities[string(trade)] = res
			return nil
		})
	}

	_ = g.Wait()
}

// cvCounts runs object detection for the consistency check. Returns nil,
// skipping the check, when no detector or images are available.
func (o *Orchestrator) cvCounts(ctx context.Context, result *Result, imagePaths []string) map[string]float64 {
	if o.detector == nil || len(imagePaths) == 0 {
		return nil
	}
	detections, err := o.detector.Detect(ctx, imagePaths[0])
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("cv detection: %s", err))
		return nil
	}
	return map[string]float64{
		"doors":   float64(cv.CountClass(detections, "door")),
		"windows": float64(cv.CountClass(detections, "window")),
	}
}

func (o *Orchestrator) cancelled(ctx context.Context, req Request, result *Result) bool {
	if ctx.Err() == nil && !o.registry.IsCancelled(req.ProjectID) {
		return false
	}
	o.logger.Info("run cancelled",
		zap.String("run_id", result.RunID),
		zap.String("project_id", req.ProjectID),
	)
	o.finish(req, result, StatusCancelled)
	return true
}

func (o *Orchestrator) finish(req Request, result *Result, status RunStatus) {
	result.Status = status
	result.FinishedAt = time.Now()
	result.ProcessingSeconds = result.FinishedAt.Sub(result.StartedAt).Seconds()
	result.Success = status == StatusCompleted && len(result.Errors) == 0
	o.registry.EndRun(req.ProjectID, status)

	o.logger.Info("pipeline run finished",
		zap.String("run_id", result.RunID),
		zap.String("status", string(status)),
		zap.Float64("overall_confidence", result.OverallConfidence),
		zap.Int("errors", len(result.Errors)),
		zap.Float64("seconds", result.ProcessingSeconds),
	)
}

func (o *Orchestrator) publish(req Request, stage Stage, message string) {
	if req.Progress == nil {
		return
	}
	req.Progress(stage, stageProgress[stage], message)
}

func anyQuantities(results map[string]*trades.Result) bool {
	for _, res := range results {
		if len(res.Quantities) > 0 {
			return true
		}
	}
	return false
}

// summarizeQuantities renders per-trade headline totals for the reasoning
// query, in stable trade order.
func summarizeQuantities(results map[string]*trades.Result) string {
	names := make([]string, 0, len(results))
	for name := range results {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %.2f", name, headlineTotal(results[name])))
	}
	return strings.Join(parts, ", ")
}

// headlineTotal is a trade's single representative quantity: its total
// square footage when present, otherwise the sum of its counts.
func headlineTotal(res *trades.Result) float64 {
	if total, ok := res.Quantities["total_sqft"]; ok {
		return total
	}
	sum := 0.0
	for _, v := range res.Quantities {
		sum += v
	}
	return sum
}

func quantitiesByTrade(results map[string]*trades.Result) map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(results))
	for name, res := range results {
		if len(res.Quantities) > 0 {
			out[name] = res.Quantities
		}
	}
	return out
}

// categoryTotals flattens trade results into the category totals the
// verification engine checks. The doors_windows trade contributes both its
// granular counts and a combined total.
func categoryTotals(results map[string]*trades.Result, roomCount int) map[string]float64 {
	totals := make(map[string]float64)

	for name, res := range results {
		q := res.Quantities
		switch trades.Trade(name) {
		case trades.TradeDoorsWindows:
			totals["doors"] = q["doors"]
			totals["windows"] = q["windows"]
			totals["hardware"] = q["hardware"]
			totals["doors_windows"] = q["doors"] + q["windows"]
		case trades.TradeFlooring:
			totals["flooring"] = q["total_sqft"]
		case trades.TradePainting:
			totals["painting"] = q["interior_walls_sqft"] + q["exterior_walls_sqft"] + q["ceiling_sqft"]
		case trades.TradeDrywall:
			totals["drywall"] = q["sheets_4x8"] + q["sheets_4x12"]
		case trades.TradeConcrete:
			totals["concrete"] = q["slabs_cubic_yards"] + q["foundations_cubic_yards"] + q["walls_cubic_yards"]
		default:
			sum := 0.0
			for _, v := range q {
				sum += v
			}
			totals[name] = sum
		}
	}

	if roomCount > 0 {
		totals["rooms"] = float64(roomCount)
	}
	return totals
}

func meanConfidence(results map[string]*trades.Result) float64 {
	if len(results) == 0 {
		return 0
	}
	sum := 0.0
	for _, res := range results {
		sum += res.Confidence
	}
	return sum / float64(len(results))
}
