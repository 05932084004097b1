package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/config"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/cv"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/dimensions"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/extract"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/llm"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/logging"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/pipeline"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/review"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/specs"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/trades"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/vectorstore"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/verification"
)

var (
	projectID     string
	tradeNames    []string
	uploadName    string
	skipReasoning bool
)

// processCmd runs the full take-off pipeline on one document
var processCmd = &cobra.Command{
	Use:   "process [document.pdf]",
	Short: "Run a quantity take-off on a construction document",
	Long: `Process runs the full take-off pipeline on one PDF: text extraction
with OCR fallback, dimension recovery, per-trade quantity extraction,
specification reasoning, verification and review gating. The combined
result and review are printed as JSON on stdout; progress goes to stderr.

Examples:
  # Take off flooring and doors from a plan set
  takeoffd process --trades flooring,doors_windows plans/house.pdf

  # Keep the original upload name for the filename dimension fallback
  takeoffd process --filename plan_30x40_final.pdf /tmp/upload-8f2.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&projectID, "project", "", "project id (generated when empty)")
	processCmd.Flags().StringSliceVar(&tradeNames, "trades",
		[]string{"flooring", "painting", "drywall", "doors_windows", "concrete"},
		"trades to extract quantities for")
	processCmd.Flags().StringVar(&uploadName, "filename", "", "original upload filename (defaults to the document path's base name)")
	processCmd.Flags().BoolVar(&skipReasoning, "skip-spec-reasoning", false, "skip specification reasoning even when a corpus is configured")
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFile(configPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var completer llm.Completer
	if cfg.LLM.APIKey != "" {
		completer, err = llm.New(llm.Config{
			Provider:   cfg.LLM.Provider,
			Model:      cfg.LLM.Model,
			APIKey:     cfg.LLM.APIKey,
			BaseURL:    cfg.LLM.BaseURL,
			Timeout:    cfg.LLM.Timeout,
			MaxRetries: cfg.LLM.MaxRetries,
		})
		if err != nil {
			return fmt.Errorf("llm client: %w", err)
		}
	} else {
		logger.Warn("no llm api key configured, model-backed stages degrade to heuristics")
	}

	var vision llm.VisionClient
	if cfg.Vision.APIKey != "" {
		vision, err = llm.NewVisionClient(llm.VisionConfig{
			APIKey:  cfg.Vision.APIKey,
			BaseURL: cfg.Vision.BaseURL,
			Timeout: cfg.Vision.Timeout,
		})
		if err != nil {
			return fmt.Errorf("vision client: %w", err)
		}
	}

	var detector cv.Detector
	if cfg.CV.Enabled {
		detector, err = cv.NewDetector(cv.Config{Endpoint: cfg.CV.Endpoint, Timeout: cfg.CV.Timeout})
		if errors.Is(err, cv.ErrNotConfigured) {
			logger.Info("cv detector not configured, detection fallback disabled")
			detector = nil
		} else if err != nil {
			return fmt.Errorf("cv detector: %w", err)
		}
	}

	var reasoner *specs.Reasoner
	if completer != nil && cfg.VectorStore.EmbeddingAPIKey != "" && !skipReasoning {
		store, err := newSpecStore(cfg, logger)
		if err != nil {
			return err
		}
		retriever := specs.NewRetriever(store, cfg.Heuristics.RetrievalTopK, logger)
		reasoner = specs.NewReasoner(completer, retriever, logger)
	}

	chain := dimensions.NewChain(vision, detector, dimensions.Config{
		InteriorFraction:  cfg.Heuristics.InteriorFraction,
		HardwoodShare:     cfg.Heuristics.HardwoodShare,
		TileShare:         cfg.Heuristics.TileShare,
		UnderlaymentShare: cfg.Heuristics.UnderlaymentShare,
		PerimeterFactor:   cfg.Heuristics.PerimeterFactor,
		RoomAreaCeiling:   cfg.Heuristics.RoomAreaCeiling,
		MissingRoomRatio:  cfg.Heuristics.MissingRoomRatio,
	}, logger)

	verifier := verification.NewEngine(completer, logger)
	verifier.SetConsistencyTolerance(cfg.Heuristics.ConsistencyTolerance)

	parser := extract.NewTabulaParser(logger)
	var ocr extract.OCR
	if engine, err := extract.NewOCR(); err != nil {
		logger.Info("ocr engine unavailable, scanned pages degrade to native text", zap.Error(err))
	} else {
		ocr = engine
	}
	coordinator := extract.NewCoordinator(parser, ocr, extract.Config{
		MinPageTextForOCR: cfg.Extraction.MinPageTextForOCR,
		ParseWorkers:      cfg.Extraction.ParseWorkers,
	}, logger)

	orchestrator := pipeline.NewOrchestrator(
		coordinator,
		parser,
		chain,
		trades.NewExtractor(completer, logger),
		reasoner,
		verifier,
		detector,
		pipeline.NewRegistry(logger),
		pipeline.Config{
			MinDocumentText: cfg.Extraction.MinDocumentText,
			ImageDir:        cfg.Extraction.ImageDir,
		},
		logger,
	)

	if projectID == "" {
		projectID = uuid.New().String()
	}

	result, err := orchestrator.Process(ctx, pipeline.Request{
		DocumentPath: args[0],
		ProjectID:    projectID,
		Trades:       tradeNames,
		Filename:     uploadName,
		Progress: func(stage pipeline.Stage, percent int, message string) {
			fmt.Fprintf(os.Stderr, "[%3d%%] %s: %s\n", percent, stage, message)
		},
	})
	if errors.Is(err, pipeline.ErrCancelled) {
		fmt.Fprintln(os.Stderr, "run cancelled")
		return err
	}
	if err != nil {
		return fmt.Errorf("processing %s: %w", args[0], err)
	}

	gate := review.NewGate(review.Config{
		AutoApproveThreshold: cfg.Review.AutoApproveThreshold,
		FlagThreshold:        cfg.Review.FlagThreshold,
	}, logger)

	quantities := make(map[string]map[string]float64, len(result.TradeQuantities))
	confidences := make(map[string]float64, len(result.TradeQuantities))
	for trade, tr := range result.TradeQuantities {
		quantities[trade] = tr.Quantities
		confidences[trade] = tr.Confidence
	}
	rev := gate.CreateReview(result.ProjectID, result.OverallConfidence, quantities, confidences)

	out, err := json.MarshalIndent(struct {
		Result *pipeline.Result `json:"result"`
		Review *review.Review   `json:"review"`
	}{result, rev}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// newSpecStore opens the persistent specification corpus.
func newSpecStore(cfg *config.Config, logger *zap.Logger) (vectorstore.Store, error) {
	embedding := chromem.NewEmbeddingFuncOpenAI(cfg.VectorStore.EmbeddingAPIKey, chromem.EmbeddingModelOpenAI3Small)
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       cfg.VectorStore.Path,
		Compress:   cfg.VectorStore.Compress,
		Collection: cfg.VectorStore.Collection,
	}, embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("opening vector store: %w", err)
	}
	return store, nil
}
