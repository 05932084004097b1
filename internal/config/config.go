// Package config provides configuration for the take-off pipeline.
//
// Configuration is loaded from an optional YAML file and overridden by
// environment variables. Every heuristic constant used by the pipeline is a
// named field with a default so test suites can exercise boundary values
// directly.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/logging"
)

// Config holds the complete takeoffd configuration.
type Config struct {
	Logging     logging.Config    `koanf:"logging"`
	LLM         LLMConfig         `koanf:"llm"`
	Vision      VisionConfig      `koanf:"vision"`
	CV          CVConfig          `koanf:"cv"`
	VectorStore VectorStoreConfig `koanf:"vectorstore"`
	Extraction  ExtractionConfig  `koanf:"extraction"`
	Heuristics  HeuristicsConfig  `koanf:"heuristics"`
	Review      ReviewConfig      `koanf:"review"`
}

// LLMConfig holds language-model client configuration.
type LLMConfig struct {
	// Provider selects the backend: "anthropic" or "openai".
	Provider   string        `koanf:"provider"`
	Model      string        `koanf:"model"`
	APIKey     string        `koanf:"api_key"`
	BaseURL    string        `koanf:"base_url"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
}

// VisionConfig holds vision-language (floor plan Q&A) client configuration.
type VisionConfig struct {
	APIKey  string        `koanf:"api_key"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// CVConfig holds classical computer-vision detector configuration.
type CVConfig struct {
	// Enabled gates the CV fallback in the dimension recovery chain.
	Enabled  bool          `koanf:"enabled"`
	Endpoint string        `koanf:"endpoint"`
	Timeout  time.Duration `koanf:"timeout"`
}

// VectorStoreConfig holds the embedded vector database configuration for the
// specification corpus.
type VectorStoreConfig struct {
	// Path is the directory for persistent storage.
	Path string `koanf:"path"`

	// Collection is the specification corpus collection name.
	Collection string `koanf:"collection"`

	// Compress enables gzip compression for stored data.
	Compress bool `koanf:"compress"`

	// EmbeddingAPIKey is the OpenAI key used by the embedding function.
	EmbeddingAPIKey string `koanf:"embedding_api_key"`
}

// ExtractionConfig holds document extraction configuration.
type ExtractionConfig struct {
	// MinPageTextForOCR is the native-text length below which a page is
	// routed to OCR.
	MinPageTextForOCR int `koanf:"min_page_text_for_ocr"`

	// MinDocumentText is the total extracted length below which the whole
	// document is re-extracted with OCR forced.
	MinDocumentText int `koanf:"min_document_text"`

	// ParseWorkers bounds concurrent CPU-bound document parses.
	ParseWorkers int `koanf:"parse_workers"`

	// ImageDir is the scratch directory for extracted page images.
	ImageDir string `koanf:"image_dir"`
}

// HeuristicsConfig holds the named heuristic constants used by dimension
// recovery and verification.
type HeuristicsConfig struct {
	// InteriorFraction is the assumed usable-interior share of overall
	// building dimensions.
	InteriorFraction float64 `koanf:"interior_fraction"`

	// HardwoodShare, TileShare and UnderlaymentShare split an estimated
	// interior area when no per-room data exists.
	HardwoodShare     float64 `koanf:"hardwood_share"`
	TileShare         float64 `koanf:"tile_share"`
	UnderlaymentShare float64 `koanf:"underlayment_share"`

	// PerimeterFactor scales the approximate perimeter for baseboard
	// estimates (wall coverage).
	PerimeterFactor float64 `koanf:"perimeter_factor"`

	// RoomAreaCeiling separates per-room dimensions from overall-building
	// dimensions in text matches (sqft).
	RoomAreaCeiling float64 `koanf:"room_area_ceiling"`

	// MissingRoomRatio triggers the possible-missing-rooms warning when the
	// summed room area falls below this fraction of the expected interior.
	MissingRoomRatio float64 `koanf:"missing_room_ratio"`

	// ConsistencyTolerance is the relative tolerance for cross-signal count
	// comparison.
	ConsistencyTolerance float64 `koanf:"consistency_tolerance"`

	// RetrievalTopK is the number of specification passages retrieved per
	// reasoning query.
	RetrievalTopK int `koanf:"retrieval_top_k"`
}

// ReviewConfig holds review-gate configuration.
type ReviewConfig struct {
	// AutoApproveThreshold is the overall confidence at or above which a
	// take-off is approved without human review.
	AutoApproveThreshold float64 `koanf:"auto_approve_threshold"`

	// FlagThreshold marks individual review items below this confidence.
	FlagThreshold float64 `koanf:"flag_threshold"`
}

// Default returns a configuration populated with defaults.
func Default() *Config {
	cfg := &Config{CV: CVConfig{Enabled: true}}
	applyDefaults(cfg)
	return cfg
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	cfg.Logging.ApplyDefaults()

	// LLM defaults
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}

	// Vision defaults
	if cfg.Vision.BaseURL == "" {
		cfg.Vision.BaseURL = "https://api.moondream.ai"
	}
	if cfg.Vision.Timeout == 0 {
		cfg.Vision.Timeout = 60 * time.Second
	}

	// CV defaults
	if cfg.CV.Timeout == 0 {
		cfg.CV.Timeout = 120 * time.Second
	}

	// Vector store defaults
	if cfg.VectorStore.Path == "" {
		cfg.VectorStore.Path = "data/vectorstore"
	}
	if cfg.VectorStore.Collection == "" {
		cfg.VectorStore.Collection = "construction_specs"
	}

	// Extraction defaults
	if cfg.Extraction.MinPageTextForOCR == 0 {
		cfg.Extraction.MinPageTextForOCR = 100
	}
	if cfg.Extraction.MinDocumentText == 0 {
		cfg.Extraction.MinDocumentText = 500
	}
	if cfg.Extraction.ParseWorkers == 0 {
		cfg.Extraction.ParseWorkers = 4
	}
	if cfg.Extraction.ImageDir == "" {
		cfg.Extraction.ImageDir = "temp_images"
	}

	// Heuristic defaults
	h := &cfg.Heuristics
	if h.InteriorFraction == 0 {
		h.InteriorFraction = 0.70
	}
	if h.HardwoodShare == 0 {
		h.HardwoodShare = 0.70
	}
	if h.TileShare == 0 {
		h.TileShare = 0.20
	}
	if h.UnderlaymentShare == 0 {
		h.UnderlaymentShare = 0.90
	}
	if h.PerimeterFactor == 0 {
		h.PerimeterFactor = 0.80
	}
	if h.RoomAreaCeiling == 0 {
		h.RoomAreaCeiling = 500
	}
	if h.MissingRoomRatio == 0 {
		h.MissingRoomRatio = 0.60
	}
	if h.ConsistencyTolerance == 0 {
		h.ConsistencyTolerance = 0.10
	}
	if h.RetrievalTopK == 0 {
		h.RetrievalTopK = 5
	}

	// Review defaults
	if cfg.Review.AutoApproveThreshold == 0 {
		cfg.Review.AutoApproveThreshold = 0.95
	}
	if cfg.Review.FlagThreshold == 0 {
		cfg.Review.FlagThreshold = 0.70
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if c.Extraction.ParseWorkers < 1 {
		return errors.New("extraction: parse_workers must be at least 1")
	}
	if c.Extraction.MinPageTextForOCR < 0 || c.Extraction.MinDocumentText < 0 {
		return errors.New("extraction: text thresholds must be non-negative")
	}
	if f := c.Heuristics.InteriorFraction; f <= 0 || f > 1 {
		return fmt.Errorf("heuristics: interior_fraction %v outside (0, 1]", f)
	}
	if f := c.Heuristics.PerimeterFactor; f <= 0 || f > 1 {
		return fmt.Errorf("heuristics: perimeter_factor %v outside (0, 1]", f)
	}
	if f := c.Heuristics.ConsistencyTolerance; f < 0 || f > 1 {
		return fmt.Errorf("heuristics: consistency_tolerance %v outside [0, 1]", f)
	}
	if c.Heuristics.RetrievalTopK < 1 {
		return errors.New("heuristics: retrieval_top_k must be at least 1")
	}
	if t := c.Review.AutoApproveThreshold; t < 0 || t > 1 {
		return fmt.Errorf("review: auto_approve_threshold %v outside [0, 1]", t)
	}
	return nil
}
