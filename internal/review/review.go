// Package review gates take-off results behind human approval. High
// confidence results are approved automatically; everything else queues for
// an expert, who corrects quantities item by item.
package review

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrReviewNotFound is returned when a review id does not exist.
var ErrReviewNotFound = errors.New("review not found")

// Status is the review lifecycle state.
type Status string

const (
	StatusPending       Status = "pending"
	StatusInProgress    Status = "in_progress"
	StatusApproved      Status = "approved"
	StatusNeedsRevision Status = "needs_revision"
	StatusRejected      Status = "rejected"
)

const (
	defaultAutoApproveThreshold = 0.95
	defaultFlagThreshold        = 0.7
	defaultItemConfidence       = 0.85
)

// Item is one reviewable quantity line.
type Item struct {
	Trade          string   `json:"trade"`
	Item           string   `json:"item"`
	AIQuantity     float64  `json:"ai_quantity"`
	ExpertQuantity *float64 `json:"expert_quantity,omitempty"`
	Confidence     float64  `json:"confidence"`
	Flagged        bool     `json:"flagged"`
}

// Review is one expert review of a project's take-off.
type Review struct {
	ID                string             `json:"review_id"`
	ProjectID         string             `json:"project_id"`
	Status            Status             `json:"status"`
	Items             []Item             `json:"items"`
	OverallConfidence float64            `json:"overall_confidence"`
	ExpertID          string             `json:"expert_id,omitempty"`
	ExpertName        string             `json:"expert_name,omitempty"`
	Notes             string             `json:"review_notes,omitempty"`
	Corrections       map[string]float64 `json:"corrections,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
	ReviewedAt        time.Time          `json:"reviewed_at,omitempty"`
	TimeTakenMinutes  float64            `json:"time_taken_minutes,omitempty"`
}

// Config tunes the gate thresholds.
type Config struct {
	AutoApproveThreshold float64 `koanf:"auto_approve_threshold"`
	FlagThreshold        float64 `koanf:"flag_threshold"`
}

// ApplyDefaults fills zero thresholds with the defaults (0.95 / 0.7).
func (c *Config) ApplyDefaults() {
	if c.AutoApproveThreshold == 0 {
		c.AutoApproveThreshold = defaultAutoApproveThreshold
	}
	if c.FlagThreshold == 0 {
		c.FlagThreshold = defaultFlagThreshold
	}
}

// Gate manages reviews in memory. Safe for concurrent use.
type Gate struct {
	mu      sync.RWMutex
	cfg     Config
	reviews map[string]*Review
	queue   []string // project ids awaiting review, FIFO
	logger  *zap.Logger

	now func() time.Time
}

// NewGate creates a review gate.
func NewGate(cfg Config, logger *zap.Logger) *Gate {
	cfg.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		cfg:     cfg,
		reviews: make(map[string]*Review),
		logger:  logger,
		now:     time.Now,
	}
}

// CreateReview builds a review from per-trade quantities. At or above the
// auto-approve threshold the review is approved immediately; below it the
// project joins the review queue. Items whose trade confidence falls below
// the flag threshold are flagged for attention.
func (g *Gate) CreateReview(projectID string, overallConfidence float64, quantities map[string]map[string]float64, tradeConfidences map[string]float64) *Review {
	review := &Review{
		ID:                uuid.New().String(),
		ProjectID:         projectID,
		OverallConfidence: overallConfidence,
		CreatedAt:         g.now(),
		Items:             buildItems(quantities, tradeConfidences, g.cfg.FlagThreshold),
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if overallConfidence >= g.cfg.AutoApproveThreshold {
		review.Status = StatusApproved
	} else {
		review.Status = StatusPending
		g.queue = append(g.queue, projectID)
	}
	g.reviews[review.ID] = review

	g.logger.Info("created review",
		zap.String("review_id", review.ID),
		zap.String("project_id", projectID),
		zap.String("status", string(review.Status)),
		zap.Float64("overall_confidence", overallConfidence),
	)
	return cloneReview(review)
}

func buildItems(quantities map[string]map[string]float64, confidences map[string]float64, flagThreshold float64) []Item {
	trades := make([]string, 0, len(quantities))
	for trade := range quantities {
		trades = append(trades, trade)
	}
	sort.Strings(trades)

	var items []Item
	for _, trade := range trades {
		confidence, ok := confidences[trade]
		if !ok {
			confidence = defaultItemConfidence
		}

		names := make([]string, 0, len(quantities[trade]))
		for name := range quantities[trade] {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			items = append(items, Item{
				Trade:      trade,
				Item:       name,
				AIQuantity: quantities[trade][name],
				Confidence: confidence,
				Flagged:    confidence < flagThreshold,
			})
		}
	}
	return items
}

// Get returns a review by id.
func (g *Gate) Get(reviewID string) (*Review, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	review, ok := g.reviews[reviewID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReviewNotFound, reviewID)
	}
	return cloneReview(review), nil
}

// GetByProject returns the review for a project, if any.
func (g *Gate) GetByProject(projectID string) (*Review, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	for _, review := range g.reviews {
		if review.ProjectID == projectID {
			return cloneReview(review), nil
		}
	}
	return nil, fmt.Errorf("%w: project %s", ErrReviewNotFound, projectID)
}

// Update records an expert's verdict. Corrections are keyed
// "trade.item"; corrected items are unflagged. Review time is computed from
// creation to now.
func (g *Gate) Update(reviewID, expertID, expertName string, corrections map[string]float64, notes string, status Status) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	review, ok := g.reviews[reviewID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrReviewNotFound, reviewID)
	}

	review.ExpertID = expertID
	review.ExpertName = expertName
	review.Status = status
	review.Notes = notes
	review.Corrections = corrections
	review.ReviewedAt = g.now()

	for i := range review.Items {
		key := review.Items[i].Trade + "." + review.Items[i].Item
		if corrected, ok := corrections[key]; ok {
			v := corrected
			review.Items[i].ExpertQuantity = &v
			review.Items[i].Flagged = false
		}
	}

	if !review.CreatedAt.IsZero() {
		review.TimeTakenMinutes = review.ReviewedAt.Sub(review.CreatedAt).Minutes()
	}

	g.logger.Info("updated review",
		zap.String("review_id", reviewID),
		zap.String("expert", expertName),
		zap.String("status", string(status)),
	)
	return nil
}

// Approve marks a review approved with no corrections.
func (g *Gate) Approve(reviewID, expertID, expertName string) error {
	return g.Update(reviewID, expertID, expertName, nil, "", StatusApproved)
}

// Queue returns reviews still pending, in enqueue order.
func (g *Gate) Queue() []*Review {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var pending []*Review
	for _, projectID := range g.queue {
		for _, review := range g.reviews {
			if review.ProjectID == projectID && review.Status == StatusPending {
				pending = append(pending, cloneReview(review))
				break
			}
		}
	}
	return pending
}

// cloneReview copies a review so callers cannot mutate gate state.
func cloneReview(r *Review) *Review {
	out := *r
	out.Items = make([]Item, len(r.Items))
	copy(out.Items, r.Items)
	if r.Corrections != nil {
		out.Corrections = make(map[string]float64, len(r.Corrections))
		for k, v := range r.Corrections {
			out.Corrections[k] = v
		}
	}
	return &out
}
