// Package trades extracts per-trade quantity schedules from construction
// documents. Each trade has its own quantity schema and unit table; trades
// without a dedicated strategy fall back to a low-confidence generic result
// instead of failing the run.
package trades

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/dimensions"
)

// ErrUnknownTrade is returned by ParseTrade for unrecognized trade names.
var ErrUnknownTrade = errors.New("unknown trade")

// Trade identifies a construction trade.
type Trade string

const (
	TradeFlooring     Trade = "flooring"
	TradePainting     Trade = "painting"
	TradeDrywall      Trade = "drywall"
	TradeDoorsWindows Trade = "doors_windows"
	TradeConcrete     Trade = "concrete"
	TradeRoofing      Trade = "roofing"
	TradeHVAC         Trade = "hvac"
	TradeElectrical   Trade = "electrical"
	TradePlumbing     Trade = "plumbing"
	TradeEarthwork    Trade = "earthwork"
	TradeLandscaping  Trade = "landscaping"
)

var allTrades = map[Trade]bool{
	TradeFlooring:     true,
	TradePainting:     true,
	TradeDrywall:      true,
	TradeDoorsWindows: true,
	TradeConcrete:     true,
	TradeRoofing:      true,
	TradeHVAC:         true,
	TradeElectrical:   true,
	TradePlumbing:     true,
	TradeEarthwork:    true,
	TradeLandscaping:  true,
}

// ParseTrade normalizes a trade name ("Doors-Windows", "doors windows") to
// its canonical identifier.
func ParseTrade(s string) (Trade, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "_", " ", "_", "/", "_", "&", "").Replace(norm)
	norm = strings.ReplaceAll(norm, "__", "_")
	t := Trade(norm)
	if !allTrades[t] {
		return "", fmt.Errorf("%w: %q", ErrUnknownTrade, s)
	}
	return t, nil
}

// Supported reports whether the trade has a dedicated extraction strategy.
// Unsupported trades still extract, but through the generic fallback.
func (t Trade) Supported() bool {
	switch t {
	case TradeFlooring, TradePainting, TradeDrywall, TradeDoorsWindows, TradeConcrete:
		return true
	}
	return false
}

// Result is one trade's extracted quantity schedule.
type Result struct {
	Trade      Trade                               `json:"trade"`
	Quantities map[string]float64                  `json:"quantities"`
	Units      map[string]string                   `json:"units"`
	Rooms      map[string]dimensions.RoomDimension `json:"rooms,omitempty"`
	Confidence float64                             `json:"confidence"`
	Notes      []string                            `json:"notes,omitempty"`
	Metadata   map[string]string                   `json:"metadata,omitempty"`
}

// DefaultResult is the degraded substitute used when a trade's extraction
// fails: empty quantities at failure confidence, so the run can continue.
func DefaultResult(trade Trade, extractErr error) *Result {
	res := &Result{
		Trade:      trade,
		Quantities: map[string]float64{},
		Units:      map[string]string{},
		Confidence: fallbackConfidence,
	}
	if extractErr != nil {
		res.Metadata = map[string]string{"error": extractErr.Error()}
	}
	return res
}
