// Package dimensions recovers room dimensions from floor plan documents.
//
// Floor plans rarely yield dimensions from a single signal, so recovery runs
// a strict fallback ladder: vision-language answers, classical CV detections,
// text patterns, and finally the project filename. The chain never fails; a
// run that exhausts every rung returns a zero result with the failure
// recorded, and downstream verification handles the low confidence.
package dimensions

import "strings"

// Source identifies which rung of the recovery ladder produced a result.
type Source string

const (
	SourceVision   Source = "vision"
	SourceCV       Source = "cv"
	SourceText     Source = "text"
	SourceFilename Source = "filename"
	SourceNone     Source = "none"
)

// Confidence by source. CV outranks vision because bounding boxes are
// measured geometry; text and filename are coarse estimates.
const (
	ConfidenceCV       = 0.92
	ConfidenceVision   = 0.85
	ConfidenceText     = 0.80
	ConfidenceFilename = 0.80
	ConfidenceFailure  = 0.5
)

// Flooring types assigned per room.
const (
	FlooringHardwood = "hardwood"
	FlooringTile     = "tile"
	FlooringCarpet   = "carpet"
	FlooringConcrete = "concrete"
	FlooringMixed    = "mixed"
)

// Keys of the by-type quantity breakdown.
const (
	TypeHardwoodSqft     = "hardwood_sqft"
	TypeTileSqft         = "tile_sqft"
	TypeCarpetSqft       = "carpet_sqft"
	TypeConcreteSqft     = "concrete_sqft"
	TypeUnderlaymentSqft = "underlayment_sqft"
	TypeBaseboardFt      = "baseboard_linear_ft"
	TypeTransitionStrips = "transition_strips"
)

// RoomDimension is a recovered room with its derived flooring data.
type RoomDimension struct {
	LengthFt         float64
	WidthFt          float64
	AreaSqft         float64
	FlooringType     string
	UnderlaymentSqft float64
	RawText          string
	Note             string
}

// Result is the outcome of a recovery run.
type Result struct {
	// Rooms maps room label to its dimension. Duplicate labels from the
	// source are disambiguated with " 2", " 3" suffixes.
	Rooms map[string]RoomDimension

	// TotalSqft is the summed room area (overall-plan dimensions excluded).
	TotalSqft float64

	// ByType breaks the total down by flooring type plus derived
	// quantities (underlayment, baseboard, transition strips).
	ByType map[string]float64

	Source     Source
	Confidence float64
	Warnings   []string
	Errors     []string
}

// Config holds the heuristic constants of the recovery chain.
type Config struct {
	// InteriorFraction is the usable-interior share of overall building
	// dimensions (walls and parking excluded).
	InteriorFraction float64

	// HardwoodShare, TileShare and UnderlaymentShare split an estimated
	// interior when no per-room data exists.
	HardwoodShare     float64
	TileShare         float64
	UnderlaymentShare float64

	// PerimeterFactor scales the approximate perimeter for baseboard
	// estimates.
	PerimeterFactor float64

	// RoomAreaCeiling separates per-room matches from overall-building
	// matches in free text (sqft).
	RoomAreaCeiling float64

	// MissingRoomRatio triggers the missing-rooms warning when summed room
	// area falls below this fraction of the expected interior.
	MissingRoomRatio float64
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.InteriorFraction == 0 {
		c.InteriorFraction = 0.70
	}
	if c.HardwoodShare == 0 {
		c.HardwoodShare = 0.70
	}
	if c.TileShare == 0 {
		c.TileShare = 0.20
	}
	if c.UnderlaymentShare == 0 {
		c.UnderlaymentShare = 0.90
	}
	if c.PerimeterFactor == 0 {
		c.PerimeterFactor = 0.80
	}
	if c.RoomAreaCeiling == 0 {
		c.RoomAreaCeiling = 500
	}
	if c.MissingRoomRatio == 0 {
		c.MissingRoomRatio = 0.60
	}
}

// FlooringTypeForRoom maps a room label to its flooring type. Wet rooms get
// tile, parking gets bare concrete, everything else hardwood.
func FlooringTypeForRoom(label string) string {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "bath"),
		strings.Contains(l, "toilet"),
		strings.Contains(l, "kitchen"),
		strings.Contains(l, "pooja"):
		return FlooringTile
	case strings.Contains(l, "parking"):
		return FlooringConcrete
	default:
		return FlooringHardwood
	}
}
