package dimensions

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/cv"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/llm"
)

// roomTextPattern matches labeled dimensions in document text, e.g.
// "Bed Room: 11' x 10'" or "Bed Room: 11' 0\" x 10' 0\"". The dimension
// substring is captured whole and handed to ParseDimension.
var roomTextPattern = regexp.MustCompile(`(?i)([A-Za-z\s]+(?:Room|Area|Bath|Kitchen|Dining|Drawing|Pooja|Store|Parking|Bedroom)?):\s*(` + feetInchesExpr + `\s*[x×]\s*` + feetInchesExpr + `)`)

// bareDimPattern matches unlabeled dimensions like "50' x 30'" or "20x45".
var bareDimPattern = regexp.MustCompile(`(?i)` + feetInchesExpr + `\s*[x×]\s*` + feetInchesExpr)

// filenamePattern matches dimensions encoded in a filename like
// "plan_30x40_south.pdf".
var filenamePattern = regexp.MustCompile(`(?i)(\d+)\s*[x×]\s*(\d+)`)

// Chain recovers room dimensions through the source ladder. Both the vision
// client and the detector may be nil; their rungs are then skipped.
type Chain struct {
	vision   llm.VisionClient
	detector cv.Detector
	cfg      Config
	logger   *zap.Logger
}

// NewChain creates a recovery chain.
func NewChain(vision llm.VisionClient, detector cv.Detector, cfg Config, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.ApplyDefaults()
	return &Chain{vision: vision, detector: detector, cfg: cfg, logger: logger}
}

// Recover runs the fallback ladder against the available signals and always
// returns a result. Failures of individual rungs are recorded and the next
// rung tried; only context cancellation aborts early, and even then the
// partial result comes back.
func (c *Chain) Recover(ctx context.Context, imagePaths []string, docText, filename string) *Result {
	res := &Result{
		Rooms:      make(map[string]RoomDimension),
		ByType:     newByType(),
		Source:     SourceNone,
		Confidence: ConfidenceFailure,
	}

	if c.recoverFromVision(ctx, res, imagePaths) {
		res.Source = SourceVision
		res.Confidence = ConfidenceVision
		c.finish(res)
		return res
	}

	if c.recoverFromCV(ctx, res, imagePaths) {
		res.Source = SourceCV
		res.Confidence = ConfidenceCV
		c.finish(res)
		return res
	}

	if c.recoverFromText(res, docText) {
		res.Source = SourceText
		res.Confidence = ConfidenceText
		c.finish(res)
		return res
	}

	if c.recoverFromFilename(res, filename) {
		res.Source = SourceFilename
		res.Confidence = ConfidenceFilename
		c.finish(res)
		return res
	}

	res.Errors = append(res.Errors, "no dimensions recovered from any source")
	c.finish(res)
	return res
}

func (c *Chain) recoverFromVision(ctx context.Context, res *Result, imagePaths []string) bool {
	if c.vision == nil || len(imagePaths) == 0 {
		return false
	}

	ans, err := c.vision.Query(ctx, imagePaths[0], VisionQuestion)
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("vision query failed: %s", err))
		c.logger.Warn("vision query failed", zap.Error(err))
		return false
	}

	rooms, overall := ParseVisionAnswer(ans.Answer)
	if len(rooms) == 0 {
		res.Warnings = append(res.Warnings, "vision answer contained no parsable rooms")
		return false
	}

	c.addRooms(res, rooms)
	c.checkOverall(res, overall)
	return true
}

func (c *Chain) recoverFromCV(ctx context.Context, res *Result, imagePaths []string) bool {
	if c.detector == nil || len(imagePaths) == 0 {
		return false
	}

	dets, err := c.detector.Detect(ctx, imagePaths[0])
	if err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("cv detection failed: %s", err))
		c.logger.Warn("cv detection failed", zap.Error(err))
		return false
	}

	var rooms []RoomEntry
	for i, det := range cv.FilterClass(dets, "room") {
		if det.AreaSqft <= 0 {
			continue
		}
		name := det.Label
		if name == "" {
			name = fmt.Sprintf("room_%d", i+1)
		}
		rooms = append(rooms, RoomEntry{Name: name, AreaSqft: round2(det.AreaSqft)})
	}
	if len(rooms) == 0 {
		return false
	}

	c.addRooms(res, rooms)
	return true
}

func (c *Chain) recoverFromText(res *Result, docText string) bool {
	if strings.TrimSpace(docText) == "" {
		return false
	}

	// Labeled rooms first.
	var rooms []RoomEntry
	for _, m := range roomTextPattern.FindAllStringSubmatch(docText, -1) {
		length, width, area, ok := ParseDimension(m[2])
		if !ok {
			continue
		}
		// Areas at or above the ceiling are overall-building dimensions,
		// not rooms.
		if area <= 0 || area >= c.cfg.RoomAreaCeiling {
			continue
		}
		rooms = append(rooms, RoomEntry{
			Name:     strings.TrimSpace(m[1]),
			LengthFt: length,
			WidthFt:  width,
			AreaSqft: area,
			Raw:      strings.TrimSpace(m[2]),
		})
	}

	if len(rooms) > 0 {
		c.addRooms(res, rooms)
	} else {
		// No labeled rooms: fall back to bare length-by-width pairs.
		if !c.estimateFromBareDims(res, docText) {
			return false
		}
	}

	c.applyTextKeywords(res, docText)
	return res.TotalSqft > 0
}

// estimateFromBareDims sums unlabeled dimension pairs. When the largest pair
// exceeds the room ceiling it is taken as the overall building footprint and
// the interior estimated from it.
func (c *Chain) estimateFromBareDims(res *Result, docText string) bool {
	matches := bareDimPattern.FindAllString(docText, -1)
	if len(matches) == 0 {
		return false
	}

	type dim struct{ length, width, area float64 }
	var dims []dim
	total := 0.0
	for _, m := range matches {
		length, width, area, ok := ParseDimension(m)
		if !ok {
			continue
		}
		d := dim{length, width, area}
		dims = append(dims, d)
		total += d.area
	}
	if len(dims) == 0 {
		return false
	}

	largest := dims[0]
	for _, d := range dims[1:] {
		if d.area > largest.area {
			largest = d
		}
	}

	if largest.area > c.cfg.RoomAreaCeiling {
		// Overall footprint: estimate the interior and split by type.
		interior := largest.area * c.cfg.InteriorFraction
		res.TotalSqft = interior
		res.ByType[TypeHardwoodSqft] = interior * c.cfg.HardwoodShare
		res.ByType[TypeTileSqft] = interior * c.cfg.TileShare
		res.ByType[TypeUnderlaymentSqft] = interior * c.cfg.UnderlaymentShare
		res.Rooms["Overall Estimate"] = RoomDimension{
			LengthFt:         largest.length,
			WidthFt:          largest.width,
			AreaSqft:         round2(interior),
			FlooringType:     FlooringMixed,
			UnderlaymentSqft: round2(interior * c.cfg.UnderlaymentShare),
			Note:             "Estimated from overall floor plan dimensions",
		}
	} else if total > 0 {
		res.TotalSqft = total
		res.ByType[TypeHardwoodSqft] = total * c.cfg.HardwoodShare
		res.ByType[TypeTileSqft] = total * c.cfg.TileShare
		res.ByType[TypeUnderlaymentSqft] = total * c.cfg.UnderlaymentShare
	}

	return res.TotalSqft > 0
}

// applyTextKeywords raises per-type floors when the text names materials.
func (c *Chain) applyTextKeywords(res *Result, docText string) {
	l := strings.ToLower(docText)
	if strings.Contains(l, "hardwood") || strings.Contains(l, "wood") {
		res.ByType[TypeHardwoodSqft] = math.Max(res.ByType[TypeHardwoodSqft], res.TotalSqft*0.6)
	}
	if strings.Contains(l, "tile") {
		res.ByType[TypeTileSqft] = math.Max(res.ByType[TypeTileSqft], res.TotalSqft*0.3)
	}
	if strings.Contains(l, "carpet") {
		res.ByType[TypeCarpetSqft] = math.Max(res.ByType[TypeCarpetSqft], res.TotalSqft*0.1)
	}
}

func (c *Chain) recoverFromFilename(res *Result, filename string) bool {
	m := filenamePattern.FindStringSubmatch(filename)
	if m == nil {
		return false
	}

	length, err1 := strconv.ParseFloat(m[1], 64)
	width, err2 := strconv.ParseFloat(m[2], 64)
	if err1 != nil || err2 != nil {
		return false
	}

	interior := length * width * c.cfg.InteriorFraction
	res.TotalSqft = interior
	res.ByType[TypeHardwoodSqft] = interior * c.cfg.HardwoodShare
	res.ByType[TypeTileSqft] = interior * c.cfg.TileShare
	res.ByType[TypeUnderlaymentSqft] = interior * c.cfg.UnderlaymentShare
	res.Warnings = append(res.Warnings,
		fmt.Sprintf("dimensions estimated from filename %q", filename))

	c.logger.Info("dimensions recovered from filename",
		zap.String("filename", filename),
		zap.Float64("interior_sqft", interior),
	)
	return true
}

// addRooms inserts entries into the result, disambiguating duplicate labels
// with " 2", " 3" suffixes and accumulating per-type totals.
func (c *Chain) addRooms(res *Result, rooms []RoomEntry) {
	counts := make(map[string]int)
	for _, entry := range rooms {
		if entry.AreaSqft <= 0 {
			continue
		}

		name := entry.Name
		if _, exists := res.Rooms[name]; exists {
			counts[entry.Name]++
			name = fmt.Sprintf("%s %d", entry.Name, counts[entry.Name]+1)
		} else {
			counts[entry.Name] = 0
		}

		ftype := FlooringTypeForRoom(name)
		underlayment := entry.AreaSqft
		if ftype == FlooringConcrete {
			underlayment = 0
		}

		res.Rooms[name] = RoomDimension{
			LengthFt:         entry.LengthFt,
			WidthFt:          entry.WidthFt,
			AreaSqft:         entry.AreaSqft,
			FlooringType:     ftype,
			UnderlaymentSqft: underlayment,
			RawText:          entry.Raw,
		}
		res.TotalSqft += entry.AreaSqft

		switch ftype {
		case FlooringHardwood:
			res.ByType[TypeHardwoodSqft] += entry.AreaSqft
		case FlooringTile:
			res.ByType[TypeTileSqft] += entry.AreaSqft
		case FlooringConcrete:
			res.ByType[TypeConcreteSqft] += entry.AreaSqft
		}
		res.ByType[TypeUnderlaymentSqft] += underlayment
	}
}

// checkOverall warns when the summed room area falls well short of what the
// overall plan dimensions imply, a strong sign the source skipped rooms.
func (c *Chain) checkOverall(res *Result, overall *RoomEntry) {
	if overall == nil || overall.AreaSqft <= 0 {
		return
	}

	expectedInterior := overall.AreaSqft * c.cfg.InteriorFraction
	if res.TotalSqft < expectedInterior*c.cfg.MissingRoomRatio {
		res.Warnings = append(res.Warnings, fmt.Sprintf(
			"possible missing rooms: overall %.0f sqft implies ~%.0f sqft interior but only %.0f sqft extracted",
			overall.AreaSqft, expectedInterior, res.TotalSqft))
	}
}

// finish derives baseboard and transition-strip quantities and rounds
// everything to two decimals.
func (c *Chain) finish(res *Result) {
	if res.TotalSqft == 0 {
		if s := res.ByType[TypeHardwoodSqft] + res.ByType[TypeTileSqft] + res.ByType[TypeCarpetSqft]; s > 0 {
			res.TotalSqft = s
		}
	}

	if res.TotalSqft > 0 {
		// Perimeter of an equivalent square, scaled for openings.
		res.ByType[TypeBaseboardFt] = math.Sqrt(res.TotalSqft) * 4 * c.cfg.PerimeterFactor
	}

	roomCount := len(res.Rooms)
	if roomCount == 0 {
		roomCount = 1
	}
	res.ByType[TypeTransitionStrips] = float64(max(roomCount-1, 0))

	res.TotalSqft = round2(res.TotalSqft)
	for k, v := range res.ByType {
		res.ByType[k] = round2(v)
	}
}

func newByType() map[string]float64 {
	return map[string]float64{
		TypeHardwoodSqft:     0,
		TypeTileSqft:         0,
		TypeCarpetSqft:       0,
		TypeConcreteSqft:     0,
		TypeUnderlaymentSqft: 0,
		TypeBaseboardFt:      0,
		TypeTransitionStrips: 0,
	}
}
