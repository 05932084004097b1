package trades

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/dimensions"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/llm"
)

const (
	heuristicConfidence = 0.85
	keywordConfidence   = 0.6
	fallbackConfidence  = 0.5

	// maxPromptText caps document text sent to the model.
	maxPromptText = 8000

	wallHeightFt       = 9.0
	drywallSheetSqft   = 32.0 // 4x8 sheet
	slabThicknessFt    = 4.0 / 12.0
	cubicFeetPerYard   = 27.0
	cornersPerRoom     = 4
	perimeterWallRatio = 4.0 // perimeter of the equivalent square
)

const countingSystemPrompt = "You are an expert quantity surveyor analyzing construction documents. " +
	"Count elements precisely and only from information explicitly stated or clearly inferable. " +
	"Return results as structured JSON."

// Extractor maps document signals into per-trade quantity schedules. The
// completer may be nil; language-model-assisted strategies then use their
// deterministic fallbacks.
type Extractor struct {
	completer llm.Completer
	logger    *zap.Logger
}

// NewExtractor creates a trade quantity extractor.
func NewExtractor(completer llm.Completer, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{completer: completer, logger: logger}
}

// Extract produces the quantity schedule for one trade. Dimension results
// feed the area-based trades and may be nil. Extraction never fails for an
// unsupported trade; it returns the generic low-confidence result instead.
func (e *Extractor) Extract(ctx context.Context, trade Trade, docText string, dims *dimensions.Result) (*Result, error) {
	e.logger.Info("extracting trade quantities", zap.String("trade", string(trade)))

	switch trade {
	case TradeFlooring:
		return e.extractFlooring(dims), nil
	case TradePainting:
		return e.extractPainting(dims), nil
	case TradeDrywall:
		return e.extractDrywall(dims), nil
	case TradeDoorsWindows:
		return e.extractDoorsWindows(ctx, docText)
	case TradeConcrete:
		return e.extractConcrete(dims), nil
	default:
		return e.extractGeneric(trade), nil
	}
}

// extractFlooring repackages the dimension-recovery output as a flooring
// schedule, carrying its per-room breakdown and source confidence through.
func (e *Extractor) extractFlooring(dims *dimensions.Result) *Result {
	units := map[string]string{
		"total_sqft":                    "sqft",
		dimensions.TypeHardwoodSqft:     "sqft",
		dimensions.TypeTileSqft:         "sqft",
		dimensions.TypeCarpetSqft:       "sqft",
		dimensions.TypeConcreteSqft:     "sqft",
		dimensions.TypeUnderlaymentSqft: "sqft",
		dimensions.TypeBaseboardFt:      "linear_ft",
		dimensions.TypeTransitionStrips: "count",
	}

	if dims == nil {
		return &Result{
			Trade:      TradeFlooring,
			Quantities: map[string]float64{"total_sqft": 0},
			Units:      map[string]string{"total_sqft": "sqft"},
			Confidence: fallbackConfidence,
			Metadata:   map[string]string{"error": "no dimension results available"},
		}
	}

	quantities := map[string]float64{"total_sqft": dims.TotalSqft}
	for k, v := range dims.ByType {
		quantities[k] = v
	}

	res := &Result{
		Trade:      TradeFlooring,
		Quantities: quantities,
		Units:      units,
		Rooms:      dims.Rooms,
		Confidence: dims.Confidence,
	}
	res.Notes = append(res.Notes, dims.Warnings...)
	res.Notes = append(res.Notes, dims.Errors...)
	return res
}

// extractPainting estimates wall, ceiling, and trim areas from recovered
// room geometry: wall area is the room perimeter times a standard wall
// height, with the equivalent-square perimeter used when only an area is
// known.
func (e *Extractor) extractPainting(dims *dimensions.Result) *Result {
	quantities := map[string]float64{
		"interior_walls_sqft": 0,
		"exterior_walls_sqft": 0,
		"ceiling_sqft":        0,
		"trim_linear_feet":    0,
		"door_frames_count":   0,
		"window_frames_count": 0,
	}

	if dims != nil && dims.TotalSqft > 0 {
		interiorPerimeter := 0.0
		for _, room := range dims.Rooms {
			if room.LengthFt > 0 && room.WidthFt > 0 {
				interiorPerimeter += 2 * (room.LengthFt + room.WidthFt)
			} else if room.AreaSqft > 0 {
				interiorPerimeter += math.Sqrt(room.AreaSqft) * perimeterWallRatio
			}
		}
		if interiorPerimeter == 0 {
			interiorPerimeter = math.Sqrt(dims.TotalSqft) * perimeterWallRatio
		}
		shellPerimeter := math.Sqrt(dims.TotalSqft) * perimeterWallRatio

		quantities["interior_walls_sqft"] = round2(interiorPerimeter * wallHeightFt)
		quantities["exterior_walls_sqft"] = round2(shellPerimeter * wallHeightFt)
		quantities["ceiling_sqft"] = dims.TotalSqft
		quantities["trim_linear_feet"] = dims.ByType[dimensions.TypeBaseboardFt]
	}

	return &Result{
		Trade:      TradePainting,
		Quantities: quantities,
		Units: map[string]string{
			"interior_walls_sqft": "sqft",
			"exterior_walls_sqft": "sqft",
			"ceiling_sqft":        "sqft",
			"trim_linear_feet":    "linear_ft",
			"door_frames_count":   "count",
			"window_frames_count": "count",
		},
		Confidence: heuristicConfidence,
	}
}

// extractDrywall estimates sheet counts from wall area at 32 sqft per 4x8
// sheet.
func (e *Extractor) extractDrywall(dims *dimensions.Result) *Result {
	quantities := map[string]float64{
		"sheets_4x8":             0,
		"sheets_4x12":            0,
		"linear_feet_partitions": 0,
		"corners":                0,
	}

	if dims != nil && dims.TotalSqft > 0 {
		perimeter := math.Sqrt(dims.TotalSqft) * perimeterWallRatio
		wallArea := perimeter * wallHeightFt
		quantities["sheets_4x8"] = math.Ceil(wallArea / drywallSheetSqft)
		quantities["linear_feet_partitions"] = round2(perimeter)
		quantities["corners"] = float64(len(dims.Rooms) * cornersPerRoom)
	}

	return &Result{
		Trade:      TradeDrywall,
		Quantities: quantities,
		Units: map[string]string{
			"sheets_4x8":             "sheets",
			"sheets_4x12":            "sheets",
			"linear_feet_partitions": "linear_ft",
			"corners":                "count",
		},
		Confidence: heuristicConfidence,
	}
}

// extractConcrete converts concrete floor area into slab volume at a
// standard 4-inch slab thickness.
func (e *Extractor) extractConcrete(dims *dimensions.Result) *Result {
	quantities := map[string]float64{
		"slabs_cubic_yards":       0,
		"foundations_cubic_yards": 0,
		"walls_cubic_yards":       0,
	}

	if dims != nil {
		if concreteSqft := dims.ByType[dimensions.TypeConcreteSqft]; concreteSqft > 0 {
			quantities["slabs_cubic_yards"] = round2(concreteSqft * slabThicknessFt / cubicFeetPerYard)
		}
	}

	return &Result{
		Trade:      TradeConcrete,
		Quantities: quantities,
		Units: map[string]string{
			"slabs_cubic_yards":       "cubic_yds",
			"foundations_cubic_yards": "cubic_yds",
			"walls_cubic_yards":       "cubic_yds",
		},
		Confidence: heuristicConfidence,
	}
}

func (e *Extractor) extractGeneric(trade Trade) *Result {
	return &Result{
		Trade:      trade,
		Quantities: map[string]float64{},
		Units:      map[string]string{},
		Confidence: fallbackConfidence,
		Metadata:   map[string]string{"note": "Trade not yet fully supported"},
	}
}

var doorsWindowsUnits = map[string]string{
	"doors":    "count",
	"windows":  "count",
	"hardware": "count",
}

// extractDoorsWindows counts openings with model assistance, falling back
// to keyword counting when no completer is configured or the answer is
// unusable.
func (e *Extractor) extractDoorsWindows(ctx context.Context, docText string) (*Result, error) {
	if e.completer != nil && strings.TrimSpace(docText) != "" {
		res, err := e.countWithModel(ctx, docText)
		if err == nil {
			return res, nil
		}
		e.logger.Warn("model-assisted count failed, using keyword fallback", zap.Error(err))
	}
	return e.countFromKeywords(docText), nil
}

func (e *Extractor) countWithModel(ctx context.Context, docText string) (*Result, error) {
	text := docText
	if len(text) > maxPromptText {
		text = text[:maxPromptText]
	}

	userPrompt := fmt.Sprintf(`Count doors, windows, and door hardware items (handles, locks, hinges, closers, strikes) in this construction document text:

%s

Return JSON with this structure:
{"doors": number, "windows": number, "hardware": number}`, text)

	answer, err := e.completer.Complete(ctx, countingSystemPrompt, userPrompt, 0.0)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}

	block := llm.ExtractJSONBlock(answer)
	if block == "" {
		return nil, fmt.Errorf("no JSON in model answer")
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(block), &raw); err != nil {
		return nil, fmt.Errorf("parsing model answer: %w", err)
	}

	quantities := map[string]float64{"doors": 0, "windows": 0, "hardware": 0}
	for key := range quantities {
		quantities[key] = numberField(raw[key])
	}

	return &Result{
		Trade:      TradeDoorsWindows,
		Quantities: quantities,
		Units:      doorsWindowsUnits,
		Confidence: heuristicConfidence,
	}, nil
}

var (
	doorCountPattern   = regexp.MustCompile(`(?i)(\d+)\s*(?:nos\.?\s*)?doors?\b`)
	windowCountPattern = regexp.MustCompile(`(?i)(\d+)\s*(?:nos\.?\s*)?windows?\b`)
	doorWordPattern    = regexp.MustCompile(`(?i)\bdoors?\b`)
	windowWordPattern  = regexp.MustCompile(`(?i)\bwindows?\b`)
)

// countFromKeywords sums explicit "N doors"-style counts, or failing that
// counts bare mentions. Advisory only, hence the reduced confidence.
func (e *Extractor) countFromKeywords(docText string) *Result {
	doors := sumCounts(doorCountPattern, docText)
	if doors == 0 {
		doors = float64(len(doorWordPattern.FindAllString(docText, -1)))
	}
	windows := sumCounts(windowCountPattern, docText)
	if windows == 0 {
		windows = float64(len(windowWordPattern.FindAllString(docText, -1)))
	}

	return &Result{
		Trade:      TradeDoorsWindows,
		Quantities: map[string]float64{"doors": doors, "windows": windows, "hardware": 0},
		Units:      doorsWindowsUnits,
		Confidence: keywordConfidence,
		Notes:      []string{"counts estimated from text keywords"},
	}
}

func sumCounts(pattern *regexp.Regexp, text string) float64 {
	total := 0.0
	for _, m := range pattern.FindAllStringSubmatch(text, -1) {
		var n float64
		if _, err := fmt.Sscanf(m[1], "%f", &n); err == nil {
			total += n
		}
	}
	return total
}

// numberField reads a count that models return either as a bare number or
// wrapped in an object like {"total_count": 5}.
func numberField(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var obj map[string]float64
	if err := json.Unmarshal(raw, &obj); err == nil {
		for _, key := range []string{"total_count", "count", "quantity", "total"} {
			if v, ok := obj[key]; ok {
				return v
			}
		}
	}
	return 0
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
