package dimensions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumitkumar005/Construction-AI-Agent/internal/cv"
	"github.com/Sumitkumar005/Construction-AI-Agent/internal/llm"
)

// fakeVision returns a canned answer or error.
type fakeVision struct {
	answer string
	err    error
}

func (f *fakeVision) Query(_ context.Context, _, _ string) (llm.VisionAnswer, error) {
	if f.err != nil {
		return llm.VisionAnswer{}, f.err
	}
	return llm.VisionAnswer{Answer: f.answer, RequestID: "test"}, nil
}

// fakeDetector returns canned detections or an error.
type fakeDetector struct {
	detections []cv.Detection
	err        error
}

func (f *fakeDetector) Detect(_ context.Context, _ string) ([]cv.Detection, error) {
	return f.detections, f.err
}

var planImages = []string{"plan_page1.png"}

func TestChain_VisionFirst(t *testing.T) {
	vision := &fakeVision{answer: `{"Bed Room": "11' x 10'", "Bath": "9' x 8'"}`}
	detector := &fakeDetector{detections: []cv.Detection{
		{Class: "room", Label: "ignored", AreaSqft: 999, Confidence: 0.9},
	}}
	chain := NewChain(vision, detector, Config{}, nil)

	res := chain.Recover(context.Background(), planImages, "", "")

	assert.Equal(t, SourceVision, res.Source)
	assert.Equal(t, ConfidenceVision, res.Confidence)
	require.Len(t, res.Rooms, 2)
	assert.InDelta(t, 182, res.TotalSqft, 0.001)
	assert.InDelta(t, 110, res.ByType[TypeHardwoodSqft], 0.001)
	assert.InDelta(t, 72, res.ByType[TypeTileSqft], 0.001)
	assert.InDelta(t, 182, res.ByType[TypeUnderlaymentSqft], 0.001)
}

func TestChain_FallsBackToCVWhenVisionFails(t *testing.T) {
	vision := &fakeVision{err: errors.New("api down")}
	detector := &fakeDetector{detections: []cv.Detection{
		{Class: "room", Label: "Living Room", AreaSqft: 200, Confidence: 0.95},
		{Class: "room", Label: "Kitchen", AreaSqft: 80, Confidence: 0.9},
		{Class: "door", Confidence: 0.8},
	}}
	chain := NewChain(vision, detector, Config{}, nil)

	res := chain.Recover(context.Background(), planImages, "", "")

	assert.Equal(t, SourceCV, res.Source)
	assert.Equal(t, ConfidenceCV, res.Confidence)
	require.Len(t, res.Rooms, 2)
	assert.InDelta(t, 280, res.TotalSqft, 0.001)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "vision query failed")
}

func TestChain_FallsBackToTextRooms(t *testing.T) {
	chain := NewChain(nil, nil, Config{}, nil)
	text := "Room schedule:\nBed Room: 11' x 10'\nKitchen: 8' x 9'\nhardwood throughout"

	res := chain.Recover(context.Background(), nil, text, "")

	assert.Equal(t, SourceText, res.Source)
	assert.Equal(t, ConfidenceText, res.Confidence)
	assert.InDelta(t, 182, res.TotalSqft, 0.001)
}

func TestChain_TextRoomsWithFeetInches(t *testing.T) {
	chain := NewChain(nil, nil, Config{}, nil)
	text := "Bed Room: 11' 0\" x 10' 0\"\nKitchen: 9' x 8'\n"

	res := chain.Recover(context.Background(), nil, text, "plans.pdf")

	assert.Equal(t, SourceText, res.Source)
	assert.Equal(t, ConfidenceText, res.Confidence)
	require.Len(t, res.Rooms, 2)
	assert.InDelta(t, 110, res.Rooms["Bed Room"].AreaSqft, 0.001)
	assert.InDelta(t, 72, res.Rooms["Kitchen"].AreaSqft, 0.001)
	assert.InDelta(t, 182, res.TotalSqft, 0.001)
}

func TestChain_TextOverallEstimate(t *testing.T) {
	chain := NewChain(nil, nil, Config{}, nil)

	// 50x30 = 1500 sqft exceeds the room ceiling, so it is the building
	// footprint: interior = 1500 * 0.7 = 1050.
	res := chain.Recover(context.Background(), nil, "site plan 50' x 30'", "")

	assert.Equal(t, SourceText, res.Source)
	assert.InDelta(t, 1050, res.TotalSqft, 0.001)
	assert.InDelta(t, 1050*0.7, res.ByType[TypeHardwoodSqft], 0.001)
	assert.InDelta(t, 1050*0.2, res.ByType[TypeTileSqft], 0.001)
	assert.InDelta(t, 1050*0.9, res.ByType[TypeUnderlaymentSqft], 0.001)

	est, ok := res.Rooms["Overall Estimate"]
	require.True(t, ok)
	assert.Equal(t, FlooringMixed, est.FlooringType)
	assert.NotEmpty(t, est.Note)
}

func TestChain_FilenameFallback(t *testing.T) {
	chain := NewChain(nil, nil, Config{}, nil)

	res := chain.Recover(context.Background(), nil, "", "plan_30x40_final.pdf")

	assert.Equal(t, SourceFilename, res.Source)
	assert.Equal(t, ConfidenceFilename, res.Confidence)
	assert.InDelta(t, 30*40*0.7, res.TotalSqft, 0.001)
	require.Len(t, res.Warnings, 1)
}

func TestChain_AllSourcesExhausted(t *testing.T) {
	chain := NewChain(nil, nil, Config{}, nil)

	res := chain.Recover(context.Background(), nil, "no dimensions here", "plans.pdf")

	assert.Equal(t, SourceNone, res.Source)
	assert.Equal(t, ConfidenceFailure, res.Confidence)
	assert.Zero(t, res.TotalSqft)
	assert.Empty(t, res.Rooms)
	require.NotEmpty(t, res.Errors)
}

func TestChain_DuplicateRoomLabels(t *testing.T) {
	vision := &fakeVision{answer: `{"Rooms": [
		{"name": "Bed Room", "dimensions": "11' x 10'"},
		{"name": "Bed Room", "dimensions": "12' x 10'"},
		{"name": "Bed Room", "dimensions": "10' x 10'"}
	]}`}
	chain := NewChain(vision, nil, Config{}, nil)

	res := chain.Recover(context.Background(), planImages, "", "")

	require.Len(t, res.Rooms, 3)
	assert.Contains(t, res.Rooms, "Bed Room")
	assert.Contains(t, res.Rooms, "Bed Room 2")
	assert.Contains(t, res.Rooms, "Bed Room 3")
	assert.InDelta(t, 330, res.TotalSqft, 0.001)
}

func TestChain_MissingRoomsWarning(t *testing.T) {
	// Overall 50x30 = 1500 implies ~1050 interior; one 110 sqft room is
	// below the 0.6 threshold (630) and must warn.
	vision := &fakeVision{answer: `{"Bed Room": "11' x 10'", "Overall": "50' x 30'"}`}
	chain := NewChain(vision, nil, Config{}, nil)

	res := chain.Recover(context.Background(), planImages, "", "")

	assert.InDelta(t, 110, res.TotalSqft, 0.001)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "possible missing rooms")
}

func TestChain_DerivedQuantities(t *testing.T) {
	vision := &fakeVision{answer: `{"A Room": "10' x 10'", "B Room": "20' x 10'", "C Room": "10' x 5'"}`}
	chain := NewChain(vision, nil, Config{}, nil)

	res := chain.Recover(context.Background(), planImages, "", "")

	// total 350; baseboard = sqrt(350)*4*0.8; strips = rooms-1.
	assert.InDelta(t, 350, res.TotalSqft, 0.001)
	assert.InDelta(t, 59.87, res.ByType[TypeBaseboardFt], 0.01)
	assert.Equal(t, float64(2), res.ByType[TypeTransitionStrips])
}

func TestChain_ParkingGetsNoUnderlayment(t *testing.T) {
	vision := &fakeVision{answer: `{"Parking": "20' x 10'", "Bed Room": "10' x 10'"}`}
	chain := NewChain(vision, nil, Config{}, nil)

	res := chain.Recover(context.Background(), planImages, "", "")

	assert.InDelta(t, 200, res.ByType[TypeConcreteSqft], 0.001)
	assert.InDelta(t, 100, res.ByType[TypeUnderlaymentSqft], 0.001)
	assert.Equal(t, FlooringConcrete, res.Rooms["Parking"].FlooringType)
}
