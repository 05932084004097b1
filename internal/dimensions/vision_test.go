package dimensions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVisionAnswer_JSONListShape(t *testing.T) {
	answer := `Here are the rooms: {"Bed Rooms": [
		{"name": "Top Bed Room", "dimensions": "11' x 10'"},
		{"name": "Bottom Bed Room", "dimensions": "12' x 10'"}
	]}`

	rooms, overall := ParseVisionAnswer(answer)
	require.Len(t, rooms, 2)
	assert.Nil(t, overall)
	assert.Equal(t, "Top Bed Room", rooms[0].Name)
	assert.InDelta(t, 110, rooms[0].AreaSqft, 0.001)
	assert.Equal(t, "Bottom Bed Room", rooms[1].Name)
	assert.InDelta(t, 120, rooms[1].AreaSqft, 0.001)
}

func TestParseVisionAnswer_JSONKeyVariants(t *testing.T) {
	answer := `{"Rooms": [
		{"Room Name": "Kitchen", "Length": "8", "Width": "9"},
		{"room": "Bath", "Dimensions": "9' x 8'"}
	]}`

	rooms, _ := ParseVisionAnswer(answer)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Kitchen", rooms[0].Name)
	assert.InDelta(t, 72, rooms[0].AreaSqft, 0.001)
	assert.Equal(t, "Bath", rooms[1].Name)
	assert.InDelta(t, 72, rooms[1].AreaSqft, 0.001)
}

func TestParseVisionAnswer_JSONUnnamedItemsGetIndexedNames(t *testing.T) {
	answer := `{"Bed Rooms": [{"dimensions": "11' x 10'"}, {"dimensions": "10' x 10'"}]}`

	rooms, _ := ParseVisionAnswer(answer)
	require.Len(t, rooms, 2)
	assert.Equal(t, "Bed Rooms 1", rooms[0].Name)
	assert.Equal(t, "Bed Rooms 2", rooms[1].Name)
}

func TestParseVisionAnswer_JSONScalarAndObjectShapes(t *testing.T) {
	answer := `{"Drawing Room": "14' x 12'", "Kitchen": {"Dimensions": "8' x 9'"}}`

	rooms, _ := ParseVisionAnswer(answer)
	require.Len(t, rooms, 2)
	// Sorted top-level keys: Drawing Room before Kitchen.
	assert.Equal(t, "Drawing Room", rooms[0].Name)
	assert.Equal(t, "Kitchen", rooms[1].Name)
}

func TestParseVisionAnswer_JSONOverallSeparated(t *testing.T) {
	answer := `{"Bed Room": "11' x 10'", "Overall Dimensions": "50' x 30'"}`

	rooms, overall := ParseVisionAnswer(answer)
	require.Len(t, rooms, 1)
	require.NotNil(t, overall)
	assert.InDelta(t, 1500, overall.AreaSqft, 0.001)
}

func TestParseVisionAnswer_TextFallback(t *testing.T) {
	answer := "Bedroom: 11' x 10'\nKitchen: 8' x 9'\nThe overall floor plan is 50' x 30'."

	rooms, overall := ParseVisionAnswer(answer)
	require.GreaterOrEqual(t, len(rooms), 2)
	require.NotNil(t, overall)
	assert.InDelta(t, 1500, overall.AreaSqft, 0.001)
}

func TestParseVisionAnswer_TextFallbackFeetInches(t *testing.T) {
	answer := "Bed Room: 9' 3\" x 10' 3\"\nKitchen: 8' x 9'"

	rooms, _ := ParseVisionAnswer(answer)
	require.Len(t, rooms, 2)
	assert.InDelta(t, 94.81, rooms[0].AreaSqft, 0.001)
	assert.InDelta(t, 72, rooms[1].AreaSqft, 0.001)
}

func TestParseVisionAnswer_NoRooms(t *testing.T) {
	rooms, overall := ParseVisionAnswer("I cannot determine any dimensions from this image.")
	assert.Empty(t, rooms)
	assert.Nil(t, overall)
}

func TestParseVisionAnswer_FeetInches(t *testing.T) {
	answer := `{"Bed Room": "9' 3\" x 10' 3\""}`

	rooms, _ := ParseVisionAnswer(answer)
	require.Len(t, rooms, 1)
	assert.InDelta(t, 9.25, rooms[0].LengthFt, 0.001)
	assert.InDelta(t, 10.25, rooms[0].WidthFt, 0.001)
}
