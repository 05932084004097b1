package dimensions

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// VisionQuestion is the prompt asked of the vision-language model. It
// enumerates common room names because models reliably skip unprompted rooms,
// and asks for the overall plan dimensions for the missing-room check.
const VisionQuestion = "List EVERY SINGLE room in this floor plan with their exact dimensions. " +
	"Include ALL rooms such as: Bed Room (there may be multiple - list each one separately), " +
	"Drawing Room, Dining Room, Kitchen, Bath/Toilet, Pooja, Store, Parking, and any other rooms. " +
	"For each room, provide: Room Name: Length × Width (include inches if present, e.g., '9' 3\" × 10' 3\"'). " +
	"If there are multiple rooms with the same name, distinguish them (e.g., 'Top Bed Room', 'Bottom Bed Room'). " +
	"Also provide the overall dimensions of the entire floor plan if visible."

// RoomEntry is one room parsed from a vision answer, in answer order.
// Duplicate names are preserved; the chain disambiguates them.
type RoomEntry struct {
	Name     string
	LengthFt float64
	WidthFt  float64
	AreaSqft float64
	Raw      string
}

// roomLinePattern matches "Room Name: 11' x 10'" lines in free text. Each
// side captures its quote marks so feet-inch values survive reparsing.
var roomLinePattern = regexp.MustCompile(`(?i)([A-Za-z\s]+(?:Room|Area|Space|Bath|Toilet|Kitchen|Dining|Drawing|Pooja|Store|Parking|Bedroom|Bed\s+Room)?):?\s*(` + feetInchesExpr + `)\s*[x×]\s*(` + feetInchesExpr + `)`)

// overallPattern matches overall-plan dimensions mentioned in prose.
var overallPattern = regexp.MustCompile(`(?i)(?:overall|total|entire|whole).*?(` + feetInchesExpr + `)\s*[x×]\s*(` + feetInchesExpr + `)`)

// ParseVisionAnswer extracts room dimensions from a vision-language answer.
//
// Models answer in wildly inconsistent shapes, so parsing is two-pass: first
// the answer is treated as JSON (several key spellings per field are
// accepted), then as free text with "Room: L x W" lines. The overall-plan
// dimensions, when present, come back separately and never count toward room
// totals.
func ParseVisionAnswer(answer string) (rooms []RoomEntry, overall *RoomEntry) {
	if rooms, overall = parseJSONAnswer(answer); len(rooms) > 0 {
		return rooms, overall
	}

	// Free-text pass.
	for _, m := range roomLinePattern.FindAllStringSubmatch(answer, -1) {
		name := strings.TrimSpace(m[1])
		raw := m[2] + " x " + m[3]
		if l, w, a, ok := ParseDimension(raw); ok {
			rooms = append(rooms, RoomEntry{Name: name, LengthFt: l, WidthFt: w, AreaSqft: a, Raw: raw})
		}
	}

	if overall == nil {
		if m := overallPattern.FindStringSubmatch(answer); m != nil {
			raw := m[1] + " x " + m[2]
			if l, w, a, ok := ParseDimension(raw); ok {
				overall = &RoomEntry{Name: "overall", LengthFt: l, WidthFt: w, AreaSqft: a, Raw: raw}
			}
		}
	}

	return rooms, overall
}

// parseJSONAnswer handles the JSON shapes models produce:
//
//	{"Bed Rooms": [{"name": "...", "dimensions": "..."}]}
//	{"Bed Room": {"Dimensions": "11' x 10'"}}
//	{"Bed Room": "11' x 10'"}
//	{"Rooms": [{"Room Name": "...", "Length": "...", "Width": "..."}]}
//
// Top-level keys are visited in sorted order so results are deterministic.
func parseJSONAnswer(answer string) (rooms []RoomEntry, overall *RoomEntry) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return nil, nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(answer[start:end+1]), &data); err != nil {
		return nil, nil
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := data[key]
		if isOverallKey(key) {
			if entry := entryFromValue("overall", value); entry != nil {
				overall = entry
			}
			continue
		}

		switch v := value.(type) {
		case []any:
			for idx, item := range v {
				obj, ok := item.(map[string]any)
				if !ok {
					continue
				}
				name := firstField(obj, "name", "Name", "room_name", "Room Name", "room")
				if name == "" {
					name = fmt.Sprintf("%s %d", key, idx+1)
				}
				if entry := entryFromValue(name, obj); entry != nil {
					rooms = append(rooms, *entry)
				}
			}
		case map[string]any, string:
			if entry := entryFromValue(key, v); entry != nil {
				rooms = append(rooms, *entry)
			}
		}
	}

	return rooms, overall
}

func isOverallKey(key string) bool {
	l := strings.ToLower(key)
	return strings.Contains(l, "overall") || strings.Contains(l, "total") || strings.Contains(l, "entire")
}

// entryFromValue builds a RoomEntry from a JSON value holding dimensions,
// either a dimension string or an object with dimension fields.
func entryFromValue(name string, value any) *RoomEntry {
	var dim string
	switch v := value.(type) {
	case string:
		dim = v
	case map[string]any:
		dim = firstField(v, "dimensions", "Dimensions", "dimension")
		if dim == "" {
			length := firstField(v, "Length", "length")
			width := firstField(v, "Width", "width")
			if length != "" && width != "" {
				dim = length + " x " + width
			}
		}
	}
	if dim == "" {
		return nil
	}

	l, w, a, ok := ParseDimension(dim)
	if !ok {
		return nil
	}
	return &RoomEntry{Name: name, LengthFt: l, WidthFt: w, AreaSqft: a, Raw: dim}
}

// firstField returns the first non-empty field among keys, stringifying
// numeric values.
func firstField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := obj[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%g", v)
		}
	}
	return ""
}
