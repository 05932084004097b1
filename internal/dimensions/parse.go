package dimensions

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// feetInchesExpr matches one side of a dimension pair: decimal feet with
// optional inches, quote marks optional ("11", "11.5", "9 3", "9' 3\"").
const feetInchesExpr = `\d+(?:\.\d+)?(?:\s*['"]?\s*\d+)?\s*['"]?`

// dimPattern matches a length-by-width pair like "11' x 10'", "9' 3\" x 10'
// 3\"", or "11x10". Each side captures its quote marks so inches survive
// into parseFeetInches.
var dimPattern = regexp.MustCompile(`(?i)(` + feetInchesExpr + `)\s*[x×]\s*(` + feetInchesExpr + `)`)

// ParseDimension parses a dimension string like "11' x 10'" or
// "9' 3\" x 10' 3\"" into length, width, and area in feet, all rounded to
// two decimals. Inches convert at 12 per foot, so "9' 3\"" becomes 9.25.
// Returns ok=false when the string has no parsable length-by-width pair.
func ParseDimension(dimStr string) (lengthFt, widthFt, areaSqft float64, ok bool) {
	m := dimPattern.FindStringSubmatch(dimStr)
	if m == nil {
		return 0, 0, 0, false
	}

	lengthFt, err := parseFeetInches(m[1])
	if err != nil {
		return 0, 0, 0, false
	}
	widthFt, err = parseFeetInches(m[2])
	if err != nil {
		return 0, 0, 0, false
	}

	return round2(lengthFt), round2(widthFt), round2(lengthFt * widthFt), true
}

// parseFeetInches converts "9", "9 3" or "9' 3\"" to decimal feet.
func parseFeetInches(s string) (float64, error) {
	clean := strings.NewReplacer("'", " ", `"`, " ", "ft", " ").Replace(s)
	parts := strings.Fields(clean)
	if len(parts) == 0 {
		return 0, strconv.ErrSyntax
	}

	feet, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, err
	}
	if len(parts) >= 2 {
		inches, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return 0, err
		}
		feet += inches / 12.0
	}
	return feet, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
