package llm

import "strings"

// ExtractJSONBlock pulls a JSON object or array out of a model response.
//
// Models frequently wrap JSON in markdown code fences or surround it with
// prose. The cleanup strips fences first, then falls back to the outermost
// brace/bracket pair. Returns the empty string when no candidate is found;
// callers decide whether that is an error.
func ExtractJSONBlock(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "{") || strings.HasPrefix(content, "[") {
		return content
	}

	// Prose around the payload: take the outermost object or array.
	for _, pair := range [][2]string{{"{", "}"}, {"[", "]"}} {
		start := strings.Index(content, pair[0])
		end := strings.LastIndex(content, pair[1])
		if start >= 0 && end > start {
			return content[start : end+1]
		}
	}

	return ""
}
