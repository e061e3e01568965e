package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/menta2k/photocard/pkg/types"
)

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline       = regexp.MustCompile(`(?m)//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// FallbackResult is a centered low-confidence answer, used when the model
// did not return anything usable.
func FallbackResult(label, description string) *types.FocusResult {
	return &types.FocusResult{
		Primary: types.Subject{
			Label:      label,
			Confidence: 0.1,
			Box:        types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5},
			Cx:         0.5,
			Cy:         0.5,
		},
		Description: description,
	}
}

// ParseFocusResult parses the JSON answer of a vision model
func ParseFocusResult(raw string) *types.FocusResult {
	raw = SanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return FallbackResult("unclear image", "model returned non-JSON response")
	}

	var result types.FocusResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return FallbackResult("parse error", "failed to parse model response")
	}
	return &result
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from
// a model answer and keeps the outermost object.
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
