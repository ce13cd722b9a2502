package client

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/pinthoz/analogic-watch-detector/pkg/types"
)

var (
	reBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLineComment  = regexp.MustCompile(`(?m)^\s*//.*$`)
	reInline       = regexp.MustCompile(`(?m)//.*$`)
	reTrailing     = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParseLandmarkResult parses the JSON answer of a vision model. Answers that
// are not JSON yield an empty result rather than an error so the caller sees
// "no landmarks" and can fall back.
func ParseLandmarkResult(raw string) (*types.LandmarkResult, error) {
	raw = SanitizeModelJSON(raw)

	if strings.HasPrefix(raw, "[") {
		var lms []types.Landmark
		if err := json.Unmarshal([]byte(raw), &lms); err == nil {
			return &types.LandmarkResult{Landmarks: lms}, nil
		}
	}

	if !strings.HasPrefix(raw, "{") {
		return &types.LandmarkResult{Description: "Model returned non-JSON response"}, nil
	}

	var result types.LandmarkResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return &types.LandmarkResult{Description: "Failed to parse model response"}, nil
	}
	return &result, nil
}

// SanitizeModelJSON removes code fences, comments, and trailing commas from a model answer
func SanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	// Strip triple-backtick fences if present
	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.Trim(raw, "`")

	raw = reBlockComment.ReplaceAllString(raw, "")
	raw = reLineComment.ReplaceAllString(raw, "")
	raw = reInline.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")
	raw = strings.TrimSpace(raw)

	// Keep only the outermost {...} unless the answer is a bare array
	if strings.HasPrefix(raw, "[") {
		if end := strings.LastIndex(raw, "]"); end > 0 {
			return raw[:end+1]
		}
	}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}
