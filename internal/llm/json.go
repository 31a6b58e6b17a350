package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// ExtractJSON pulls the JSON payload out of a model response, handling
// markdown code fences and surrounding prose. Returns "" when no JSON-like
// content is found.
func ExtractJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") || strings.HasPrefix(raw, "[") {
		return raw
	}

	// Fenced code block, with or without a language tag.
	if strings.Contains(raw, "```") {
		var inBlock bool
		var blockLines []string
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "```") {
				inBlock = !inBlock
				continue
			}
			if inBlock {
				blockLines = append(blockLines, line)
			}
		}
		if len(blockLines) > 0 {
			return strings.TrimSpace(strings.Join(blockLines, "\n"))
		}
	}

	// Fall back to the first balanced {...} or [...] span.
	start := strings.IndexAny(raw, "{[")
	if start == -1 {
		return ""
	}
	open := raw[start]
	var closing byte = '}'
	if open == '[' {
		closing = ']'
	}

	depth := 0
	for i := start; i < len(raw); i++ {
		switch raw[i] {
		case open:
			depth++
		case closing:
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return raw[start:]
}

// DecodeResponse extracts JSON from a raw model response and unmarshals it
// into target, running the jsonrepair library when the payload does not
// parse as-is. Any failure is a malformed-response error; parse failures
// indicate a bad model output, not a transient fault, so they are never
// retried.
func DecodeResponse(raw string, target interface{}) error {
	jsonStr := ExtractJSON(raw)
	if jsonStr == "" {
		return fmt.Errorf("%w: no JSON found in response", ErrMalformedResponse)
	}

	if err := json.Unmarshal([]byte(jsonStr), target); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(jsonStr)
	if err != nil {
		return fmt.Errorf("%w: repair failed: %v", ErrMalformedResponse, err)
	}
	if err := json.Unmarshal([]byte(repaired), target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}
