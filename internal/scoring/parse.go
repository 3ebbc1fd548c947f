package scoring

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ErrMalformedResult is returned when the provider output is not a usable
// scoring object.
var ErrMalformedResult = errors.New("malformed scoring result")

// Presence and types only. Score ranges are trusted as given.
const resultSchema = `{
  "type": "object",
  "required": ["structureScore", "clarityScore", "technicalScore", "averageScore"],
  "properties": {
    "structureScore":   {"type": "number"},
    "clarityScore":     {"type": "number"},
    "technicalScore":   {"type": "number"},
    "averageScore":     {"type": "number"},
    "strengths":        {"type": "array", "items": {"type": "string"}},
    "improvements":     {"type": "array", "items": {"type": "string"}},
    "coachingTip":      {"type": "string"},
    "followUpQuestion": {"type": "string"}
  }
}`

var schema = mustSchema(resultSchema)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("compile scoring schema: %v", err))
	}
	return s
}

var fenceRe = regexp.MustCompile("(?i)```(json)?\\s*")

// StripFences removes markdown code fences some models wrap JSON in.
func StripFences(s string) string {
	return strings.TrimSpace(fenceRe.ReplaceAllString(s, ""))
}

// ParseResult extracts a Result from raw provider output.
func ParseResult(raw string) (Result, error) {
	body := StripFences(raw)
	if body == "" {
		return Result{}, fmt.Errorf("%w: empty response", ErrMalformedResult)
	}

	res, err := schema.Validate(gojsonschema.NewStringLoader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Result{}, fmt.Errorf("%w: %s", ErrMalformedResult, strings.Join(msgs, "; "))
	}

	var r Result
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	r.Fallback = false
	if r.Strengths == nil {
		r.Strengths = []string{}
	}
	if r.Improvements == nil {
		r.Improvements = []string{}
	}
	return r, nil
}
