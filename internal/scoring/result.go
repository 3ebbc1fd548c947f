// Package scoring turns a free-text interview answer into a scored Result by
// prompting an AI provider and validating what it returns.
package scoring

import (
	"github.com/p-n-ai/interview-coach/internal/progress"
)

// Result is one evaluated answer.
type Result struct {
	StructureScore   float64  `json:"structureScore"`
	ClarityScore     float64  `json:"clarityScore"`
	TechnicalScore   float64  `json:"technicalScore"`
	AverageScore     float64  `json:"averageScore"`
	Strengths        []string `json:"strengths"`
	Improvements     []string `json:"improvements"`
	CoachingTip      string   `json:"coachingTip"`
	FollowUpQuestion string   `json:"followUpQuestion"`
	// Fallback is set when the result is the canned one used after the
	// provider failed.
	Fallback bool `json:"fallback,omitempty"`
}

// Score returns the tuple recorded into learning path progress.
func (r Result) Score() progress.Score {
	return progress.Score{
		StructureScore: r.StructureScore,
		ClarityScore:   r.ClarityScore,
		TechnicalScore: r.TechnicalScore,
		AverageScore:   r.AverageScore,
	}
}

// Label returns the display band for the average score.
func (r Result) Label() string {
	return Label(r.AverageScore)
}

// Label maps a score to Excellent, Good or Needs Work.
func Label(score float64) string {
	switch {
	case score >= 8:
		return "Excellent"
	case score >= 6:
		return "Good"
	default:
		return "Needs Work"
	}
}

// FallbackResult is returned in place of a provider result when scoring
// fails and fallback is enabled.
func FallbackResult() Result {
	return Result{
		StructureScore: 7,
		ClarityScore:   8,
		TechnicalScore: 6,
		AverageScore:   7,
		Strengths: []string{
			"Good problem decomposition",
			"Clear logical flow",
			"Mentioned relevant technologies",
		},
		Improvements: []string{
			"Could discuss trade-offs more explicitly",
			"Missing error handling considerations",
			"Add more specific technical details",
		},
		CoachingTip:      "Start with clarifying requirements before jumping into the solution.",
		FollowUpQuestion: "How would you scale this system to handle 10x the current traffic?",
		Fallback:         true,
	}
}
