package scoring

import (
	"fmt"

	"github.com/p-n-ai/interview-coach/internal/curriculum"
)

type rubric struct {
	interviewer string
	structure   string
	clarity     string
	accuracy    string
	tipArea     string
	followUp    string
}

var rubrics = map[curriculum.Domain]rubric{
	curriculum.DomainTech: {
		interviewer: "a senior software engineer interviewer evaluating a technical interview response",
		structure:   "Is the answer logically organized? Clear problem breakdown?",
		clarity:     "Is it well-written and easy to follow?",
		accuracy:    "Are the technical choices sound and accurate?",
		tipArea:     "tech interviews",
		followUp:    "harder follow-up to test depth",
	},
	curriculum.DomainFinance: {
		interviewer: "a senior finance professional interviewer evaluating a finance interview response",
		structure:   "Is the answer logically organized with a clear analytical framework?",
		clarity:     "Is it well-articulated and easy to follow?",
		accuracy:    "Are the financial concepts, models, and reasoning sound?",
		tipArea:     "finance interviews",
		followUp:    "harder follow-up to test financial depth",
	},
	curriculum.DomainLaw: {
		interviewer: "a senior attorney interviewer evaluating a law interview response",
		structure:   "Is the answer logically organized with clear legal reasoning?",
		clarity:     "Is the argument well-articulated, precise, and persuasive?",
		accuracy:    "Are the legal principles, precedents, and analysis sound?",
		tipArea:     "law interviews",
		followUp:    "harder follow-up to test legal depth",
	},
}

const promptFormat = `You are %s.

Question: %q
Candidate's response: %q

Evaluate on:
1. Structure (1-10): %s
2. Clarity (1-10): %s
3. Technical Accuracy (1-10): %s

Respond ONLY with valid JSON (no markdown, no code fences):
{
  "structureScore": <1-10>,
  "clarityScore": <1-10>,
  "technicalScore": <1-10>,
  "averageScore": <1-10>,
  "strengths": ["<strength1>", "<strength2>", "<strength3>"],
  "improvements": ["<improvement1>", "<improvement2>", "<improvement3>"],
  "coachingTip": "<specific, actionable advice for %s>",
  "followUpQuestion": "<%s>"
}`

// BuildPrompt renders the evaluation prompt for one answer. Unknown domains
// use the tech rubric.
func BuildPrompt(domain curriculum.Domain, question, answer string) string {
	r, ok := rubrics[domain]
	if !ok {
		r = rubrics[curriculum.DomainTech]
	}
	return fmt.Sprintf(promptFormat,
		r.interviewer, question, answer,
		r.structure, r.clarity, r.accuracy,
		r.tipArea, r.followUp,
	)
}
