package scoring

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// DefaultMinAnswerLength is the shortest answer, in characters, worth scoring.
const DefaultMinAnswerLength = 20

// ErrAnswerTooShort is returned for answers below the minimum length.
var ErrAnswerTooShort = errors.New("answer too short")

// NormalizeAnswer composes the answer to NFC and trims surrounding space, so
// that length checks count what the user sees.
func NormalizeAnswer(answer string) string {
	return strings.TrimSpace(norm.NFC.String(answer))
}

// CheckAnswer normalizes answer and rejects it if it has fewer than minLen runes.
func CheckAnswer(answer string, minLen int) (string, error) {
	a := NormalizeAnswer(answer)
	if n := utf8.RuneCountInString(a); n < minLen {
		return "", fmt.Errorf("%w: %d characters, need at least %d", ErrAnswerTooShort, n, minLen)
	}
	return a, nil
}
