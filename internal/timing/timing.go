// Package timing turns narration text and a known clip length into an evenly
// spaced per-word caption timeline.
package timing

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Kind distinguishes spoken words from the terminal marker.
type Kind int

const (
	Spoken    Kind = 0
	EndMarker Kind = 2
)

// Word is one caption timing unit. Text is empty for the end marker.
type Word struct {
	Text      string
	StartTime float64
	Duration  float64
	Kind      Kind
}

// Tokenize splits narration on runs of whitespace after NFC normalization.
func Tokenize(script string) []string {
	return strings.Fields(norm.NFC.String(script))
}

// Synthesize spreads duration evenly over the words of script. The result
// always ends with exactly one zero-length end marker at t = duration; an
// empty script yields only that marker.
func Synthesize(script string, duration float64) []Word {
	if duration < 0 {
		duration = 0
	}
	tokens := Tokenize(script)
	words := make([]Word, 0, len(tokens)+1)
	if n := len(tokens); n > 0 {
		step := duration / float64(n)
		for i, tok := range tokens {
			words = append(words, Word{
				Text:      tok,
				StartTime: float64(i) * step,
				Duration:  step,
				Kind:      Spoken,
			})
		}
	}
	return append(words, Word{StartTime: duration, Kind: EndMarker})
}
