package timing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeEvenSpacing(t *testing.T) {
	words := Synthesize("A B C", 6)

	require.Len(t, words, 4)
	assert.Equal(t, Word{Text: "A", StartTime: 0, Duration: 2, Kind: Spoken}, words[0])
	assert.Equal(t, Word{Text: "B", StartTime: 2, Duration: 2, Kind: Spoken}, words[1])
	assert.Equal(t, Word{Text: "C", StartTime: 4, Duration: 2, Kind: Spoken}, words[2])
	assert.Equal(t, Word{Text: "", StartTime: 6, Duration: 0, Kind: EndMarker}, words[3])
}

func TestSynthesizeWhitespaceRuns(t *testing.T) {
	words := Synthesize("  Hello \n\t world  ", 4)

	require.Len(t, words, 3)
	assert.Equal(t, "Hello", words[0].Text)
	assert.Equal(t, "world", words[1].Text)
	assert.Equal(t, 2.0, words[1].StartTime)
	assert.Equal(t, EndMarker, words[2].Kind)
	assert.Equal(t, 4.0, words[2].StartTime)
}

func TestSynthesizeEmptyScriptKeepsMarker(t *testing.T) {
	for _, script := range []string{"", "   ", "\n\t"} {
		words := Synthesize(script, 3)
		require.Len(t, words, 1, "%q", script)
		assert.Equal(t, Word{StartTime: 3, Kind: EndMarker}, words[0])
	}
}

func TestSynthesizeContiguous(t *testing.T) {
	scripts := []string{
		"one",
		"the quick brown fox jumps over the lazy dog",
		"안녕하세요 여러분 오늘은 좋은 날입니다",
	}
	for _, script := range scripts {
		const total = 7.3
		words := Synthesize(script, total)

		end := 0.0
		for i, w := range words[:len(words)-1] {
			assert.InDelta(t, end, w.StartTime, 1e-9, "word %d of %q", i, script)
			assert.Greater(t, w.Duration, 0.0)
			end = w.StartTime + w.Duration
		}
		assert.InDelta(t, total, end, 1e-9)

		last := words[len(words)-1]
		assert.Equal(t, EndMarker, last.Kind)
		assert.Equal(t, total, last.StartTime)
		assert.Zero(t, last.Duration)
	}
}

func TestTokenizeNormalizes(t *testing.T) {
	// decomposed hangul (NFD) becomes the composed form
	decomposed := "\u1112\u1161\u11ab"
	assert.Equal(t, []string{"\ud55c"}, Tokenize(decomposed))
}
