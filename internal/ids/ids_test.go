package ids

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// repeatReader yields the same block forever.
type repeatReader struct{ block []byte }

func (r repeatReader) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = r.block[i%len(r.block)]
	}
	return len(p), nil
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy gone") }

func TestGenerate(t *testing.T) {
	id, err := Generate(bytes.NewReader(bytes.Repeat([]byte{0, 1, 2, 61, 62, 255}, 10)))
	require.NoError(t, err)
	assert.Len(t, id, Length)
	for _, r := range id {
		assert.True(t, strings.ContainsRune(Alphabet, r), "unexpected rune %q", r)
	}
	// 0->A 1->B 2->C 61->9 62->A 255 is rejected
	assert.Equal(t, "ABC9AABC9A", id)
}

func TestAllocatorUnique(t *testing.T) {
	a := NewAllocator()
	seen := make(map[string]bool)
	for i := 0; i < 5000; i++ {
		id, err := a.Next()
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate %s", id)
		seen[id] = true
	}
	assert.Equal(t, 5000, a.Len())
}

func TestAllocatorDetectsCollision(t *testing.T) {
	a := NewAllocatorFrom(repeatReader{block: []byte{7}})

	first, err := a.Next()
	require.NoError(t, err)
	assert.Equal(t, "HHHHHHHHHH", first)

	_, err = a.Next()
	assert.ErrorIs(t, err, ErrExhausted)
}

func TestAllocatorEntropyFailure(t *testing.T) {
	_, err := NewAllocatorFrom(failingReader{}).Next()
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrExhausted)
}
