// Package ids generates the short alphanumeric identifiers used throughout a
// project document and guarantees they are unique within one document.
package ids

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
)

const (
	// Alphabet is the set of characters identifiers are drawn from.
	Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	// Length is the fixed identifier length.
	Length = 10

	maxAttempts = 16
	// bytes at or above this value are rejected so every symbol is equally likely
	unbiasedLimit = 256 - 256%len(Alphabet)
)

// ErrExhausted means the allocator could not find a fresh identifier.
var ErrExhausted = errors.New("ids: no unique identifier after retries")

// Generate draws one identifier from src.
func Generate(src io.Reader) (string, error) {
	out := make([]byte, 0, Length)
	buf := make([]byte, Length*2)
	for len(out) < Length {
		if _, err := io.ReadFull(src, buf); err != nil {
			return "", fmt.Errorf("read entropy: %w", err)
		}
		for _, b := range buf {
			if int(b) >= unbiasedLimit {
				continue
			}
			out = append(out, Alphabet[int(b)%len(Alphabet)])
			if len(out) == Length {
				break
			}
		}
	}
	return string(out), nil
}

// Allocator hands out identifiers that are unique within its lifetime. One
// Allocator belongs to one document; it is not safe for concurrent use.
type Allocator struct {
	src  io.Reader
	seen map[string]struct{}
}

// NewAllocator returns an allocator reading from crypto/rand.
func NewAllocator() *Allocator {
	return NewAllocatorFrom(rand.Reader)
}

// NewAllocatorFrom returns an allocator reading from src.
func NewAllocatorFrom(src io.Reader) *Allocator {
	return &Allocator{src: src, seen: make(map[string]struct{})}
}

// Next returns a fresh identifier, retrying on collision.
func (a *Allocator) Next() (string, error) {
	for i := 0; i < maxAttempts; i++ {
		id, err := Generate(a.src)
		if err != nil {
			return "", err
		}
		if _, dup := a.seen[id]; dup {
			continue
		}
		a.seen[id] = struct{}{}
		return id, nil
	}
	return "", ErrExhausted
}

// Len is the number of identifiers allocated so far.
func (a *Allocator) Len() int {
	return len(a.seen)
}
