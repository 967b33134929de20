package auth

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

var hexToken = regexp.MustCompile(`^[0-9a-f]+$`)

func TestTokenGenerator_LengthAndAlphabet(t *testing.T) {
	for _, length := range []int{16, 17, 32, 64} {
		tok := NewTokenGenerator(length).Generate()
		assert.Len(t, tok, length)
		assert.Regexp(t, hexToken, tok)
	}
}

func TestTokenGenerator_DefaultLength(t *testing.T) {
	assert.Len(t, NewTokenGenerator(0).Generate(), DefaultActivationTokenLength)
}

func TestTokenGenerator_NoCollisions(t *testing.T) {
	g := NewTokenGenerator(DefaultActivationTokenLength)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		tok := g.Generate()
		_, dup := seen[tok]
		assert.False(t, dup, "duplicate token %q", tok)
		seen[tok] = struct{}{}
	}
}
