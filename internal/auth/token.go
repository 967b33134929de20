package auth

import (
	"crypto/rand"
	"encoding/hex"
)

// DefaultActivationTokenLength is the number of hex characters in an activation token.
const DefaultActivationTokenLength = 16

// TokenGenerator issues opaque activation tokens rendered as lowercase hex.
type TokenGenerator struct {
	length int
}

// NewTokenGenerator builds a generator for tokens of the given length.
func NewTokenGenerator(length int) *TokenGenerator {
	if length <= 0 {
		length = DefaultActivationTokenLength
	}
	return &TokenGenerator{length: length}
}

// Generate returns a fresh token. An exhausted entropy source is fatal.
func (g *TokenGenerator) Generate() string {
	b := make([]byte, (g.length+1)/2)
	if _, err := rand.Read(b); err != nil {
		panic("auth: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)[:g.length]
}
