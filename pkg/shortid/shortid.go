// Package shortid generates short public identifiers for customer-facing URLs.
package shortid

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// Alphabet is the character set used for order public ids.
const Alphabet = "abcdefgh12345"

// DefaultLength is the length of order public ids.
const DefaultLength = 10

// New returns a random identifier of DefaultLength characters drawn from Alphabet.
func New() (string, error) {
	return Generate(DefaultLength, Alphabet)
}

// Generate returns a random identifier of length n drawn uniformly from alphabet.
func Generate(n int, alphabet string) (string, error) {
	if n <= 0 {
		return "", errors.New("length must be positive")
	}
	if len(alphabet) < 2 {
		return "", errors.New("alphabet needs at least two characters")
	}
	max := big.NewInt(int64(len(alphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		out[i] = alphabet[idx.Int64()]
	}
	return string(out), nil
}

// Valid reports whether id could have been produced by New.
func Valid(id string) bool {
	if len(id) != DefaultLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if !containsByte(Alphabet, id[i]) {
			return false
		}
	}
	return true
}

func containsByte(s string, b byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] == b {
			return true
		}
	}
	return false
}
