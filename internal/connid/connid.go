// Package connid generates the short, human-shareable codes peers exchange to
// pair manually.
package connid

import (
	"crypto/rand"
	"errors"
	"math/big"
)

// Alphabet is the set of characters codes are drawn from. Codes are
// case-sensitive.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is the length of a connection code unless configured otherwise.
const DefaultLength = 6

var alphabetLen = big.NewInt(int64(len(Alphabet)))

// Generate returns a new code of the given length whose characters are drawn
// independently and uniformly from Alphabet. Candidates for which inUse
// returns true are discarded and redrawn.
//
// inUse is called synchronously; callers that need the returned code to stay
// unique must call Generate while holding the lock that guards the set inUse
// consults, and insert the code before releasing it.
func Generate(length int, inUse func(code string) bool) (string, error) {
	if length <= 0 {
		return "", errors.New("connection id length must be > 0")
	}
	buf := make([]byte, length)
	for {
		for i := range buf {
			n, err := rand.Int(rand.Reader, alphabetLen)
			if err != nil {
				return "", err
			}
			buf[i] = Alphabet[n.Int64()]
		}
		code := string(buf)
		if inUse == nil || !inUse(code) {
			return code, nil
		}
	}
}

// Valid reports whether code has the given length and only uses characters
// from Alphabet.
func Valid(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
