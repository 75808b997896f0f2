// Package roomcode generates short, human-enterable room codes. Codes use an
// uppercase Crockford-style base32 alphabet with the easily-confused letters
// removed so they survive being read aloud or typed from a phone screen.
package roomcode

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// Alphabet deliberately omits I, L, O and U to avoid 1/0 confusion and
// accidental words.
const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Length is the number of characters in a generated code.
const Length = 6

// RandSource interface for dependency injection of randomness
type RandSource interface {
	IntN(n int) int
}

// Generator handles room code generation with configurable randomness
type Generator struct {
	randSource RandSource
}

// NewGenerator creates a new generator. A nil RandSource falls back to
// crypto/rand.
func NewGenerator(randSource RandSource) *Generator {
	return &Generator{randSource: randSource}
}

// Generate creates a new room code using crypto/rand.
func Generate() string {
	return NewGenerator(nil).Generate()
}

// Generate creates a new room code using the generator's RandSource.
func (g *Generator) Generate() string {
	buf := make([]byte, Length)

	if g.randSource != nil {
		for i := range buf {
			buf[i] = alphabet[g.randSource.IntN(len(alphabet))]
		}
		return string(buf)
	}

	raw := make([]byte, Length)
	if _, err := rand.Read(raw); err != nil {
		panic("failed to generate random bytes: " + err.Error())
	}
	for i, b := range raw {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}

// Normalize upper-cases a code and maps the characters the alphabet omits to
// their look-alikes so that "abc1o2" matches "ABC102".
func Normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	code = strings.ReplaceAll(code, "I", "1")
	code = strings.ReplaceAll(code, "L", "1")
	code = strings.ReplaceAll(code, "O", "0")
	code = strings.ReplaceAll(code, "U", "V")
	return code
}

// Validate checks that a code has the expected length and alphabet.
func Validate(code string) error {
	if len(code) != Length {
		return fmt.Errorf("room code must be exactly %d characters, got %d", Length, len(code))
	}
	for i, ch := range code {
		if !strings.ContainsRune(alphabet, ch) {
			return fmt.Errorf("invalid character %c at position %d", ch, i)
		}
	}
	return nil
}
