package ciphers

import (
	"fmt"
	"strings"
	"unicode"
)

// Rail fence directions.
const (
	RailDown = "down"
	RailUp   = "up"
)

// RailFence writes text in a zigzag over a number of rails and reads the
// rails off in order. The zigzag starts on the top rail unless Direction is
// RailUp. With RemoveSpaces set, Encrypt drops whitespace first, so
// decryption yields the plaintext without it.
type RailFence struct {
	Direction    string
	RemoveSpaces bool
}

// Normalize returns plaintext as Encrypt will see it.
func (f RailFence) Normalize(plaintext string) string {
	if !f.RemoveSpaces {
		return plaintext
	}
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, plaintext)
}

// pattern returns the rail of each of n positions.
func (f RailFence) pattern(n, rails int) []int {
	out := make([]int, n)
	rail, step := 0, 1
	if f.Direction == RailUp {
		rail, step = rails-1, -1
	}
	for i := 0; i < n; i++ {
		out[i] = rail
		if rails == 1 {
			continue
		}
		if rail+step < 0 || rail+step >= rails {
			step = -step
		}
		rail += step
	}
	return out
}

func (f RailFence) check(rails int) error {
	if rails < 1 {
		return fmt.Errorf("%w: rail count %d", ErrInvalidKey, rails)
	}
	return nil
}

func (f RailFence) Encrypt(plaintext string, rails int) (string, error) {
	if err := f.check(rails); err != nil {
		return "", err
	}
	src := []rune(f.Normalize(plaintext))
	pat := f.pattern(len(src), rails)
	out := make([]rune, 0, len(src))
	for r := 0; r < rails; r++ {
		for i, rail := range pat {
			if rail == r {
				out = append(out, src[i])
			}
		}
	}
	return string(out), nil
}

func (f RailFence) Decrypt(ciphertext string, rails int) (string, error) {
	if err := f.check(rails); err != nil {
		return "", err
	}
	src := []rune(ciphertext)
	pat := f.pattern(len(src), rails)

	// Walk the rails in order, handing each position the next ciphertext
	// symbol that belongs to its rail.
	out := make([]rune, len(src))
	next := 0
	for r := 0; r < rails; r++ {
		for i, rail := range pat {
			if rail == r {
				out[i] = src[next]
				next++
			}
		}
	}
	return string(out), nil
}
