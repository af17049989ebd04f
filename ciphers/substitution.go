package ciphers

import (
	"fmt"
	"strings"
)

// UpperAlphabet is the 26-letter substitution alphabet.
const UpperAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Substitution is a monoalphabetic cipher over an ASCII alphabet. A key is
// a permutation of the alphabet: plaintext Alphabet[i] encrypts to key[i].
// Lower-case input is folded when the alphabet is upper case only, and the
// case is restored on output.
type Substitution struct {
	Alphabet string
}

func (s Substitution) alphabet() string {
	if s.Alphabet == "" {
		return UpperAlphabet
	}
	return s.Alphabet
}

// ValidateKey checks that key permutes the alphabet.
func (s Substitution) ValidateKey(key string) error {
	alpha := s.alphabet()
	if len(key) != len(alpha) {
		return fmt.Errorf("%w: substitution key has %d symbols, want %d", ErrInvalidKey, len(key), len(alpha))
	}
	seen := make(map[byte]bool, len(key))
	for i := 0; i < len(key); i++ {
		c := key[i]
		if strings.IndexByte(alpha, c) < 0 {
			return fmt.Errorf("%w: %q is not in the alphabet", ErrInvalidKey, c)
		}
		if seen[c] {
			return fmt.Errorf("%w: %q repeats", ErrInvalidKey, c)
		}
		seen[c] = true
	}
	return nil
}

func (s Substitution) Encrypt(plaintext, key string) (string, error) {
	if err := s.ValidateKey(key); err != nil {
		return "", err
	}
	return s.apply(plaintext, s.alphabet(), key), nil
}

func (s Substitution) Decrypt(ciphertext, key string) (string, error) {
	if err := s.ValidateKey(key); err != nil {
		return "", err
	}
	return s.apply(ciphertext, key, s.alphabet()), nil
}

// Apply maps from[i] to to[i] without validating; callers on a hot path
// that already hold a valid permutation use it directly.
func (s Substitution) Apply(text, from, to string) string {
	return s.apply(text, from, to)
}

func (s Substitution) apply(text, from, to string) string {
	var table [256]int16
	for i := range table {
		table[i] = -1
	}
	for i := 0; i < len(from); i++ {
		table[from[i]] = int16(to[i])
	}

	out := []byte(text)
	for i, c := range out {
		if m := table[c]; m >= 0 {
			out[i] = byte(m)
			continue
		}
		if c >= 'a' && c <= 'z' {
			if m := table[c-'a'+'A']; m >= 0 {
				out[i] = toLower(byte(m))
			}
		}
	}
	return string(out)
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c - 'A' + 'a'
	}
	return c
}

// InvertKey returns the decryption permutation of key, as a key that
// encrypts with it.
func (s Substitution) InvertKey(key string) string {
	alpha := s.alphabet()
	inv := make([]byte, len(alpha))
	for i := 0; i < len(key); i++ {
		inv[strings.IndexByte(alpha, key[i])] = alpha[i]
	}
	return string(inv)
}
