package search

import (
	"errors"
	"strings"
	"unicode"

	"codebreaker/ciphers"
)

// DefaultPassphrases are the dictionary guesses for stream ciphers.
var DefaultPassphrases = []string{
	"key", "secret", "password", "123456", "admin", "test", "rc4", "chacha",
	"cipher", "crypto", "letmein", "qwerty", "abc123", "monkey", "dragon",
	"default", "root", "pass", "hello", "Wiki",
}

// passphraseVariants expands a word list with the usual human tweaks,
// keeping first occurrences in order.
func passphraseVariants(words []string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(w string) {
		if w != "" && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	for _, w := range words {
		add(w)
	}
	for _, w := range words {
		add(strings.ToLower(w))
		add(strings.ToUpper(w))
		add(w + "1")
		add(w + "123")
		add("1" + w)
	}
	return out
}

// StreamShape runs a dictionary attack on an XOR stream cipher. Ciphertext
// is textual in Format.
type StreamShape struct {
	Cipher      ciphers.Stream
	Format      ciphers.Format
	Passphrases []string
	Nonce       []byte
}

func (s StreamShape) Name() string { return s.Cipher.Name }

func (s StreamShape) format() ciphers.Format {
	if s.Format == "" {
		return ciphers.FormatHex
	}
	return s.Format
}

func (s StreamShape) KeySpace(ciphertext string) (KeySpace, error) {
	data, err := ciphers.Decode(s.format(), ciphertext)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return newListSpace(nil), nil
	}
	words := s.Passphrases
	if len(words) == 0 {
		words = DefaultPassphrases
	}
	variants := passphraseVariants(words)
	keys := make([]Key, len(variants))
	for i, w := range variants {
		keys[i] = PassphraseKey{Index: i, Passphrase: w, Nonce: s.Nonce}
	}
	return newListSpace(keys), nil
}

func (s StreamShape) Encrypt(plaintext string, key Key) (string, error) {
	k, ok := key.(PassphraseKey)
	if !ok {
		return "", wrongKey(s.Name(), key)
	}
	out, err := s.Cipher.XOR([]byte(plaintext), []byte(k.Passphrase), k.Nonce)
	if err != nil {
		return "", err
	}
	return ciphers.Encode(s.format(), out), nil
}

func (s StreamShape) Decrypt(ciphertext string, key Key) (string, error) {
	k, ok := key.(PassphraseKey)
	if !ok {
		return "", wrongKey(s.Name(), key)
	}
	data, err := ciphers.Decode(s.format(), ciphertext)
	if err != nil {
		return "", err
	}
	out, err := s.Cipher.XOR(data, []byte(k.Passphrase), k.Nonce)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// BlockShape only tries a short list of weak keys. Brute force over the
// real key space is out of reach, so when none of them yields plausible
// text the run reports ErrNoCandidate.
type BlockShape struct {
	Cipher ciphers.Block
	Format ciphers.Format
}

func (s BlockShape) Name() string { return "block" }

func (s BlockShape) format() ciphers.Format {
	if s.Format == "" {
		return ciphers.FormatHex
	}
	return s.Format
}

// weakKeys lists the patterns careless key generation produces.
func weakKeys(n int) []BlockKey {
	fill := func(f func(i int) byte) []byte {
		b := make([]byte, n)
		for i := range b {
			b[i] = f(i)
		}
		return b
	}
	patterns := []struct {
		name string
		key  []byte
	}{
		{"all-zero", fill(func(int) byte { return 0x00 })},
		{"all-ff", fill(func(int) byte { return 0xff })},
		{"alternating-aa55", fill(func(i int) byte { return []byte{0xaa, 0x55}[i%2] })},
		{"alternating-55aa", fill(func(i int) byte { return []byte{0x55, 0xaa}[i%2] })},
		{"ascending", fill(func(i int) byte { return byte(i) })},
		{"descending", fill(func(i int) byte { return byte(n - 1 - i) })},
		{"repeated-01", fill(func(int) byte { return 0x01 })},
		{"nibbles-0f", fill(func(int) byte { return 0x0f })},
		{"nibbles-f0", fill(func(int) byte { return 0xf0 })},
		{"ascii-digits", fill(func(i int) byte { return '0' + byte(i%10) })},
	}
	out := make([]BlockKey, len(patterns))
	for i, p := range patterns {
		out[i] = BlockKey{Index: i, Name: p.name, Bytes: p.key}
	}
	return out
}

func (s BlockShape) KeySpace(ciphertext string) (KeySpace, error) {
	data, err := ciphers.Decode(s.format(), ciphertext)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return newListSpace(nil), nil
	}
	weak := weakKeys(s.Cipher.BlockSize)
	keys := make([]Key, len(weak))
	for i, k := range weak {
		keys[i] = k
	}
	return newListSpace(keys), nil
}

func (s BlockShape) Encrypt(plaintext string, key Key) (string, error) {
	k, ok := key.(BlockKey)
	if !ok {
		return "", wrongKey(s.Name(), key)
	}
	out, err := s.Cipher.Encrypt([]byte(plaintext), k.Bytes)
	if err != nil {
		return "", err
	}
	return ciphers.Encode(s.format(), out), nil
}

// Decrypt reports a wrong key through ciphers.ErrBadPadding; the engine
// treats that as a miss, not a failure.
func (s BlockShape) Decrypt(ciphertext string, key Key) (string, error) {
	k, ok := key.(BlockKey)
	if !ok {
		return "", wrongKey(s.Name(), key)
	}
	data, err := ciphers.Decode(s.format(), ciphertext)
	if err != nil {
		return "", err
	}
	out, err := s.Cipher.Decrypt(data, k.Bytes)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// minPrintable is the share of printable bytes a block plaintext needs.
const minPrintable = 0.9

func (s BlockShape) Plausible(plaintext string) bool {
	if plaintext == "" {
		return false
	}
	printable := 0
	for _, b := range []byte(plaintext) {
		if b < unicode.MaxASCII && (unicode.IsPrint(rune(b)) || unicode.IsSpace(rune(b))) {
			printable++
		}
	}
	return float64(printable)/float64(len(plaintext)) >= minPrintable
}

// isMiss reports decrypt errors that only mean "wrong key".
func isMiss(err error) bool {
	return errors.Is(err, ciphers.ErrBadPadding)
}
