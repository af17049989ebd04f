package ciphers

import (
	"fmt"
	"strings"
	"unicode"
)

const (
	bacon26 = UpperAlphabet
	// The 24-letter variant shares codes between I/J and U/V.
	bacon24 = "ABCDEFGHIKLMNOPQRSTUWXYZ"

	baconGroup = 5
)

// Bacon encodes each letter as five binary symbols.
type Bacon struct {
	// Variant is 24 or 26. Zero means 26.
	Variant int
	A, B    rune
}

func (c Bacon) letters() string {
	if c.Variant == 24 {
		return bacon24
	}
	return bacon26
}

func (c Bacon) check() error {
	if c.Variant != 0 && c.Variant != 24 && c.Variant != 26 {
		return fmt.Errorf("%w: bacon variant %d", ErrInvalidKey, c.Variant)
	}
	if c.A == c.B {
		return fmt.Errorf("%w: bacon symbols must differ", ErrInvalidKey)
	}
	return nil
}

func (c Bacon) fold(r rune) rune {
	r = unicode.ToUpper(r)
	if c.Variant == 24 {
		switch r {
		case 'J':
			return 'I'
		case 'V':
			return 'U'
		}
	}
	return r
}

// Encrypt replaces letters with five-symbol codes. Other characters are
// copied through.
func (c Bacon) Encrypt(plaintext string) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	letters := c.letters()
	var b strings.Builder
	for _, r := range plaintext {
		idx := strings.IndexRune(letters, c.fold(r))
		if idx < 0 || !unicode.IsLetter(r) {
			b.WriteRune(r)
			continue
		}
		for bit := baconGroup - 1; bit >= 0; bit-- {
			if idx&(1<<bit) != 0 {
				b.WriteRune(c.B)
			} else {
				b.WriteRune(c.A)
			}
		}
	}
	return b.String(), nil
}

// Decrypt reads groups of five symbols back into letters, copying other
// characters through in place. Codes past the end of the alphabet decode
// to '?'. A trailing partial group is dropped.
func (c Bacon) Decrypt(ciphertext string) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	letters := c.letters()
	var (
		b     strings.Builder
		code  int
		count int
	)
	for _, r := range ciphertext {
		switch r {
		case c.A:
			code <<= 1
		case c.B:
			code = code<<1 | 1
		default:
			b.WriteRune(r)
			continue
		}
		count++
		if count == baconGroup {
			if code < len(letters) {
				b.WriteByte(letters[code])
			} else {
				b.WriteByte('?')
			}
			code, count = 0, 0
		}
	}
	return b.String(), nil
}

// Coverage is the fraction of non-space characters in text that are one
// of the two symbols, and the balance between them (1 when equally used).
func (c Bacon) Coverage(text string) (coverage, balance float64) {
	var a, b, total int
	for _, r := range text {
		if unicode.IsSpace(r) {
			continue
		}
		total++
		switch r {
		case c.A:
			a++
		case c.B:
			b++
		}
	}
	if total == 0 || a+b == 0 {
		return 0, 0
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(a+b) / float64(total), float64(lo) / float64(hi)
}
