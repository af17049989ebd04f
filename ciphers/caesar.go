package ciphers

import "strings"

// CaesarAlphabet is the default 52-symbol dictionary: upper case then lower
// case. Shifting across it moves letters between cases, so shifts 0..51 are
// all distinct.
const CaesarAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Caesar shifts each dictionary symbol forward by the key. Symbols outside
// the dictionary pass through unchanged.
type Caesar struct {
	Alphabet string
	// WrapSeparately rotates upper and lower case letters within their own
	// 26-letter ranges and ignores Alphabet.
	WrapSeparately bool
}

// Size is the number of distinct shifts.
func (c Caesar) Size() int {
	if c.WrapSeparately {
		return 26
	}
	return len([]rune(c.alphabet()))
}

func (c Caesar) alphabet() string {
	if c.Alphabet == "" {
		return CaesarAlphabet
	}
	return c.Alphabet
}

func (c Caesar) Encrypt(plaintext string, shift int) string {
	return c.shift(plaintext, shift)
}

func (c Caesar) Decrypt(ciphertext string, shift int) string {
	return c.shift(ciphertext, -shift)
}

// Recognized counts the symbols of text the cipher would transform.
func (c Caesar) Recognized(text string) int {
	n := 0
	if c.WrapSeparately {
		for _, r := range text {
			if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' {
				n++
			}
		}
		return n
	}
	alpha := c.alphabet()
	for _, r := range text {
		if strings.ContainsRune(alpha, r) {
			n++
		}
	}
	return n
}

func (c Caesar) shift(text string, by int) string {
	var b strings.Builder
	b.Grow(len(text))

	if c.WrapSeparately {
		k := mod(by, 26)
		for _, r := range text {
			switch {
			case r >= 'A' && r <= 'Z':
				b.WriteRune('A' + rune(mod(int(r-'A')+k, 26)))
			case r >= 'a' && r <= 'z':
				b.WriteRune('a' + rune(mod(int(r-'a')+k, 26)))
			default:
				b.WriteRune(r)
			}
		}
		return b.String()
	}

	dict := []rune(c.alphabet())
	index := make(map[rune]int, len(dict))
	for i, r := range dict {
		index[r] = i
	}
	m := len(dict)
	for _, r := range text {
		i, ok := index[r]
		if !ok {
			b.WriteRune(r)
			continue
		}
		b.WriteRune(dict[mod(i+by, m)])
	}
	return b.String()
}

func mod(a, m int) int {
	a %= m
	if a < 0 {
		a += m
	}
	return a
}
