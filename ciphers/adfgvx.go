package ciphers

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// ADFGVXSymbols label the rows and columns of the 6x6 grid.
const ADFGVXSymbols = "ADFGVX"

// ADFGVX fractionates each symbol into a row/column letter pair and then
// applies a columnar transposition keyed by Keyword. Columns may be of
// unequal length; no padding is added.
type ADFGVX struct {
	Grid    *Grid
	Keyword string
}

// columnOrder returns, for each rank, the column read at that rank. Repeated
// keyword letters keep their first occurrence only.
func (c ADFGVX) columnOrder() ([]int, error) {
	var letters []rune
	seen := make(map[rune]bool)
	for _, r := range strings.ToUpper(c.Keyword) {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) || seen[r] {
			continue
		}
		seen[r] = true
		letters = append(letters, r)
	}
	if len(letters) < 2 {
		return nil, fmt.Errorf("%w: transposition keyword %q needs at least two distinct symbols", ErrInvalidKey, c.Keyword)
	}
	order := make([]int, len(letters))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return letters[order[i]] < letters[order[j]] })
	return order, nil
}

func (c ADFGVX) check() error {
	if c.Grid == nil || c.Grid.Size != 6 {
		return fmt.Errorf("%w: ADFGVX needs a 6x6 grid", ErrInvalidKey)
	}
	return nil
}

// Encrypt drops characters the grid cannot hold.
func (c ADFGVX) Encrypt(plaintext string) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	order, err := c.columnOrder()
	if err != nil {
		return "", err
	}

	var frac []byte
	for _, r := range plaintext {
		row, col, ok := c.Grid.Locate(r)
		if !ok {
			continue
		}
		frac = append(frac, ADFGVXSymbols[row], ADFGVXSymbols[col])
	}

	cols := len(order)
	out := make([]byte, 0, len(frac))
	for _, col := range order {
		for i := col; i < len(frac); i += cols {
			out = append(out, frac[i])
		}
	}
	return string(out), nil
}

// Untranspose reverses the columnar step and returns the fractionated
// symbol pairs. Whitespace is ignored.
func (c ADFGVX) Untranspose(ciphertext string) (string, error) {
	order, err := c.columnOrder()
	if err != nil {
		return "", err
	}

	var symbols []byte
	for i, r := range ciphertext {
		switch {
		case unicode.IsSpace(r):
		case strings.ContainsRune(ADFGVXSymbols, unicode.ToUpper(r)):
			symbols = append(symbols, byte(unicode.ToUpper(r)))
		default:
			return "", symbolError(r, i, "not an ADFGVX symbol")
		}
	}
	if len(symbols)%2 != 0 {
		return "", symbolError(rune(symbols[len(symbols)-1]), len(ciphertext)-1, "odd number of ADFGVX symbols")
	}

	cols := len(order)
	n := len(symbols)
	frac := make([]byte, n)
	next := 0
	for _, col := range order {
		for i := col; i < n; i += cols {
			frac[i] = symbols[next]
			next++
		}
	}
	return string(frac), nil
}

func (c ADFGVX) Decrypt(ciphertext string) (string, error) {
	if err := c.check(); err != nil {
		return "", err
	}
	frac, err := c.Untranspose(ciphertext)
	if err != nil {
		return "", err
	}
	out := make([]rune, 0, len(frac)/2)
	for i := 0; i < len(frac); i += 2 {
		row := strings.IndexByte(ADFGVXSymbols, frac[i])
		col := strings.IndexByte(ADFGVXSymbols, frac[i+1])
		out = append(out, c.Grid.At(row, col))
	}
	return string(out), nil
}
