package search

import (
	"fmt"
	"strings"

	"codebreaker/ciphers"
)

// namedGrid is a grid hypothesis with a readable name.
type namedGrid struct {
	name string
	grid *ciphers.Grid
}

// gridHypotheses builds the standard grid, one grid per keyword and one per
// seed, dropping duplicate layouts.
func gridHypotheses(size int, merge string, keywords []string, seeds []uint64) ([]namedGrid, error) {
	var out []namedGrid
	seen := make(map[string]bool)
	add := func(name string, g *ciphers.Grid) {
		if seen[g.Layout()] {
			return
		}
		seen[g.Layout()] = true
		out = append(out, namedGrid{name: name, grid: g})
	}

	std, err := ciphers.StandardGrid(size, merge)
	if err != nil {
		return nil, err
	}
	add("standard", std)
	for _, kw := range keywords {
		g, err := ciphers.KeywordGrid(size, merge, kw)
		if err != nil {
			return nil, err
		}
		add("keyword:"+strings.ToUpper(kw), g)
	}
	for _, seed := range seeds {
		g, err := ciphers.ShuffledGrid(size, merge, seed)
		if err != nil {
			return nil, err
		}
		add(fmt.Sprintf("seed:%d", seed), g)
	}
	return out, nil
}

// PolybiusShape tries a fixed set of grid layouts and can hand the
// coordinates to local search as a substitution problem.
type PolybiusShape struct {
	Size       int
	Merge      string
	NumberBase int
	Separator  string
	Keywords   []string
	Seeds      []uint64
}

func (s PolybiusShape) Name() string { return "polybius" }

func (s PolybiusShape) size() int {
	if s.Size == 0 {
		return 5
	}
	return s.Size
}

func (s PolybiusShape) cipher(g *ciphers.Grid) ciphers.Polybius {
	return ciphers.Polybius{Grid: g, NumberBase: s.NumberBase, Separator: s.Separator}
}

func (s PolybiusShape) KeySpace(ciphertext string) (KeySpace, error) {
	std, err := ciphers.StandardGrid(s.size(), s.Merge)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	cells, err := s.cipher(std).Coordinates(ciphertext)
	if err != nil {
		return nil, err
	}
	if len(cells) == 0 {
		return newListSpace(nil), nil
	}

	grids, err := gridHypotheses(s.size(), s.Merge, s.Keywords, s.Seeds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	keys := make([]Key, len(grids))
	for i, g := range grids {
		keys[i] = GridKey{Index: i, Name: g.name, Grid: g.grid}
	}
	return newListSpace(keys), nil
}

func (s PolybiusShape) Encrypt(plaintext string, key Key) (string, error) {
	k, ok := key.(GridKey)
	if !ok || k.Grid == nil {
		return "", wrongKey(s.Name(), key)
	}
	return s.cipher(k.Grid).Encrypt(plaintext)
}

func (s PolybiusShape) Decrypt(ciphertext string, key Key) (string, error) {
	k, ok := key.(GridKey)
	if !ok || k.Grid == nil {
		return "", wrongKey(s.Name(), key)
	}
	return s.cipher(k.Grid).Decrypt(ciphertext)
}

// Reduce reads the coordinates through the standard grid. Whatever the
// real layout, the result is a substitution of the plaintext.
func (s PolybiusShape) Reduce(ciphertext string) ([]Reduction, error) {
	std, err := ciphers.StandardGrid(s.size(), s.Merge)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	text, err := s.cipher(std).Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	alphabet := ciphers.UpperAlphabet
	if s.size() == 6 {
		alphabet += "0123456789"
	}
	return []Reduction{{Label: "polybius", Text: text, Alphabet: alphabet}}, nil
}

// ADFGVXShape tries each transposition keyword against each grid
// hypothesis.
type ADFGVXShape struct {
	Keywords     []string
	GridKeywords []string
	Seeds        []uint64
}

func (s ADFGVXShape) Name() string { return "adfgvx" }

func (s ADFGVXShape) KeySpace(ciphertext string) (KeySpace, error) {
	if len(s.Keywords) == 0 {
		return newListSpace(nil), nil
	}
	first := ciphers.ADFGVX{Keyword: s.Keywords[0]}
	frac, err := first.Untranspose(ciphertext)
	if err != nil {
		return nil, err
	}
	if frac == "" {
		return newListSpace(nil), nil
	}

	grids, err := gridHypotheses(6, "", s.GridKeywords, s.Seeds)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	keys := make([]Key, 0, len(s.Keywords)*len(grids))
	for _, kw := range s.Keywords {
		for _, g := range grids {
			keys = append(keys, ADFGVXKey{
				Index:    len(keys),
				GridName: g.name,
				Grid:     g.grid,
				Keyword:  strings.ToUpper(kw),
			})
		}
	}
	return newListSpace(keys), nil
}

func (s ADFGVXShape) Encrypt(plaintext string, key Key) (string, error) {
	k, ok := key.(ADFGVXKey)
	if !ok || k.Grid == nil {
		return "", wrongKey(s.Name(), key)
	}
	return ciphers.ADFGVX{Grid: k.Grid, Keyword: k.Keyword}.Encrypt(plaintext)
}

func (s ADFGVXShape) Decrypt(ciphertext string, key Key) (string, error) {
	k, ok := key.(ADFGVXKey)
	if !ok || k.Grid == nil {
		return "", wrongKey(s.Name(), key)
	}
	return ciphers.ADFGVX{Grid: k.Grid, Keyword: k.Keyword}.Decrypt(ciphertext)
}

// Reduce undoes each candidate transposition and reads the pairs through
// the standard grid, leaving one substitution problem per keyword.
func (s ADFGVXShape) Reduce(ciphertext string) ([]Reduction, error) {
	std, err := ciphers.StandardGrid(6, "")
	if err != nil {
		return nil, err
	}
	out := make([]Reduction, 0, len(s.Keywords))
	for _, kw := range s.Keywords {
		text, err := ciphers.ADFGVX{Grid: std, Keyword: kw}.Decrypt(ciphertext)
		if err != nil {
			return nil, err
		}
		out = append(out, Reduction{
			Label:    "adfgvx:" + strings.ToUpper(kw),
			Text:     text,
			Alphabet: ciphers.UpperAlphabet + "0123456789",
		})
	}
	return out, nil
}
