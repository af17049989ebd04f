package ciphers

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"unicode"
)

// Letter merges for 5x5 grids.
const (
	MergeIJ = "IJ"
	MergeUV = "UV"
)

const digits = "0123456789"

// Grid is a square Polybius layout. A 5x5 grid folds one letter into
// another; a 6x6 grid holds A-Z and 0-9.
type Grid struct {
	Size  int
	Merge string
	cells []rune
	index map[rune]int
}

// StandardGrid returns the alphabetical grid of the given size.
func StandardGrid(size int, merge string) (*Grid, error) {
	return KeywordGrid(size, merge, "")
}

// KeywordGrid places the keyword's distinct symbols first and fills the
// rest of the grid in alphabetical order.
func KeywordGrid(size int, merge, keyword string) (*Grid, error) {
	base, err := gridSymbols(size, merge)
	if err != nil {
		return nil, err
	}
	g := &Grid{Size: size, Merge: merge}
	seen := make(map[rune]bool, len(base))
	for _, r := range keyword {
		r = g.fold(r)
		if !strings.ContainsRune(base, r) || seen[r] {
			continue
		}
		seen[r] = true
		g.cells = append(g.cells, r)
	}
	for _, r := range base {
		if !seen[r] {
			g.cells = append(g.cells, r)
		}
	}
	g.reindex()
	return g, nil
}

// ShuffledGrid is a seeded random layout.
func ShuffledGrid(size int, merge string, seed uint64) (*Grid, error) {
	base, err := gridSymbols(size, merge)
	if err != nil {
		return nil, err
	}
	cells := []rune(base)
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rng.Shuffle(len(cells), func(i, j int) { cells[i], cells[j] = cells[j], cells[i] })
	g := &Grid{Size: size, Merge: merge, cells: cells}
	g.reindex()
	return g, nil
}

// GridFromLayout builds a grid from an explicit cell order.
func GridFromLayout(size int, merge, layout string) (*Grid, error) {
	base, err := gridSymbols(size, merge)
	if err != nil {
		return nil, err
	}
	layout = strings.ToUpper(layout)
	if len([]rune(layout)) != len(base) {
		return nil, fmt.Errorf("%w: layout has %d cells, want %d", ErrInvalidKey, len([]rune(layout)), len(base))
	}
	for _, r := range base {
		if strings.Count(layout, string(r)) != 1 {
			return nil, fmt.Errorf("%w: layout must hold %q exactly once", ErrInvalidKey, r)
		}
	}
	g := &Grid{Size: size, Merge: merge, cells: []rune(layout)}
	g.reindex()
	return g, nil
}

func gridSymbols(size int, merge string) (string, error) {
	switch size {
	case 5:
		switch merge {
		case MergeIJ, "":
			return strings.Replace(UpperAlphabet, "J", "", 1), nil
		case MergeUV:
			return strings.Replace(UpperAlphabet, "V", "", 1), nil
		default:
			return "", fmt.Errorf("%w: unknown merge %q", ErrInvalidKey, merge)
		}
	case 6:
		return UpperAlphabet + digits, nil
	default:
		return "", fmt.Errorf("%w: grid size %d", ErrInvalidKey, size)
	}
}

func (g *Grid) reindex() {
	if g.Size == 5 && g.Merge == "" {
		g.Merge = MergeIJ
	}
	g.index = make(map[rune]int, len(g.cells))
	for i, r := range g.cells {
		g.index[r] = i
	}
}

func (g *Grid) fold(r rune) rune {
	r = unicode.ToUpper(r)
	if g.Size == 5 {
		switch {
		case g.Merge == MergeUV && r == 'V':
			return 'U'
		case g.Merge != MergeUV && r == 'J':
			return 'I'
		}
	}
	return r
}

// Locate returns the row and column of r.
func (g *Grid) Locate(r rune) (row, col int, ok bool) {
	i, ok := g.index[g.fold(r)]
	if !ok {
		return 0, 0, false
	}
	return i / g.Size, i % g.Size, true
}

// At returns the symbol in a cell.
func (g *Grid) At(row, col int) rune {
	return g.cells[row*g.Size+col]
}

// Layout is the row-major cell order.
func (g *Grid) Layout() string { return string(g.cells) }

// Polybius replaces each symbol with its row and column numbers.
type Polybius struct {
	Grid *Grid
	// NumberBase is the first coordinate digit, 0 or 1.
	NumberBase int
	Separator  string
}

func (p Polybius) separator() string {
	if p.Separator == "" {
		return " "
	}
	return p.Separator
}

// Encrypt skips characters the grid cannot hold.
func (p Polybius) Encrypt(plaintext string) (string, error) {
	if p.Grid == nil {
		return "", fmt.Errorf("%w: polybius grid is required", ErrInvalidKey)
	}
	var pairs []string
	for _, r := range plaintext {
		row, col, ok := p.Grid.Locate(r)
		if !ok {
			continue
		}
		pairs = append(pairs, fmt.Sprintf("%d%d", row+p.NumberBase, col+p.NumberBase))
	}
	return strings.Join(pairs, p.separator()), nil
}

// Coordinates parses ciphertext into cell indexes. Separators and
// whitespace between digits are ignored.
func (p Polybius) Coordinates(ciphertext string) ([]int, error) {
	size := 5
	if p.Grid != nil {
		size = p.Grid.Size
	}
	sep := p.separator()

	var (
		cells   []int
		pending = -1
		last    int
	)
	for i, r := range ciphertext {
		switch {
		case r >= '0' && r <= '9':
			d := int(r-'0') - p.NumberBase
			if d < 0 || d >= size {
				return nil, symbolError(r, i, "coordinate outside the grid")
			}
			if pending < 0 {
				pending = d
			} else {
				cells = append(cells, pending*size+d)
				pending = -1
			}
			last = i
		case unicode.IsSpace(r) || strings.ContainsRune(sep, r):
		default:
			return nil, symbolError(r, i, "not a coordinate")
		}
	}
	if pending >= 0 {
		return nil, symbolError(rune(ciphertext[last]), last, "unpaired coordinate")
	}
	return cells, nil
}

func (p Polybius) Decrypt(ciphertext string) (string, error) {
	if p.Grid == nil {
		return "", fmt.Errorf("%w: polybius grid is required", ErrInvalidKey)
	}
	cells, err := p.Coordinates(ciphertext)
	if err != nil {
		return "", err
	}
	out := make([]rune, len(cells))
	for i, c := range cells {
		out[i] = p.Grid.cells[c]
	}
	return string(out), nil
}
