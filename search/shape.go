package search

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"codebreaker/ciphers"
)

// Shape is a cipher as the engine sees it: a way to describe its key space
// and to apply a key in either direction.
type Shape interface {
	Name() string
	// KeySpace describes the keys worth trying against ciphertext. Errors
	// are fatal for the attempt.
	KeySpace(ciphertext string) (KeySpace, error)
	Encrypt(plaintext string, key Key) (string, error)
	Decrypt(ciphertext string, key Key) (string, error)
}

// Reduction is a ciphertext rewritten as a plain monoalphabetic
// substitution over Alphabet, ready for local search.
type Reduction struct {
	Label    string
	Text     string
	Alphabet string
}

// Reducer is implemented by shapes whose key space is too large to walk
// but which can be recast as a substitution problem.
type Reducer interface {
	Reduce(ciphertext string) ([]Reduction, error)
}

// Filter drops decryptions that cannot be plaintext.
type Filter interface {
	Plausible(plaintext string) bool
}

// Annotator attaches a short structural note to a candidate.
type Annotator interface {
	Annotate(ciphertext string, key Key) string
}

func wrongKey(shape string, k Key) error {
	return fmt.Errorf("%w: %s cannot use key %T", ciphers.ErrInvalidKey, shape, k)
}

// CaesarShape tries every shift of the dictionary.
type CaesarShape struct {
	Cipher ciphers.Caesar
}

func (s CaesarShape) Name() string { return "caesar" }

func (s CaesarShape) KeySpace(ciphertext string) (KeySpace, error) {
	if s.Cipher.Recognized(ciphertext) == 0 {
		return nil, fmt.Errorf("%w: ciphertext has no symbols in the caesar dictionary", ErrInvalidConfiguration)
	}
	return newRangeSpace(0, s.Cipher.Size()-1, func(i int) Key { return ShiftKey(i) }), nil
}

func (s CaesarShape) Encrypt(plaintext string, key Key) (string, error) {
	k, ok := key.(ShiftKey)
	if !ok {
		return "", wrongKey(s.Name(), key)
	}
	return s.Cipher.Encrypt(plaintext, int(k)), nil
}

func (s CaesarShape) Decrypt(ciphertext string, key Key) (string, error) {
	k, ok := key.(ShiftKey)
	if !ok {
		return "", wrongKey(s.Name(), key)
	}
	return s.Cipher.Decrypt(ciphertext, int(k)), nil
}

// RailFenceShape tries rail counts from 2 up to MaxRails or the
// ciphertext length, whichever is smaller.
type RailFenceShape struct {
	Cipher ciphers.RailFence
	// MaxRails of zero means no cap beyond the length.
	MaxRails int
}

func (s RailFenceShape) Name() string { return "railfence" }

func (s RailFenceShape) KeySpace(ciphertext string) (KeySpace, error) {
	hi := len([]rune(ciphertext))
	if s.MaxRails > 0 && s.MaxRails < hi {
		hi = s.MaxRails
	}
	return newRangeSpace(2, hi, func(i int) Key { return RailKey(i) }), nil
}

func (s RailFenceShape) Encrypt(plaintext string, key Key) (string, error) {
	k, ok := key.(RailKey)
	if !ok {
		return "", wrongKey(s.Name(), key)
	}
	return s.Cipher.Encrypt(plaintext, int(k))
}

func (s RailFenceShape) Decrypt(ciphertext string, key Key) (string, error) {
	k, ok := key.(RailKey)
	if !ok {
		return "", wrongKey(s.Name(), key)
	}
	return s.Cipher.Decrypt(ciphertext, int(k))
}

// commonBaconPairs are symbol pairs people reach for when hiding Bacon
// codes. They are tried whenever both symbols occur.
var commonBaconPairs = [][2]rune{
	{'A', 'B'}, {'0', '1'}, {'a', 'b'}, {'.', '-'}, {'*', '#'}, {'X', 'O'},
	{'I', 'V'}, {'L', 'S'}, {'!', '?'}, {'+', '-'}, {'>', '<'}, {'(', ')'},
	{'[', ']'}, {'{', '}'}, {'|', '/'}, {'~', '^'}, {'@', '$'}, {'%', '&'},
	{'=', '_'}, {':', ';'},
}

// BaconShape derives symbol pairs from the ciphertext and tries both
// assignments under both alphabet variants.
type BaconShape struct {
	// MinSymbols is how often a symbol must occur to be considered.
	MinSymbols int
	// TopSymbols caps how many of the most frequent symbols are paired.
	TopSymbols int
}

func (s BaconShape) Name() string { return "bacon" }

func (s BaconShape) KeySpace(ciphertext string) (KeySpace, error) {
	minSymbols, top := s.MinSymbols, s.TopSymbols
	if minSymbols <= 0 {
		minSymbols = 5
	}
	if top <= 0 {
		top = 10
	}

	counts := make(map[rune]int)
	for _, r := range ciphertext {
		if r == ' ' || r == '\n' || r == '\t' || r == '\r' {
			continue
		}
		counts[r]++
	}
	var frequent []rune
	for r, n := range counts {
		if n >= minSymbols {
			frequent = append(frequent, r)
		}
	}
	sort.Slice(frequent, func(i, j int) bool {
		if counts[frequent[i]] != counts[frequent[j]] {
			return counts[frequent[i]] > counts[frequent[j]]
		}
		return frequent[i] < frequent[j]
	})
	if len(frequent) > top {
		frequent = frequent[:top]
	}

	pairs := make(map[[2]rune]bool)
	for i := range frequent {
		for j := range frequent {
			if i != j {
				pairs[[2]rune{frequent[i], frequent[j]}] = true
			}
		}
	}
	for _, p := range commonBaconPairs {
		if counts[p[0]] > 0 && counts[p[1]] > 0 {
			pairs[p] = true
			pairs[[2]rune{p[1], p[0]}] = true
		}
	}

	keys := make([]Key, 0, 2*len(pairs))
	for p := range pairs {
		for _, variant := range []int{24, 26} {
			keys = append(keys, BaconKey{A: p[0], B: p[1], Variant: variant})
		}
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	return newListSpace(keys), nil
}

func (s BaconShape) cipher(key Key) (ciphers.Bacon, error) {
	k, ok := key.(BaconKey)
	if !ok {
		return ciphers.Bacon{}, wrongKey(s.Name(), key)
	}
	return ciphers.Bacon{Variant: k.Variant, A: k.A, B: k.B}, nil
}

func (s BaconShape) Encrypt(plaintext string, key Key) (string, error) {
	c, err := s.cipher(key)
	if err != nil {
		return "", err
	}
	return c.Encrypt(plaintext)
}

func (s BaconShape) Decrypt(ciphertext string, key Key) (string, error) {
	c, err := s.cipher(key)
	if err != nil {
		return "", err
	}
	return c.Decrypt(ciphertext)
}

func (s BaconShape) Annotate(ciphertext string, key Key) string {
	c, err := s.cipher(key)
	if err != nil {
		return ""
	}
	coverage, balance := c.Coverage(ciphertext)
	return fmt.Sprintf("coverage=%.2f balance=%.2f", coverage, balance)
}

// SubstitutionShape is a monoalphabetic cipher. Its key space cannot be
// walked, so KeySpace samples it: the frequency-analysis key plus Samples
// seeded random permutations. Local search does the real work through
// Reduce.
type SubstitutionShape struct {
	Alphabet string
	Samples  int
	Seed     uint64
	// Order lists plaintext symbols from most to least frequent.
	Order string
}

func (s SubstitutionShape) Name() string { return "substitution" }

func (s SubstitutionShape) alphabet() string {
	if s.Alphabet == "" {
		return ciphers.UpperAlphabet
	}
	return s.Alphabet
}

func (s SubstitutionShape) KeySpace(ciphertext string) (KeySpace, error) {
	alpha := s.alphabet()
	if countSymbols(ciphertext, alpha) == 0 {
		return nil, fmt.Errorf("%w: ciphertext has no symbols in the substitution alphabet", ErrInvalidConfiguration)
	}
	keys := []Key{PermutationKey{
		Label:    "frequency",
		Alphabet: alpha,
		Mapping:  frequencyMapping(ciphertext, alpha, s.Order),
	}}
	rng := rand.New(rand.NewPCG(s.Seed, 0x5ab1e))
	for i := 0; i < s.Samples; i++ {
		keys = append(keys, PermutationKey{
			Label:    fmt.Sprintf("sample-%03d", i),
			Alphabet: alpha,
			Mapping:  randomMapping(alpha, rng),
		})
	}
	return newListSpace(keys), nil
}

func (s SubstitutionShape) key(key Key) (PermutationKey, error) {
	k, ok := key.(PermutationKey)
	if !ok || len(k.Mapping) != len(k.Alphabet) {
		return PermutationKey{}, wrongKey(s.Name(), key)
	}
	return k, nil
}

func (s SubstitutionShape) Encrypt(plaintext string, key Key) (string, error) {
	k, err := s.key(key)
	if err != nil {
		return "", err
	}
	return ciphers.Substitution{Alphabet: k.Alphabet}.Apply(plaintext, k.Mapping, k.Alphabet), nil
}

func (s SubstitutionShape) Decrypt(ciphertext string, key Key) (string, error) {
	k, err := s.key(key)
	if err != nil {
		return "", err
	}
	return ciphers.Substitution{Alphabet: k.Alphabet}.Apply(ciphertext, k.Alphabet, k.Mapping), nil
}

func (s SubstitutionShape) Reduce(ciphertext string) ([]Reduction, error) {
	return []Reduction{{Label: "substitution", Text: ciphertext, Alphabet: s.alphabet()}}, nil
}

// countSymbols counts runes of text in alphabet, folding lower case.
func countSymbols(text, alphabet string) int {
	n := 0
	for _, r := range strings.ToUpper(text) {
		if strings.ContainsRune(alphabet, r) {
			n++
		}
	}
	return n
}

func randomMapping(alphabet string, rng *rand.Rand) string {
	m := []byte(alphabet)
	rng.Shuffle(len(m), func(i, j int) { m[i], m[j] = m[j], m[i] })
	return string(m)
}

// frequencyMapping pairs ciphertext symbols, most frequent first, with
// order. Symbols not covered by order keep alphabet order at the end.
func frequencyMapping(ciphertext, alphabet, order string) string {
	counts := make(map[byte]int, len(alphabet))
	upper := strings.ToUpper(ciphertext)
	for i := 0; i < len(upper); i++ {
		if strings.IndexByte(alphabet, upper[i]) >= 0 {
			counts[upper[i]]++
		}
	}

	cipherOrder := []byte(alphabet)
	sort.SliceStable(cipherOrder, func(i, j int) bool {
		return counts[cipherOrder[i]] > counts[cipherOrder[j]]
	})

	target := make([]byte, 0, len(alphabet))
	used := make(map[byte]bool, len(alphabet))
	for i := 0; i < len(order); i++ {
		c := order[i]
		if strings.IndexByte(alphabet, c) >= 0 && !used[c] {
			target = append(target, c)
			used[c] = true
		}
	}
	for i := 0; i < len(alphabet); i++ {
		if !used[alphabet[i]] {
			target = append(target, alphabet[i])
		}
	}

	mapping := make([]byte, len(alphabet))
	for rank, c := range cipherOrder {
		mapping[strings.IndexByte(alphabet, c)] = target[rank]
	}
	return string(mapping)
}
