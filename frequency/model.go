// Package frequency holds read-only letter statistics used to judge how
// language-like a candidate plaintext is.
package frequency

import (
	"embed"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed models/*.yaml
var modelFS embed.FS

const alphabetSize = 26

// sumTolerance bounds how far unigram frequencies may drift from 1.
const sumTolerance = 0.02

var ErrUnknownModel = errors.New("unknown frequency model")

// Model is an immutable table of unigram and bigram frequencies over A-Z,
// with an optional set of supplemental whole words.
type Model struct {
	tag         string
	order       string
	unigrams    [alphabetSize]float64
	bigrams     [alphabetSize][alphabetSize]float64
	words       map[string]struct{}
	commonWords []string
}

// definition is the on-disk form of a model.
type definition struct {
	Tag         string             `yaml:"tag"`
	Order       string             `yaml:"order"`
	Unigrams    map[string]float64 `yaml:"unigrams"`
	Bigrams     map[string]float64 `yaml:"bigrams"`
	CommonWords []string           `yaml:"common_words"`
}

var (
	englishOnce  sync.Once
	englishModel *Model
	englishErr   error
)

// English returns the embedded English model. It is parsed once and shared.
func English() *Model {
	englishOnce.Do(func() {
		englishModel, englishErr = Load("en")
	})
	if englishErr != nil {
		panic(fmt.Sprintf("embedded english model: %v", englishErr))
	}
	return englishModel
}

// Load parses the embedded model registered under tag.
func Load(tag string) (*Model, error) {
	data, err := modelFS.ReadFile("models/" + tag + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, tag)
	}
	return Parse(data)
}

// Parse builds a Model from its YAML definition.
func Parse(data []byte) (*Model, error) {
	var def definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}
	return fromDefinition(def)
}

func fromDefinition(def definition) (*Model, error) {
	m := &Model{tag: def.Tag}

	sum := 0.0
	for sym, p := range def.Unigrams {
		sym = strings.ToUpper(sym)
		if len(sym) != 1 || !isLetter(sym[0]) {
			return nil, fmt.Errorf("unigram %q: not a letter", sym)
		}
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("unigram %q: frequency %v out of range", sym, p)
		}
		m.unigrams[sym[0]-'A'] = p
		sum += p
	}
	if math.Abs(sum-1) > sumTolerance {
		return nil, fmt.Errorf("unigram frequencies sum to %.4f", sum)
	}

	for pair, p := range def.Bigrams {
		pair = strings.ToUpper(pair)
		if len(pair) != 2 || !isLetter(pair[0]) || !isLetter(pair[1]) {
			return nil, fmt.Errorf("bigram %q: not a letter pair", pair)
		}
		if p < 0 || p > 1 {
			return nil, fmt.Errorf("bigram %q: frequency %v out of range", pair, p)
		}
		m.bigrams[pair[0]-'A'][pair[1]-'A'] = p
	}

	m.order = strings.ToUpper(def.Order)
	if m.order == "" {
		m.order = m.orderByFrequency()
	}
	if len(m.order) != alphabetSize {
		return nil, fmt.Errorf("letter order %q must list all %d letters", m.order, alphabetSize)
	}

	for _, w := range def.CommonWords {
		m.commonWords = append(m.commonWords, strings.ToUpper(w))
	}
	return m, nil
}

func (m *Model) orderByFrequency() string {
	letters := []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZ")
	sort.SliceStable(letters, func(i, j int) bool {
		return m.unigrams[letters[i]-'A'] > m.unigrams[letters[j]-'A']
	})
	return string(letters)
}

// Tag names the language the model describes.
func (m *Model) Tag() string { return m.tag }

// Order lists A-Z from most to least frequent.
func (m *Model) Order() string { return m.order }

// Unigram returns the frequency of letter c (either case). ok is false when
// c is not a letter or the model has no mass for it.
func (m *Model) Unigram(c byte) (p float64, ok bool) {
	c = upper(c)
	if !isLetter(c) {
		return 0, false
	}
	p = m.unigrams[c-'A']
	return p, p > 0
}

// Bigram returns the listed frequency of the pair ab. Unlisted pairs report
// ok == false and callers decide how to back off.
func (m *Model) Bigram(a, b byte) (p float64, ok bool) {
	a, b = upper(a), upper(b)
	if !isLetter(a) || !isLetter(b) {
		return 0, false
	}
	p = m.bigrams[a-'A'][b-'A']
	return p, p > 0
}

// HasBigrams reports whether the model carries a bigram table.
func (m *Model) HasBigrams() bool {
	for i := range m.bigrams {
		for j := range m.bigrams[i] {
			if m.bigrams[i][j] > 0 {
				return true
			}
		}
	}
	return false
}

// HasWord reports whether w (case-insensitive) is a supplemental word.
func (m *Model) HasWord(w string) bool {
	if len(m.words) == 0 {
		return false
	}
	_, ok := m.words[strings.ToUpper(w)]
	return ok
}

// WordCount is the number of supplemental words.
func (m *Model) WordCount() int { return len(m.words) }

// Words returns the supplemental words in sorted order.
func (m *Model) Words() []string {
	out := make([]string, 0, len(m.words))
	for w := range m.words {
		out = append(out, w)
	}
	sort.Strings(out)
	return out
}

// CommonWords returns the model's list of frequent words. They are a hint
// and are not applied unless passed to WithWords.
func (m *Model) CommonWords() []string {
	return append([]string(nil), m.commonWords...)
}

// WithWords returns a copy of m extended with supplemental whole words.
// The receiver is left untouched.
func (m *Model) WithWords(words ...string) *Model {
	cp := *m
	cp.words = make(map[string]struct{}, len(m.words)+len(words))
	for w := range m.words {
		cp.words[w] = struct{}{}
	}
	for _, w := range words {
		w = strings.ToUpper(strings.TrimSpace(w))
		if w != "" {
			cp.words[w] = struct{}{}
		}
	}
	cp.commonWords = append([]string(nil), m.commonWords...)
	return &cp
}

func isLetter(c byte) bool { return c >= 'A' && c <= 'Z' }

func upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
