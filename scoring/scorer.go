// Package scoring rates candidate plaintexts by how closely they follow a
// frequency model. Higher is more language-like.
package scoring

import (
	"math"
	"strings"
	"unicode/utf8"

	"codebreaker/frequency"
)

// NoSignal is the score of a text with nothing to score.
const NoSignal = -math.MaxFloat64

// Options tune the log-likelihood. Zero values are replaced by the
// defaults in DefaultOptions.
type Options struct {
	// Floor is the probability charged to a letter or pair the model has no
	// mass for.
	Floor float64 `json:"floor" yaml:"floor"`
	// BigramWeight scales the bigram term. Negative disables it.
	BigramWeight float64 `json:"bigram_weight" yaml:"bigram_weight"`
	// BackoffDiscount multiplies p(a)p(b) for unlisted bigrams.
	BackoffDiscount float64 `json:"backoff_discount" yaml:"backoff_discount"`
	// PunctuationProbability is charged per digit or printable punctuation.
	PunctuationProbability float64 `json:"punctuation_probability" yaml:"punctuation_probability"`
	// WordBonus is added per whole-word match against supplemental words.
	WordBonus float64 `json:"word_bonus" yaml:"word_bonus"`
}

func DefaultOptions() Options {
	return Options{
		Floor:                  1e-5,
		BigramWeight:           1.0,
		BackoffDiscount:        0.1,
		PunctuationProbability: 0.01,
		WordBonus:              10,
	}
}

// Breakdown splits a score into its terms.
type Breakdown struct {
	Unigram float64 `json:"unigram"`
	Bigram  float64 `json:"bigram"`
	Penalty float64 `json:"penalty"`
	Words   float64 `json:"words"`
	Letters int     `json:"letters"`
	Matches int     `json:"matches"`
}

// Total is the sum of all terms.
func (b Breakdown) Total() float64 {
	return b.Unigram + b.Bigram + b.Penalty + b.Words
}

// Scorer is safe for concurrent use; it never mutates its model.
type Scorer struct {
	model *frequency.Model
	opts  Options

	logFloor   float64
	logPunct   float64
	logUnigram [26]float64
	logBigram  [26][26]float64
}

// New returns a Scorer over model. Options fields left at zero fall back to
// DefaultOptions.
func New(model *frequency.Model, opts Options) *Scorer {
	def := DefaultOptions()
	if opts.Floor <= 0 {
		opts.Floor = def.Floor
	}
	if opts.BigramWeight == 0 {
		opts.BigramWeight = def.BigramWeight
	}
	if opts.BigramWeight < 0 {
		opts.BigramWeight = 0
	}
	if opts.BackoffDiscount <= 0 {
		opts.BackoffDiscount = def.BackoffDiscount
	}
	if opts.PunctuationProbability <= 0 {
		opts.PunctuationProbability = def.PunctuationProbability
	}
	if opts.WordBonus == 0 {
		opts.WordBonus = def.WordBonus
	}

	s := &Scorer{
		model:    model,
		opts:     opts,
		logFloor: math.Log(opts.Floor),
		logPunct: math.Log(opts.PunctuationProbability),
	}

	// Precompute logs so Score stays allocation-free on the hot path.
	for a := byte(0); a < 26; a++ {
		pa, ok := model.Unigram('A' + a)
		if !ok || pa < opts.Floor {
			pa = opts.Floor
		}
		s.logUnigram[a] = math.Log(pa)
	}
	for a := byte(0); a < 26; a++ {
		for b := byte(0); b < 26; b++ {
			p, ok := model.Bigram('A'+a, 'A'+b)
			if !ok {
				pa, _ := model.Unigram('A' + a)
				pb, _ := model.Unigram('A' + b)
				p = pa * pb * opts.BackoffDiscount
			}
			if p < opts.Floor {
				p = opts.Floor
			}
			s.logBigram[a][b] = math.Log(p)
		}
	}
	return s
}

// Default is a Scorer over the embedded English model with default options.
func Default() *Scorer {
	return New(frequency.English(), DefaultOptions())
}

// Model returns the frequency model the scorer reads.
func (s *Scorer) Model() *frequency.Model { return s.model }

// Options returns the effective options.
func (s *Scorer) Options() Options { return s.opts }

// Score returns the log-likelihood of text under the model plus any word
// bonus. Equal inputs always give equal scores.
func (s *Scorer) Score(text string) float64 {
	b := s.Breakdown(text)
	if b.Letters == 0 && b.Penalty == 0 {
		return NoSignal
	}
	return b.Total()
}

// Breakdown scores text and reports each term separately.
func (s *Scorer) Breakdown(text string) Breakdown {
	var (
		b    Breakdown
		prev = -1
	)
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		i += size

		switch {
		case r >= 'a' && r <= 'z':
			r -= 'a' - 'A'
			fallthrough
		case r >= 'A' && r <= 'Z':
			idx := int(r - 'A')
			b.Unigram += s.logUnigram[idx]
			if prev >= 0 {
				b.Bigram += s.opts.BigramWeight * s.logBigram[prev][idx]
			}
			prev = idx
			b.Letters++
		case r == ' ' || r == '\n' || r == '\t' || r == '\r':
		case r < utf8.RuneSelf && r > ' ' && r < 0x7f:
			b.Penalty += s.logPunct
		default:
			// Control bytes, non-ASCII and invalid encodings look nothing
			// like text: charge them as an unseen letter and an unseen pair.
			b.Penalty += (1 + s.opts.BigramWeight) * s.logFloor
		}
	}

	if s.opts.WordBonus != 0 && s.model.WordCount() > 0 {
		for _, w := range strings.FieldsFunc(text, notLetter) {
			if s.model.HasWord(w) {
				b.Words += s.opts.WordBonus
				b.Matches++
			}
		}
	}
	return b
}

func notLetter(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
}
