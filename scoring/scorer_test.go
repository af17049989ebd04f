package scoring

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codebreaker/frequency"
)

const passage = `It was the best of times, it was the worst of times, it was the age of
wisdom, it was the age of foolishness, it was the epoch of belief, it was the
epoch of incredulity, it was the season of Light, it was the season of Darkness,
it was the spring of hope, it was the winter of despair.`

// permute applies a seeded random substitution to the letters of text.
func permute(text string, seed uint64) string {
	rng := rand.New(rand.NewPCG(seed, seed))
	perm := rng.Perm(26)
	var b strings.Builder
	for _, r := range strings.ToUpper(text) {
		if r >= 'A' && r <= 'Z' {
			b.WriteByte(byte('A' + perm[r-'A']))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func TestScoreDeterministic(t *testing.T) {
	s := Default()
	first := s.Score(passage)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, s.Score(passage))
	}
	assert.Equal(t, first, Default().Score(passage), "fresh scorer over the same model")
}

func TestEnglishBeatsPermutation(t *testing.T) {
	require.GreaterOrEqual(t, len(passage), 200)
	s := Default()
	english := s.Score(passage)

	for seed := uint64(1); seed <= 20; seed++ {
		scrambled := permute(passage, seed)
		if strings.EqualFold(scrambled, passage) {
			continue
		}
		assert.Greater(t, english, s.Score(scrambled), "seed %d", seed)
	}
}

func TestCaseInsensitive(t *testing.T) {
	s := Default()
	assert.Equal(t, s.Score("HELLO WORLD"), s.Score("hello world"))
	assert.Equal(t, s.Score("HELLO WORLD"), s.Score("HeLLo WoRLD"))
}

func TestBigramsSeparateTranspositions(t *testing.T) {
	s := Default()

	// Identical letter multisets, so only the bigram term differs.
	right := s.Breakdown("HELLOWORLD")
	wrong := s.Breakdown("HWORLDELLO")
	assert.InDelta(t, right.Unigram, wrong.Unigram, 1e-9)
	assert.Greater(t, right.Bigram, wrong.Bigram)
	assert.Greater(t, s.Score("HELLOWORLD"), s.Score("HLWLREOLDO"))
}

func TestScoreEdgeCases(t *testing.T) {
	s := Default()

	tests := []struct {
		name  string
		text  string
		check func(t *testing.T, score float64)
	}{
		{
			name: "empty",
			text: "",
			check: func(t *testing.T, score float64) {
				assert.Equal(t, NoSignal, score)
			},
		},
		{
			name: "whitespace only",
			text: " \n\t",
			check: func(t *testing.T, score float64) {
				assert.Equal(t, NoSignal, score)
			},
		},
		{
			name: "unseen symbols stay finite",
			text: "\x00\x01\xff",
			check: func(t *testing.T, score float64) {
				assert.Less(t, score, 0.0)
				assert.Greater(t, score, NoSignal)
			},
		},
		{
			name: "punctuation is cheaper than garbage",
			text: "!!!",
			check: func(t *testing.T, score float64) {
				assert.Greater(t, score, s.Score("\x00\x00\x00"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, s.Score(tt.text))
		})
	}
}

func TestGarbageLosesToText(t *testing.T) {
	s := Default()
	text := "attack at dawn"
	garbage := string([]byte{0x8f, 0x02, 0xd1, 0x1c, 0x7f, 0x99, 0x03, 0xee, 0x10, 0xa0, 0x41, 0x05, 0xc3, 0x28})
	assert.Greater(t, s.Score(text), s.Score(garbage))
}

func TestWordBonus(t *testing.T) {
	plain := Default()
	hinted := New(frequency.English().WithWords("HELLO", "WORLD"), DefaultOptions())

	b := hinted.Breakdown("hello, world! hello")
	assert.Equal(t, 3, b.Matches)
	assert.InDelta(t, 30.0, b.Words, 1e-9)
	assert.InDelta(t, plain.Score("hello, world! hello")+30, hinted.Score("hello, world! hello"), 1e-9)

	// Whole words only.
	assert.Zero(t, hinted.Breakdown("helloworld").Matches)
}

func TestNewAppliesDefaults(t *testing.T) {
	s := New(frequency.English(), Options{})
	assert.Equal(t, DefaultOptions(), s.Options())

	noBigrams := New(frequency.English(), Options{BigramWeight: -1})
	assert.Zero(t, noBigrams.Breakdown("HELLO").Bigram)
}

func BenchmarkScore(b *testing.B) {
	s := Default()
	for i := 0; i < b.N; i++ {
		s.Score(passage)
	}
}
