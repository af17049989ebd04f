package search

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"codebreaker/ciphers"
)

// Initial key strategies.
const (
	InitFrequency = "frequency"
	InitRandom    = "random"
	InitIdentity  = "identity"
)

// historySize bounds SearchState.History.
const historySize = 32

// ctxCheckInterval is how many iterations pass between context checks.
const ctxCheckInterval = 64

// TextScorer rates plaintext; higher is better.
type TextScorer interface {
	Score(text string) float64
}

// Swap is one accepted move.
type Swap struct {
	I, J  int
	Delta float64
}

// SearchState is the working state of a single local-search run. It is
// created per run and dropped afterwards; only the best candidate is kept.
type SearchState struct {
	Mapping      []byte
	Score        float64
	Best         []byte
	BestScore    float64
	InitialScore float64

	Iteration int
	Budget    int
	// Improvements counts moves that raised the best score.
	Improvements int
	// Regressions counts accepted moves that lowered the current score.
	Regressions int
	Stale       int
	Truncated   bool
	History     []Swap

	window            int
	windowRegressions int
}

func (s *SearchState) remember(sw Swap) {
	if len(s.History) == historySize {
		copy(s.History, s.History[1:])
		s.History = s.History[:historySize-1]
	}
	s.History = append(s.History, sw)
}

// Step is what an Observer sees after each iteration.
type Step struct {
	Iteration  int
	Current    float64
	Best       float64
	Accepted   bool
	Regression bool
}

// Optimizer searches substitution keys by random pairwise swaps. Runs with
// the same seed and input are identical.
type Optimizer struct {
	Scorer     TextScorer
	Policy     AcceptancePolicy
	Iterations int
	// StaleLimit stops the run after that many iterations without a new
	// best. Zero disables it.
	StaleLimit int
	InitialKey string
	// Order lists plaintext symbols from most to least frequent, for the
	// frequency initial key.
	Order    string
	Seed     uint64
	Observer func(Step)
}

// Run searches for the key that makes r.Text read best. Cancelling ctx ends
// the run early with the best key found so far.
func (o Optimizer) Run(ctx context.Context, r Reduction) (Candidate, *SearchState, error) {
	alpha := r.Alphabet
	if alpha == "" {
		alpha = ciphers.UpperAlphabet
	}
	if o.Scorer == nil {
		return Candidate{}, nil, fmt.Errorf("%w: optimizer needs a scorer", ErrInvalidConfiguration)
	}
	if o.Iterations < 1 {
		return Candidate{}, nil, fmt.Errorf("%w: optimizer needs a positive iteration budget", ErrInvalidConfiguration)
	}
	policy := o.Policy
	if policy == nil {
		policy = HillClimb{}
	}

	// Only symbols that occur in the text are worth moving as the first
	// half of a swap; the second half may be any symbol.
	var present []int
	upper := strings.ToUpper(r.Text)
	for i := 0; i < len(alpha); i++ {
		if strings.IndexByte(upper, alpha[i]) >= 0 {
			present = append(present, i)
		}
	}
	if len(present) == 0 {
		return Candidate{}, nil, fmt.Errorf("%w: %s has no symbols in its alphabet", ErrInvalidConfiguration, r.Label)
	}

	rng := rand.New(rand.NewPCG(o.Seed, 0x0b7e))
	sub := ciphers.Substitution{Alphabet: alpha}
	decrypt := func(m []byte) string { return sub.Apply(r.Text, alpha, string(m)) }

	var mapping []byte
	switch o.InitialKey {
	case InitRandom:
		mapping = []byte(randomMapping(alpha, rng))
	case InitIdentity:
		mapping = []byte(alpha)
	default:
		mapping = []byte(frequencyMapping(r.Text, alpha, o.Order))
	}

	state := &SearchState{
		Mapping: mapping,
		Budget:  o.Iterations,
	}
	state.Score = o.Scorer.Score(decrypt(mapping))
	state.InitialScore = state.Score
	state.Best = append([]byte(nil), mapping...)
	state.BestScore = state.Score

	n := len(alpha)
	for state.Iteration = 0; state.Iteration < o.Iterations; state.Iteration++ {
		if state.Iteration%ctxCheckInterval == 0 && ctx.Err() != nil {
			state.Truncated = true
			break
		}
		if n < 2 {
			break
		}

		i := present[rng.IntN(len(present))]
		j := rng.IntN(n - 1)
		if j >= i {
			j++
		}
		mapping[i], mapping[j] = mapping[j], mapping[i]
		proposed := o.Scorer.Score(decrypt(mapping))

		step := Step{Iteration: state.Iteration}
		if policy.Accept(state, proposed, rng) {
			step.Accepted = true
			if proposed < state.Score {
				step.Regression = true
				state.Regressions++
			}
			state.remember(Swap{I: i, J: j, Delta: proposed - state.Score})
			state.Score = proposed
		} else {
			mapping[i], mapping[j] = mapping[j], mapping[i]
		}

		if state.Score > state.BestScore {
			state.BestScore = state.Score
			copy(state.Best, mapping)
			state.Improvements++
			state.Stale = 0
		} else {
			state.Stale++
		}

		if o.Observer != nil {
			step.Current, step.Best = state.Score, state.BestScore
			o.Observer(step)
		}
		if o.StaleLimit > 0 && state.Stale >= o.StaleLimit {
			state.Iteration++
			break
		}
	}

	c := Candidate{
		Key:       PermutationKey{Label: r.Label, Alphabet: alpha, Mapping: string(state.Best)},
		Plaintext: decrypt(state.Best),
		Score:     state.BestScore,
	}
	if state.Improvements == 0 {
		c.Degenerate = true
		c.Note = ErrDegenerateSearch.Error()
	}
	return c, state, nil
}
