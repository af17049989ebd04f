package search

import (
	"fmt"
	"math"
	"math/rand/v2"

	"codebreaker/config"
)

// AcceptancePolicy decides whether local search moves to a proposed key.
// Accept may update the policy's bookkeeping on state.
type AcceptancePolicy interface {
	Name() string
	Accept(state *SearchState, proposed float64, rng *rand.Rand) bool
}

// HillClimb accepts strict improvements only.
type HillClimb struct{}

func (HillClimb) Name() string { return config.PolicyHillClimb }

func (HillClimb) Accept(state *SearchState, proposed float64, _ *rand.Rand) bool {
	return proposed > state.Score
}

// BoundedRegression accepts improvements, moves within Tolerance of the
// current score, and worse moves with probability exp(delta/T) where T
// cools linearly from InitialTemperature to zero over the budget. At most
// RegressionsPerWindow worse moves are accepted in each Window of
// iterations.
type BoundedRegression struct {
	Tolerance            float64
	InitialTemperature   float64
	RegressionsPerWindow int
	Window               int
}

func (BoundedRegression) Name() string { return config.PolicyBoundedRegression }

// Temperature at iteration i of n.
func (p BoundedRegression) Temperature(i, n int) float64 {
	if n <= 0 {
		return 0
	}
	t := p.InitialTemperature * (1 - float64(i)/float64(n))
	return math.Max(t, 0)
}

func (p BoundedRegression) Accept(state *SearchState, proposed float64, rng *rand.Rand) bool {
	delta := proposed - state.Score
	// Sideways moves are free; they do not spend the window's allowance.
	if delta >= 0 {
		return true
	}

	window := p.Window
	if window <= 0 {
		window = 1
	}
	if w := state.Iteration / window; w != state.window {
		state.window = w
		state.windowRegressions = 0
	}
	if state.windowRegressions >= p.RegressionsPerWindow {
		return false
	}

	accept := -delta <= p.Tolerance
	if !accept {
		if t := p.Temperature(state.Iteration, state.Budget); t > 0 {
			accept = rng.Float64() < math.Exp(delta/t)
		}
	}
	if accept {
		state.windowRegressions++
	}
	return accept
}

// PolicyFromConfig builds the policy named in cfg.
func PolicyFromConfig(cfg config.Search) (AcceptancePolicy, error) {
	switch cfg.Policy {
	case config.PolicyHillClimb, "":
		return HillClimb{}, nil
	case config.PolicyBoundedRegression:
		return BoundedRegression{
			Tolerance:            cfg.Tolerance,
			InitialTemperature:   cfg.InitialTemperature,
			RegressionsPerWindow: cfg.RegressionsPerWindow,
			Window:               cfg.Window,
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown policy %q", ErrInvalidConfiguration, cfg.Policy)
	}
}
