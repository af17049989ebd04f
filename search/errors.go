package search

import (
	"errors"

	"codebreaker/ciphers"
	"codebreaker/config"
)

// Conditions a run can end in. Only ErrInvalidConfiguration and
// ErrInvalidCiphertextSymbol are returned as errors; the others are
// recorded on Result.Degraded alongside whatever the run produced.
var (
	ErrEmptyKeySpace           = errors.New("empty key space")
	ErrDegenerateSearch        = errors.New("degenerate search: no improving move accepted")
	ErrNoCandidate             = errors.New("no candidate found")
	ErrInvalidCiphertextSymbol = ciphers.ErrInvalidCiphertextSymbol
	ErrInvalidConfiguration    = config.ErrInvalidConfiguration
)
