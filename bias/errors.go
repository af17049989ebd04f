package bias

import (
	"errors"

	"codebreaker/config"
)

var (
	// ErrInsufficientBiasSignal means no cell crossed the significance
	// rules. The report still carries the largest ratio seen and the trial
	// count so the caller can decide whether to run longer.
	ErrInsufficientBiasSignal = errors.New("insufficient bias signal")
	ErrInvalidConfiguration   = config.ErrInvalidConfiguration
)
