// Package ciphers implements the classical and toy modern ciphers the
// search engine attacks. Every transform is a pure function of its input
// and key.
package ciphers

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCiphertextSymbol reports input the cipher's alphabet cannot
	// represent.
	ErrInvalidCiphertextSymbol = errors.New("invalid ciphertext symbol")

	ErrInvalidKey = errors.New("invalid key")
)

// SymbolError locates an unrepresentable symbol.
type SymbolError struct {
	Symbol rune
	Offset int
	Reason string
}

func (e *SymbolError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%v %q at offset %d: %s", ErrInvalidCiphertextSymbol, e.Symbol, e.Offset, e.Reason)
	}
	return fmt.Sprintf("%v %q at offset %d", ErrInvalidCiphertextSymbol, e.Symbol, e.Offset)
}

func (e *SymbolError) Unwrap() error { return ErrInvalidCiphertextSymbol }

func symbolError(r rune, offset int, reason string) error {
	return &SymbolError{Symbol: r, Offset: offset, Reason: reason}
}
