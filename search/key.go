package search

import (
	"cmp"
	"encoding/hex"
	"fmt"
	"strings"

	"codebreaker/ciphers"
)

// Key is a shape-specific key. Compare orders keys of the same shape and
// decides ties between equal scores: the smaller key ranks first.
type Key interface {
	String() string
	Compare(other Key) int
}

// compareKeys falls back to the textual form when the keys come from
// different shapes.
func compareKeys(a, b Key) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return 1
		default:
			return -1
		}
	}
	return a.Compare(b)
}

// ShiftKey is a Caesar offset.
type ShiftKey int

func (k ShiftKey) String() string { return fmt.Sprintf("shift=%d", int(k)) }

func (k ShiftKey) Compare(other Key) int {
	if o, ok := other.(ShiftKey); ok {
		return cmp.Compare(k, o)
	}
	return strings.Compare(k.String(), other.String())
}

// RailKey is a rail count.
type RailKey int

func (k RailKey) String() string { return fmt.Sprintf("rails=%d", int(k)) }

func (k RailKey) Compare(other Key) int {
	if o, ok := other.(RailKey); ok {
		return cmp.Compare(k, o)
	}
	return strings.Compare(k.String(), other.String())
}

// BaconKey assigns the two symbols and picks the alphabet variant.
type BaconKey struct {
	A, B    rune
	Variant int
}

func (k BaconKey) String() string {
	return fmt.Sprintf("a=%q b=%q variant=%d", k.A, k.B, k.Variant)
}

func (k BaconKey) Compare(other Key) int {
	o, ok := other.(BaconKey)
	if !ok {
		return strings.Compare(k.String(), other.String())
	}
	if c := cmp.Compare(k.A, o.A); c != 0 {
		return c
	}
	if c := cmp.Compare(k.B, o.B); c != 0 {
		return c
	}
	return cmp.Compare(k.Variant, o.Variant)
}

// GridKey is one Polybius layout hypothesis. Index is its position in the
// enumeration and orders keys.
type GridKey struct {
	Index int
	Name  string
	Grid  *ciphers.Grid
}

func (k GridKey) String() string { return "grid=" + k.Name }

func (k GridKey) Compare(other Key) int {
	if o, ok := other.(GridKey); ok {
		return cmp.Compare(k.Index, o.Index)
	}
	return strings.Compare(k.String(), other.String())
}

// ADFGVXKey pairs a grid hypothesis with a transposition keyword.
type ADFGVXKey struct {
	Index    int
	GridName string
	Grid     *ciphers.Grid
	Keyword  string
}

func (k ADFGVXKey) String() string {
	return fmt.Sprintf("grid=%s keyword=%s", k.GridName, k.Keyword)
}

func (k ADFGVXKey) Compare(other Key) int {
	if o, ok := other.(ADFGVXKey); ok {
		return cmp.Compare(k.Index, o.Index)
	}
	return strings.Compare(k.String(), other.String())
}

// PassphraseKey is a dictionary guess for a stream cipher.
type PassphraseKey struct {
	Index      int
	Passphrase string
	Nonce      []byte
}

func (k PassphraseKey) String() string {
	if len(k.Nonce) > 0 {
		return fmt.Sprintf("key=%q nonce=%s", k.Passphrase, hex.EncodeToString(k.Nonce))
	}
	return fmt.Sprintf("key=%q", k.Passphrase)
}

func (k PassphraseKey) Compare(other Key) int {
	if o, ok := other.(PassphraseKey); ok {
		return cmp.Compare(k.Index, o.Index)
	}
	return strings.Compare(k.String(), other.String())
}

// BlockKey is a weak-key guess for the block cipher.
type BlockKey struct {
	Index int
	Name  string
	Bytes []byte
}

func (k BlockKey) String() string {
	return fmt.Sprintf("%s (%s)", k.Name, hex.EncodeToString(k.Bytes))
}

func (k BlockKey) Compare(other Key) int {
	if o, ok := other.(BlockKey); ok {
		return cmp.Compare(k.Index, o.Index)
	}
	return strings.Compare(k.String(), other.String())
}

// PermutationKey is a substitution key: ciphertext symbol Alphabet[i]
// decrypts to Mapping[i]. Label names the reduction it was found in.
type PermutationKey struct {
	Label    string
	Alphabet string
	Mapping  string
}

func (k PermutationKey) String() string {
	if k.Label != "" {
		return k.Label + " mapping=" + k.Mapping
	}
	return "mapping=" + k.Mapping
}

func (k PermutationKey) Compare(other Key) int {
	o, ok := other.(PermutationKey)
	if !ok {
		return strings.Compare(k.String(), other.String())
	}
	if c := strings.Compare(k.Label, o.Label); c != 0 {
		return c
	}
	return strings.Compare(k.Mapping, o.Mapping)
}
