package ciphers

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Format is a textual encoding of binary ciphertext.
type Format string

const (
	FormatHex     Format = "hex"
	FormatBase64  Format = "base64"
	FormatDecimal Format = "decimal"
	FormatBinary  Format = "binary"
)

// ParseFormat accepts a format name in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatHex, FormatBase64, FormatDecimal, FormatBinary:
		return f, nil
	case "":
		return FormatHex, nil
	default:
		return "", fmt.Errorf("unknown ciphertext format %q", s)
	}
}

// Encode renders data in format f.
func Encode(f Format, data []byte) string {
	switch f {
	case FormatBase64:
		return base64.StdEncoding.EncodeToString(data)
	case FormatDecimal:
		parts := make([]string, len(data))
		for i, b := range data {
			parts[i] = strconv.Itoa(int(b))
		}
		return strings.Join(parts, " ")
	case FormatBinary:
		parts := make([]string, len(data))
		for i, b := range data {
			parts[i] = fmt.Sprintf("%08b", b)
		}
		return strings.Join(parts, " ")
	default:
		return hex.EncodeToString(data)
	}
}

// Decode parses s as format f. Malformed input yields a *SymbolError.
func Decode(f Format, s string) ([]byte, error) {
	switch f {
	case FormatHex:
		return decodeHex(s)
	case FormatBase64:
		return decodeBase64(s)
	case FormatDecimal:
		return decodeDecimal(s)
	case FormatBinary:
		return decodeBinary(s)
	default:
		return nil, fmt.Errorf("unknown ciphertext format %q", f)
	}
}

func decodeHex(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	compact := make([]byte, 0, len(s))
	for i, r := range s {
		switch {
		case unicode.IsSpace(r) || r == ':':
		case r < 0x80 && isHexDigit(byte(r)):
			compact = append(compact, byte(r))
		default:
			return nil, symbolError(r, i, "not a hex digit")
		}
	}
	if len(compact)%2 != 0 {
		return nil, symbolError(rune(compact[len(compact)-1]), len(s)-1, "odd number of hex digits")
	}
	out := make([]byte, len(compact)/2)
	if _, err := hex.Decode(out, compact); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertextSymbol, err)
	}
	return out, nil
}

func isHexDigit(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'
}

func decodeBase64(s string) ([]byte, error) {
	s = strings.Join(strings.Fields(s), "")
	out, err := base64.StdEncoding.DecodeString(s)
	if err == nil {
		return out, nil
	}
	if raw, rawErr := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); rawErr == nil {
		return raw, nil
	}
	if cerr, ok := err.(base64.CorruptInputError); ok && int(cerr) < len(s) {
		return nil, symbolError(rune(s[int(cerr)]), int(cerr), "not base64")
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertextSymbol, err)
}

func decodeDecimal(s string) ([]byte, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return unicode.IsSpace(r) || r == ',' })
	out := make([]byte, 0, len(fields))
	offset := 0
	for _, field := range fields {
		offset = strings.Index(s[offset:], field) + offset
		n, err := strconv.Atoi(field)
		if err != nil || n < 0 || n > 255 {
			return nil, symbolError([]rune(field)[0], offset, "not a byte value")
		}
		out = append(out, byte(n))
		offset += len(field)
	}
	return out, nil
}

func decodeBinary(s string) ([]byte, error) {
	bits := make([]byte, 0, len(s))
	for i, r := range s {
		switch {
		case r == '0' || r == '1':
			bits = append(bits, byte(r))
		case unicode.IsSpace(r):
		default:
			return nil, symbolError(r, i, "not a binary digit")
		}
	}
	if len(bits)%8 != 0 {
		return nil, symbolError(rune(bits[len(bits)-1]), len(s)-1, "bit count is not a multiple of 8")
	}
	out := make([]byte, len(bits)/8)
	for i := range out {
		var b byte
		for _, bit := range bits[i*8 : i*8+8] {
			b = b<<1 | (bit - '0')
		}
		out[i] = b
	}
	return out, nil
}
