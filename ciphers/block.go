package ciphers

import (
	"bytes"
	"errors"
	"fmt"
	"math/bits"
	"math/rand/v2"
)

// Block padding schemes.
const (
	PaddingPKCS7 = "pkcs7"
	PaddingZero  = "zero"
)

// sboxSeed fixes the S-box so every Block agrees on it.
const sboxSeed = 0x5eed

var ErrBadPadding = errors.New("bad padding")

var (
	sbox    [256]byte
	sboxInv [256]byte
	// pbox moves bit i of a byte to bit pbox[i].
	pbox = [8]int{5, 2, 7, 0, 3, 6, 1, 4}
)

func init() {
	perm := rand.New(rand.NewPCG(sboxSeed, sboxSeed)).Perm(256)
	for i, v := range perm {
		sbox[i] = byte(v)
		sboxInv[v] = byte(i)
	}
}

// Block is a small substitution-permutation network. It exists to give the
// search engine a modern-style cipher whose real key space is out of reach.
type Block struct {
	// BlockSize is 4, 8 or 16 bytes.
	BlockSize int
	// Rounds is 1..16.
	Rounds  int
	Padding string
}

// DefaultBlock is an 8-byte, 4-round SPN with PKCS#7 padding.
func DefaultBlock() Block {
	return Block{BlockSize: 8, Rounds: 4, Padding: PaddingPKCS7}
}

func (c Block) check(key []byte) error {
	switch c.BlockSize {
	case 4, 8, 16:
	default:
		return fmt.Errorf("%w: block size %d", ErrInvalidKey, c.BlockSize)
	}
	if c.Rounds < 1 || c.Rounds > 16 {
		return fmt.Errorf("%w: %d rounds", ErrInvalidKey, c.Rounds)
	}
	if len(key) == 0 {
		return fmt.Errorf("%w: empty block key", ErrInvalidKey)
	}
	return nil
}

// roundKeys expands key to Rounds+1 keys of BlockSize bytes each. Short
// keys repeat and long keys are truncated.
func (c Block) roundKeys(key []byte) [][]byte {
	keys := make([][]byte, c.Rounds+1)
	for r := range keys {
		k := make([]byte, c.BlockSize)
		for i := range k {
			k[i] = key[(i+r)%len(key)] ^ byte(r) ^ byte(i)
		}
		keys[r] = k
	}
	return keys
}

func permuteBits(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		if b&(1<<i) != 0 {
			out |= 1 << pbox[i]
		}
	}
	return out
}

func unpermuteBits(b byte) byte {
	var out byte
	for i := 0; i < 8; i++ {
		if b&(1<<pbox[i]) != 0 {
			out |= 1 << i
		}
	}
	return out
}

func (c Block) encryptBlock(dst, src []byte, keys [][]byte) {
	n := c.BlockSize
	state := make([]byte, n)
	copy(state, src)
	for r := 0; r < c.Rounds; r++ {
		for i := range state {
			state[i] = permuteBits(sbox[state[i]^keys[r][i]])
		}
		// Rotate one byte left so bits travel between bytes.
		first := state[0]
		copy(state, state[1:])
		state[n-1] = bits.RotateLeft8(first, 1)
	}
	for i := range state {
		dst[i] = state[i] ^ keys[c.Rounds][i]
	}
}

func (c Block) decryptBlock(dst, src []byte, keys [][]byte) {
	n := c.BlockSize
	state := make([]byte, n)
	for i := range state {
		state[i] = src[i] ^ keys[c.Rounds][i]
	}
	for r := c.Rounds - 1; r >= 0; r-- {
		last := bits.RotateLeft8(state[n-1], -1)
		copy(state[1:], state[:n-1])
		state[0] = last
		for i := range state {
			state[i] = sboxInv[unpermuteBits(state[i])] ^ keys[r][i]
		}
	}
	copy(dst, state)
}

func (c Block) Encrypt(plaintext, key []byte) ([]byte, error) {
	if err := c.check(key); err != nil {
		return nil, err
	}
	data := c.pad(plaintext)
	keys := c.roundKeys(key)
	out := make([]byte, len(data))
	for i := 0; i < len(data); i += c.BlockSize {
		c.encryptBlock(out[i:i+c.BlockSize], data[i:i+c.BlockSize], keys)
	}
	return out, nil
}

func (c Block) Decrypt(ciphertext, key []byte) ([]byte, error) {
	if err := c.check(key); err != nil {
		return nil, err
	}
	if len(ciphertext) == 0 || len(ciphertext)%c.BlockSize != 0 {
		return nil, fmt.Errorf("%w: ciphertext length %d is not a multiple of %d", ErrInvalidCiphertextSymbol, len(ciphertext), c.BlockSize)
	}
	keys := c.roundKeys(key)
	out := make([]byte, len(ciphertext))
	for i := 0; i < len(ciphertext); i += c.BlockSize {
		c.decryptBlock(out[i:i+c.BlockSize], ciphertext[i:i+c.BlockSize], keys)
	}
	return c.unpad(out)
}

func (c Block) pad(data []byte) []byte {
	n := c.BlockSize
	if c.Padding == PaddingZero {
		if len(data)%n == 0 && len(data) > 0 {
			return append([]byte(nil), data...)
		}
		padded := make([]byte, (len(data)/n+1)*n)
		copy(padded, data)
		return padded
	}
	p := n - len(data)%n
	return append(append([]byte(nil), data...), bytes.Repeat([]byte{byte(p)}, p)...)
}

func (c Block) unpad(data []byte) ([]byte, error) {
	if c.Padding == PaddingZero {
		return bytes.TrimRight(data, "\x00"), nil
	}
	p := int(data[len(data)-1])
	if p == 0 || p > c.BlockSize || p > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-p:] {
		if int(b) != p {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-p], nil
}
