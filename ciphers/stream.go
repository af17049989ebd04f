package ciphers

import (
	"crypto/rc4"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// KeystreamFunc produces length keystream bytes for a key and an optional
// nonce.
type KeystreamFunc func(key, nonce []byte, length int) ([]byte, error)

// RC4Keystream keys RC4 with nonce||key, the way WEP prepends its IV.
func RC4Keystream(key, nonce []byte, length int) ([]byte, error) {
	full := make([]byte, 0, len(nonce)+len(key))
	full = append(full, nonce...)
	full = append(full, key...)
	c, err := rc4.NewCipher(full)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	ks := make([]byte, length)
	c.XORKeyStream(ks, ks)
	return ks, nil
}

// ChaCha20Keystream stretches or pads key to 32 bytes and nonce to 12 and
// returns the keystream from counter zero. Keys longer than 32 bytes are
// hashed with SHA-256.
func ChaCha20Keystream(key, nonce []byte, length int) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty chacha20 key", ErrInvalidKey)
	}
	k := make([]byte, chacha20.KeySize)
	if len(key) > chacha20.KeySize {
		sum := sha256.Sum256(key)
		copy(k, sum[:])
	} else {
		copy(k, key)
	}
	n := make([]byte, chacha20.NonceSize)
	copy(n, nonce)

	c, err := chacha20.NewUnauthenticatedCipher(k, n)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	ks := make([]byte, length)
	c.XORKeyStream(ks, ks)
	return ks, nil
}

// Stream is an XOR stream cipher over a keystream generator.
type Stream struct {
	Name      string
	Keystream KeystreamFunc
}

func RC4() Stream      { return Stream{Name: "rc4", Keystream: RC4Keystream} }
func ChaCha20() Stream { return Stream{Name: "chacha20", Keystream: ChaCha20Keystream} }

// XOR encrypts or decrypts data; the operation is its own inverse.
func (s Stream) XOR(data, key, nonce []byte) ([]byte, error) {
	ks, err := s.Keystream(key, nonce, len(data))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(data))
	for i := range data {
		out[i] = data[i] ^ ks[i]
	}
	return out, nil
}
