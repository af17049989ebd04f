package bias

import (
	"fmt"
	"hash/fnv"
	"math/rand/v2"

	"codebreaker/ciphers"
)

// Synthetic returns a keystream generator seeded from FNV-1a of nonce||key.
// With inject set, whenever ks[5] < 16 the generator copies K[1] into
// ks[3], planting a (position 3, key index 1, value 0) bias of about 17x.
// Without it the output is uniform, which makes it a control.
func Synthetic(inject bool) ciphers.KeystreamFunc {
	return func(key, nonce []byte, length int) ([]byte, error) {
		if len(key) == 0 {
			return nil, fmt.Errorf("%w: empty synthetic key", ciphers.ErrInvalidKey)
		}
		h := fnv.New64a()
		h.Write(nonce)
		h.Write(key)
		seed := h.Sum64()
		rng := rand.New(rand.NewPCG(seed, seed>>1|1))

		ks := make([]byte, max(length, 6))
		for i := range ks {
			ks[i] = byte(rng.Uint32())
		}
		if inject && len(key) > 1 && ks[5] < 16 {
			ks[3] = key[1]
		}
		return ks[:length], nil
	}
}

// Keystream resolves a cipher name from configuration.
func Keystream(name string) (ciphers.KeystreamFunc, error) {
	switch name {
	case "rc4":
		return ciphers.RC4Keystream, nil
	case "chacha20":
		return ciphers.ChaCha20Keystream, nil
	case "synthetic":
		return Synthetic(true), nil
	case "uniform":
		return Synthetic(false), nil
	default:
		return nil, fmt.Errorf("%w: unknown keystream %q", ErrInvalidConfiguration, name)
	}
}
