package bias

// Relation is a known weak relation of a keystream generator. For keystream
// position p it names the key index i it speaks about and its guess v for
// K[i], computed from what an eavesdropper holds: the nonce, the keystream
// and the key bytes recovered before i. i < 0 means p says nothing.
type Relation func(key, nonce, ks []byte, p int) (i int, v byte)

// RelationFor returns the relation known for a generator name, or nil.
func RelationFor(name string) (string, Relation) {
	switch name {
	case "rc4":
		return "klein", Klein
	default:
		return "", nil
	}
}

// Klein is Klein's RC4 relation. RC4 is keyed with F = nonce||key. After
// the first f steps of the key schedule, with state S and index j,
//
//	F[f] = S^-1[f - ks[f-1]] - (j + S[f])
//
// holds with probability about 1.36/256. Position p therefore predicts
// F[p+1], which is secret key byte p+1-len(nonce).
func Klein(key, nonce, ks []byte, p int) (int, byte) {
	f := p + 1
	i := f - len(nonce)
	if i < 0 || i >= len(key) || p >= len(ks) || f > 255 {
		return -1, 0
	}

	var s [256]byte
	for x := range s {
		s[x] = byte(x)
	}
	var j byte
	for x := 0; x < f; x++ {
		k := byte(0)
		if x < len(nonce) {
			k = nonce[x]
		} else {
			k = key[x-len(nonce)]
		}
		j += s[x] + k
		s[x], s[j] = s[j], s[x]
	}

	target := byte(f) - ks[p]
	var inv byte
	for x, v := range s {
		if v == target {
			inv = byte(x)
			break
		}
	}
	return i, inv - (j + s[f])
}
