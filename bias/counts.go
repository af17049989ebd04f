package bias

import "fmt"

// Counts accumulates co-occurrence counts over trials. For every keystream
// position p and key index i it counts (ks[p] - K[i]) mod 256, and for every
// position it counts the raw keystream byte. When a Relation is observed it
// also counts (predicted - K[i]) mod 256 per position. Only the counts
// survive a trial; keys and keystreams are dropped.
type Counts struct {
	Positions int
	KeyLength int
	Trials    int

	pair      []uint64
	values    []uint64
	predicted []uint64
}

func NewCounts(positions, keyLength int) *Counts {
	return &Counts{
		Positions: positions,
		KeyLength: keyLength,
		pair:      make([]uint64, positions*keyLength*256),
		values:    make([]uint64, positions*256),
		predicted: make([]uint64, positions*keyLength*256),
	}
}

func (c *Counts) pairIndex(p, i, v int) int {
	return (p*c.KeyLength+i)*256 + v
}

// Observe records one trial.
func (c *Counts) Observe(key, ks []byte) {
	positions := min(c.Positions, len(ks))
	keyLength := min(c.KeyLength, len(key))
	for p := 0; p < positions; p++ {
		z := ks[p]
		c.values[p*256+int(z)]++
		for i := 0; i < keyLength; i++ {
			c.pair[c.pairIndex(p, i, int(z-key[i]))]++
		}
	}
	c.Trials++
}

// ObserveRelation records what rel predicted for each position of one
// trial. It does not count the trial; Observe does.
func (c *Counts) ObserveRelation(rel Relation, key, nonce, ks []byte) {
	positions := min(c.Positions, len(ks))
	keyLength := min(c.KeyLength, len(key))
	for p := 0; p < positions; p++ {
		i, v := rel(key, nonce, ks, p)
		if i < 0 || i >= keyLength {
			continue
		}
		c.predicted[c.pairIndex(p, i, int(v-key[i]))]++
	}
}

// Pair is how often ks[p] - K[i] equalled v.
func (c *Counts) Pair(p, i, v int) uint64 {
	return c.pair[c.pairIndex(p, i, v)]
}

// Value is how often ks[p] equalled v.
func (c *Counts) Value(p, v int) uint64 {
	return c.values[p*256+v]
}

// Predicted is how often the relation's guess for K[i] at position p was
// off by v.
func (c *Counts) Predicted(p, i, v int) uint64 {
	return c.predicted[c.pairIndex(p, i, v)]
}

// Merge adds other into c. Addition commutes, so merged counts do not
// depend on how the trials were split.
func (c *Counts) Merge(other *Counts) error {
	if other.Positions != c.Positions || other.KeyLength != c.KeyLength {
		return fmt.Errorf("%w: merging %dx%d counts into %dx%d",
			ErrInvalidConfiguration, other.Positions, other.KeyLength, c.Positions, c.KeyLength)
	}
	for i, n := range other.pair {
		c.pair[i] += n
	}
	for i, n := range other.values {
		c.values[i] += n
	}
	for i, n := range other.predicted {
		c.predicted[i] += n
	}
	c.Trials += other.Trials
	return nil
}
