package bias

import (
	"cmp"
	"slices"
)

// HypothesisLabel is attached to every key hypothesis so nobody mistakes it
// for a recovered key.
const HypothesisLabel = "candidate key bytes"

// CandidateByte is the best-supported value for one key index.
type CandidateByte struct {
	Index      int     `json:"index"`
	Value      byte    `json:"value"`
	Confidence float64 `json:"confidence"`
	Votes      float64 `json:"votes"`
}

type KeyHypothesis struct {
	Label string          `json:"label"`
	Bytes []CandidateByte `json:"bytes"`
}

// Hypothesize votes for key bytes from keystreams observed under one
// unknown key. Each flagged finding (p, i, v) says ks[p] - K[i] tends to be
// v, so every observation votes K[i] = ks[p] - v with weight bias - 1.
// Keystream-only findings say nothing about the key and are ignored, as are
// relation findings, whose guesses need the nonce and earlier key bytes.
func Hypothesize(flagged []Finding, observed [][]byte) KeyHypothesis {
	votes := make(map[int]*[256]float64)
	for _, f := range flagged {
		if f.KeyIndex == KeystreamOnly || f.Predicted || f.Bias <= 1 {
			continue
		}
		tally, ok := votes[f.KeyIndex]
		if !ok {
			tally = new([256]float64)
			votes[f.KeyIndex] = tally
		}
		for _, ks := range observed {
			if f.Position >= len(ks) {
				continue
			}
			guess := ks[f.Position] - byte(f.Value)
			tally[guess] += f.Bias - 1
		}
	}

	h := KeyHypothesis{Label: HypothesisLabel, Bytes: []CandidateByte{}}
	for idx, tally := range votes {
		best, total := 0, 0.0
		for v, w := range tally {
			total += w
			if w > tally[best] {
				best = v
			}
		}
		if total == 0 {
			continue
		}
		h.Bytes = append(h.Bytes, CandidateByte{
			Index:      idx,
			Value:      byte(best),
			Confidence: tally[best] / total,
			Votes:      tally[best],
		})
	}
	slices.SortFunc(h.Bytes, func(a, b CandidateByte) int { return cmp.Compare(a.Index, b.Index) })
	return h
}

// Comparison scores a hypothesis against a known key.
type Comparison struct {
	Matched int    `json:"matched"`
	Total   int    `json:"total"`
	Correct []bool `json:"correct"`
}

// CompareWithKey checks a hypothesis against the true key. This only makes
// sense in a controlled experiment: an attacker has no key to compare with,
// so nothing in the analysis path calls it.
func CompareWithKey(h KeyHypothesis, key []byte) Comparison {
	c := Comparison{Correct: make([]bool, len(h.Bytes))}
	for n, b := range h.Bytes {
		if b.Index >= len(key) {
			continue
		}
		c.Total++
		if key[b.Index] == b.Value {
			c.Matched++
			c.Correct[n] = true
		}
	}
	return c
}
