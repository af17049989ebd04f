package bias

import (
	"cmp"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"slices"
	"time"
)

// KeystreamOnly marks findings about a raw keystream byte rather than a
// keystream/key difference.
const KeystreamOnly = -1

// Sample is one counted cell.
type Sample struct {
	Position int    `json:"position"`
	KeyIndex int    `json:"key_index"`
	Value    int    `json:"value"`
	Observed uint64 `json:"observed"`
	Trials   int    `json:"trials"`
	// Predicted marks cells counted against the generator's relation:
	// Value is then the relation's guess for K[KeyIndex] minus K[KeyIndex].
	Predicted bool `json:"predicted,omitempty"`
}

// Finding is a cell that passed the significance rules. Bias is observed
// over the count a uniform keystream would give.
type Finding struct {
	Sample
	Expected float64 `json:"expected"`
	Bias     float64 `json:"bias"`
	ZScore   float64 `json:"z_score"`
}

func (f Finding) String() string {
	if f.KeyIndex == KeystreamOnly {
		return fmt.Sprintf("ks[%d] = %d: %.2fx (z=%.1f)", f.Position, f.Value, f.Bias, f.ZScore)
	}
	if f.Predicted {
		return fmt.Sprintf("predict(ks[%d]) - K[%d] = %d: %.2fx (z=%.1f)", f.Position, f.KeyIndex, f.Value, f.Bias, f.ZScore)
	}
	return fmt.Sprintf("ks[%d] - K[%d] = %d: %.2fx (z=%.1f)", f.Position, f.KeyIndex, f.Value, f.Bias, f.ZScore)
}

// Report is the reduced outcome of an analysis. Flagged findings describe
// candidate key bytes, never a recovered key. A report with no key-related
// finding is degraded even when KeystreamFlagged is not empty.
type Report struct {
	RunID            string            `json:"run_id"`
	Cipher           string            `json:"cipher"`
	Relation         string            `json:"relation,omitempty"`
	Trials           int               `json:"trials"`
	ExpectedUniform  float64           `json:"expected_uniform"`
	Flagged          []Finding         `json:"flagged"`
	KeystreamFlagged []Finding         `json:"keystream_flagged"`
	MaxBias          float64           `json:"max_bias"`
	MaxBiasAt        Sample            `json:"max_bias_at"`
	Uniformity       []StatisticalTest `json:"uniformity"`
	UniformPassRate  float64           `json:"uniform_pass_rate"`
	Truncated        bool              `json:"truncated"`
	Status           string            `json:"status"`
	Duration         time.Duration     `json:"duration"`
	Degraded         error             `json:"-"`
}

// Rules decide which cells are significant.
type Rules struct {
	Threshold        float64
	MinExpectedCount float64
	MinZScore        float64
}

func (r Rules) flag(observed uint64, expected float64) (bias, z float64, ok bool) {
	if expected <= 0 {
		return 0, 0, false
	}
	bias = float64(observed) / expected
	z = (float64(observed) - expected) / math.Sqrt(expected)
	ok = expected >= r.MinExpectedCount && bias > r.Threshold && z >= r.MinZScore
	return bias, z, ok
}

// Reduce turns counts into a report. It reads nothing but the counts.
func Reduce(c *Counts, rules Rules) *Report {
	r := &Report{
		Trials:           c.Trials,
		Flagged:          []Finding{},
		KeystreamFlagged: []Finding{},
		Status:           "ok",
	}
	if c.Trials == 0 {
		r.Degraded = ErrInsufficientBiasSignal
		r.Status = r.Degraded.Error()
		return r
	}
	expected := float64(c.Trials) / 256
	r.ExpectedUniform = expected

	consider := func(s Sample, into *[]Finding) {
		bias, z, ok := rules.flag(s.Observed, expected)
		if bias > r.MaxBias {
			r.MaxBias = bias
			r.MaxBiasAt = s
		}
		if ok {
			*into = append(*into, Finding{Sample: s, Expected: expected, Bias: bias, ZScore: z})
		}
	}

	for p := 0; p < c.Positions; p++ {
		for i := 0; i < c.KeyLength; i++ {
			for v := 0; v < 256; v++ {
				consider(Sample{Position: p, KeyIndex: i, Value: v, Observed: c.Pair(p, i, v), Trials: c.Trials}, &r.Flagged)
			}
			for v := 0; v < 256; v++ {
				n := c.Predicted(p, i, v)
				if n == 0 {
					continue
				}
				consider(Sample{Position: p, KeyIndex: i, Value: v, Observed: n, Trials: c.Trials, Predicted: true}, &r.Flagged)
			}
		}
		for v := 0; v < 256; v++ {
			consider(Sample{Position: p, KeyIndex: KeystreamOnly, Value: v, Observed: c.Value(p, v), Trials: c.Trials}, &r.KeystreamFlagged)
		}
	}
	sortFindings(r.Flagged)
	sortFindings(r.KeystreamFlagged)

	r.Uniformity = runUniformityTests(c)
	r.UniformPassRate = aggregateTestResults(r.Uniformity)

	if len(r.Flagged) == 0 {
		r.Degraded = ErrInsufficientBiasSignal
		r.Status = r.Degraded.Error()
	}
	return r
}

func sortFindings(f []Finding) {
	slices.SortStableFunc(f, func(a, b Finding) int {
		if c := cmp.Compare(b.Bias, a.Bias); c != 0 {
			return c
		}
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		if c := cmp.Compare(a.KeyIndex, b.KeyIndex); c != 0 {
			return c
		}
		if a.Predicted != b.Predicted {
			if a.Predicted {
				return 1
			}
			return -1
		}
		return cmp.Compare(a.Value, b.Value)
	})
}

// SaveReport writes r as indented JSON.
func SaveReport(path string, r *Report) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report file: %w", err)
	}
	return nil
}
