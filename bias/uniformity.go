package bias

import (
	"fmt"
	"math"
)

// Uniformity test thresholds
const (
	// P-value below which a position is called non-uniform
	minPValue = 0.01

	// Shannon entropy, in bits per byte, of a healthy keystream position
	minEntropyBits = 7.9
	maxEntropyBits = 8.0

	// Degrees of freedom for a byte histogram
	byteDegreesOfFreedom = 255
)

// StatisticalTest is one diagnostic over a keystream position.
type StatisticalTest struct {
	Name     string  `json:"name"`
	Position int     `json:"position"`
	Score    float64 `json:"score"`
	Passed   bool    `json:"passed"`
	Details  string  `json:"details"`
}

// calculateEntropy returns the Shannon entropy of a byte histogram in bits.
func calculateEntropy(hist []uint64) float64 {
	var total uint64
	for _, n := range hist {
		total += n
	}
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, n := range hist {
		if n == 0 {
			continue
		}
		p := float64(n) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

// chiSquarePValue approximates the upper tail of a chi-square distribution
// with the Wilson-Hilferty transform, which is accurate for df this large.
func chiSquarePValue(chi float64, df int) float64 {
	k := float64(df)
	z := (math.Cbrt(chi/k) - (1 - 2/(9*k))) / math.Sqrt(2/(9*k))
	return 0.5 * math.Erfc(z/math.Sqrt2)
}

// runChiSquareTest checks a position's histogram against the uniform
// distribution over 256 values.
func runChiSquareTest(position int, hist []uint64) StatisticalTest {
	var total uint64
	for _, n := range hist {
		total += n
	}
	expected := float64(total) / 256
	chi := 0.0
	for _, n := range hist {
		d := float64(n) - expected
		chi += d * d / expected
	}
	pValue := chiSquarePValue(chi, byteDegreesOfFreedom)

	return StatisticalTest{
		Name:     "Chi-Square Uniformity",
		Position: position,
		Score:    pValue,
		Passed:   pValue >= minPValue,
		Details:  fmt.Sprintf("Chi-square: %.2f (df: %d, p-value: %.4f)", chi, byteDegreesOfFreedom, pValue),
	}
}

func runEntropyTest(position int, hist []uint64) StatisticalTest {
	entropy := calculateEntropy(hist)
	return StatisticalTest{
		Name:     "Shannon Entropy",
		Position: position,
		Score:    entropy / maxEntropyBits,
		Passed:   entropy >= minEntropyBits,
		Details:  fmt.Sprintf("Entropy: %.4f bits per byte", entropy),
	}
}

// runUniformityTests runs every diagnostic over every position that saw at
// least one trial.
func runUniformityTests(c *Counts) []StatisticalTest {
	if c.Trials == 0 {
		return nil
	}
	tests := make([]StatisticalTest, 0, 2*c.Positions)
	for p := 0; p < c.Positions; p++ {
		hist := c.values[p*256 : (p+1)*256]
		tests = append(tests, runChiSquareTest(p, hist), runEntropyTest(p, hist))
	}
	return tests
}

// aggregateTestResults combines test scores into a single pass rate.
func aggregateTestResults(tests []StatisticalTest) float64 {
	if len(tests) == 0 {
		return 0.0
	}
	passed := 0
	for _, test := range tests {
		if test.Passed {
			passed++
		}
	}
	return float64(passed) / float64(len(tests))
}
