package bias

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codebreaker/config"
)

func testConfig(cipher string, trials int) config.Bias {
	cfg := config.DefaultConfig().Bias
	cfg.Cipher = cipher
	cfg.Trials = trials
	cfg.Positions = 8
	cfg.KeyLength = 4
	cfg.Seed = 7
	cfg.Workers = 4
	return cfg
}

func analyze(t *testing.T, cfg config.Bias, opts ...Option) *Report {
	t.Helper()
	a, err := NewAnalyzer(cfg, opts...)
	require.NoError(t, err)
	r, err := a.Analyze(context.Background())
	require.NoError(t, err)
	return r
}

func TestInjectedBiasIsFlagged(t *testing.T) {
	r := analyze(t, testConfig("synthetic", 100000))

	require.NoError(t, r.Degraded)
	require.NotEmpty(t, r.Flagged)
	top := r.Flagged[0]
	assert.Equal(t, 3, top.Position)
	assert.Equal(t, 1, top.KeyIndex)
	assert.Equal(t, 0, top.Value)
	assert.Greater(t, top.Bias, 5.0)
	assert.Len(t, r.Flagged, 1, "only the planted cell is significant")
	assert.Equal(t, 100000, r.Trials)
	assert.InDelta(t, 100000.0/256, r.ExpectedUniform, 1e-9)
	assert.False(t, r.Truncated)
}

func TestUnbiasedGeneratorFlagsNothing(t *testing.T) {
	r := analyze(t, testConfig("uniform", 100000))

	assert.Empty(t, r.Flagged)
	assert.Empty(t, r.KeystreamFlagged)
	assert.ErrorIs(t, r.Degraded, ErrInsufficientBiasSignal)
	assert.Equal(t, ErrInsufficientBiasSignal.Error(), r.Status)
	assert.Equal(t, 100000, r.Trials)
	assert.Greater(t, r.MaxBias, 1.0)
	assert.Less(t, r.MaxBias, 2.0)
}

func TestUnbiasedRatiosStayNearOne(t *testing.T) {
	a, err := NewAnalyzer(testConfig("uniform", 100000))
	require.NoError(t, err)
	counts, err := a.Collect(context.Background())
	require.NoError(t, err)

	expected := float64(counts.Trials) / 256
	for p := 0; p < counts.Positions; p++ {
		for i := 0; i < counts.KeyLength; i++ {
			for v := 0; v < 256; v++ {
				ratio := float64(counts.Pair(p, i, v)) / expected
				if ratio < 0.5 || ratio > 2.0 {
					t.Fatalf("cell (%d, %d, %d) ratio %.2f", p, i, v, ratio)
				}
			}
		}
	}
}

func TestTooFewTrials(t *testing.T) {
	// The planted bias is real, but 500 trials expect under two hits per
	// cell, far below the minimum expected count.
	r := analyze(t, testConfig("synthetic", 500))

	assert.Empty(t, r.Flagged)
	assert.ErrorIs(t, r.Degraded, ErrInsufficientBiasSignal)
	assert.Equal(t, 500, r.Trials)
	assert.Positive(t, r.MaxBias)
}

func TestRC4SecondByteBias(t *testing.T) {
	cfg := testConfig("rc4", 200000)
	cfg.KeyLength = 16
	cfg.Positions = 4
	cfg.Threshold = 1.75

	r := analyze(t, cfg)

	var found bool
	for _, f := range r.KeystreamFlagged {
		if f.Position == 1 && f.Value == 0 {
			found = true
			assert.InDelta(t, 2.0, f.Bias, 0.25)
		}
	}
	assert.True(t, found, "RC4 outputs zero as its second byte twice as often as it should")

	var second *StatisticalTest
	for i := range r.Uniformity {
		if r.Uniformity[i].Position == 1 && r.Uniformity[i].Name == "Chi-Square Uniformity" {
			second = &r.Uniformity[i]
		}
	}
	require.NotNil(t, second)
	assert.False(t, second.Passed)

	// A keystream-only bias names no key byte, so the run still has no
	// signal to report.
	assert.Empty(t, r.Flagged)
	assert.ErrorIs(t, r.Degraded, ErrInsufficientBiasSignal)
	assert.Equal(t, ErrInsufficientBiasSignal.Error(), r.Status)
}

func TestRC4KleinRelationIsFlagged(t *testing.T) {
	cfg := testConfig("rc4", 500000)
	cfg.NonceLength = 3
	cfg.Threshold = 1.1

	r := analyze(t, cfg)

	require.NoError(t, r.Degraded)
	assert.Equal(t, "klein", r.Relation)
	predicted := make(map[int]Finding)
	for _, f := range r.Flagged {
		if _, seen := predicted[f.KeyIndex]; f.Predicted && !seen {
			predicted[f.KeyIndex] = f
		}
	}
	for i := 0; i < cfg.KeyLength; i++ {
		f, ok := predicted[i]
		if !assert.True(t, ok, "K[%d] not flagged", i) {
			continue
		}
		assert.Equal(t, cfg.NonceLength+i-1, f.Position)
		assert.Equal(t, 0, f.Value)
		assert.InDelta(t, 1.36, f.Bias, 0.2)
		assert.GreaterOrEqual(t, f.ZScore, cfg.MinZScore)
	}
}

func TestKlein(t *testing.T) {
	nonce := []byte{3, 255, 7}
	key := []byte{0x10, 0x20, 0x30}
	ks := make([]byte, 8)

	tests := []struct {
		name  string
		p     int
		index int
	}{
		{"inside the nonce", 0, -1},
		{"last nonce byte predicts K[0]", 2, 0},
		{"last key byte", 4, 2},
		{"past the key", 5, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, _ := Klein(key, nonce, ks, tt.p)
			assert.Equal(t, tt.index, i)
		})
	}

	// With a zero key and nonce the schedule's first step swaps S[0] with
	// itself, so j = 0, S[1] = 1 and the relation for F[1] reads
	// S^-1[1 - ks[0]] - 1.
	i, v := Klein([]byte{0, 0}, nil, []byte{0x00}, 0)
	assert.Equal(t, 1, i)
	assert.Equal(t, byte(0), v)
}

func TestWithRelation(t *testing.T) {
	cfg := testConfig("rc4", 2000)
	cfg.NonceLength = 3

	off := analyze(t, cfg, WithRelation("", nil))
	assert.Empty(t, off.Relation)
	for _, f := range off.Flagged {
		assert.False(t, f.Predicted)
	}

	a, err := NewAnalyzer(cfg, WithRelation("always-right", func(key, nonce, ks []byte, p int) (int, byte) {
		if p != 0 {
			return -1, 0
		}
		return 2, key[2]
	}))
	require.NoError(t, err)
	counts, err := a.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2000), counts.Predicted(0, 2, 0))
}

func TestRelationCountsIndependentOfWorkers(t *testing.T) {
	var results []*Counts
	for _, workers := range []int{1, 5} {
		cfg := testConfig("rc4", 3000)
		cfg.NonceLength = 3
		cfg.Workers = workers
		a, err := NewAnalyzer(cfg)
		require.NoError(t, err)
		c, err := a.Collect(context.Background())
		require.NoError(t, err)
		results = append(results, c)
	}
	assert.Equal(t, results[0], results[1])
}

func TestWorkerCountIndependent(t *testing.T) {
	var results []*Counts
	for _, workers := range []int{1, 3, 8} {
		cfg := testConfig("synthetic", 5000)
		cfg.Workers = workers
		a, err := NewAnalyzer(cfg)
		require.NoError(t, err)
		c, err := a.Collect(context.Background())
		require.NoError(t, err)
		results = append(results, c)
	}
	assert.Equal(t, results[0], results[1])
	assert.Equal(t, results[0], results[2])
}

func TestFixedKey(t *testing.T) {
	cfg := testConfig("rc4", 1000)
	cfg.FixedKey = "00112233"
	cfg.NonceLength = 3

	a, err := NewAnalyzer(cfg)
	require.NoError(t, err)
	c, err := a.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000, c.Trials)

	cfg.FixedKey = "0011"
	_, err = NewAnalyzer(cfg)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestNewAnalyzerRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Bias)
	}{
		{"unknown cipher", func(c *config.Bias) { c.Cipher = "des" }},
		{"no trials", func(c *config.Bias) { c.Trials = 0 }},
		{"no key", func(c *config.Bias) { c.KeyLength = 0 }},
		{"no positions", func(c *config.Bias) { c.Positions = 0 }},
		{"bad fixed key", func(c *config.Bias) { c.FixedKey = "zz" }},
		{"rc4 key over 256 bytes", func(c *config.Bias) {
			c.Cipher = "rc4"
			c.KeyLength = 250
			c.NonceLength = 8
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("synthetic", 10)
			tt.mutate(&cfg)
			_, err := NewAnalyzer(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfiguration)
		})
	}
}

func TestCancelledAnalysisIsTruncated(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	a, err := NewAnalyzer(testConfig("synthetic", 100000))
	require.NoError(t, err)
	r, err := a.Analyze(ctx)
	require.NoError(t, err)
	assert.True(t, r.Truncated)
	assert.Less(t, r.Trials, 100000)
}

func TestProgressReportsEveryTrial(t *testing.T) {
	var seen atomic.Int64
	analyze(t, testConfig("uniform", 10000), WithProgress(func(n int) { seen.Add(int64(n)) }))
	assert.Equal(t, int64(10000), seen.Load())
}

func TestHypothesize(t *testing.T) {
	cfg := testConfig("synthetic", 100000)
	a, err := NewAnalyzer(cfg)
	require.NoError(t, err)
	r, err := a.Analyze(context.Background())
	require.NoError(t, err)

	target := []byte{0x13, 0xc7, 0x55, 0x2e}
	observed, err := a.Keystreams(target, RandomBytes(99, 400, 8))
	require.NoError(t, err)

	h := Hypothesize(r.Flagged, observed)
	assert.Equal(t, HypothesisLabel, h.Label)
	require.Len(t, h.Bytes, 1)
	assert.Equal(t, 1, h.Bytes[0].Index)
	assert.Equal(t, byte(0xc7), h.Bytes[0].Value)
	assert.Greater(t, h.Bytes[0].Confidence, 0.0)

	cmp := CompareWithKey(h, target)
	assert.Equal(t, 1, cmp.Matched)
	assert.Equal(t, 1, cmp.Total)
	assert.Equal(t, []bool{true}, cmp.Correct)
}

func TestHypothesizeIgnoresKeystreamOnlyFindings(t *testing.T) {
	flagged := []Finding{
		{Sample: Sample{Position: 1, KeyIndex: KeystreamOnly, Value: 0}, Bias: 2},
		{Sample: Sample{Position: 2, KeyIndex: 0, Value: 0, Predicted: true}, Bias: 1.4},
	}
	h := Hypothesize(flagged, [][]byte{{1, 2, 3}})
	assert.Empty(t, h.Bytes)
	assert.NotNil(t, h.Bytes)
}

func TestSaveReport(t *testing.T) {
	r := analyze(t, testConfig("synthetic", 20000))
	path := filepath.Join(t.TempDir(), "bias.json")
	require.NoError(t, SaveReport(path, r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "synthetic", decoded["cipher"])
	assert.EqualValues(t, 20000, decoded["trials"])
	assert.NotContains(t, decoded, "Degraded")
}

func BenchmarkCollect(b *testing.B) {
	cfg := testConfig("rc4", 2048)
	cfg.Workers = 1
	a, err := NewAnalyzer(cfg)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if _, err := a.Collect(context.Background()); err != nil {
			b.Fatal(err)
		}
	}
}
