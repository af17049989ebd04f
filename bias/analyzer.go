// Package bias measures statistical bias in stream-cipher keystreams. It
// only ever looks at keystream bytes; no decryption is involved.
package bias

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"codebreaker/ciphers"
	"codebreaker/config"
	"codebreaker/logging"
)

// progressInterval is how many trials a worker runs between context checks
// and progress reports.
const progressInterval = 1024

type Analyzer struct {
	cfg       config.Bias
	name      string
	keystream ciphers.KeystreamFunc
	fixedKey  []byte
	relName   string
	relation  Relation
	relSet    bool
	logger    *logging.Logger
	progress  func(trials int)
}

type Option func(*Analyzer)

func WithLogger(l *logging.Logger) Option {
	return func(a *Analyzer) { a.logger = l }
}

// WithProgress registers fn to receive trial counts as workers finish
// them. fn is called from several goroutines.
func WithProgress(fn func(trials int)) Option {
	return func(a *Analyzer) { a.progress = fn }
}

// WithKeystream analyzes fn instead of the generator named in the config.
func WithKeystream(name string, fn ciphers.KeystreamFunc) Option {
	return func(a *Analyzer) {
		a.name = name
		a.keystream = fn
	}
}

// WithRelation counts fn's predictions alongside the generic differences.
// A nil fn turns relation counting off.
func WithRelation(name string, fn Relation) Option {
	return func(a *Analyzer) {
		a.relName = name
		a.relation = fn
		a.relSet = true
	}
}

func NewAnalyzer(cfg config.Bias, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{cfg: cfg, name: cfg.Cipher, logger: logging.Discard()}
	for _, opt := range opts {
		opt(a)
	}
	if a.keystream == nil {
		ks, err := Keystream(cfg.Cipher)
		if err != nil {
			return nil, err
		}
		a.keystream = ks
	}
	if !a.relSet {
		a.relName, a.relation = RelationFor(a.name)
	}

	switch {
	case cfg.Trials < 1:
		return nil, fmt.Errorf("%w: bias analysis needs at least one trial", ErrInvalidConfiguration)
	case cfg.KeyLength < 1:
		return nil, fmt.Errorf("%w: key length must be positive", ErrInvalidConfiguration)
	case cfg.Positions < 1:
		return nil, fmt.Errorf("%w: at least one keystream position is needed", ErrInvalidConfiguration)
	case cfg.NonceLength < 0:
		return nil, fmt.Errorf("%w: negative nonce length", ErrInvalidConfiguration)
	case a.name == "rc4" && cfg.NonceLength+cfg.KeyLength > config.MaxRC4KeyLength:
		return nil, fmt.Errorf("%w: rc4 nonce and key total %d bytes, at most %d allowed",
			ErrInvalidConfiguration, cfg.NonceLength+cfg.KeyLength, config.MaxRC4KeyLength)
	}
	if cfg.FixedKey != "" {
		key, err := hex.DecodeString(cfg.FixedKey)
		if err != nil {
			return nil, fmt.Errorf("%w: fixed key: %v", ErrInvalidConfiguration, err)
		}
		if len(key) != cfg.KeyLength {
			return nil, fmt.Errorf("%w: fixed key has %d bytes, key length is %d", ErrInvalidConfiguration, len(key), cfg.KeyLength)
		}
		a.fixedKey = key
	}
	return a, nil
}

func (a *Analyzer) workers() int {
	w := max(a.cfg.Workers, 1)
	return min(w, a.cfg.Trials)
}

func (a *Analyzer) rules() Rules {
	return Rules{
		Threshold:        a.cfg.Threshold,
		MinExpectedCount: a.cfg.MinExpectedCount,
		MinZScore:        a.cfg.MinZScore,
	}
}

// Analyze collects counts over the configured trials and reduces them.
// Cancelling ctx stops the workers early; the report then covers the
// trials that ran and is marked Truncated.
func (a *Analyzer) Analyze(ctx context.Context) (*Report, error) {
	ctx, span := startAnalysisSpan(ctx, a.name, a.cfg.Trials, a.workers())
	defer span.End()

	start := time.Now()
	runID := uuid.NewString()
	log := a.logger.With("run_id", runID, "cipher", a.name)
	log.Info("starting bias analysis",
		"trials", a.cfg.Trials,
		"workers", a.workers(),
		"positions", a.cfg.Positions,
		"key_length", a.cfg.KeyLength,
		"relation", a.relName,
	)

	counts, err := a.Collect(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("collecting keystream counts", "err", err)
		return nil, err
	}

	report := Reduce(counts, a.rules())
	report.RunID = runID
	report.Cipher = a.name
	report.Relation = a.relName
	report.Truncated = counts.Trials < a.cfg.Trials
	report.Duration = time.Since(start)
	recordAnalysisMetrics(ctx, span, report)

	if report.Degraded != nil {
		log.Warn("no significant bias",
			"trials", report.Trials,
			"max_bias", report.MaxBias,
		)
	}
	log.Info("bias analysis finished",
		"trials", report.Trials,
		"flagged", len(report.Flagged),
		"keystream_flagged", len(report.KeystreamFlagged),
		"max_bias", report.MaxBias,
		"duration", report.Duration,
	)
	return report, nil
}

// Collect runs the trials across the worker pool and sums the per-worker
// counts. Trial t always draws from the same seeded stream, so the sum does
// not depend on the number of workers.
func (a *Analyzer) Collect(ctx context.Context) (*Counts, error) {
	workerCount := a.workers()
	parts := make([]*Counts, workerCount)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workerCount; w++ {
		lo := w * a.cfg.Trials / workerCount
		hi := (w + 1) * a.cfg.Trials / workerCount
		g.Go(func() error {
			c, err := a.worker(gctx, w, lo, hi)
			parts[w] = c
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := NewCounts(a.cfg.Positions, a.cfg.KeyLength)
	for _, part := range parts {
		if err := total.Merge(part); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func (a *Analyzer) worker(ctx context.Context, workerID, lo, hi int) (*Counts, error) {
	counts := NewCounts(a.cfg.Positions, a.cfg.KeyLength)
	key := make([]byte, a.cfg.KeyLength)
	nonce := make([]byte, a.cfg.NonceLength)
	pending := 0

	for t := lo; t < hi; t++ {
		if (t-lo)%progressInterval == 0 {
			if ctx.Err() != nil {
				a.logger.Debug("worker cancelled", "worker", workerID, "done", t-lo)
				break
			}
			if a.progress != nil && pending > 0 {
				a.progress(pending)
				pending = 0
			}
		}

		rng := rand.New(rand.NewPCG(a.cfg.Seed, uint64(t)))
		if a.fixedKey != nil {
			copy(key, a.fixedKey)
		} else {
			fillRandom(rng, key)
		}
		fillRandom(rng, nonce)

		ks, err := a.keystream(key, nonce, a.cfg.Positions)
		if err != nil {
			return counts, fmt.Errorf("worker %d trial %d: %w", workerID, t, err)
		}
		counts.Observe(key, ks)
		if a.relation != nil {
			counts.ObserveRelation(a.relation, key, nonce, ks)
		}
		pending++
	}
	if a.progress != nil && pending > 0 {
		a.progress(pending)
	}
	return counts, nil
}

// Keystreams generates one keystream per nonce under key, standing in for
// traffic captured from a target.
func (a *Analyzer) Keystreams(key []byte, nonces [][]byte) ([][]byte, error) {
	out := make([][]byte, 0, len(nonces))
	for _, n := range nonces {
		ks, err := a.keystream(key, n, a.cfg.Positions)
		if err != nil {
			return nil, err
		}
		out = append(out, ks)
	}
	return out, nil
}

// RandomBytes draws count seeded byte strings of the given length.
func RandomBytes(seed uint64, count, length int) [][]byte {
	rng := rand.New(rand.NewPCG(seed, 0x6e6f6e6365))
	out := make([][]byte, count)
	for i := range out {
		out[i] = make([]byte, length)
		fillRandom(rng, out[i])
	}
	return out
}

func fillRandom(rng *rand.Rand, b []byte) {
	var buf [8]byte
	for i := 0; i < len(b); i += 8 {
		binary.LittleEndian.PutUint64(buf[:], rng.Uint64())
		copy(b[i:], buf[:])
	}
}
