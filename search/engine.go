// Package search enumerates or explores cipher key spaces, scores each
// decryption and ranks the results.
package search

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"codebreaker/config"
	"codebreaker/logging"
	"codebreaker/scoring"
)

const (
	modeExhaustive = "exhaustive"
	modeOptimize   = "optimize"
	modeSolve      = "solve"

	statusOK = "ok"
)

// Result is the outcome of one run. Degraded is set when the run finished
// without a trustworthy answer; Candidates still holds whatever was found.
type Result struct {
	RunID      string        `json:"run_id"`
	Shape      string        `json:"shape"`
	Candidates []Candidate   `json:"candidates"`
	Evaluated  int           `json:"evaluated"`
	Skipped    int           `json:"skipped"`
	Truncated  bool          `json:"truncated"`
	Status     string        `json:"status"`
	Duration   time.Duration `json:"duration"`
	Degraded   error         `json:"-"`
}

func (r *Result) degrade(err error) {
	r.Degraded = err
	if err == nil {
		r.Status = statusOK
		return
	}
	r.Status = err.Error()
}

// Best returns the top candidate, if any.
func (r *Result) Best() (Candidate, bool) {
	if len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

type Engine struct {
	scorer *scoring.Scorer
	cfg    config.Search
	logger *logging.Logger
}

func NewEngine(scorer *scoring.Scorer, cfg config.Search, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Discard()
	}
	if scorer == nil {
		scorer = scoring.Default()
	}
	return &Engine{scorer: scorer, cfg: cfg, logger: logger}
}

func (e *Engine) Scorer() *scoring.Scorer { return e.scorer }

func (e *Engine) workers() int {
	if e.cfg.Workers < 1 {
		return 1
	}
	return e.cfg.Workers
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, e.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

func (e *Engine) newResult(shape string) *Result {
	return &Result{
		RunID:      uuid.NewString(),
		Shape:      shape,
		Candidates: []Candidate{},
		Status:     statusOK,
	}
}

// Exhaustive decrypts ciphertext under every key the shape describes and
// returns the top candidates.
func (e *Engine) Exhaustive(ctx context.Context, shape Shape, ciphertext string) (*Result, error) {
	ctx, span := startSearchSpan(ctx, shape.Name(), modeExhaustive)
	defer span.End()

	start := time.Now()
	res := e.newResult(shape.Name())
	log := e.logger.With("run_id", res.RunID, "shape", shape.Name())

	space, err := shape.KeySpace(ciphertext)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error("describing key space", "err", err)
		return nil, fmt.Errorf("%s key space: %w", shape.Name(), err)
	}
	log.Debug("enumerating", "keys", space.Size())

	if space.Size() == 0 {
		res.degrade(ErrEmptyKeySpace)
		e.finish(ctx, span, res, modeExhaustive, start)
		log.Info("nothing to enumerate")
		return res, nil
	}

	runCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	var (
		ranker    = NewRanker(e.cfg.TopK)
		filter, _ = shape.(Filter)
		notes, _  = shape.(Annotator)
		evaluated atomic.Int64
		skipped   atomic.Int64
		missed    atomic.Int64
	)

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(e.workers())
	for gctx.Err() == nil {
		key, ok := space.Next()
		if !ok {
			break
		}
		g.Go(func() error {
			plain, err := shape.Decrypt(ciphertext, key)
			switch {
			case isMiss(err):
				skipped.Add(1)
				missed.Add(1)
				return nil
			case err != nil:
				return fmt.Errorf("%s %s: %w", shape.Name(), key, err)
			}
			evaluated.Add(1)
			if filter != nil && !filter.Plausible(plain) {
				skipped.Add(1)
				return nil
			}
			c := Candidate{Key: key, Plaintext: plain, Score: e.scorer.Score(plain)}
			if notes != nil {
				c.Note = notes.Annotate(ciphertext, key)
			}
			ranker.Add(c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res.Evaluated = int(evaluated.Load())
	res.Skipped = int(skipped.Load())
	// Filtered keys count as evaluated and skipped; misses only as skipped.
	res.Truncated = res.Evaluated+int(missed.Load()) < space.Size()
	res.Candidates = ranker.Top()
	if len(res.Candidates) == 0 {
		res.degrade(ErrNoCandidate)
	}

	e.finish(ctx, span, res, modeExhaustive, start)
	log.Info("enumeration finished",
		"evaluated", res.Evaluated,
		"skipped", res.Skipped,
		"truncated", res.Truncated,
		"status", res.Status,
	)
	return res, nil
}

// Optimize runs local search over each reduction, Restarts times each,
// and ranks the best key of every run.
func (e *Engine) Optimize(ctx context.Context, name string, reductions []Reduction) (*Result, error) {
	ctx, span := startSearchSpan(ctx, name, modeOptimize)
	defer span.End()

	start := time.Now()
	res := e.newResult(name)
	log := e.logger.With("run_id", res.RunID, "shape", name)

	if len(reductions) == 0 {
		res.degrade(ErrEmptyKeySpace)
		e.finish(ctx, span, res, modeOptimize, start)
		return res, nil
	}

	policy, err := PolicyFromConfig(e.cfg)
	if err != nil {
		return nil, err
	}
	restarts := max(e.cfg.Restarts, 1)

	type task struct {
		reduction Reduction
		restart   int
	}
	var tasks []task
	for _, r := range reductions {
		for i := 0; i < restarts; i++ {
			tasks = append(tasks, task{reduction: r, restart: i})
		}
	}

	runCtx, cancel := e.withTimeout(ctx)
	defer cancel()

	best := make([]Candidate, len(tasks))
	states := make([]*SearchState, len(tasks))

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(e.workers())
	for i, t := range tasks {
		g.Go(func() error {
			initial := e.cfg.InitialKey
			if t.restart > 0 {
				initial = InitRandom
			}
			opt := Optimizer{
				Scorer:     e.scorer,
				Policy:     policy,
				Iterations: e.cfg.Iterations,
				StaleLimit: e.cfg.StaleLimit,
				InitialKey: initial,
				Order:      e.scorer.Model().Order(),
				Seed:       e.cfg.Seed + uint64(i),
			}
			c, st, err := opt.Run(gctx, t.reduction)
			if err != nil {
				return err
			}
			best[i], states[i] = c, st
			log.Debug("restart finished",
				"reduction", t.reduction.Label,
				"restart", t.restart,
				"score", c.Score,
				"improvements", st.Improvements,
				"regressions", st.Regressions,
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	degenerate := true
	for i, st := range states {
		res.Evaluated += st.Iteration
		res.Truncated = res.Truncated || st.Truncated
		degenerate = degenerate && best[i].Degenerate
	}
	res.Candidates = Rank(best, e.cfg.TopK)
	if degenerate {
		res.degrade(ErrDegenerateSearch)
	}

	e.finish(ctx, span, res, modeOptimize, start)
	log.Info("local search finished",
		"runs", len(tasks),
		"policy", policy.Name(),
		"evaluated", res.Evaluated,
		"status", res.Status,
	)
	return res, nil
}

// Solve enumerates the shape's key space and, when the shape can be
// reduced to a substitution, adds the local-search results to the ranking.
func (e *Engine) Solve(ctx context.Context, shape Shape, ciphertext string) (*Result, error) {
	start := time.Now()
	res, err := e.Exhaustive(ctx, shape, ciphertext)
	if err != nil {
		return nil, err
	}
	reducer, ok := shape.(Reducer)
	if !ok || errors.Is(res.Degraded, ErrEmptyKeySpace) {
		return res, nil
	}

	reductions, err := reducer.Reduce(ciphertext)
	if err != nil {
		return nil, fmt.Errorf("%s reduction: %w", shape.Name(), err)
	}
	opt, err := e.Optimize(ctx, shape.Name(), reductions)
	if err != nil {
		return nil, err
	}

	ranker := NewRanker(e.cfg.TopK)
	ranker.Merge(res.Candidates)
	ranker.Merge(opt.Candidates)
	res.Candidates = ranker.Top()
	res.Evaluated += opt.Evaluated
	res.Truncated = res.Truncated || opt.Truncated
	res.Duration = time.Since(start)

	res.degrade(nil)
	switch {
	case len(res.Candidates) == 0:
		res.degrade(ErrNoCandidate)
	case res.Candidates[0].Degenerate:
		res.degrade(ErrDegenerateSearch)
	}
	// Both phases already counted their evaluations.
	searchDuration.WithLabelValues(res.Shape, modeSolve).Observe(res.Duration.Seconds())
	return res, nil
}

func (e *Engine) finish(ctx context.Context, span trace.Span, res *Result, mode string, start time.Time) {
	res.Duration = time.Since(start)
	setSearchSpanResult(span, res)
	recordSearchMetrics(ctx, res, mode, res.Duration)
}
