package main

import (
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"codebreaker/bias"
	"codebreaker/config"
)

// experiment is a controlled run against a key the operator chose. It shows
// what the flagged biases would say about that key; a real attacker has no
// key to compare against.
type experiment struct {
	Label      string             `json:"label"`
	TargetKey  string             `json:"target_key"`
	Samples    int                `json:"samples"`
	Hypothesis bias.KeyHypothesis `json:"hypothesis"`
	Comparison bias.Comparison    `json:"comparison"`
}

type biasOutput struct {
	*bias.Report
	Experiment *experiment `json:"experiment,omitempty"`
}

func biasCommand(opts *Options) *cobra.Command {
	var (
		cipher, fixedKey, targetKey  string
		trials, keyLength, positions int
		nonceLength, samples         int
		threshold                    float64
	)
	cmd := &cobra.Command{
		Use:   "bias",
		Short: "Measure keystream bias in a stream cipher",
		Long: `Generate keystreams under many random keys and count how often each
keystream byte, and each keystream/key byte difference, takes each value.
Cells that occur well above the uniform rate are flagged.

--target-key runs a controlled experiment: keystreams are generated under
that key and the flagged biases vote for its bytes. The result is a set of
candidate key bytes for illustration, not a recovered key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			f := cmd.Flags()
			if f.Changed("cipher") {
				cfg.Bias.Cipher = strings.ToLower(cipher)
			}
			if f.Changed("trials") {
				cfg.Bias.Trials = trials
			}
			if f.Changed("key-length") {
				cfg.Bias.KeyLength = keyLength
			}
			if f.Changed("positions") {
				cfg.Bias.Positions = positions
			}
			if f.Changed("nonce-length") {
				cfg.Bias.NonceLength = nonceLength
			}
			if f.Changed("threshold") {
				cfg.Bias.Threshold = threshold
			}
			if f.Changed("fixed-key") {
				cfg.Bias.FixedKey = fixedKey
			}
			if err := config.ValidateConfig(&cfg); err != nil {
				return err
			}
			return runBias(cmd, opts, cfg, targetKey, samples)
		},
	}

	cmd.Flags().StringVar(&cipher, "cipher", "", "Keystream generator: rc4, chacha20, synthetic or uniform")
	cmd.Flags().IntVar(&trials, "trials", 0, "Number of keys to sample")
	cmd.Flags().IntVar(&keyLength, "key-length", 0, "Key length in bytes")
	cmd.Flags().IntVar(&positions, "positions", 0, "Keystream bytes examined per trial")
	cmd.Flags().IntVar(&nonceLength, "nonce-length", 0, "Random nonce bytes per trial")
	cmd.Flags().Float64Var(&threshold, "threshold", 0, "Minimum observed/expected ratio to flag")
	cmd.Flags().StringVar(&fixedKey, "fixed-key", "", "Hex key used for every trial instead of random keys")
	cmd.Flags().StringVar(&targetKey, "target-key", "", "Hex key for a controlled key-byte experiment")
	cmd.Flags().IntVar(&samples, "samples", 400, "Keystreams generated for the experiment")
	return cmd
}

func runBias(cmd *cobra.Command, opts *Options, cfg config.Config, targetKey string, samples int) error {
	logger := newLogger(cmd, cfg)
	stop := serveMetrics(opts.MetricsAddr, logger)
	defer stop()

	var target []byte
	if targetKey != "" {
		var err error
		target, err = hex.DecodeString(targetKey)
		if err != nil || len(target) != cfg.Bias.KeyLength {
			return fmt.Errorf("%w: target key must be %d hex bytes", config.ErrInvalidConfiguration, cfg.Bias.KeyLength)
		}
		// Simulated traffic must use the nonce layout the analysis counted
		// under, and without nonces every keystream would be identical.
		if cfg.Bias.NonceLength == 0 {
			return fmt.Errorf("%w: --target-key needs a nonce length above zero", config.ErrInvalidConfiguration)
		}
	}

	analyzerOpts := []bias.Option{bias.WithLogger(logger)}
	var bar *progressbar.ProgressBar
	if opts.OutputFormat == FormatText {
		bar = progressbar.Default(int64(cfg.Bias.Trials), "trials")
		analyzerOpts = append(analyzerOpts, bias.WithProgress(func(n int) {
			_ = bar.Add(n)
		}))
	}

	analyzer, err := bias.NewAnalyzer(cfg.Bias, analyzerOpts...)
	if err != nil {
		return err
	}
	report, err := analyzer.Analyze(cmd.Context())
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return err
	}

	out := biasOutput{Report: report}
	if target != nil {
		observed, err := analyzer.Keystreams(target, bias.RandomBytes(cfg.Bias.Seed+1, samples, cfg.Bias.NonceLength))
		if err != nil {
			return err
		}
		h := bias.Hypothesize(report.Flagged, observed)
		out.Experiment = &experiment{
			Label:      "illustrative: " + h.Label + " against a known key",
			TargetKey:  targetKey,
			Samples:    samples,
			Hypothesis: h,
			Comparison: bias.CompareWithKey(h, target),
		}
	}

	if err := outputBias(cmd.OutOrStdout(), out, opts); err != nil {
		return err
	}
	return saveResults(cfg.ResultsFile, report)
}

func outputBias(w io.Writer, out biasOutput, opts *Options) error {
	switch opts.OutputFormat {
	case FormatJSON:
		return outputJSON(w, out, opts)
	case FormatCSV:
		return outputBiasCSV(w, out.Report, opts)
	default:
		return outputBiasText(w, out, opts)
	}
}

func outputBiasText(w io.Writer, out biasOutput, opts *Options) error {
	r := out.Report
	fmt.Fprintf(w, "\n%s bias analysis completed in %v\n", r.Cipher, r.Duration)
	fmt.Fprintf(w, "Run: %s\n", r.RunID)
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	if r.Relation != "" {
		fmt.Fprintf(w, "Relation: %s\n", r.Relation)
	}
	fmt.Fprintf(w, "Trials: %d (expected %.1f per cell if uniform)\n", r.Trials, r.ExpectedUniform)
	if r.Truncated {
		fmt.Fprintf(w, "Analysis stopped early; counts cover the trials that ran.\n")
	}
	fmt.Fprintf(w, "Largest ratio: %.3f at position %d value %d\n", r.MaxBias, r.MaxBiasAt.Position, r.MaxBiasAt.Value)

	printFindings(w, "Key-related biases", r.Flagged)
	printFindings(w, "Keystream biases", r.KeystreamFlagged)

	fmt.Fprintf(w, "\nUniformity tests passed: %.1f%%\n", r.UniformPassRate*100)
	if opts.Verbose {
		for _, test := range r.Uniformity {
			fmt.Fprintf(w, "  ks[%d] %s: %.4f (%v)\n", test.Position, test.Name, test.Score, test.Passed)
			if test.Details != "" {
				fmt.Fprintf(w, "      %s\n", test.Details)
			}
		}
	}

	if e := out.Experiment; e != nil {
		fmt.Fprintf(w, "\nControlled experiment (%s)\n", e.Label)
		fmt.Fprintf(w, "Keystreams sampled: %d\n", e.Samples)
		if len(e.Hypothesis.Bytes) == 0 {
			fmt.Fprintf(w, "No key-related bias to vote with.\n")
		}
		for i, b := range e.Hypothesis.Bytes {
			mark := "wrong"
			if e.Comparison.Correct[i] {
				mark = "matches"
			}
			fmt.Fprintf(w, "  K[%d] = 0x%02x  confidence %.3f  %s\n", b.Index, b.Value, b.Confidence, mark)
		}
		fmt.Fprintf(w, "Matched %d of %d candidate bytes\n", e.Comparison.Matched, e.Comparison.Total)
	}

	if opts.OutputFile != "" {
		fmt.Fprintf(w, "\nDetailed results saved to: %s\n", opts.OutputFile)
		return bias.SaveReport(opts.OutputFile, r)
	}
	return nil
}

func printFindings(w io.Writer, title string, findings []bias.Finding) {
	fmt.Fprintf(w, "\n%s: %d\n", title, len(findings))
	for _, f := range findings {
		fmt.Fprintf(w, "  %s\n", f)
	}
}

func outputBiasCSV(w io.Writer, r *bias.Report, opts *Options) error {
	var builder strings.Builder
	cw := csv.NewWriter(&builder)

	cw.Write([]string{"kind", "position", "key_index", "value", "observed", "expected", "bias", "z_score"})
	row := func(kind string, f bias.Finding) {
		cw.Write([]string{
			kind,
			strconv.Itoa(f.Position),
			strconv.Itoa(f.KeyIndex),
			strconv.Itoa(f.Value),
			strconv.FormatUint(f.Observed, 10),
			strconv.FormatFloat(f.Expected, 'f', 2, 64),
			strconv.FormatFloat(f.Bias, 'f', 4, 64),
			strconv.FormatFloat(f.ZScore, 'f', 2, 64),
		})
	}
	for _, f := range r.Flagged {
		if f.Predicted {
			row("relation", f)
			continue
		}
		row("key", f)
	}
	for _, f := range r.KeystreamFlagged {
		row("keystream", f)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return writeOutput(w, []byte(builder.String()), opts)
}
