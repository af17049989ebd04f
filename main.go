package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"codebreaker/bias"
	"codebreaker/config"
	"codebreaker/frequency"
	"codebreaker/logging"
	"codebreaker/scoring"
	"codebreaker/search"
)

type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
	FormatCSV  OutputFormat = "csv"
)

// Options holds the flags shared by every command.
type Options struct {
	ConfigPath   string
	OutputFormat OutputFormat
	Verbose      bool
	OutputFile   string
	Words        []string
	MetricsAddr  string
	TopK         int
	Workers      int
	Seed         uint64
	Timeout      time.Duration
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &Options{OutputFormat: FormatText}

	root := &cobra.Command{
		Use:   "codebreaker",
		Short: "Recover plaintext from classical ciphertexts",
		Long: `codebreaker ranks candidate decryptions of classical ciphers by how much
they look like natural language, and measures keystream bias in stream
ciphers.

Ciphertext is taken from the arguments, or from stdin when the only
argument is "-".`,
		SilenceUsage: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.ConfigPath, "config", "", "Path to configuration file (YAML or JSON)")
	pf.Var((*outputFormatFlag)(&opts.OutputFormat), "format", "Output format (text, json, csv)")
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose output and detailed logging")
	pf.StringVarP(&opts.OutputFile, "output", "o", "", "Output file path")
	pf.StringSliceVar(&opts.Words, "words", nil, "Words expected in the plaintext (boosts candidates containing them)")
	pf.StringVar(&opts.MetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address while running")
	pf.IntVar(&opts.TopK, "top", 0, "Number of candidates to report")
	pf.IntVar(&opts.Workers, "workers", 0, "Worker goroutines")
	pf.Uint64Var(&opts.Seed, "seed", 0, "Random seed")
	pf.DurationVar(&opts.Timeout, "timeout", 0, "Stop searching after this long")

	root.AddCommand(
		caesarCommand(opts),
		baconCommand(opts),
		railFenceCommand(opts),
		monoCommand(opts),
		polybiusCommand(opts),
		adfgvxCommand(opts),
		blockCommand(opts),
		streamCommand(opts),
		biasCommand(opts),
		encryptCommand(opts),
	)
	return root
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, opts *Options) (config.Config, error) {
	cfg, err := config.LoadConfig(opts.ConfigPath)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if opts.Verbose {
		cfg.DetailedLogging = true
	}
	if flags.Changed("top") {
		cfg.Search.TopK = opts.TopK
	}
	if flags.Changed("workers") {
		cfg.Search.Workers = opts.Workers
		cfg.Bias.Workers = opts.Workers
	}
	if flags.Changed("seed") {
		cfg.Search.Seed = opts.Seed
		cfg.Bias.Seed = opts.Seed
	}
	if flags.Changed("timeout") {
		cfg.Search.Timeout = opts.Timeout
	}
	cfg.Scoring.Words = append(cfg.Scoring.Words, opts.Words...)
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) *logging.Logger {
	return logging.NewLoggerWithWriter(cmd.ErrOrStderr(), cfg.DetailedLogging)
}

func newScorer(cfg config.Config) (*scoring.Scorer, error) {
	model, err := frequency.Load(cfg.Scoring.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err)
	}
	words := append([]string(nil), cfg.Scoring.Words...)
	if cfg.Scoring.UseCommonWords {
		words = append(words, model.CommonWords()...)
	}
	if len(words) > 0 {
		model = model.WithWords(words...)
	}
	return scoring.New(model, cfg.Scoring.Options()), nil
}

// serveMetrics exposes /metrics until the returned stop function runs.
func serveMetrics(addr string, logger *logging.Logger) (stop func()) {
	if addr == "" {
		return func() {}
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", "addr", addr, "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

// readCiphertext joins the arguments, or reads stdin for "-".
func readCiphertext(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 && args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("reading ciphertext: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}
	return strings.Join(args, " "), nil
}

func outputResults(w io.Writer, result *search.Result, opts *Options) error {
	switch opts.OutputFormat {
	case FormatJSON:
		return outputJSON(w, result, opts)
	case FormatCSV:
		return outputCSV(w, result, opts)
	default:
		return outputText(w, result, opts)
	}
}

func outputText(w io.Writer, result *search.Result, opts *Options) error {
	fmt.Fprintf(w, "\n%s search completed in %v\n", result.Shape, result.Duration)
	fmt.Fprintf(w, "Run: %s\n", result.RunID)
	fmt.Fprintf(w, "Status: %s\n", result.Status)
	fmt.Fprintf(w, "Keys evaluated: %d (skipped %d)\n", result.Evaluated, result.Skipped)
	if result.Truncated {
		fmt.Fprintf(w, "Search stopped early; results cover the keys tried.\n")
	}

	if len(result.Candidates) == 0 {
		fmt.Fprintf(w, "\nNo candidates.\n")
		return nil
	}

	fmt.Fprintf(w, "\nCandidates:\n")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tScore\tKey\tPlaintext")
	for i, c := range result.Candidates {
		fmt.Fprintf(tw, "%d\t%.2f\t%s\t%s\n", i+1, c.Score, c.Key, preview(c.Plaintext, opts.Verbose))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if opts.Verbose {
		for i, c := range result.Candidates {
			if c.Note != "" {
				fmt.Fprintf(w, "  %d: %s\n", i+1, c.Note)
			}
			if c.Degenerate {
				fmt.Fprintf(w, "  %d: search never improved on its starting key\n", i+1)
			}
		}
	}

	if opts.OutputFile != "" {
		fmt.Fprintf(w, "\nDetailed results saved to: %s\n", opts.OutputFile)
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		return os.WriteFile(opts.OutputFile, data, 0644)
	}
	return nil
}

// preview keeps table rows on one line.
func preview(s string, full bool) string {
	s = strings.NewReplacer("\n", " ", "\t", " ", "\r", " ").Replace(s)
	if full {
		return s
	}
	r := []rune(s)
	if len(r) > 60 {
		return string(r[:57]) + "..."
	}
	return s
}

func outputJSON(w io.Writer, v any, opts *Options) error {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("generating JSON output: %w", err)
	}
	return writeOutput(w, append(output, '\n'), opts)
}

func outputCSV(w io.Writer, result *search.Result, opts *Options) error {
	var builder strings.Builder
	cw := csv.NewWriter(&builder)

	cw.Write([]string{"rank", "score", "key", "plaintext", "note", "degenerate"})
	for i, c := range result.Candidates {
		key := ""
		if c.Key != nil {
			key = c.Key.String()
		}
		cw.Write([]string{
			strconv.Itoa(i + 1),
			strconv.FormatFloat(c.Score, 'f', 4, 64),
			key,
			c.Plaintext,
			c.Note,
			strconv.FormatBool(c.Degenerate),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return writeOutput(w, []byte(builder.String()), opts)
}

func writeOutput(w io.Writer, data []byte, opts *Options) error {
	if opts.OutputFile != "" {
		if err := os.WriteFile(opts.OutputFile, data, 0644); err != nil {
			return fmt.Errorf("writing to output file: %w", err)
		}
		return nil
	}
	_, err := w.Write(data)
	return err
}

// saveResults keeps a JSON copy of every run when the config names a
// results file.
func saveResults(path string, v any) error {
	if path == "" {
		return nil
	}
	if r, ok := v.(*bias.Report); ok {
		return bias.SaveReport(path, r)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Custom flag type for output format
type outputFormatFlag OutputFormat

func (f *outputFormatFlag) String() string {
	return string(*f)
}

func (f *outputFormatFlag) Set(value string) error {
	switch v := strings.ToLower(value); v {
	case "text", "json", "csv":
		*f = outputFormatFlag(v)
		return nil
	default:
		return fmt.Errorf("invalid output format: %s", value)
	}
}

func (f *outputFormatFlag) Type() string { return "format" }
