package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"codebreaker/ciphers"
	"codebreaker/config"
	"codebreaker/search"
)

// configureFunc applies command-local flags to the loaded config.
type configureFunc func(cmd *cobra.Command, cfg *config.Config)

func searchCommand(opts *Options, name string, cmd *cobra.Command, configure configureFunc) *cobra.Command {
	cmd.Args = cobra.MinimumNArgs(1)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runSearch(cmd, args, opts, name, configure)
	}
	return cmd
}

func runSearch(cmd *cobra.Command, args []string, opts *Options, name string, configure configureFunc) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	if configure != nil {
		configure(cmd, &cfg)
		if err := config.ValidateConfig(&cfg); err != nil {
			return err
		}
	}

	logger := newLogger(cmd, cfg)
	stop := serveMetrics(opts.MetricsAddr, logger)
	defer stop()

	scorer, err := newScorer(cfg)
	if err != nil {
		return err
	}
	ciphertext, err := readCiphertext(cmd, args)
	if err != nil {
		return err
	}
	shape, solve, err := shapeFor(name, cfg, scorer.Model().Order())
	if err != nil {
		return err
	}

	engine := search.NewEngine(scorer, cfg.Search, logger)
	var result *search.Result
	if solve {
		result, err = engine.Solve(cmd.Context(), shape, ciphertext)
	} else {
		result, err = engine.Exhaustive(cmd.Context(), shape, ciphertext)
	}
	if err != nil {
		return err
	}
	if result.Degraded != nil {
		logger.Warn("search finished without a trustworthy answer", "shape", result.Shape, "status", result.Status)
	}

	if err := outputResults(cmd.OutOrStdout(), result, opts); err != nil {
		return err
	}
	return saveResults(cfg.ResultsFile, result)
}

// shapeFor builds the named shape from the config. solve reports whether the
// shape should go through statistical local search after enumeration.
func shapeFor(name string, cfg config.Config, order string) (shape search.Shape, solve bool, err error) {
	c := cfg.Ciphers
	switch name {
	case "caesar":
		return search.CaesarShape{Cipher: ciphers.Caesar{
			Alphabet:       c.Caesar.Alphabet,
			WrapSeparately: c.Caesar.WrapSeparately,
		}}, false, nil
	case "railfence":
		return search.RailFenceShape{
			Cipher: ciphers.RailFence{
				Direction:    c.RailFence.Direction,
				RemoveSpaces: c.RailFence.RemoveSpaces,
			},
			MaxRails: c.RailFence.MaxRails,
		}, false, nil
	case "bacon":
		return search.BaconShape{MinSymbols: c.Bacon.MinSymbols, TopSymbols: c.Bacon.TopSymbols}, false, nil
	case "mono":
		return search.SubstitutionShape{
			Samples: cfg.Search.Samples,
			Seed:    cfg.Search.Seed,
			Order:   order,
		}, true, nil
	case "polybius":
		return search.PolybiusShape{
			Size:       c.Polybius.GridSize,
			Merge:      c.Polybius.Merge,
			NumberBase: c.Polybius.NumberBase,
			Separator:  c.Polybius.Separator,
			Keywords:   c.Polybius.Keywords,
			Seeds:      c.Polybius.Seeds,
		}, c.Polybius.Statistical, nil
	case "adfgvx":
		return search.ADFGVXShape{
			Keywords:     c.ADFGVX.Keywords,
			GridKeywords: c.ADFGVX.GridKeywords,
			Seeds:        c.ADFGVX.Seeds,
		}, c.ADFGVX.Statistical, nil
	case "stream":
		stream := ciphers.RC4()
		if c.Stream.Cipher == "chacha20" {
			stream = ciphers.ChaCha20()
		}
		format, err := ciphers.ParseFormat(c.Stream.Format)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err)
		}
		nonce, err := hex.DecodeString(c.Stream.Nonce)
		if err != nil {
			return nil, false, fmt.Errorf("%w: stream nonce: %v", config.ErrInvalidConfiguration, err)
		}
		return search.StreamShape{
			Cipher:      stream,
			Format:      format,
			Passphrases: c.Stream.Passphrases,
			Nonce:       nonce,
		}, false, nil
	case "block":
		format, err := ciphers.ParseFormat(c.Block.Format)
		if err != nil {
			return nil, false, fmt.Errorf("%w: %v", config.ErrInvalidConfiguration, err)
		}
		return search.BlockShape{
			Cipher: ciphers.Block{BlockSize: c.Block.BlockSize, Rounds: c.Block.Rounds, Padding: c.Block.Padding},
			Format: format,
		}, false, nil
	default:
		return nil, false, fmt.Errorf("%w: unknown cipher %q", config.ErrInvalidConfiguration, name)
	}
}

func caesarCommand(opts *Options) *cobra.Command {
	var alphabet string
	var wrap bool
	cmd := &cobra.Command{
		Use:   "caesar CIPHERTEXT...",
		Short: "Try every Caesar shift",
		Long: `Try every shift of the dictionary and rank the decryptions. By default the
dictionary is A-Z followed by a-z, so shifts move letters between cases.
--wrap-separately rotates each case within its own 26 letters.`,
	}
	cmd.Flags().StringVar(&alphabet, "alphabet", "", "Custom shift dictionary")
	cmd.Flags().BoolVar(&wrap, "wrap-separately", false, "Rotate upper and lower case independently")
	return searchCommand(opts, "caesar", cmd, func(cmd *cobra.Command, cfg *config.Config) {
		if cmd.Flags().Changed("alphabet") {
			cfg.Ciphers.Caesar.Alphabet = alphabet
		}
		if cmd.Flags().Changed("wrap-separately") {
			cfg.Ciphers.Caesar.WrapSeparately = wrap
		}
	})
}

func baconCommand(opts *Options) *cobra.Command {
	var minSymbols int
	cmd := &cobra.Command{
		Use:   "bacon CIPHERTEXT...",
		Short: "Decode a Baconian cipher over any two symbols",
		Long: `Pair up the most frequent symbols in the ciphertext and try each pairing as
the A/B alphabet, under both the 24 and 26 letter variants.`,
	}
	cmd.Flags().IntVar(&minSymbols, "min-symbols", 0, "Occurrences a symbol needs to be paired")
	return searchCommand(opts, "bacon", cmd, func(cmd *cobra.Command, cfg *config.Config) {
		if cmd.Flags().Changed("min-symbols") {
			cfg.Ciphers.Bacon.MinSymbols = minSymbols
		}
	})
}

func railFenceCommand(opts *Options) *cobra.Command {
	var maxRails int
	var direction string
	cmd := &cobra.Command{
		Use:   "railfence CIPHERTEXT...",
		Short: "Try every rail count",
	}
	cmd.Flags().IntVar(&maxRails, "max-rails", 0, "Highest rail count to try (0 means the ciphertext length)")
	cmd.Flags().StringVar(&direction, "direction", "", "Zigzag start: down or up")
	return searchCommand(opts, "railfence", cmd, func(cmd *cobra.Command, cfg *config.Config) {
		if cmd.Flags().Changed("max-rails") {
			cfg.Ciphers.RailFence.MaxRails = maxRails
		}
		if cmd.Flags().Changed("direction") {
			cfg.Ciphers.RailFence.Direction = direction
		}
	})
}

func monoCommand(opts *Options) *cobra.Command {
	var policy string
	var iterations, restarts int
	cmd := &cobra.Command{
		Use:   "mono CIPHERTEXT...",
		Short: "Break a monoalphabetic substitution by local search",
		Long: `Start from a frequency-analysis key and improve it by swapping symbol
pairs. Restarts run in parallel from seeded random keys.`,
	}
	cmd.Flags().StringVar(&policy, "policy", "", "Acceptance policy: hillclimb or bounded-regression")
	cmd.Flags().IntVar(&iterations, "iterations", 0, "Proposals per restart")
	cmd.Flags().IntVar(&restarts, "restarts", 0, "Independent restarts")
	return searchCommand(opts, "mono", cmd, func(cmd *cobra.Command, cfg *config.Config) {
		if cmd.Flags().Changed("policy") {
			cfg.Search.Policy = policy
		}
		if cmd.Flags().Changed("iterations") {
			cfg.Search.Iterations = iterations
		}
		if cmd.Flags().Changed("restarts") {
			cfg.Search.Restarts = restarts
		}
	})
}

func polybiusCommand(opts *Options) *cobra.Command {
	var keywords []string
	var statistical bool
	var base int
	cmd := &cobra.Command{
		Use:   "polybius CIPHERTEXT...",
		Short: "Decode Polybius square coordinates",
		Long: `Try the standard grid and keyword or seeded grids, then optionally solve
the coordinates as a substitution when no known grid fits.`,
	}
	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "Grid keywords to try")
	cmd.Flags().BoolVar(&statistical, "statistical", true, "Fall back to local search over the coordinates")
	cmd.Flags().IntVar(&base, "base", 1, "Coordinate numbering: 0 or 1")
	return searchCommand(opts, "polybius", cmd, func(cmd *cobra.Command, cfg *config.Config) {
		if cmd.Flags().Changed("keywords") {
			cfg.Ciphers.Polybius.Keywords = keywords
		}
		if cmd.Flags().Changed("statistical") {
			cfg.Ciphers.Polybius.Statistical = statistical
		}
		if cmd.Flags().Changed("base") {
			cfg.Ciphers.Polybius.NumberBase = base
		}
	})
}

func adfgvxCommand(opts *Options) *cobra.Command {
	var keywords, gridKeywords []string
	var statistical bool
	cmd := &cobra.Command{
		Use:   "adfgvx CIPHERTEXT...",
		Short: "Break ADFGVX with transposition keyword guesses",
		Long: `Undo the columnar transposition for each candidate keyword and decode the
fractionated pairs against each grid hypothesis. With --statistical the pairs
are also solved as a substitution.`,
	}
	cmd.Flags().StringSliceVar(&keywords, "keywords", nil, "Transposition keywords to try")
	cmd.Flags().StringSliceVar(&gridKeywords, "grid-keywords", nil, "Grid keywords to try")
	cmd.Flags().BoolVar(&statistical, "statistical", true, "Also solve the fractionated pairs by local search")
	return searchCommand(opts, "adfgvx", cmd, func(cmd *cobra.Command, cfg *config.Config) {
		if cmd.Flags().Changed("keywords") {
			cfg.Ciphers.ADFGVX.Keywords = keywords
		}
		if cmd.Flags().Changed("grid-keywords") {
			cfg.Ciphers.ADFGVX.GridKeywords = gridKeywords
		}
		if cmd.Flags().Changed("statistical") {
			cfg.Ciphers.ADFGVX.Statistical = statistical
		}
	})
}

func blockCommand(opts *Options) *cobra.Command {
	var encoding string
	var blockSize, rounds int
	cmd := &cobra.Command{
		Use:   "block CIPHERTEXT...",
		Short: "Try weak keys against the block cipher",
	}
	cmd.Flags().StringVar(&encoding, "encoding", "", "Ciphertext encoding: hex, base64, decimal or binary")
	cmd.Flags().IntVar(&blockSize, "block-size", 0, "Block size in bytes: 4, 8 or 16")
	cmd.Flags().IntVar(&rounds, "rounds", 0, "Rounds, 1 to 16")
	return searchCommand(opts, "block", cmd, func(cmd *cobra.Command, cfg *config.Config) {
		if cmd.Flags().Changed("encoding") {
			cfg.Ciphers.Block.Format = strings.ToLower(encoding)
		}
		if cmd.Flags().Changed("block-size") {
			cfg.Ciphers.Block.BlockSize = blockSize
		}
		if cmd.Flags().Changed("rounds") {
			cfg.Ciphers.Block.Rounds = rounds
		}
	})
}

func streamCommand(opts *Options) *cobra.Command {
	var cipher, encoding, nonce string
	var passphrases []string
	cmd := &cobra.Command{
		Use:   "stream CIPHERTEXT...",
		Short: "Dictionary attack on an RC4 or ChaCha20 ciphertext",
	}
	cmd.Flags().StringVar(&cipher, "cipher", "", "Stream cipher: rc4 or chacha20")
	cmd.Flags().StringVar(&encoding, "encoding", "", "Ciphertext encoding: hex, base64, decimal or binary")
	cmd.Flags().StringVar(&nonce, "nonce", "", "Hex nonce")
	cmd.Flags().StringSliceVar(&passphrases, "passphrases", nil, "Passphrases to try instead of the built-in list")
	return searchCommand(opts, "stream", cmd, func(cmd *cobra.Command, cfg *config.Config) {
		if cmd.Flags().Changed("cipher") {
			cfg.Ciphers.Stream.Cipher = strings.ToLower(cipher)
		}
		if cmd.Flags().Changed("encoding") {
			cfg.Ciphers.Stream.Format = strings.ToLower(encoding)
		}
		if cmd.Flags().Changed("nonce") {
			cfg.Ciphers.Stream.Nonce = nonce
		}
		if cmd.Flags().Changed("passphrases") {
			cfg.Ciphers.Stream.Passphrases = passphrases
		}
	})
}

func encryptCommand(opts *Options) *cobra.Command {
	var key, gridKey string
	var variant int
	var removeSpaces bool
	cmd := &cobra.Command{
		Use:   "encrypt CIPHER PLAINTEXT...",
		Short: "Encrypt plaintext with a known key",
		Long: `Encrypt plaintext with one of the supported ciphers. Useful for producing
test ciphertexts. Cipher settings come from the config file.

Keys by cipher:
  caesar     shift
  railfence  rail count
  bacon      the two symbols, e.g. AB
  mono       26-letter mapping for A..Z
  polybius   grid keyword (empty for the standard grid)
  adfgvx     transposition keyword, with --grid-key for the grid
  stream     passphrase
  block      hex key`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("remove-spaces") {
				cfg.Ciphers.RailFence.RemoveSpaces = removeSpaces
			}
			name := strings.ToLower(args[0])
			shape, _, err := shapeFor(name, cfg, "")
			if err != nil {
				return err
			}
			k, err := keyFor(name, cfg, key, gridKey, variant)
			if err != nil {
				return err
			}
			plaintext, err := readCiphertext(cmd, args[1:])
			if err != nil {
				return err
			}
			ciphertext, err := shape.Encrypt(plaintext, k)
			if err != nil {
				return err
			}

			if opts.OutputFormat == FormatJSON {
				return outputJSON(cmd.OutOrStdout(), map[string]string{
					"cipher":     shape.Name(),
					"key":        k.String(),
					"ciphertext": ciphertext,
				}, opts)
			}
			return writeOutput(cmd.OutOrStdout(), []byte(ciphertext+"\n"), opts)
		},
	}
	cmd.Flags().StringVarP(&key, "key", "k", "", "Key, in the form the cipher expects")
	cmd.Flags().StringVar(&gridKey, "grid-key", "", "ADFGVX grid keyword")
	cmd.Flags().IntVar(&variant, "variant", 26, "Bacon alphabet: 24 or 26 letters")
	cmd.Flags().BoolVar(&removeSpaces, "remove-spaces", true, "Rail fence: drop whitespace before encrypting")
	return cmd
}

// keyFor parses a user-supplied key for the named cipher.
func keyFor(name string, cfg config.Config, key, gridKey string, variant int) (search.Key, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ciphers.ErrInvalidKey, fmt.Sprintf(format, args...))
	}
	switch name {
	case "caesar":
		shift, err := strconv.Atoi(key)
		if err != nil {
			return nil, invalid("caesar shift %q", key)
		}
		return search.ShiftKey(shift), nil
	case "railfence":
		rails, err := strconv.Atoi(key)
		if err != nil {
			return nil, invalid("rail count %q", key)
		}
		return search.RailKey(rails), nil
	case "bacon":
		if key == "" {
			key = "AB"
		}
		r := []rune(key)
		if len(r) != 2 || r[0] == r[1] {
			return nil, invalid("bacon needs two distinct symbols, got %q", key)
		}
		return search.BaconKey{A: r[0], B: r[1], Variant: variant}, nil
	case "mono":
		// key is the encryption mapping; the shape works with decryption keys
		sub := ciphers.Substitution{}
		key = strings.ToUpper(key)
		if err := sub.ValidateKey(key); err != nil {
			return nil, err
		}
		return search.PermutationKey{Alphabet: ciphers.UpperAlphabet, Mapping: sub.InvertKey(key)}, nil
	case "polybius":
		p := cfg.Ciphers.Polybius
		g, err := ciphers.StandardGrid(p.GridSize, p.Merge)
		gridName := "standard"
		if key != "" {
			g, err = ciphers.KeywordGrid(p.GridSize, p.Merge, key)
			gridName = "keyword:" + strings.ToUpper(key)
		}
		if err != nil {
			return nil, err
		}
		return search.GridKey{Name: gridName, Grid: g}, nil
	case "adfgvx":
		g, err := ciphers.StandardGrid(6, "")
		gridName := "standard"
		if gridKey != "" {
			g, err = ciphers.KeywordGrid(6, "", gridKey)
			gridName = "keyword:" + strings.ToUpper(gridKey)
		}
		if err != nil {
			return nil, err
		}
		return search.ADFGVXKey{GridName: gridName, Grid: g, Keyword: strings.ToUpper(key)}, nil
	case "stream":
		nonce, err := hex.DecodeString(cfg.Ciphers.Stream.Nonce)
		if err != nil {
			return nil, invalid("stream nonce: %v", err)
		}
		return search.PassphraseKey{Passphrase: key, Nonce: nonce}, nil
	case "block":
		b, err := hex.DecodeString(key)
		if err != nil || len(b) == 0 {
			return nil, invalid("block key must be non-empty hex")
		}
		return search.BlockKey{Name: "custom", Bytes: b}, nil
	default:
		return nil, fmt.Errorf("%w: unknown cipher %q", config.ErrInvalidConfiguration, name)
	}
}
