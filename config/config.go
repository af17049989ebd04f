// Package config holds the engine's tunables and loads them from JSON or
// YAML over a set of defaults.
package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"codebreaker/ciphers"
	"codebreaker/scoring"
)

// ErrInvalidConfiguration is fatal: the run cannot start.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// MaxRC4KeyLength bounds nonce plus key for RC4.
const MaxRC4KeyLength = 256

// Acceptance policy names.
const (
	PolicyHillClimb         = "hillclimb"
	PolicyBoundedRegression = "bounded-regression"
)

type Config struct {
	Search          Search  `json:"search" yaml:"search"`
	Scoring         Scoring `json:"scoring" yaml:"scoring"`
	Ciphers         Ciphers `json:"ciphers" yaml:"ciphers"`
	Bias            Bias    `json:"bias" yaml:"bias"`
	DetailedLogging bool    `json:"detailed_logging" yaml:"detailed_logging"`
	ResultsFile     string  `json:"results_file" yaml:"results_file"`
}

// Search controls enumeration, ranking and local search.
type Search struct {
	TopK    int    `json:"top_k" yaml:"top_k" validate:"min=1,max=1000"`
	Workers int    `json:"workers" yaml:"workers" validate:"min=1,max=256"`
	Seed    uint64 `json:"seed" yaml:"seed"`
	// Timeout bounds a whole run. Zero means no limit.
	Timeout time.Duration `json:"timeout" yaml:"timeout" validate:"min=0"`

	Iterations int    `json:"iterations" yaml:"iterations" validate:"min=1"`
	StaleLimit int    `json:"stale_limit" yaml:"stale_limit" validate:"min=0"`
	Restarts   int    `json:"restarts" yaml:"restarts" validate:"min=1,max=64"`
	InitialKey string `json:"initial_key" yaml:"initial_key" validate:"oneof=frequency random identity"`
	// Samples is how many random permutations stand in for the
	// monoalphabetic key space during enumeration.
	Samples int `json:"samples" yaml:"samples" validate:"min=0,max=10000"`

	Policy               string  `json:"policy" yaml:"policy" validate:"oneof=hillclimb bounded-regression"`
	Tolerance            float64 `json:"tolerance" yaml:"tolerance" validate:"min=0"`
	InitialTemperature   float64 `json:"initial_temperature" yaml:"initial_temperature" validate:"min=0"`
	RegressionsPerWindow int     `json:"regressions_per_window" yaml:"regressions_per_window" validate:"min=0"`
	Window               int     `json:"window" yaml:"window" validate:"min=1"`
}

type Scoring struct {
	Model                  string   `json:"model" yaml:"model" validate:"required"`
	Floor                  float64  `json:"floor" yaml:"floor" validate:"gt=0,lt=1"`
	BigramWeight           float64  `json:"bigram_weight" yaml:"bigram_weight"`
	BackoffDiscount        float64  `json:"backoff_discount" yaml:"backoff_discount" validate:"gt=0,lte=1"`
	PunctuationProbability float64  `json:"punctuation_probability" yaml:"punctuation_probability" validate:"gt=0,lte=1"`
	WordBonus              float64  `json:"word_bonus" yaml:"word_bonus" validate:"min=0"`
	Words                  []string `json:"words" yaml:"words"`
	UseCommonWords         bool     `json:"use_common_words" yaml:"use_common_words"`
}

// Options converts the section to scorer options.
func (s Scoring) Options() scoring.Options {
	return scoring.Options{
		Floor:                  s.Floor,
		BigramWeight:           s.BigramWeight,
		BackoffDiscount:        s.BackoffDiscount,
		PunctuationProbability: s.PunctuationProbability,
		WordBonus:              s.WordBonus,
	}
}

type Ciphers struct {
	Caesar    Caesar    `json:"caesar" yaml:"caesar"`
	RailFence RailFence `json:"rail_fence" yaml:"rail_fence"`
	Bacon     Bacon     `json:"bacon" yaml:"bacon"`
	Polybius  Polybius  `json:"polybius" yaml:"polybius"`
	ADFGVX    ADFGVX    `json:"adfgvx" yaml:"adfgvx"`
	Stream    Stream    `json:"stream" yaml:"stream"`
	Block     Block     `json:"block" yaml:"block"`
}

type Caesar struct {
	Alphabet       string `json:"alphabet" yaml:"alphabet"`
	WrapSeparately bool   `json:"wrap_separately" yaml:"wrap_separately"`
}

type RailFence struct {
	// MaxRails caps the rail count; zero means the ciphertext length.
	MaxRails  int    `json:"max_rails" yaml:"max_rails" validate:"min=0"`
	Direction string `json:"direction" yaml:"direction" validate:"oneof=down up"`
	// RemoveSpaces drops whitespace from plaintext before encryption.
	RemoveSpaces bool `json:"remove_spaces" yaml:"remove_spaces"`
}

type Bacon struct {
	MinSymbols int `json:"min_symbols" yaml:"min_symbols" validate:"min=1"`
	TopSymbols int `json:"top_symbols" yaml:"top_symbols" validate:"min=2,max=32"`
}

type Polybius struct {
	GridSize    int      `json:"grid_size" yaml:"grid_size" validate:"oneof=5 6"`
	Merge       string   `json:"merge" yaml:"merge" validate:"omitempty,oneof=IJ UV"`
	NumberBase  int      `json:"number_base" yaml:"number_base" validate:"oneof=0 1"`
	Separator   string   `json:"separator" yaml:"separator"`
	Keywords    []string `json:"keywords" yaml:"keywords"`
	Seeds       []uint64 `json:"seeds" yaml:"seeds"`
	Statistical bool     `json:"statistical" yaml:"statistical"`
}

type ADFGVX struct {
	Keywords     []string `json:"keywords" yaml:"keywords" validate:"min=1,dive,min=2"`
	GridKeywords []string `json:"grid_keywords" yaml:"grid_keywords"`
	Seeds        []uint64 `json:"seeds" yaml:"seeds"`
	Statistical  bool     `json:"statistical" yaml:"statistical"`
}

type Stream struct {
	Cipher      string   `json:"cipher" yaml:"cipher" validate:"oneof=rc4 chacha20"`
	Format      string   `json:"format" yaml:"format" validate:"oneof=hex base64 decimal binary"`
	Passphrases []string `json:"passphrases" yaml:"passphrases"`
	// Nonce is hex encoded.
	Nonce string `json:"nonce" yaml:"nonce" validate:"omitempty,hexadecimal"`
}

type Block struct {
	BlockSize int    `json:"block_size" yaml:"block_size" validate:"oneof=4 8 16"`
	Rounds    int    `json:"rounds" yaml:"rounds" validate:"min=1,max=16"`
	Padding   string `json:"padding" yaml:"padding" validate:"oneof=pkcs7 zero"`
	Format    string `json:"format" yaml:"format" validate:"oneof=hex base64 decimal binary"`
}

// Bias configures the keystream bias analyzer.
type Bias struct {
	Cipher      string `json:"cipher" yaml:"cipher" validate:"oneof=rc4 chacha20 synthetic uniform"`
	Trials      int    `json:"trials" yaml:"trials" validate:"min=1"`
	KeyLength   int    `json:"key_length" yaml:"key_length" validate:"min=1,max=256"`
	NonceLength int    `json:"nonce_length" yaml:"nonce_length" validate:"min=0,max=64"`
	Positions   int    `json:"positions" yaml:"positions" validate:"min=1,max=4096"`
	// Threshold is the observed/expected ratio a cell must exceed.
	Threshold        float64 `json:"threshold" yaml:"threshold" validate:"gt=1"`
	MinExpectedCount float64 `json:"min_expected_count" yaml:"min_expected_count" validate:"min=0"`
	MinZScore        float64 `json:"min_z_score" yaml:"min_z_score" validate:"min=0"`
	Workers          int     `json:"workers" yaml:"workers" validate:"min=1,max=256"`
	Seed             uint64  `json:"seed" yaml:"seed"`
	// FixedKey, hex encoded, replaces the per-trial random key.
	FixedKey string `json:"fixed_key" yaml:"fixed_key" validate:"omitempty,hexadecimal"`
}

// DefaultPolybiusKeywords seed keyword grids when none are configured.
var DefaultPolybiusKeywords = []string{
	"SECRET", "CIPHER", "KEY", "CODE", "POLYBIUS", "GRID", "SQUARE", "ENCRYPT",
	"DECODE", "MATRIX", "TABLE", "ALPHA", "BETA", "GAMMA", "PASSWORD", "HIDDEN",
	"MESSAGE", "PRIVATE", "SECURE", "VAULT",
}

// DefaultGridSeeds seed shuffled grids.
var DefaultGridSeeds = []uint64{7, 12, 21, 31, 42, 85, 100, 123, 456, 789}

// DefaultTranspositionKeywords are tried as ADFGVX column keys.
var DefaultTranspositionKeywords = []string{
	"KEY", "CODE", "CIPHER", "SECRET", "GERMAN", "PRIVACY", "CARGO", "ATTACK",
	"WAR", "ENIGMA", "ADFGVX", "PARIS",
}

func DefaultConfig() Config {
	def := scoring.DefaultOptions()
	return Config{
		Search: Search{
			TopK:                 5,
			Workers:              1,
			Seed:                 1,
			Iterations:           5000,
			StaleLimit:           2000,
			Restarts:             4,
			InitialKey:           "frequency",
			Samples:              8,
			Policy:               PolicyHillClimb,
			Tolerance:            2.0,
			InitialTemperature:   10.0,
			RegressionsPerWindow: 20,
			Window:               500,
		},
		Scoring: Scoring{
			Model:                  "en",
			Floor:                  def.Floor,
			BigramWeight:           def.BigramWeight,
			BackoffDiscount:        def.BackoffDiscount,
			PunctuationProbability: def.PunctuationProbability,
			WordBonus:              def.WordBonus,
		},
		Ciphers: Ciphers{
			Caesar:    Caesar{Alphabet: ciphers.CaesarAlphabet},
			RailFence: RailFence{MaxRails: 20, Direction: ciphers.RailDown, RemoveSpaces: true},
			Bacon:     Bacon{MinSymbols: 5, TopSymbols: 10},
			Polybius: Polybius{
				GridSize:    5,
				Merge:       ciphers.MergeIJ,
				NumberBase:  1,
				Separator:   " ",
				Keywords:    append([]string(nil), DefaultPolybiusKeywords...),
				Seeds:       append([]uint64(nil), DefaultGridSeeds...),
				Statistical: true,
			},
			ADFGVX: ADFGVX{
				Keywords:     append([]string(nil), DefaultTranspositionKeywords...),
				GridKeywords: append([]string(nil), DefaultPolybiusKeywords...),
				Seeds:        append([]uint64(nil), DefaultGridSeeds...),
				Statistical:  true,
			},
			Stream: Stream{Cipher: "rc4", Format: string(ciphers.FormatHex)},
			Block: Block{
				BlockSize: 8,
				Rounds:    4,
				Padding:   ciphers.PaddingPKCS7,
				Format:    string(ciphers.FormatHex),
			},
		},
		Bias: Bias{
			Cipher:           "rc4",
			Trials:           100000,
			KeyLength:        16,
			Positions:        16,
			Threshold:        2.0,
			MinExpectedCount: 32,
			MinZScore:        5,
			Workers:          4,
			Seed:             1,
		},
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func ValidateConfig(config *Config) error {
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if config.Search.Policy == PolicyBoundedRegression &&
		config.Search.Tolerance == 0 && config.Search.InitialTemperature == 0 {
		return fmt.Errorf("%w: bounded-regression needs a tolerance or an initial temperature", ErrInvalidConfiguration)
	}
	if config.Ciphers.Caesar.Alphabet != "" && !config.Ciphers.Caesar.WrapSeparately {
		seen := make(map[rune]bool)
		for _, r := range config.Ciphers.Caesar.Alphabet {
			if seen[r] {
				return fmt.Errorf("%w: caesar alphabet repeats %q", ErrInvalidConfiguration, r)
			}
			seen[r] = true
		}
	}
	if config.Ciphers.Stream.Nonce != "" {
		if _, err := hex.DecodeString(config.Ciphers.Stream.Nonce); err != nil {
			return fmt.Errorf("%w: stream nonce: %v", ErrInvalidConfiguration, err)
		}
	}
	if config.Bias.Cipher == "rc4" && config.Bias.KeyLength+config.Bias.NonceLength > MaxRC4KeyLength {
		return fmt.Errorf("%w: rc4 is keyed with nonce||key, %d+%d bytes exceeds %d",
			ErrInvalidConfiguration, config.Bias.NonceLength, config.Bias.KeyLength, MaxRC4KeyLength)
	}
	if config.Bias.FixedKey != "" {
		key, err := hex.DecodeString(config.Bias.FixedKey)
		if err != nil {
			return fmt.Errorf("%w: bias fixed key: %v", ErrInvalidConfiguration, err)
		}
		if len(key) != config.Bias.KeyLength {
			return fmt.Errorf("%w: bias fixed key has %d bytes, key length is %d", ErrInvalidConfiguration, len(key), config.Bias.KeyLength)
		}
	}
	return nil
}

// LoadConfig reads path over the defaults. Files ending in .yaml or .yml
// are parsed as YAML, anything else as JSON. An empty path yields the
// defaults.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	if path == "" {
		return config, ValidateConfig(&config)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		err = json.Unmarshal(data, &config)
	}
	if err != nil {
		return config, fmt.Errorf("parsing config: %w", err)
	}

	return config, ValidateConfig(&config)
}
