package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codebreaker/config"
	"codebreaker/search"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(""))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestOutputFormatFlag(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"text", FormatText, false},
		{"JSON", FormatJSON, false},
		{"csv", FormatCSV, false},
		{"xml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var f OutputFormat
			err := (*outputFormatFlag)(&f).Set(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, f)
		})
	}
}

func TestCaesarCommandJSON(t *testing.T) {
	out, err := execute(t, "caesar", "KHOOR", "ZRUOG", "--words", "HELLO,WORLD", "--format", "json")
	require.NoError(t, err)

	var res struct {
		Shape      string `json:"shape"`
		Status     string `json:"status"`
		Evaluated  int    `json:"evaluated"`
		Candidates []struct {
			Key       string `json:"key"`
			Plaintext string `json:"plaintext"`
		} `json:"candidates"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "caesar", res.Shape)
	assert.Equal(t, "ok", res.Status)
	assert.Equal(t, 52, res.Evaluated)
	require.NotEmpty(t, res.Candidates)
	assert.Equal(t, "HELLO WORLD", res.Candidates[0].Plaintext)
	assert.Equal(t, "shift=3", res.Candidates[0].Key)
}

func TestCaesarCommandCSV(t *testing.T) {
	out, err := execute(t, "caesar", "KHOOR ZRUOG", "--format", "csv", "--top", "3")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(out)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"rank", "score", "key", "plaintext", "note", "degenerate"}, rows[0])
	assert.Equal(t, "1", rows[1][0])
}

func TestTextOutputSavesResults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	out, err := execute(t, "railfence", "HOLELWRDLO", "--max-rails", "5", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, "railfence search completed")
	assert.Contains(t, out, "rails=3")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"shape": "railfence"`)
}

func TestCiphertextFromStdin(t *testing.T) {
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader("KHOOR ZRUOG\n"))
	root.SetArgs([]string{"caesar", "-", "--words", "HELLO,WORLD", "--format", "json"})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), `"plaintext": "HELLO WORLD"`)
}

func TestEncryptThenBreak(t *testing.T) {
	tests := []struct {
		name    string
		encrypt []string
		breaker []string
		want    string
	}{
		{
			name:    "caesar",
			encrypt: []string{"encrypt", "caesar", "attack at dawn", "--key", "7"},
			breaker: []string{"caesar", "--words", "ATTACK,DAWN"},
			want:    "shift=7",
		},
		{
			name:    "railfence",
			encrypt: []string{"encrypt", "railfence", "WEAREDISCOVEREDFLEEATONCE", "--key", "3"},
			breaker: []string{"railfence"},
			want:    "rails=3",
		},
		{
			name:    "stream",
			encrypt: []string{"encrypt", "stream", "meet me at the usual place", "--key", "secret"},
			breaker: []string{"stream"},
			want:    `key="secret"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, err := execute(t, tt.encrypt...)
			require.NoError(t, err)
			ct = strings.TrimSpace(ct)
			require.NotEmpty(t, ct)

			out, err := execute(t, append(tt.breaker, ct, "--format", "json")...)
			require.NoError(t, err)
			var res struct {
				Candidates []struct {
					Key string `json:"key"`
				} `json:"candidates"`
			}
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			require.NotEmpty(t, res.Candidates)
			assert.Equal(t, tt.want, res.Candidates[0].Key)
		})
	}
}

func TestKeyFor(t *testing.T) {
	cfg := config.DefaultConfig()
	tests := []struct {
		name    string
		cipher  string
		key     string
		wantErr bool
	}{
		{"caesar shift", "caesar", "3", false},
		{"caesar not a number", "caesar", "three", true},
		{"bacon symbols", "bacon", "xy", false},
		{"bacon needs two", "bacon", "x", true},
		{"mono permutation", "mono", "qwertyuiopasdfghjklzxcvbnm", false},
		{"mono short", "mono", "QWERTY", true},
		{"polybius keyword", "polybius", "zebras", false},
		{"block hex", "block", "0001020304050607", false},
		{"block not hex", "block", "zz", true},
		{"unknown", "enigma", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := keyFor(tt.cipher, cfg, tt.key, "", 26)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestMonoEncryptKeyIsEncryptionMapping(t *testing.T) {
	cfg := config.DefaultConfig()
	shape, solve, err := shapeFor("mono", cfg, "")
	require.NoError(t, err)
	assert.True(t, solve)

	k, err := keyFor("mono", cfg, "QWERTYUIOPASDFGHJKLZXCVBNM", "", 26)
	require.NoError(t, err)
	ct, err := shape.Encrypt("ABC", k)
	require.NoError(t, err)
	assert.Equal(t, "QWE", ct)

	pt, err := shape.Decrypt(ct, k)
	require.NoError(t, err)
	assert.Equal(t, "ABC", pt)
}

func TestShapeForUsesConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Ciphers.Polybius.Statistical = false
	cfg.Ciphers.Stream.Cipher = "chacha20"

	shape, solve, err := shapeFor("polybius", cfg, "")
	require.NoError(t, err)
	assert.False(t, solve)
	assert.Equal(t, "polybius", shape.Name())

	shape, _, err = shapeFor("stream", cfg, "")
	require.NoError(t, err)
	assert.Equal(t, "chacha20", shape.Name())

	_, _, err = shapeFor("enigma", cfg, "")
	assert.ErrorIs(t, err, search.ErrInvalidConfiguration)
}

func TestInvalidFlagsAreConfigurationErrors(t *testing.T) {
	_, err := execute(t, "railfence", "HOLELWRDLO", "--direction", "sideways")
	assert.ErrorIs(t, err, config.ErrInvalidConfiguration)

	_, err = execute(t, "caesar", "KHOOR", "--format", "xml")
	assert.Error(t, err)
}

func TestBiasCommandJSON(t *testing.T) {
	out, err := execute(t, "bias",
		"--cipher", "synthetic",
		"--trials", "20000",
		"--positions", "8",
		"--key-length", "4",
		"--workers", "2",
		"--nonce-length", "8",
		"--target-key", "13c7552e",
		"--format", "json",
	)
	require.NoError(t, err)

	var res struct {
		Cipher  string `json:"cipher"`
		Trials  int    `json:"trials"`
		Status  string `json:"status"`
		Flagged []struct {
			Position int `json:"position"`
			KeyIndex int `json:"key_index"`
		} `json:"flagged"`
		Experiment struct {
			Label      string `json:"label"`
			Comparison struct {
				Matched int `json:"matched"`
				Total   int `json:"total"`
			} `json:"comparison"`
		} `json:"experiment"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "synthetic", res.Cipher)
	assert.Equal(t, 20000, res.Trials)
	assert.Equal(t, "ok", res.Status)
	require.NotEmpty(t, res.Flagged)
	assert.Equal(t, 3, res.Flagged[0].Position)
	assert.Equal(t, 1, res.Flagged[0].KeyIndex)
	assert.Contains(t, res.Experiment.Label, "illustrative")
	assert.Equal(t, 1, res.Experiment.Comparison.Total)
	assert.Equal(t, 1, res.Experiment.Comparison.Matched)
}

func TestBiasCommandRejectsShortTargetKey(t *testing.T) {
	_, err := execute(t, "bias", "--cipher", "uniform", "--trials", "10", "--key-length", "4", "--nonce-length", "8", "--target-key", "13c7", "--format", "json")
	assert.ErrorIs(t, err, config.ErrInvalidConfiguration)
}

func TestBiasCommandRejectsTargetKeyWithoutNonces(t *testing.T) {
	out, err := execute(t, "bias", "--cipher", "rc4", "--trials", "10", "--key-length", "4", "--nonce-length", "0", "--target-key", "13c7552e", "--format", "json")
	assert.ErrorIs(t, err, config.ErrInvalidConfiguration)
	assert.Empty(t, out)
}

func TestBiasCommandRejectsOversizedRC4Key(t *testing.T) {
	_, err := execute(t, "bias", "--cipher", "rc4", "--trials", "10", "--key-length", "250", "--nonce-length", "8", "--format", "json")
	assert.ErrorIs(t, err, config.ErrInvalidConfiguration)
}

func TestEncryptRailFenceSpaces(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"removed by default", nil, "HOLELWRDLO"},
		{"kept on request", []string{"--remove-spaces=false"}, "HOREL OLLWD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"encrypt", "railfence", "HELLO WORLD", "--key", "3"}, tt.args...)
			out, err := execute(t, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, strings.TrimSpace(out))
		})
	}
}
