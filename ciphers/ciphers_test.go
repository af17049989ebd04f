package ciphers

import (
	"bytes"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaesar(t *testing.T) {
	tests := []struct {
		name   string
		cipher Caesar
		plain  string
		shift  int
		want   string
	}{
		{"classic shift", Caesar{}, "HELLO WORLD", 3, "KHOOR ZRUOG"},
		{"crosses into lower case", Caesar{}, "XYZ", 3, "abc"},
		{"wraps the whole dictionary", Caesar{}, "z", 1, "A"},
		{"wrap separately", Caesar{WrapSeparately: true}, "Xyz!", 3, "Abc!"},
		{"custom alphabet", Caesar{Alphabet: "ABC"}, "ABCD", 1, "BCAD"},
		{"negative shift", Caesar{}, "B", -1, "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.cipher.Encrypt(tt.plain, tt.shift)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.plain, tt.cipher.Decrypt(got, tt.shift))
		})
	}

	assert.Equal(t, 52, Caesar{}.Size())
	assert.Equal(t, 26, Caesar{WrapSeparately: true}.Size())
	assert.Equal(t, 10, Caesar{}.Recognized("KHOOR ZRUOG!"))
	assert.Zero(t, Caesar{}.Recognized("123 !?"))
}

func TestCaesarRoundTripAllShifts(t *testing.T) {
	plain := "The Quick Brown Fox, 1234."
	c := Caesar{}
	for k := 0; k < c.Size(); k++ {
		assert.Equal(t, plain, c.Decrypt(c.Encrypt(plain, k), k), "shift %d", k)
	}
}

func TestSubstitution(t *testing.T) {
	s := Substitution{}
	key := "QWERTYUIOPASDFGHJKLZXCVBNM"

	enc, err := s.Encrypt("Hello, World", key)
	require.NoError(t, err)
	assert.Equal(t, "Itssg, Vgksr", enc)

	dec, err := s.Decrypt(enc, key)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World", dec)

	inv := s.InvertKey(key)
	viaInverse, err := s.Encrypt(enc, inv)
	require.NoError(t, err)
	assert.Equal(t, "Hello, World", viaInverse)

	_, err = s.Encrypt("x", "ABC")
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = s.Encrypt("x", strings.Repeat("A", 26))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestRailFence(t *testing.T) {
	tests := []struct {
		name  string
		fence RailFence
		plain string
		rails int
		want  string
	}{
		{"three rails", RailFence{}, "HELLOWORLD", 3, "HOLELWRDLO"},
		{"two rails", RailFence{}, "HELLOWORLD", 2, "HLOOLELWRD"},
		{"rails beyond length", RailFence{}, "HEY", 5, "HEY"},
		{"single rail", RailFence{}, "HEY", 1, "HEY"},
		{"up direction", RailFence{Direction: RailUp}, "HELLOWORLD", 3, "LOELWRDHOL"},
		{"empty", RailFence{}, "", 3, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.fence.Encrypt(tt.plain, tt.rails)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := tt.fence.Decrypt(got, tt.rails)
			require.NoError(t, err)
			assert.Equal(t, tt.plain, back)
		})
	}

	_, err := RailFence{}.Encrypt("abc", 0)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestRailFenceRemoveSpaces(t *testing.T) {
	tests := []struct {
		name   string
		fence  RailFence
		plain  string
		rails  int
		want   string
		normal string
	}{
		{"spaces removed", RailFence{RemoveSpaces: true}, "HELLO WORLD", 3, "HOLELWRDLO", "HELLOWORLD"},
		{"tabs and newlines removed", RailFence{RemoveSpaces: true}, "HEL\tLO\nWOR LD", 3, "HOLELWRDLO", "HELLOWORLD"},
		{"spaces kept", RailFence{}, "AB CD", 2, "A DBC", "AB CD"},
		{"up direction", RailFence{Direction: RailUp, RemoveSpaces: true}, "HELLO WORLD", 3, "LOELWRDHOL", "HELLOWORLD"},
		{"only spaces", RailFence{RemoveSpaces: true}, "   ", 2, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.normal, tt.fence.Normalize(tt.plain))

			got, err := tt.fence.Encrypt(tt.plain, tt.rails)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			back, err := tt.fence.Decrypt(got, tt.rails)
			require.NoError(t, err)
			assert.Equal(t, tt.fence.Normalize(tt.plain), back)
		})
	}
}

func TestBacon(t *testing.T) {
	tests := []struct {
		name  string
		c     Bacon
		plain string
		want  string
	}{
		{"26 letters", Bacon{A: 'A', B: 'B'}, "HI", "AABBBABAAA"},
		{"24 letters folds J", Bacon{Variant: 24, A: 'A', B: 'B'}, "J", "ABAAA"},
		{"binary symbols", Bacon{A: '0', B: '1'}, "Z", "11001"},
		{"keeps spaces", Bacon{A: 'x', B: 'y'}, "A B", "xxxxx xxxxy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.c.Encrypt(tt.plain)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	c := Bacon{A: 'A', B: 'B'}
	dec, err := c.Decrypt("AABBB ABAAA")
	require.NoError(t, err)
	assert.Equal(t, "H I", strings.ReplaceAll(dec, "  ", " "))

	// Codes past the alphabet and trailing partial groups.
	dec, err = c.Decrypt("BBBBBAB")
	require.NoError(t, err)
	assert.Equal(t, "?", dec)

	coverage, balance := c.Coverage("AABB AB!")
	assert.InDelta(t, 6.0/7.0, coverage, 1e-9)
	assert.InDelta(t, 1.0, balance, 1e-9)

	_, err = Bacon{A: 'A', B: 'A'}.Encrypt("x")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestBaconRoundTrip(t *testing.T) {
	for _, variant := range []int{24, 26} {
		c := Bacon{Variant: variant, A: '.', B: '-'}
		plain := "ATTACK AT DAWN"
		enc, err := c.Encrypt(plain)
		require.NoError(t, err)
		dec, err := c.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, plain, dec, "variant %d", variant)
	}
}

func TestPolybius(t *testing.T) {
	std, err := StandardGrid(5, MergeIJ)
	require.NoError(t, err)

	p := Polybius{Grid: std, NumberBase: 1}
	enc, err := p.Encrypt("Hello J")
	require.NoError(t, err)
	assert.Equal(t, "23 15 31 31 34 24", enc)

	dec, err := p.Decrypt(enc)
	require.NoError(t, err)
	assert.Equal(t, "HELLOI", dec)

	tests := []struct {
		name string
		in   string
	}{
		{"digit outside grid", "16"},
		{"letters", "1a"},
		{"unpaired", "11 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.Decrypt(tt.in)
			assert.ErrorIs(t, err, ErrInvalidCiphertextSymbol)
		})
	}
}

func TestPolybiusGrids(t *testing.T) {
	kw, err := KeywordGrid(5, MergeIJ, "secret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(kw.Layout(), "SECRTABDFGHIKLMNOPQUVWXYZ"))

	uv, err := StandardGrid(5, MergeUV)
	require.NoError(t, err)
	row, col, ok := uv.Locate('v')
	require.True(t, ok)
	assert.Equal(t, 'U', uv.At(row, col))

	a, err := ShuffledGrid(6, "", 42)
	require.NoError(t, err)
	b, err := ShuffledGrid(6, "", 42)
	require.NoError(t, err)
	assert.Equal(t, a.Layout(), b.Layout())
	assert.Len(t, a.Layout(), 36)

	_, err = StandardGrid(7, "")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = GridFromLayout(5, MergeIJ, "ABC")
	assert.ErrorIs(t, err, ErrInvalidKey)
	fromLayout, err := GridFromLayout(5, MergeIJ, kw.Layout())
	require.NoError(t, err)
	assert.Equal(t, kw.Layout(), fromLayout.Layout())

	for _, grid := range []*Grid{kw, uv, a} {
		p := Polybius{Grid: grid, NumberBase: 0, Separator: ","}
		plain := "ATTACKATDAWN"
		enc, err := p.Encrypt(plain)
		require.NoError(t, err)
		dec, err := p.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, plain, dec)
	}
}

func TestADFGVX(t *testing.T) {
	grid, err := KeywordGrid(6, "", "PRIVACY")
	require.NoError(t, err)

	tests := []struct {
		name    string
		keyword string
		plain   string
	}{
		{"short", "GERMAN", "ATTACKAT1200AM"},
		{"irregular columns", "CARGO", "DEFENDTHEEASTWALL"},
		{"repeated keyword letters", "BALLOON", "MEETMEATNOON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := ADFGVX{Grid: grid, Keyword: tt.keyword}
			enc, err := c.Encrypt(tt.plain)
			require.NoError(t, err)
			assert.Len(t, enc, 2*len(tt.plain))
			assert.Empty(t, strings.Trim(enc, ADFGVXSymbols))

			dec, err := c.Decrypt(enc)
			require.NoError(t, err)
			assert.Equal(t, tt.plain, dec)
		})
	}

	c := ADFGVX{Grid: grid, Keyword: "KEY"}
	_, err = c.Decrypt("ADFQ")
	assert.ErrorIs(t, err, ErrInvalidCiphertextSymbol)
	_, err = c.Decrypt("ADF")
	assert.ErrorIs(t, err, ErrInvalidCiphertextSymbol)
	_, err = ADFGVX{Grid: grid, Keyword: "A"}.Encrypt("X")
	assert.ErrorIs(t, err, ErrInvalidKey)
	small, _ := StandardGrid(5, "")
	_, err = ADFGVX{Grid: small, Keyword: "KEY"}.Encrypt("X")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestBlock(t *testing.T) {
	tests := []struct {
		name  string
		block Block
		key   []byte
		plain []byte
	}{
		{"default", DefaultBlock(), []byte("secretk!"), []byte("attack at dawn")},
		{"4 byte blocks", Block{BlockSize: 4, Rounds: 1, Padding: PaddingPKCS7}, []byte{1, 2, 3, 4}, []byte("hi")},
		{"16 byte blocks", Block{BlockSize: 16, Rounds: 16, Padding: PaddingPKCS7}, []byte("k"), []byte("exactly sixteen!")},
		{"zero padding", Block{BlockSize: 8, Rounds: 3, Padding: PaddingZero}, []byte("key"), []byte("no zeros")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc, err := tt.block.Encrypt(tt.plain, tt.key)
			require.NoError(t, err)
			assert.Zero(t, len(enc)%tt.block.BlockSize)
			assert.False(t, bytes.Contains(enc, tt.plain))

			dec, err := tt.block.Decrypt(enc, tt.key)
			require.NoError(t, err)
			assert.Equal(t, tt.plain, dec)
		})
	}

	b := DefaultBlock()
	_, err := b.Decrypt([]byte{1, 2, 3}, []byte("k"))
	assert.ErrorIs(t, err, ErrInvalidCiphertextSymbol)
	_, err = Block{BlockSize: 5, Rounds: 1}.Encrypt([]byte("x"), []byte("k"))
	assert.ErrorIs(t, err, ErrInvalidKey)
	_, err = Block{BlockSize: 8, Rounds: 17}.Encrypt([]byte("x"), []byte("k"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestBitPermutationInverts(t *testing.T) {
	for v := 0; v < 256; v++ {
		assert.Equal(t, byte(v), unpermuteBits(permuteBits(byte(v))))
		assert.Equal(t, byte(v), sboxInv[sbox[v]])
	}
}

func TestRC4KnownVector(t *testing.T) {
	out, err := RC4().XOR([]byte("Plaintext"), []byte("Key"), nil)
	require.NoError(t, err)
	assert.Equal(t, "bbf316e8d940af0ad3", hex.EncodeToString(out))

	// A nonce is prepended to the key.
	withNonce, err := RC4Keystream([]byte("y"), []byte("Ke"), 9)
	require.NoError(t, err)
	plain, err := RC4Keystream([]byte("Key"), nil, 9)
	require.NoError(t, err)
	assert.Equal(t, plain, withNonce)
}

func TestChaCha20(t *testing.T) {
	c := ChaCha20()
	msg := []byte("the quick brown fox")

	enc, err := c.XOR(msg, []byte("short key"), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.NotEqual(t, msg, enc)

	dec, err := c.XOR(enc, []byte("short key"), []byte{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, msg, dec)

	long := bytes.Repeat([]byte("k"), 40)
	a, err := ChaCha20Keystream(long, nil, 16)
	require.NoError(t, err)
	b, err := ChaCha20Keystream(long[:32], nil, 16)
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "long keys are hashed, not truncated")

	_, err = ChaCha20Keystream(nil, nil, 4)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestCodec(t *testing.T) {
	data := []byte{0x00, 0x7f, 0xff, 'A'}

	for _, f := range []Format{FormatHex, FormatBase64, FormatDecimal, FormatBinary} {
		t.Run(string(f), func(t *testing.T) {
			got, err := Decode(f, Encode(f, data))
			require.NoError(t, err)
			assert.Equal(t, data, got)
		})
	}

	bad := []struct {
		name   string
		format Format
		in     string
	}{
		{"hex letter", FormatHex, "0g"},
		{"hex odd", FormatHex, "abc"},
		{"base64", FormatBase64, "!!!!"},
		{"decimal range", FormatDecimal, "1 256"},
		{"decimal word", FormatDecimal, "1 two"},
		{"binary digit", FormatBinary, "0102"},
		{"binary length", FormatBinary, "0101"},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.format, tt.in)
			assert.ErrorIs(t, err, ErrInvalidCiphertextSymbol)
		})
	}

	var se *SymbolError
	_, err := Decode(FormatHex, "12zz")
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 'z', se.Symbol)
	assert.Equal(t, 2, se.Offset)

	f, err := ParseFormat("BASE64")
	require.NoError(t, err)
	assert.Equal(t, FormatBase64, f)
	_, err = ParseFormat("rot13")
	assert.Error(t, err)
}
