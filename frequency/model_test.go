package frequency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnglishModel(t *testing.T) {
	m := English()
	require.NotNil(t, m)

	assert.Equal(t, "en", m.Tag())
	assert.Equal(t, "ETAOINSHRDLCUMWFGYPBVKJXQZ", m.Order())
	assert.True(t, m.HasBigrams())
	assert.Same(t, m, English(), "english model is parsed once")

	sum := 0.0
	for c := byte('A'); c <= 'Z'; c++ {
		p, ok := m.Unigram(c)
		require.True(t, ok, "letter %c", c)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, sumTolerance)
}

func TestModelLookups(t *testing.T) {
	m := English()

	tests := []struct {
		name   string
		a, b   byte
		wantOK bool
	}{
		{"common pair", 'T', 'H', true},
		{"lower case folds", 'h', 'e', true},
		{"rare pair unlisted", 'Q', 'Z', false},
		{"non letter", '1', 'A', false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := m.Bigram(tt.a, tt.b)
			assert.Equal(t, tt.wantOK, ok)
		})
	}

	_, ok := m.Unigram(' ')
	assert.False(t, ok)

	th, _ := m.Bigram('T', 'H')
	hw, _ := m.Bigram('O', 'W')
	assert.Greater(t, th, hw)
}

func TestWithWordsIsCopy(t *testing.T) {
	base := English()
	hinted := base.WithWords("hello", " World ", "")

	assert.True(t, hinted.HasWord("HELLO"))
	assert.True(t, hinted.HasWord("world"))
	assert.Equal(t, []string{"HELLO", "WORLD"}, hinted.Words())
	assert.False(t, base.HasWord("HELLO"), "base model must not change")
	assert.Empty(t, base.Words())

	more := hinted.WithWords("again")
	assert.Len(t, more.Words(), 3)
	assert.Len(t, hinted.Words(), 2)
}

func TestCommonWordsNotApplied(t *testing.T) {
	m := English()
	assert.Contains(t, m.CommonWords(), "THE")
	assert.False(t, m.HasWord("THE"))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{
			name:    "invalid yaml",
			data:    "unigrams: [",
			wantErr: true,
		},
		{
			name:    "sum too small",
			data:    "tag: x\nunigrams:\n  A: 0.5\n",
			wantErr: true,
		},
		{
			name:    "bad symbol",
			data:    "tag: x\nunigrams:\n  '1': 1.0\n",
			wantErr: true,
		},
		{
			name:    "bad bigram",
			data:    "tag: x\nunigrams:\n  A: 0.5\n  B: 0.5\nbigrams:\n  ABC: 0.1\n",
			wantErr: true,
		},
		{
			name:    "derived order",
			data:    "tag: x\nunigrams:\n  A: 0.25\n  B: 0.75\n",
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, byte('B'), m.Order()[0])
			assert.Equal(t, byte('A'), m.Order()[1])
		})
	}
}

func TestLoadUnknown(t *testing.T) {
	_, err := Load("xx")
	assert.ErrorIs(t, err, ErrUnknownModel)
}
