package splitter

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidSizes(t *testing.T) {
	testCases := []struct {
		name    string
		size    int
		overlap int
	}{
		{name: "zero size", size: 0, overlap: 0},
		{name: "negative overlap", size: 100, overlap: -1},
		{name: "overlap equals size", size: 100, overlap: 100},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.size, tc.overlap)
			assert.Error(t, err)
		})
	}
}

func TestSplit_Blank(t *testing.T) {
	s, err := New(1000, 100)
	require.NoError(t, err)

	for _, text := range []string{"", "   ", "\n\n\t"} {
		chunks, err := s.Split(text)
		assert.NoError(t, err)
		assert.Empty(t, chunks)
	}
}

func TestSplit_ShortTextIsOneChunk(t *testing.T) {
	s, err := New(1000, 100)
	require.NoError(t, err)

	chunks, err := s.Split("Renault Group publishes its annual results in February.")
	require.NoError(t, err)
	assert.Equal(t, []string{"Renault Group publishes its annual results in February."}, chunks)
}

func TestSplit_LongText(t *testing.T) {
	s, err := New(100, 20)
	require.NoError(t, err)

	words := make([]string, 200)
	for i := range words {
		words[i] = "word"
	}
	text := strings.Join(words, " ")

	chunks, err := s.Split(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for _, c := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(c), 100)
		assert.NotEmpty(t, strings.TrimSpace(c))
	}
}

func TestSplit_PrefersParagraphs(t *testing.T) {
	s, err := New(60, 0)
	require.NoError(t, err)

	first := "First paragraph about vehicle sales in Europe."
	second := "Second paragraph about the stock price."
	chunks, err := s.Split(first + "\n\n" + second)
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, chunks)
}
