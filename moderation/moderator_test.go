package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const maskChar = '*'

// Dictionary words are chosen to avoid partial collisions with the
// surrounding prose (e.g. "he" inside "The").
func TestModerator_Censor(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	mod, err := NewModerator([]string{"badger", "snake", "mushroom"}, maskChar, log)
	req.NoError(err)

	tests := []struct {
		name     string
		input    string
		expected string
		matched  []string
	}{
		{
			name:     "simple word with preserved spacing",
			input:    "The badger is here",
			expected: "The ****** is here",
			matched:  []string{"badger"},
		},
		{
			name:     "repeated word reported once",
			input:    "badger badger badger",
			expected: "****** ****** ******",
			matched:  []string{"badger"},
		},
		{
			name:     "leet speak with internal punctuation",
			input:    "Look at B.4.d.g.€r !",
			expected: "Look at ********** !",
			matched:  []string{"badger"},
		},
		{
			name:     "uppercase with heavy noise",
			input:    "S-N-A-K-E is a B.A.D.G.E.R",
			expected: "********* is a ***********",
			matched:  []string{"snake", "badger"},
		},
		{
			name:     "accented text around the match",
			input:    "Un été avec un badger",
			expected: "Un été avec un ******",
			matched:  []string{"badger"},
		},
		{
			name:     "trailing punctuation stays",
			input:    "I love badger!",
			expected: "I love ******!",
			matched:  []string{"badger"},
		},
		{
			name:     "clean text passes through",
			input:    "Nothing wrong in this one",
			expected: "Nothing wrong in this one",
			matched:  nil,
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
			matched:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			censored, matched := mod.Censor(tt.input)
			req.Equal(tt.expected, censored)
			req.Equal(tt.matched, matched)
		})
	}
}

func TestModerator_EmptyDictionary(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	mod, err := NewModerator(nil, maskChar, log)
	req.NoError(err)

	censored, matched := mod.Censor("anything goes here")
	req.Equal("anything goes here", censored)
	req.Empty(matched)
}
