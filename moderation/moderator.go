package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
	"github.com/samber/lo"
)

// Moderator masks banned words inside outgoing text messages. Matching
// runs on a folded form of the text so leet speak spellings and inserted
// punctuation cannot slip a word past the automaton, while the masking
// itself happens on the original runes to preserve layout.
type Moderator struct {
	machine *goahocorasick.Machine
	mask    rune
	log     *slog.Logger
}

// foldedText is the lowercase, de-leeted, noise-free view of a message
// plus the mapping from each folded rune back to its source position.
type foldedText struct {
	runes   []rune
	backRef []int
}

func NewModerator(bannedWords []string, mask rune, log *slog.Logger) (Moderator, error) {
	if len(bannedWords) == 0 {
		return Moderator{mask: mask, log: log}, nil
	}

	patterns := lo.Map(bannedWords, func(word string, _ int) []rune {
		return fold([]rune(word)).runes
	})

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{machine: machine, mask: mask, log: log}, nil
}

// Censor replaces every banned word occurrence with the mask rune and
// returns the list of banned words that were hit.
func (m *Moderator) Censor(text string) (string, []string) {
	if m.machine == nil {
		return text, nil
	}

	source := []rune(text)
	folded := fold(source)
	if len(folded.runes) == 0 {
		return text, nil
	}

	hits := m.machine.MultiPatternSearch(folded.runes, false)
	if len(hits) == 0 {
		return text, nil
	}

	var matched []string
	for _, hit := range hits {
		start := hit.Pos
		end := start + len(hit.Word)
		if start < 0 || end > len(folded.backRef) {
			continue
		}
		matched = append(matched, string(hit.Word))
		for i := folded.backRef[start]; i <= folded.backRef[end-1]; i++ {
			source[i] = m.mask
		}
	}

	matched = lo.Uniq(matched)
	m.log.Debug("message censored", "matches", len(matched))
	return string(source), matched
}

func fold(source []rune) foldedText {
	out := foldedText{
		runes:   make([]rune, 0, len(source)),
		backRef: make([]int, 0, len(source)),
	}
	for i, r := range source {
		plain := deleet(r)
		if unicode.IsPunct(plain) || unicode.IsSpace(plain) || unicode.IsSymbol(plain) {
			continue
		}
		out.runes = append(out.runes, unicode.ToLower(plain))
		out.backRef = append(out.backRef, i)
	}
	return out
}

// deleet maps the usual digit and symbol substitutions back to letters.
func deleet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	default:
		return r
	}
}
