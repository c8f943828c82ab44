package moderation

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator matches banned words in chat text. Matching ignores case,
// punctuation between letters and the usual leet substitutions.
type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
	words        map[string]string // normalized pattern -> dictionary word
	log          *slog.Logger
}

type TextMapping struct {
	Normalized []rune
	OrigIdx    []int
}

// NewModerator initializes the Aho-Corasick automaton with a normalized version of the provided censored words list.
// Words made only of noise are skipped, they would match every message.
func NewModerator(censoredWords []string, censoredChar rune, log *slog.Logger) (*Moderator, error) {
	words := make(map[string]string, len(censoredWords))
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		norm := normalizeRunes([]rune(word))
		if len(norm) == 0 {
			log.Debug("Ignoring censored word without letters", "word", word)
			continue
		}
		if _, dup := words[string(norm)]; dup {
			continue
		}
		words[string(norm)] = word
		patterns = append(patterns, norm)
	}

	mod := &Moderator{censoredChar: censoredChar, words: words, log: log}
	if len(patterns) == 0 {
		return mod, nil
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	mod.matcher = m
	return mod, nil
}

// Censor identifies forbidden patterns and replaces the original characters while preserving spacing.
// It returns the censored text and the dictionary words found, in order of appearance.
func (m *Moderator) Censor(original string) (string, []string) {
	spans, mapping := m.search(original)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	var found []string
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.OrigIdx) {
			continue
		}

		origStart := mapping.OrigIdx[normStart]
		origEnd := mapping.OrigIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.censoredChar
		}
		found = append(found, m.words[string(span.Word)])
	}
	return string(origRunes), found
}

// Contains returns the distinct banned words present in text.
func (m *Moderator) Contains(text string) []string {
	spans, _ := m.search(text)
	var found []string
	seen := make(map[string]struct{}, len(spans))
	for _, span := range spans {
		w := m.words[string(span.Word)]
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		found = append(found, w)
	}
	return found
}

func (m *Moderator) search(text string) ([]*goahocorasick.Term, TextMapping) {
	if m.matcher == nil {
		return nil, TextMapping{}
	}
	mapping := m.normalize(text)
	if len(mapping.Normalized) == 0 {
		return nil, mapping
	}
	return m.matcher.MultiPatternSearch(mapping.Normalized, false), mapping
}

// normalize transforms the input string into a searchable format and tracks original rune positions.
func (m *Moderator) normalize(input string) TextMapping {
	origRunes := []rune(input)
	norm := make([]rune, 0, len(origRunes))
	origIdx := make([]int, 0, len(origRunes))

	for i, r := range origRunes {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return TextMapping{Normalized: norm, OrigIdx: origIdx}
}

// normalizeRunes applies simplification and noise removal to a slice of runes.
func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps common Leet speak characters back to their standard alphabet counterparts.
func simplifyRune(r rune) rune {
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
	default:
		return r
	}
}

// isNoise identifies characters that should be ignored during the pattern matching phase.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
