// Package moderation masks banned terms in outgoing chat text and flags
// messages written outside the allowed languages.
package moderation

import (
	"strings"
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator matches banned terms with an Aho-Corasick automaton built over a
// normalized alphabet, so leet-speak variants ("h4x0r") hit the same pattern
// as the plain spelling. An empty banned list makes Censor the identity.
type Moderator struct {
	matcher      *goahocorasick.Machine
	maskRune     rune
	allowedLangs map[string]struct{}
}

// textMapping carries the normalized runes next to the index each one had in
// the original text, so a match found in normalized space can be masked in
// the original.
type textMapping struct {
	normalized []rune
	origIdx    []int
}

// NewModerator builds the automaton from the banned-terms list. allowedLangs
// holds ISO 639-3 codes; empty means language checks are disabled.
func NewModerator(bannedTerms []string, maskRune rune, allowedLangs []string) (*Moderator, error) {
	m := &Moderator{maskRune: maskRune, allowedLangs: make(map[string]struct{}, len(allowedLangs))}
	for _, lang := range allowedLangs {
		m.allowedLangs[strings.ToLower(strings.TrimSpace(lang))] = struct{}{}
	}

	if len(bannedTerms) == 0 {
		return m, nil
	}

	patterns := make([][]rune, 0, len(bannedTerms))
	for _, term := range bannedTerms {
		normalized := normalizeRunes([]rune(term))
		if len(normalized) > 0 {
			patterns = append(patterns, normalized)
		}
	}
	if len(patterns) == 0 {
		return m, nil
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	m.matcher = machine
	return m, nil
}

// Censor masks every banned term in the text, preserving length and spacing,
// and returns the normalized form of each term that was hit.
func (m *Moderator) Censor(original string) (string, []string) {
	if m.matcher == nil {
		return original, nil
	}

	mapping := normalize(original)
	if len(mapping.normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(mapping.normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	origRunes := []rune(original)
	hits := make([]string, 0, len(spans))
	for _, span := range spans {
		normStart := span.Pos
		normEnd := normStart + len(span.Word)
		if normStart < 0 || normEnd > len(mapping.origIdx) {
			continue
		}

		origStart := mapping.origIdx[normStart]
		origEnd := mapping.origIdx[normEnd-1] + 1
		for i := origStart; i < origEnd; i++ {
			origRunes[i] = m.maskRune
		}
		hits = append(hits, string(span.Word))
	}

	return string(origRunes), hits
}

// DetectForeignLanguage reports the language of the text when detection is
// confident and the language is outside the allowed set. The returned name is
// human readable ("French"), suitable for an administrative notice.
func (m *Moderator) DetectForeignLanguage(text string) (string, bool) {
	if len(m.allowedLangs) == 0 {
		return "", false
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return "", false
	}
	if _, allowed := m.allowedLangs[info.Lang.Iso6393()]; allowed {
		return "", false
	}
	return info.Lang.String(), true
}

// normalize projects the text into the search alphabet and records where each
// kept rune sat in the original.
func normalize(input string) textMapping {
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
	return textMapping{normalized: norm, origIdx: origIdx}
}

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

// simplifyRune maps common leet-speak characters back to their standard
// alphabet counterparts.
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
	case '7':
		return 't'
	default:
		return r
	}
}

// isNoise identifies characters ignored during the pattern matching phase.
func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
