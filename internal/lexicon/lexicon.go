// Package lexicon rewrites text before it is spoken so that speech engines
// pronounce product names and jargon correctly.
package lexicon

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Lexicon applies `term => spoken form` entries in a single pass. Terms
// match case-insensitively; longer terms win over their prefixes.
type Lexicon struct {
	re      *regexp.Regexp
	spoken  map[string]string
	entries int
}

// Load reads a lexicon file. A blank path or a missing file yields an
// empty lexicon.
func Load(path string) (*Lexicon, error) {
	if strings.TrimSpace(path) == "" {
		return &Lexicon{}, nil
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Lexicon{}, nil
		}
		return nil, fmt.Errorf("failed to read lexicon %q: %w", path, err)
	}

	lex, err := Parse(string(contents))
	if err != nil {
		return nil, fmt.Errorf("failed to parse lexicon %q: %w", path, err)
	}
	return lex, nil
}

// Parse compiles lexicon source. Blank lines and `#` comments are skipped.
func Parse(contents string) (*Lexicon, error) {
	spoken := map[string]string{}
	for index, raw := range strings.Split(contents, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		term, form, ok := strings.Cut(line, "=>")
		if !ok {
			return nil, fmt.Errorf("line %d: expected `term => spoken form`", index+1)
		}
		term = strings.TrimSpace(term)
		if term == "" {
			return nil, fmt.Errorf("line %d: term cannot be empty", index+1)
		}
		spoken[strings.ToLower(term)] = strings.TrimSpace(form)
	}

	if len(spoken) == 0 {
		return &Lexicon{}, nil
	}

	terms := make([]string, 0, len(spoken))
	for term := range spoken {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if len(terms[i]) != len(terms[j]) {
			return len(terms[i]) > len(terms[j])
		}
		return terms[i] < terms[j]
	})

	alternatives := make([]string, len(terms))
	for i, term := range terms {
		alternatives[i] = termPattern(term)
	}
	re, err := regexp.Compile("(?i)" + strings.Join(alternatives, "|"))
	if err != nil {
		return nil, fmt.Errorf("invalid lexicon: %w", err)
	}

	return &Lexicon{re: re, spoken: spoken, entries: len(spoken)}, nil
}

// Len reports the number of distinct terms.
func (l *Lexicon) Len() int {
	if l == nil {
		return 0
	}
	return l.entries
}

// Rewrite replaces every known term with its spoken form. Replacements are
// not rescanned.
func (l *Lexicon) Rewrite(text string) string {
	if l == nil || l.re == nil {
		return text
	}
	return l.re.ReplaceAllStringFunc(text, func(match string) string {
		if form, ok := l.spoken[strings.ToLower(match)]; ok {
			return form
		}
		return match
	})
}

// termPattern anchors word-like edges of term to word boundaries so that
// "AI" does not match inside "said". CJK terms carry no boundaries.
func termPattern(term string) string {
	pattern := regexp.QuoteMeta(term)
	first, _ := utf8.DecodeRuneInString(term)
	last, _ := utf8.DecodeLastRuneInString(term)
	if isASCIIWord(first) {
		pattern = `\b` + pattern
	}
	if isASCIIWord(last) {
		pattern += `\b`
	}
	return pattern
}

func isASCIIWord(r rune) bool {
	return r < unicode.MaxASCII && (r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r))
}
