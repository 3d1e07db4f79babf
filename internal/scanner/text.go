package scanner

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/GriffinCanCode/jobscan/internal/dom"
)

var trailingMarkers = regexp.MustCompile(`[\s:*]+$`)

// normalizeLabel strips required-marker asterisks and trailing colons and
// collapses whitespace.
func normalizeLabel(s string) string {
	s = strings.ReplaceAll(s, "*", " ")
	s = dom.NormalizeSpace(s)
	return strings.TrimSpace(trailingMarkers.ReplaceAllString(s, ""))
}

// titleize turns identifiers such as "first_name" or "firstName" into
// "First Name".
func titleize(s string) string {
	runes := []rune(strings.TrimSpace(s))
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, string(cur))
			cur = cur[:0]
		}
	}

	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
			continue
		case unicode.IsUpper(r) && i > 0:
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()

	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + w[size:]
	}
	return strings.Join(words, " ")
}

// looksLikeIdentifier reports whether s is a code identifier rather than
// human text (no spaces, separators or inner capitals).
func looksLikeIdentifier(s string) bool {
	if strings.ContainsAny(s, " ") {
		return false
	}
	if strings.ContainsAny(s, "_-.[]") {
		return true
	}
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			return true
		}
	}
	return false
}

// truncate shortens s to at most max runes, marking the cut with "...".
func truncate(s string, max int) string {
	if max <= 3 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max-3])) + "..."
}

// candidates is a deduplicated, capped, ordered list of strings.
type candidates struct {
	limit  int
	clean  func(string) string
	seen   map[string]struct{}
	values []string
}

func newCandidates(limit int, clean func(string) string) *candidates {
	return &candidates{
		limit: limit,
		clean: clean,
		seen:  make(map[string]struct{}),
	}
}

func (c *candidates) add(raw string) {
	if len(c.values) >= c.limit {
		return
	}
	v := raw
	if c.clean != nil {
		v = c.clean(raw)
	}
	if v == "" {
		return
	}
	key := strings.ToLower(v)
	if _, dup := c.seen[key]; dup {
		return
	}
	c.seen[key] = struct{}{}
	c.values = append(c.values, v)
}

func (c *candidates) list() []string {
	if c.values == nil {
		return []string{}
	}
	return c.values
}
