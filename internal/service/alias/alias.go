// Package alias derives the short labels drawn on wheel segments.
//
// The label is the last whitespace-separated token of a name (the given
// name in Vietnamese order). When that label is already in use, the
// uppercased initials of the preceding tokens are appended, and further
// collisions get a numeric suffix.
package alias

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeName trims the name and collapses inner whitespace runs.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(name), " ")
}

// Parts splits a name into its base label and the initials of the other tokens.
func Parts(name string) (base, initials string) {
	tokens := strings.Fields(name)
	if len(tokens) == 0 {
		return "", ""
	}

	var b strings.Builder
	for _, tok := range tokens[:len(tokens)-1] {
		r, _ := utf8.DecodeRuneInString(tok)
		b.WriteRune(unicode.ToUpper(r))
	}
	return tokens[len(tokens)-1], b.String()
}

// Resolve picks the alias for name given the aliases already stored that
// start with the name's base label. It never fails: when two check-ins race
// on the same lookup, they may both get the same alias.
func Resolve(name string, existing []string) string {
	base, initials := Parts(name)
	if base == "" {
		return ""
	}

	if !taken(base, existing) {
		return base
	}

	form := base + initials
	if initials != "" && !taken(form, existing) {
		return form
	}

	return form + strconv.Itoa(maxSuffix(form, existing)+1)
}

func suffixPattern(form string) *regexp.Regexp {
	return regexp.MustCompile(`^(?i:` + regexp.QuoteMeta(form) + `)(\d+)?$`)
}

func taken(form string, existing []string) bool {
	re := suffixPattern(form)
	for _, a := range existing {
		if re.MatchString(a) {
			return true
		}
	}
	return false
}

// maxSuffix returns the highest numeric suffix among aliases matching form.
// A bare match counts as 1.
func maxSuffix(form string, existing []string) int {
	re := suffixPattern(form)
	highest := 0
	for _, a := range existing {
		m := re.FindStringSubmatch(a)
		if m == nil {
			continue
		}
		n := 1
		if m[1] != "" {
			if v, err := strconv.Atoi(m[1]); err == nil {
				n = v
			}
		}
		if n > highest {
			highest = n
		}
	}
	return highest
}
