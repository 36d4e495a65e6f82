package schema

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/go-openapi/inflect"
)

var (
	rules = ruleset()

	identifierPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

	acronyms = map[string]string{
		"id":   "ID",
		"url":  "URL",
		"json": "JSON",
		"api":  "API",
	}
)

func ruleset() *inflect.Ruleset {
	r := inflect.NewDefaultRuleset()
	for _, w := range acronyms {
		r.AddAcronym(w)
	}
	return r
}

// ValidIdentifier reports whether s may be compiled into SQL text.
func ValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

// TableName returns the default table name for an entity name.
func TableName(entity string) string {
	return rules.Pluralize(Snake(entity))
}

// Plural returns the plural form of a snake_case word.
func Plural(s string) string {
	return rules.Pluralize(s)
}

// Snake converts PascalCase or camelCase to snake_case, keeping acronym
// runs together (UserID becomes user_id).
func Snake(s string) string {
	runes := []rune(s)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('_')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Pascal converts snake_case to an exported Go name (user_id becomes UserID).
func Pascal(s string) string {
	var b strings.Builder
	for _, part := range strings.Split(s, "_") {
		if part == "" {
			continue
		}
		if a, ok := acronyms[part]; ok {
			b.WriteString(a)
			continue
		}
		b.WriteString(rules.Capitalize(part))
	}
	return b.String()
}

// Camel converts snake_case to an unexported Go name.
func Camel(s string) string {
	p := Pascal(s)
	if p == "" {
		return p
	}
	for k, a := range acronyms {
		if strings.HasPrefix(p, a) && strings.HasPrefix(s, k) {
			return k + p[len(a):]
		}
	}
	return strings.ToLower(p[:1]) + p[1:]
}
