package outreach

import (
	"regexp"
	"sort"
)

// placeholderRe matches {{identifier}} where identifier is word characters.
var placeholderRe = regexp.MustCompile(`\{\{(\w+)\}\}`)

// Render substitutes {{key}} tokens in pattern with values from vars. A
// token whose key is not in vars stays in the output verbatim so missing
// data is visible in the sent email. Substitution is a single pass: values
// are never rescanned for tokens.
func Render(pattern string, vars map[string]string) string {
	return placeholderRe.ReplaceAllStringFunc(pattern, func(token string) string {
		key := token[2 : len(token)-2]
		if v, ok := vars[key]; ok {
			return v
		}
		return token
	})
}

// Placeholders returns the distinct placeholder keys in pattern, sorted.
func Placeholders(pattern string) []string {
	seen := map[string]bool{}
	for _, m := range placeholderRe.FindAllStringSubmatch(pattern, -1) {
		seen[m[1]] = true
	}
	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
