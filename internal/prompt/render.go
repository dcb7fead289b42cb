package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

// Render substitutes {name} placeholders verbatim. Values are not
// escaped; templates are trusted local files and the model consumes
// the result as plain text.
func Render(template string, vars map[string]string) string {
	out := template
	for name, value := range vars {
		out = strings.ReplaceAll(out, "{"+name+"}", value)
	}
	return out
}

var placeholderRe = regexp.MustCompile(`\{([a-z_]+)\}`)

// Placeholders returns the placeholder names appearing in a template,
// in order of first appearance.
func Placeholders(template string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderRe.FindAllStringSubmatch(template, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// CheckRendered reports an error if any placeholder survived rendering.
// Used by the synthesized-template round-trip check.
func CheckRendered(rendered string) error {
	if m := placeholderRe.FindString(rendered); m != "" {
		return fmt.Errorf("prompt: unresolved placeholder %s", m)
	}
	return nil
}
