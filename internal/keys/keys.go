package keys

import (
	"strings"
	"unicode/utf8"
)

// aliases maps alternate spellings of named keys to their canonical form.
var aliases = map[string]string{
	" ":        "space",
	"spacebar": "space",
	"esc":      "escape",
	"return":   "enter",
	"cr":       "enter",
	"bs":       "backspace",
	"del":      "delete",
	"left":     "arrowleft",
	"right":    "arrowright",
	"up":       "arrowup",
	"down":     "arrowdown",
	"pgup":     "pageup",
	"pgdn":     "pagedown",
	"pagedn":   "pagedown",
	"ins":      "insert",
	"ctrl":     "control",
	"option":   "alt",
	"cmd":      "meta",
	"command":  "meta",
	"win":      "meta",
	"os":       "meta",
}

// Normalize returns the canonical identifier for a key name. Single
// characters are lowercased, named keys are lowercased and de-aliased.
func Normalize(name string) string {
	if name == " " {
		return "space"
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if utf8.RuneCountInString(name) == 1 {
		return strings.ToLower(name)
	}
	lower := strings.ToLower(name)
	if canonical, ok := aliases[lower]; ok {
		return canonical
	}
	return lower
}
