package terminal

import (
	"html"
	"strings"
)

// breakTags end a line when rendering markup as text.
var breakTags = map[string]bool{
	"br": true, "/p": true, "/div": true, "/li": true,
	"/h1": true, "/h2": true, "/h3": true, "/h4": true, "/h5": true, "/h6": true,
}

// Text reduces stimulus markup to the lines a terminal can show: tags are
// dropped, block ends become line breaks and entities are decoded.
func Text(markup string) []string {
	var b strings.Builder
	for {
		open := strings.IndexByte(markup, '<')
		if open < 0 {
			b.WriteString(markup)
			break
		}
		b.WriteString(markup[:open])
		end := strings.IndexByte(markup[open:], '>')
		if end < 0 {
			b.WriteString(markup[open:])
			break
		}
		if breakTags[tagName(markup[open+1:open+end])] {
			b.WriteByte('\n')
		}
		markup = markup[open+end+1:]
	}

	var lines []string
	for _, line := range strings.Split(html.UnescapeString(b.String()), "\n") {
		if line = strings.Join(strings.Fields(line), " "); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func tagName(tag string) string {
	tag = strings.TrimSuffix(strings.TrimSpace(tag), "/")
	if i := strings.IndexAny(tag, " \t\n"); i >= 0 {
		tag = tag[:i]
	}
	return strings.ToLower(tag)
}
