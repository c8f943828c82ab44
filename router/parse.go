package router

import (
	"strings"
	"unicode"
)

const prefix = "!"

// Parse splits "!name arg1 arg2 ..." into its parts. The name is lower-cased,
// rest is the untouched text after the name.
func Parse(text string) (name string, args []string, rest string, ok bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, prefix) {
		return "", nil, "", false
	}
	body := text[len(prefix):]
	end := strings.IndexFunc(body, unicode.IsSpace)
	if end < 0 {
		end = len(body)
	}
	name = strings.ToLower(body[:end])
	if name == "" {
		return "", nil, "", false
	}
	rest = strings.TrimSpace(body[end:])
	if rest == "" {
		return name, nil, "", true
	}
	return name, strings.Fields(rest), rest, true
}
