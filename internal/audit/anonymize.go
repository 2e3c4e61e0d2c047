package audit

import (
	"regexp"
	"strconv"
)

var mentionPattern = regexp.MustCompile(`<@[!&]?(\d+)>`)

// Anonymize replaces every user or role mention in text with a stable
// pseudonym. Pseudonyms are assigned in first-appearance order within this
// single text, so the same id always maps to the same userN while ids remain
// unrecoverable.
func Anonymize(text string) string {
	seen := make(map[string]string)
	return mentionPattern.ReplaceAllStringFunc(text, func(token string) string {
		id := mentionPattern.FindStringSubmatch(token)[1]
		repl, ok := seen[id]
		if !ok {
			repl = "user" + strconv.Itoa(len(seen))
			seen[id] = repl
		}
		return repl
	})
}
