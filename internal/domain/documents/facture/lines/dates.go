package lines

import (
	"strings"
	"time"
	"unicode"
)

var dateLayouts = []string{
	"2.1.2006",
	"2/1/2006",
	"2006-01-02",
	"2.1.06",
	"2/1/06",
}

// CountDates returns the number of distinct dates listed in text.
// Tokens are separated by commas, semicolons or whitespace; tokens that are
// not dates are ignored.
func CountDates(text string) int {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})

	seen := make(map[time.Time]struct{}, len(tokens))
	for _, tok := range tokens {
		if d, ok := parseDate(tok); ok {
			seen[d] = struct{}{}
		}
	}
	return len(seen)
}

func parseDate(tok string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, tok); err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}
