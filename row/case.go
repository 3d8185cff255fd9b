package row

import (
	"strings"
	"unicode"
)

// tableStem turns a Go type name into the snake_case stem of its table
// name. A word starts at an upper case letter that follows a lower case
// letter or digit, or that ends an acronym: "HTTPRequestLog" becomes
// "http_request_log". Any rune that is neither a letter nor a digit
// separates words.
func tableStem(name string) string {
	runes := []rune(name)
	var b strings.Builder
	b.Grow(len(runes) + 4)

	sep := func() {
		if b.Len() > 0 && !strings.HasSuffix(b.String(), "_") {
			b.WriteByte('_')
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if i > 0 {
				prev := runes[i-1]
				acronymEnd := unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || acronymEnd {
					sep()
				}
			}
			b.WriteRune(unicode.ToLower(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			sep()
		}
	}

	return strings.TrimSuffix(b.String(), "_")
}
