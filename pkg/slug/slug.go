package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength bounds generated slugs. Longer input is cut at a word boundary.
const MaxLength = 80

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// letters that do not decompose into base + combining mark.
var special = strings.NewReplacer(
	"ı", "i", "ø", "o", "ł", "l", "đ", "d", "ß", "ss", "æ", "ae", "œ", "oe",
)

// Generate creates a URL-friendly slug from a free-form title.
//
//	"Introduction to Go"     -> "introduction-to-go"
//	"Théorie des Ensembles"  -> "theorie-des-ensembles"
//	"C++ & Rust: a primer!"  -> "c-rust-a-primer"
func Generate(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = special.Replace(s)

	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = folded
	}

	s = strings.Trim(nonAlnum.ReplaceAllString(s, "-"), "-")

	if len(s) > MaxLength {
		s = s[:MaxLength]
		if i := strings.LastIndexByte(s, '-'); i > 0 {
			s = s[:i]
		}
		s = strings.Trim(s, "-")
	}
	return s
}
