// Package sanitize cleans generated lesson markup before it is stored and
// rendered as raw HTML by clients.
package sanitize

import (
	"github.com/microcosm-cc/bluemonday"
)

// HTML keeps a small set of formatting elements and drops everything else
// (scripts, styles, event handlers, iframes, forms). Links must be absolute
// http(s) URLs and are opened in a new tab without a referrer.
type HTML struct {
	policy *bluemonday.Policy
}

// NewHTML builds the lesson content policy. The result is safe for
// concurrent use.
func NewHTML() *HTML {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"p", "br", "hr",
		"ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em", "b", "i", "u", "sub", "sup",
		"table", "thead", "tbody", "tr",
	)
	p.AllowAttrs("colspan", "rowspan").Matching(bluemonday.Integer).OnElements("td", "th")
	p.AllowElements("td", "th")

	p.AllowAttrs("href").OnElements("a")
	p.AllowStandardURLs()
	p.AllowURLSchemes("http", "https")
	p.AllowRelativeURLs(false)
	p.RequireParseableURLs(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &HTML{policy: p}
}

// Sanitize returns the cleaned markup. Plain text passes through with HTML
// special characters escaped.
func (s *HTML) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
