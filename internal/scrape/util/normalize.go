package util

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// LooksLikeHTML is a cheap check for markup in scraped descriptions.
func LooksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	if i < 0 {
		return false
	}
	j := strings.IndexByte(s[i:], '>')
	return j > 1
}

// HTMLToText flattens an HTML fragment to whitespace-collapsed text. Input
// that fails to parse is returned cleaned but otherwise untouched.
func HTMLToText(s string) string {
	if !LooksLikeHTML(s) {
		return s
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return CleanText(s)
	}
	doc.Find("script, style").Remove()
	doc.Find("br, p, li, div").Each(func(_ int, sel *goquery.Selection) {
		sel.AppendHtml(" ")
	})
	return CleanText(doc.Text())
}

// Truncate cuts s to max runes and appends marker when anything was cut.
func Truncate(s string, max int, marker string) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + marker
}
