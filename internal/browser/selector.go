package browser

import "strings"

// SplitSelector splits an extended selector of the form "css|text" into its
// CSS part and an optional case-insensitive text fragment the element's
// visible text must contain. Plain CSS selectors pass through unchanged.
func SplitSelector(selector string) (css, text string) {
	if i := strings.Index(selector, "|"); i >= 0 {
		return selector[:i], strings.ToLower(strings.TrimSpace(selector[i+1:]))
	}
	return selector, ""
}

// MatchesText reports whether the element text satisfies the text fragment
// from an extended selector.
func MatchesText(elementText, fragment string) bool {
	if fragment == "" {
		return true
	}
	return strings.Contains(strings.ToLower(elementText), fragment)
}
