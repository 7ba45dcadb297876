package export

import "regexp"

var slugPattern = regexp.MustCompile(`/in/([^/?#\s]+)`)

// ExtractSlug returns the path segment after "/in/" or nil when the URL has no
// such segment.
func ExtractSlug(url string) *string {
	m := slugPattern.FindStringSubmatch(url)
	if m == nil {
		return nil
	}
	slug := m[1]
	return &slug
}
