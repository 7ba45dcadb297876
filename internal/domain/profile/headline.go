package profile

import "strings"

// DerivedHeadline is "{position} at {company}" when both are known.
func DerivedHeadline(position, company *string) *string {
	if position == nil || company == nil {
		return nil
	}
	p, c := strings.TrimSpace(*position), strings.TrimSpace(*company)
	if p == "" || c == "" {
		return nil
	}
	h := p + " at " + c
	return &h
}
