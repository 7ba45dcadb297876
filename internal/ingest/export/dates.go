package export

import (
	"fmt"
	"strings"
	"time"
)

// Layouts seen across LinkedIn export vintages.
var dateLayouts = []string{
	"02 Jan 2006",
	"2 Jan 2006",
	"Jan 2006",
	"January 2006",
	"2006-01-02",
	"2006-01",
	"01/02/2006",
	"1/2/2006",
	"2006",
}

// ParseDate returns nil for an empty value and an error for one no layout accepts.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized date %q", s)
}
