package export

import "time"

type ProfileRecord struct {
	FirstName string
	LastName  string
	Headline  *string
	Summary   *string
	Industry  *string
	Location  *string
	Email     *string
	Slug      *string
}

type ConnectionRecord struct {
	// Line is the source line in Connections.csv, preamble included.
	Line        int
	FirstName   string
	LastName    string
	URL         string
	Slug        string
	Email       *string
	Company     *string
	Position    *string
	ConnectedOn *time.Time
}

type PositionRecord struct {
	CompanyName string
	Title       string
	Description *string
	Location    *string
	StartDate   *time.Time
	EndDate     *time.Time
}

type EducationRecord struct {
	SchoolName string
	Degree     *string
	Notes      *string
	Activities *string
	StartDate  *time.Time
	EndDate    *time.Time
}

type SkillRecord struct {
	Name string
}

const (
	WarnMissingField = "MissingRequiredField"
	WarnInvalidSlug  = "InvalidSlug"
	WarnInvalidDate  = "InvalidDate"
	WarnParseError   = "ParseError"
)

// Warning is a row-level problem. Dropped is true when the row was excluded.
type Warning struct {
	Kind    string
	File    string
	Line    int
	Reason  string
	Dropped bool
}

// ProcessedExport is the canonical form of one export. Positions, Education
// and Skills are nil when their file was not supplied.
type ProcessedExport struct {
	Profile     ProfileRecord
	Connections []ConnectionRecord
	Positions   []PositionRecord
	Education   []EducationRecord
	Skills      []SkillRecord
	Warnings    []Warning
}

// Dropped counts rows excluded during normalization.
func (p *ProcessedExport) Dropped() int {
	n := 0
	for _, w := range p.Warnings {
		if w.Dropped {
			n++
		}
	}
	return n
}
