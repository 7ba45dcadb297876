// Package export converts the CSV members of a LinkedIn data export into a
// ProcessedExport.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/khoahotran/linkgraph/internal/ingest/csvrow"
	"github.com/khoahotran/linkgraph/pkg/apperror"
)

const connectionsHeaderToken = "First Name"

type normalizer struct {
	out *ProcessedExport
}

// Normalize validates the file set and maps every recognized file. Only a
// missing required file or an unusable first Profile row is fatal.
func Normalize(files []File) (*ProcessedExport, error) {
	if err := Validate(files); err != nil {
		return nil, err
	}
	set := Index(files)

	n := &normalizer{out: &ProcessedExport{}}
	if err := n.profile(set[FileProfile]); err != nil {
		return nil, err
	}
	n.connections(set[FileConnections])

	if data, ok := set[FilePositions]; ok {
		n.positions(data)
	}
	if data, ok := set[FileEducation]; ok {
		n.education(data)
	}
	if data, ok := set[FileSkills]; ok {
		n.skills(data)
	}
	return n.out, nil
}

func (n *normalizer) warn(kind, file string, line int, dropped bool, reason string) {
	n.out.Warnings = append(n.out.Warnings, Warning{Kind: kind, File: file, Line: line, Reason: reason, Dropped: dropped})
}

// rows ranges over a file, turning parse errors into warnings. offset is added
// to reported line numbers.
func (n *normalizer) rows(file string, text string, offset int, fn func(csvrow.Row)) {
	for row, err := range csvrow.Parse(text, csvrow.Options{Header: true}) {
		if err != nil {
			line := 0
			var perr *csvrow.ParseError
			if errors.As(err, &perr) {
				line = perr.Line + offset
			}
			n.warn(WarnParseError, file, line, true, err.Error())
			continue
		}
		row.Line += offset
		fn(row)
	}
}

func (n *normalizer) date(file string, line int, value string) *time.Time {
	t, err := ParseDate(value)
	if err != nil {
		n.warn(WarnInvalidDate, file, line, false, err.Error())
		return nil
	}
	return t
}

func (n *normalizer) profile(data []byte) error {
	var (
		first csvrow.Row
		found bool
	)
	for row, err := range csvrow.Parse(string(data), csvrow.Options{Header: true}) {
		if err != nil {
			n.warn(WarnParseError, FileProfile, 0, true, err.Error())
			continue
		}
		first, found = row, true
		break
	}
	if !found {
		return apperror.NewMissingRequiredField(FileProfile, "First Name")
	}

	rec := ProfileRecord{
		FirstName: aliases.pick(first, "profile", "first_name"),
		LastName:  aliases.pick(first, "profile", "last_name"),
		Headline:  opt(aliases.pick(first, "profile", "headline")),
		Summary:   opt(aliases.pick(first, "profile", "summary")),
		Industry:  opt(aliases.pick(first, "profile", "industry")),
		Location:  opt(aliases.pick(first, "profile", "location")),
		Email:     opt(aliases.pick(first, "profile", "email")),
	}
	if rec.FirstName == "" {
		return apperror.NewMissingRequiredField(FileProfile, "First Name")
	}
	if rec.LastName == "" {
		return apperror.NewMissingRequiredField(FileProfile, "Last Name")
	}

	if url := aliases.pick(first, "profile", "url"); url != "" {
		rec.Slug = ExtractSlug(url)
		if rec.Slug == nil {
			n.warn(WarnInvalidSlug, FileProfile, first.Line, false, fmt.Sprintf("profile url %q has no /in/ segment", url))
		}
	}

	n.out.Profile = rec
	return nil
}

func (n *normalizer) connections(data []byte) {
	text, offset := stripPreamble(string(data))
	n.out.Connections = []ConnectionRecord{}

	n.rows(FileConnections, text, offset, func(row csvrow.Row) {
		first := aliases.pick(row, "connections", "first_name")
		last := aliases.pick(row, "connections", "last_name")
		url := aliases.pick(row, "connections", "url")

		var missing string
		switch {
		case first == "":
			missing = "First Name"
		case last == "":
			missing = "Last Name"
		case url == "":
			missing = "URL"
		}
		if missing != "" {
			n.warn(WarnMissingField, FileConnections, row.Line, true, "missing "+missing)
			return
		}
		slug := ExtractSlug(url)
		if slug == nil {
			n.warn(WarnInvalidSlug, FileConnections, row.Line, true, fmt.Sprintf("url %q has no /in/ segment", url))
			return
		}

		n.out.Connections = append(n.out.Connections, ConnectionRecord{
			Line:        row.Line,
			FirstName:   first,
			LastName:    last,
			URL:         url,
			Slug:        *slug,
			Email:       opt(aliases.pick(row, "connections", "email")),
			Company:     opt(aliases.pick(row, "connections", "company")),
			Position:    opt(aliases.pick(row, "connections", "position")),
			ConnectedOn: n.date(FileConnections, row.Line, aliases.pick(row, "connections", "connected_on")),
		})
	})
}

func (n *normalizer) positions(data []byte) {
	n.out.Positions = []PositionRecord{}
	n.rows(FilePositions, string(data), 0, func(row csvrow.Row) {
		company := aliases.pick(row, "positions", "company")
		if company == "" {
			n.warn(WarnMissingField, FilePositions, row.Line, true, "missing Company Name")
			return
		}
		n.out.Positions = append(n.out.Positions, PositionRecord{
			CompanyName: company,
			Title:       aliases.pick(row, "positions", "title"),
			Description: opt(aliases.pick(row, "positions", "description")),
			Location:    opt(aliases.pick(row, "positions", "location")),
			StartDate:   n.date(FilePositions, row.Line, aliases.pick(row, "positions", "started_on")),
			EndDate:     n.date(FilePositions, row.Line, aliases.pick(row, "positions", "finished_on")),
		})
	})
}

func (n *normalizer) education(data []byte) {
	n.out.Education = []EducationRecord{}
	n.rows(FileEducation, string(data), 0, func(row csvrow.Row) {
		school := aliases.pick(row, "education", "school")
		if school == "" {
			n.warn(WarnMissingField, FileEducation, row.Line, true, "missing School Name")
			return
		}
		n.out.Education = append(n.out.Education, EducationRecord{
			SchoolName: school,
			Degree:     opt(aliases.pick(row, "education", "degree")),
			Notes:      opt(aliases.pick(row, "education", "notes")),
			Activities: opt(aliases.pick(row, "education", "activities")),
			StartDate:  n.date(FileEducation, row.Line, aliases.pick(row, "education", "started_on")),
			EndDate:    n.date(FileEducation, row.Line, aliases.pick(row, "education", "finished_on")),
		})
	})
}

func (n *normalizer) skills(data []byte) {
	n.out.Skills = []SkillRecord{}
	n.rows(FileSkills, string(data), 0, func(row csvrow.Row) {
		name := aliases.pick(row, "skills", "name")
		if name == "" {
			n.warn(WarnMissingField, FileSkills, row.Line, true, "missing Name")
			return
		}
		n.out.Skills = append(n.out.Skills, SkillRecord{Name: name})
	})
}

// stripPreamble drops the "Notes:" lines LinkedIn writes above the Connections
// header. It returns the remaining text and how many lines were removed. Text
// without a recognizable header line is returned as is.
func stripPreamble(text string) (string, int) {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		l := strings.TrimSpace(strings.TrimPrefix(line, "\ufeff"))
		if strings.HasPrefix(l, connectionsHeaderToken) {
			return strings.Join(lines[i:], "\n"), i
		}
	}
	return text, 0
}

func opt(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
