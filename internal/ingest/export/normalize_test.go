package export

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khoahotran/linkgraph/pkg/apperror"
)

const (
	profileCSV     = "First Name,Last Name,Headline,Industry\nAda,Lovelace,Analyst,Computing\n"
	connectionsCSV = "First Name,Last Name,URL,Email Address,Company,Position,Connected On\n" +
		"Alan,Turing,https://www.linkedin.com/in/alan-turing,,Bletchley,Cryptanalyst,15 Mar 2021\n" +
		"Grace,Hopper,https://www.linkedin.com/in/ghopper/?trk=x,grace@navy.mil,,,01 Jan 2020\n"
)

func files(pairs ...string) []File {
	out := make([]File, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, File{Name: pairs[i], Content: []byte(pairs[i+1])})
	}
	return out
}

func TestNormalize_MissingRequiredFiles(t *testing.T) {
	_, err := Normalize(files("Skills.csv", "Name\nPython"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperror.ErrMissingRequiredFiles)
	assert.Equal(t, "MissingRequiredFiles", apperror.Kind(err))

	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, []string{"Profile.csv", "Connections.csv"}, appErr.Meta["missing"])
	assert.Contains(t, appErr.Message, "Profile.csv")
}

func TestNormalize_OnlyConnectionsMissing(t *testing.T) {
	_, err := Normalize(files(FileProfile, profileCSV))
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, []string{"Connections.csv"}, appErr.Meta["missing"])
}

func TestNormalize_FileNamesAreCaseSensitive(t *testing.T) {
	_, err := Normalize(files("profile.csv", profileCSV, FileConnections, connectionsCSV))
	assert.ErrorIs(t, err, apperror.ErrMissingRequiredFiles)
}

func TestNormalize_ProfileMissingName(t *testing.T) {
	_, err := Normalize(files(
		FileProfile, "First Name,Last Name,Headline\n,Lovelace,Analyst\n",
		FileConnections, connectionsCSV,
	))
	assert.ErrorIs(t, err, apperror.ErrMissingRequiredField)

	_, err = Normalize(files(
		FileProfile, "First Name,Last Name\n",
		FileConnections, connectionsCSV,
	))
	assert.ErrorIs(t, err, apperror.ErrMissingRequiredField)
}

func TestNormalize_HappyPath(t *testing.T) {
	out, err := Normalize(files(
		FileProfile, "First Name,Last Name,Headline,Profile URL\nAda,Lovelace,Analyst,https://linkedin.com/in/ada\n",
		FileConnections, connectionsCSV,
	))
	require.NoError(t, err)

	assert.Equal(t, "Ada", out.Profile.FirstName)
	require.NotNil(t, out.Profile.Headline)
	assert.Equal(t, "Analyst", *out.Profile.Headline)
	require.NotNil(t, out.Profile.Slug)
	assert.Equal(t, "ada", *out.Profile.Slug)

	require.Len(t, out.Connections, 2)
	c := out.Connections[0]
	assert.Equal(t, "alan-turing", c.Slug)
	require.NotNil(t, c.Company)
	assert.Equal(t, "Bletchley", *c.Company)
	require.NotNil(t, c.ConnectedOn)
	assert.Equal(t, time.Date(2021, time.March, 15, 0, 0, 0, 0, time.UTC), *c.ConnectedOn)
	assert.Nil(t, c.Email)

	assert.Equal(t, "ghopper", out.Connections[1].Slug)
	assert.Nil(t, out.Connections[1].Company)

	assert.Nil(t, out.Positions)
	assert.Nil(t, out.Education)
	assert.Nil(t, out.Skills)
	assert.Empty(t, out.Warnings)
}

func TestNormalize_ConnectionsPreamble(t *testing.T) {
	preamble := "Notes:\n" +
		"\"When exporting your connection data, you may notice that some of the email addresses are missing.\"\n" +
		"\n"

	plain, err := Normalize(files(FileProfile, profileCSV, FileConnections, connectionsCSV))
	require.NoError(t, err)
	withNotes, err := Normalize(files(FileProfile, profileCSV, FileConnections, preamble+connectionsCSV))
	require.NoError(t, err)

	require.Len(t, withNotes.Connections, 2)
	assert.Equal(t, 2, plain.Connections[0].Line)
	assert.Equal(t, 5, withNotes.Connections[0].Line)
	assert.Equal(t, 6, withNotes.Connections[1].Line)

	for i := range withNotes.Connections {
		withNotes.Connections[i].Line = plain.Connections[i].Line
	}
	assert.Equal(t, plain.Connections, withNotes.Connections)
}

func TestNormalize_ConnectionRowsDropped(t *testing.T) {
	csv := "First Name,Last Name,URL\n" +
		"Alan,,https://www.linkedin.com/in/alan\n" +
		"Grace,Hopper,\n" +
		"Edsger,Dijkstra,https://example.com/profile/ewd\n" +
		"Barbara,Liskov,https://www.linkedin.com/in/bliskov\n"

	out, err := Normalize(files(FileProfile, profileCSV, FileConnections, csv))
	require.NoError(t, err)

	require.Len(t, out.Connections, 1)
	assert.Equal(t, "bliskov", out.Connections[0].Slug)
	assert.Equal(t, 3, out.Dropped())

	kinds := []string{}
	for _, w := range out.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.Equal(t, []string{WarnMissingField, WarnMissingField, WarnInvalidSlug}, kinds)
	assert.Equal(t, 2, out.Warnings[0].Line)
}

func TestNormalize_PositionColumnVariants(t *testing.T) {
	oldFormat := "Position,Company,Started On\nEngineer,Acme,Mar 2019\n"
	newFormat := "Title,Company Name,Started On\nEngineer,Acme,Mar 2019\n"

	a, err := Normalize(files(FileProfile, profileCSV, FileConnections, connectionsCSV, FilePositions, oldFormat))
	require.NoError(t, err)
	b, err := Normalize(files(FileProfile, profileCSV, FileConnections, connectionsCSV, FilePositions, newFormat))
	require.NoError(t, err)

	require.Len(t, a.Positions, 1)
	assert.Equal(t, a.Positions, b.Positions)
	assert.Equal(t, "Engineer", a.Positions[0].Title)
	assert.Equal(t, "Acme", a.Positions[0].CompanyName)
}

func TestNormalize_AliasPrefersFirstNonEmpty(t *testing.T) {
	csv := "Company Name,Company,Title\n,Fallback Inc,CTO\n"
	out, err := Normalize(files(FileProfile, profileCSV, FileConnections, connectionsCSV, FilePositions, csv))
	require.NoError(t, err)
	require.Len(t, out.Positions, 1)
	assert.Equal(t, "Fallback Inc", out.Positions[0].CompanyName)
}

func TestNormalize_OptionalFiles(t *testing.T) {
	out, err := Normalize(files(
		FileProfile, profileCSV,
		FileConnections, connectionsCSV,
		FileEducation, "School Name,Degree Name,Start Date,End Date\nCambridge,BA,2010,2014\n,MSc,2015,2016\n",
		FileSkills, "Name\nGo\n\nSQL\n",
		FilePositions, "Title,Company Name,Started On\nIntern,Acme,sometime\n",
	))
	require.NoError(t, err)

	require.Len(t, out.Education, 1)
	assert.Equal(t, "Cambridge", out.Education[0].SchoolName)
	require.NotNil(t, out.Education[0].StartDate)
	assert.Equal(t, 2010, out.Education[0].StartDate.Year())

	assert.Equal(t, []SkillRecord{{Name: "Go"}, {Name: "SQL"}}, out.Skills)

	require.Len(t, out.Positions, 1)
	assert.Nil(t, out.Positions[0].StartDate)

	var invalidDates, dropped int
	for _, w := range out.Warnings {
		if w.Kind == WarnInvalidDate {
			invalidDates++
		}
		if w.Dropped {
			dropped++
		}
	}
	assert.Equal(t, 1, invalidDates)
	assert.Equal(t, 1, dropped)
}

func TestNormalize_EmptyOptionalFileIsPresent(t *testing.T) {
	out, err := Normalize(files(FileProfile, profileCSV, FileConnections, connectionsCSV, FileSkills, "Name\n"))
	require.NoError(t, err)
	assert.NotNil(t, out.Skills)
	assert.Empty(t, out.Skills)
}
