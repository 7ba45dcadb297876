package csvrow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, text string, opts Options) ([]Row, []error) {
	t.Helper()
	var rows []Row
	var errs []error
	for row, err := range Parse(text, opts) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rows = append(rows, row)
	}
	return rows, errs
}

func TestParse_HeaderAndQuotedFields(t *testing.T) {
	text := "First Name,Last Name,Note\n" +
		"Ada,Lovelace,\"likes commas, a lot\"\n" +
		"Alan,Turing,\"line one\nline two\"\n"

	rows, errs := collect(t, text, Options{Header: true})
	require.Empty(t, errs)
	require.Len(t, rows, 2)

	assert.Equal(t, "Ada", rows[0].Value("First Name"))
	assert.Equal(t, "likes commas, a lot", rows[0].Value("Note"))
	assert.Equal(t, 2, rows[0].Line)

	assert.Equal(t, "line one\nline two", rows[1].Value("Note"))
	assert.Equal(t, 3, rows[1].Line)
}

func TestParse_SkipsBlankLinesAndBOM(t *testing.T) {
	text := "\ufeffName,Skill\r\n\r\nada,go\r\n\r\n\r\n"

	rows, errs := collect(t, text, Options{Header: true})
	require.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, "ada", rows[0].Value("Name"))
	assert.Equal(t, "go", rows[0].Value("Skill"))
}

func TestParse_HeaderOrderDoesNotMatter(t *testing.T) {
	a, _ := collect(t, "Title,Company\nEngineer,Acme\n", Options{Header: true})
	b, _ := collect(t, "Company,Title\nAcme,Engineer\n", Options{Header: true})

	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Map(), b[0].Map())
}

func TestParse_ShortRowReportsMissing(t *testing.T) {
	rows, errs := collect(t, "A,B,C\n1,2\n", Options{Header: true})
	require.Empty(t, errs)
	require.Len(t, rows, 1)

	v, ok := rows[0].Get("B")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	_, ok = rows[0].Get("C")
	assert.False(t, ok)
	_, ok = rows[0].Get("Unknown")
	assert.False(t, ok)
	assert.NotContains(t, rows[0].Map(), "C")
}

func TestParse_UnbalancedQuoteIsRepaired(t *testing.T) {
	text := "Name,Note\n" +
		"a,\"never closed\n" +
		"b,fine\n"

	rows, errs := collect(t, text, Options{Header: true, MaxRecordLines: 4})
	require.Empty(t, errs)
	require.Len(t, rows, 2)
	assert.Equal(t, "never closed", rows[0].Value("Note"))
	assert.Equal(t, "b", rows[1].Value("Name"))
	assert.Equal(t, 3, rows[1].Line)
}

func TestParse_UnrepairableRowIsDroppedAndParsingContinues(t *testing.T) {
	text := "Name\n" +
		"a,\"b\n" +
		"c\n"

	rows, errs := collect(t, text, Options{Header: true})
	require.Len(t, errs, 1)

	var perr *ParseError
	require.True(t, errors.As(errs[0], &perr))
	assert.Equal(t, 2, perr.Line)
	assert.ErrorIs(t, errs[0], ErrTooManyFields)

	require.Len(t, rows, 1)
	assert.Equal(t, "c", rows[0].Value("Name"))
}

func TestParse_StrayQuoteDoesNotSwallowLaterRows(t *testing.T) {
	text := "First Name,Last Name,URL,Company\n" +
		"\"Bad,Row,https://x/in/bad,Acme\n" +
		"Good,One,https://x/in/one,Acme\n" +
		"Good,Two,https://x/in/two,Acme\n" +
		"Jane,Doe,https://x/in/jane,\"Foo, Inc\"\n" +
		"Good,Three,https://x/in/three,Acme\n"

	rows, errs := collect(t, text, Options{Header: true})
	require.Len(t, errs, 1)

	var perr *ParseError
	require.True(t, errors.As(errs[0], &perr))
	assert.Equal(t, 2, perr.Line)
	assert.ErrorIs(t, errs[0], ErrUnbalancedQuote)

	require.Len(t, rows, 4)
	urls := make([]string, 0, len(rows))
	for _, r := range rows {
		urls = append(urls, r.Value("URL"))
	}
	assert.Equal(t, []string{
		"https://x/in/one",
		"https://x/in/two",
		"https://x/in/jane",
		"https://x/in/three",
	}, urls)
	assert.Equal(t, 3, rows[0].Line)
	assert.Equal(t, "Foo, Inc", rows[2].Value("Company"))
}

func TestParse_JoinedRecordWiderThanHeaderIsRejected(t *testing.T) {
	text := "Name,Note\n" +
		"a,\"open\n" +
		"b,c,d\",e\n"

	rows, errs := collect(t, text, Options{Header: true})
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrUnbalancedQuote)

	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].Value("Name"))
	assert.Equal(t, 3, rows[0].Line)
}

func TestParse_LiteralQuoteInsideUnquotedField(t *testing.T) {
	text := "Name,Height\nbob,5'11\"\nalice,5'6\n"

	rows, errs := collect(t, text, Options{Header: true})
	require.Empty(t, errs)
	require.Len(t, rows, 2)
	assert.Equal(t, "5'11\"", rows[0].Value("Height"))
	assert.Equal(t, "alice", rows[1].Value("Name"))
}

func TestParse_WithoutHeader(t *testing.T) {
	rows, errs := collect(t, "x,y\nz\n", Options{})
	require.Empty(t, errs)
	require.Len(t, rows, 2)
	assert.Equal(t, "y", rows[0].Value("1"))
	assert.Equal(t, "z", rows[1].Value("0"))
	_, ok := rows[1].Get("1")
	assert.False(t, ok)
}

func TestParse_IsRestartable(t *testing.T) {
	seq := Parse("A\n1\n2\n3\n", Options{Header: true})

	count := func() int {
		n := 0
		for _, err := range seq {
			require.NoError(t, err)
			n++
		}
		return n
	}
	assert.Equal(t, 3, count())
	assert.Equal(t, 3, count())
}

func TestParse_StopsWhenConsumerBreaks(t *testing.T) {
	n := 0
	for range Parse("A\n1\n2\n3\n", Options{Header: true}) {
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
