// Package csvrow turns delimited text into a lazy sequence of named rows.
//
// The parser is line oriented: a record is a run of lines that ends outside a
// quoted field. A record that never balances is repaired by closing the quote on
// its first line; if the repaired record still does not fit the header it is
// dropped and reported as a *ParseError. A quote that spans lines is only
// trusted when it closes cleanly and the joined record fits the header;
// otherwise the opening line is dropped and reported instead. Parsing always
// continues with the next line, so one bad row never hides the rest of the file.
package csvrow

import (
	"encoding/csv"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
)

const (
	DefaultMaxRecordLines = 64
	bom                   = "\ufeff"
)

type Options struct {
	// Header treats the first non-blank record as column names.
	Header bool
	// Comma defaults to ','.
	Comma rune
	// MaxRecordLines bounds how far a quoted field may span before the record
	// is considered unbalanced.
	MaxRecordLines int
}

// ParseError reports a record that was dropped.
type ParseError struct {
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var (
	ErrTooManyFields   = errors.New("repaired record does not fit header")
	ErrUnbalancedQuote = errors.New("quoted field does not close on a later line")
)

// Row is one record keyed by header name. Without a header, columns are named
// by their zero-based position ("0", "1", ...).
type Row struct {
	Line   int
	Fields []string
	index  map[string]int
}

// Get returns the value under name. ok is false when the column is unknown or
// the row is too short to have it.
func (r Row) Get(name string) (value string, ok bool) {
	i, known := r.index[name]
	if !known || i >= len(r.Fields) {
		return "", false
	}
	return r.Fields[i], true
}

// Value is Get without the presence flag.
func (r Row) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// Map copies the row into a name to value map. Missing trailing columns are absent.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.index))
	for name, i := range r.index {
		if i < len(r.Fields) {
			m[name] = r.Fields[i]
		}
	}
	return m
}

// Parse returns a sequence over the rows of text. The sequence can be ranged
// over any number of times; each pass re-reads text from the start.
func Parse(text string, opts Options) iter.Seq2[Row, error] {
	if opts.Comma == 0 {
		opts.Comma = ','
	}
	if opts.MaxRecordLines <= 0 {
		opts.MaxRecordLines = DefaultMaxRecordLines
	}

	return func(yield func(Row, error) bool) {
		lines := splitLines(strings.TrimPrefix(text, bom))

		var (
			index  map[string]int
			header []string
		)
		if !opts.Header {
			index = map[string]int{}
		}

		for i := 0; i < len(lines); {
			if strings.TrimSpace(lines[i]) == "" {
				i++
				continue
			}

			rec := gather(lines, i, opts.MaxRecordLines, opts.Comma)
			lineNo := i + 1

			fields, err := parseRecord(rec.text, opts.Comma)
			if err == nil && header != nil && len(fields) > len(header) {
				switch {
				case rec.repaired:
					err = ErrTooManyFields
				case rec.span > 1:
					err = ErrUnbalancedQuote
				}
			}
			if err == nil && rec.malformed {
				err = ErrUnbalancedQuote
			}

			// A rejected span gives its continuation lines back to the loop.
			if errors.Is(err, ErrUnbalancedQuote) {
				i++
			} else {
				i = rec.next
			}
			if err != nil {
				if !yield(Row{}, &ParseError{Line: lineNo, Err: err}) {
					return
				}
				continue
			}

			if opts.Header && header == nil {
				header, index = buildHeader(fields)
				continue
			}
			if !opts.Header {
				for n := len(index); n < len(fields); n++ {
					index[strconv.Itoa(n)] = n
				}
			}

			if !yield(Row{Line: lineNo, Fields: fields, index: index}, nil) {
				return
			}
		}
	}
}

type record struct {
	text string
	// next is the index of the first line after the record.
	next int
	span int
	// repaired is set when the quote never closed and the first line was
	// closed by hand.
	repaired bool
	// malformed is set when a quote opened on an earlier line closed with
	// something other than a delimiter or end of line after it.
	malformed bool
}

// gather collects the lines of one record starting at start.
func gather(lines []string, start, maxLines int, comma rune) record {
	var b strings.Builder
	b.WriteString(lines[start])
	open, _ := scanLine(lines[start], false, comma)

	malformed := false
	j := start + 1
	for open && j < len(lines) && j-start < maxLines {
		b.WriteByte('\n')
		b.WriteString(lines[j])
		var bad bool
		open, bad = scanLine(lines[j], true, comma)
		malformed = malformed || bad
		j++
	}
	if !open {
		return record{text: b.String(), next: j, span: j - start, malformed: malformed}
	}
	return record{text: lines[start] + `"`, next: start + 1, span: 1, repaired: true}
}

// scanLine reports whether line finishes inside a quoted field, and whether a
// quote was closed by anything other than a delimiter or end of line. Quotes
// inside unquoted fields are literal.
func scanLine(line string, inQuote bool, comma rune) (open, badClose bool) {
	atFieldStart := !inQuote
	rs := []rune(line)
	for i := 0; i < len(rs); i++ {
		c := rs[i]
		switch {
		case inQuote:
			if c == '"' {
				if i+1 < len(rs) && rs[i+1] == '"' {
					i++
					continue
				}
				inQuote = false
				if i+1 < len(rs) && rs[i+1] != comma {
					badClose = true
				}
			}
		case c == comma:
			atFieldStart = true
			continue
		case c == '"' && atFieldStart:
			inQuote = true
		}
		atFieldStart = false
	}
	return inQuote, badClose
}

func parseRecord(rec string, comma rune) ([]string, error) {
	r := csv.NewReader(strings.NewReader(rec))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	fields, err := r.Read()
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func buildHeader(fields []string) ([]string, map[string]int) {
	header := make([]string, len(fields))
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		name := strings.TrimSpace(strings.TrimPrefix(f, bom))
		header[i] = name
		if _, dup := index[name]; !dup {
			index[name] = i
		}
	}
	return header, index
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}
