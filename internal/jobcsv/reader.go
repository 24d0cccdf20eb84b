package jobcsv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"jobscout-engine/internal/domain"
)

var ErrBareQuote = errors.New("jobcsv: quote in unquoted field")

// Reader parses the export format back into typed values: quoted fields are
// strings, empty unquoted fields are nil, unquoted numbers are float64 and
// unquoted True/False are bools.
type Reader struct {
	r    *bufio.Reader
	line int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r), line: 1}
}

// Read returns the next record, or io.EOF when the input is exhausted.
func (cr *Reader) Read() ([]any, error) {
	var rec []any
	var buf strings.Builder
	quoted := false
	inQuotes := false
	started := false

	emit := func() {
		if quoted {
			rec = append(rec, buf.String())
		} else {
			rec = append(rec, parseBare(buf.String()))
		}
		buf.Reset()
		quoted = false
	}

	for {
		r, _, err := cr.r.ReadRune()
		if err == io.EOF {
			if inQuotes {
				return nil, fmt.Errorf("jobcsv: line %d: unterminated quoted field", cr.line)
			}
			if !started {
				return nil, io.EOF
			}
			emit()
			return rec, nil
		}
		if err != nil {
			return nil, err
		}
		started = true

		if inQuotes {
			switch r {
			case escapeChar:
				next, _, err := cr.r.ReadRune()
				if err != nil {
					return nil, fmt.Errorf("jobcsv: line %d: dangling escape", cr.line)
				}
				buf.WriteRune(next)
			case '"':
				next, _, err := cr.r.ReadRune()
				if err == nil && next == '"' {
					buf.WriteRune('"')
					continue
				}
				if err == nil {
					_ = cr.r.UnreadRune()
				}
				inQuotes = false
			default:
				if r == '\n' {
					cr.line++
				}
				buf.WriteRune(r)
			}
			continue
		}

		switch r {
		case '"':
			if buf.Len() > 0 {
				return nil, fmt.Errorf("line %d: %w", cr.line, ErrBareQuote)
			}
			quoted = true
			inQuotes = true
		case ',':
			emit()
		case '\r':
			// tolerate CRLF
		case '\n':
			cr.line++
			emit()
			return rec, nil
		default:
			buf.WriteRune(r)
		}
	}
}

// ReadRows reads a header line followed by records and returns one RawRow per
// record. Short records leave the missing columns absent.
func ReadRows(r io.Reader) ([]domain.RawRow, error) {
	cr := NewReader(r)
	head, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cols := make([]string, len(head))
	for i, h := range head {
		cols[i] = strings.TrimPrefix(toString(h), "\ufeff")
	}

	var rows []domain.RawRow
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if len(rec) == 1 && rec[0] == nil {
			continue // blank line
		}
		row := make(domain.RawRow, len(cols))
		for i, c := range cols {
			if i < len(rec) {
				row[c] = rec[i]
			}
		}
		rows = append(rows, row)
	}
}

func parseBare(s string) any {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return nil
	case "True", "true":
		return true
	case "False", "false":
		return false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return s
	}
	if math.IsNaN(f) {
		return nil
	}
	return f
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
