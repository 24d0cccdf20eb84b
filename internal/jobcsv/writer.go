// Package jobcsv reads and writes the job export format: every non-numeric
// field quoted, quotes doubled, backslash as escape character, UTF-8, no index
// column. Missing values are written as empty unquoted fields.
package jobcsv

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

const escapeChar = '\\'

type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Write emits one record. Numbers and booleans are left unquoted, nil and NaN
// become an empty field, everything else is quoted text.
func (cw *Writer) Write(record []any) error {
	for i, v := range record {
		if i > 0 {
			if err := cw.w.WriteByte(','); err != nil {
				return err
			}
		}
		if err := cw.field(v); err != nil {
			return err
		}
	}
	_, err := cw.w.WriteString("\n")
	return err
}

// WriteHeader emits the column names, quoted like any other text field.
func (cw *Writer) WriteHeader(cols []string) error {
	rec := make([]any, len(cols))
	for i, c := range cols {
		rec[i] = c
	}
	return cw.Write(rec)
}

func (cw *Writer) Flush() error {
	return cw.w.Flush()
}

func (cw *Writer) field(v any) error {
	switch x := v.(type) {
	case nil:
		return nil
	case *string:
		if x == nil {
			return nil
		}
		return cw.quoted(*x)
	case *float64:
		if x == nil {
			return nil
		}
		return cw.field(*x)
	case *bool:
		if x == nil {
			return nil
		}
		return cw.field(*x)
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil
		}
		_, err := cw.w.WriteString(formatFloat(x))
		return err
	case int:
		_, err := cw.w.WriteString(strconv.Itoa(x))
		return err
	case int64:
		_, err := cw.w.WriteString(strconv.FormatInt(x, 10))
		return err
	case bool:
		s := "False"
		if x {
			s = "True"
		}
		_, err := cw.w.WriteString(s)
		return err
	case time.Time:
		return cw.quoted(x.Format(time.RFC3339))
	case string:
		return cw.quoted(x)
	default:
		return cw.quoted(toString(x))
	}
}

func (cw *Writer) quoted(s string) error {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`""`)
		case escapeChar:
			b.WriteString(`\\`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	_, err := cw.w.WriteString(b.String())
	return err
}

// formatFloat keeps integral values readable ("85000.0") the way pandas does.
func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatFloat(f, 'f', 1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
