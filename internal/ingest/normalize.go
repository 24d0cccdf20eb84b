// Package ingest turns scraped rows into persisted job postings.
package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"jobscout-engine/internal/domain"
	"jobscout-engine/internal/scrape/util"
)

const (
	DefaultTitle       = "Job Title"
	DefaultCompany     = "Company"
	DefaultLocation    = "Location"
	DefaultDescription = "No description available"
	DefaultJobType     = "Full Time"
	DefaultSalary      = "Salary not specified"

	MaxDescription = 500
	TruncateMarker = "..."

	dateLayout = "2006-01-02"
)

// columns with a dedicated Draft field; anything else lands in Draft.Extra
var knownColumns = map[string]bool{
	"title": true, "company": true, "location": true, "description": true,
	"job_url": true, "posted_date": true, "date_posted": true, "job_type": true,
	"site": true, "salary": true, "min_amount": true, "max_amount": true,
	"is_remote": true,
}

// Normalize converts one scraped batch into drafts. Rows sharing a raw
// (title, company) pair with an earlier row are dropped. Rows that are not
// mappings are skipped and reported in the returned soft errors.
func Normalize(rows []any, now time.Time) ([]domain.Draft, []string) {
	var (
		drafts []domain.Draft
		soft   []string
		valid  = make([]map[string]any, 0, len(rows))
	)

	for i, r := range rows {
		m, ok := asMap(r)
		if !ok {
			soft = append(soft, fmt.Sprintf("row %d: not a mapping (%T)", i, r))
			continue
		}
		valid = append(valid, m)
	}

	hasSalary := false
	for _, m := range valid {
		if _, ok := m["salary"]; ok {
			hasSalary = true
			break
		}
	}

	seen := make(map[[2]string]struct{}, len(valid))
	for _, m := range valid {
		key := [2]string{dedupKey(m["title"]), dedupKey(m["company"])}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		drafts = append(drafts, normalizeRow(m, now, hasSalary))
	}
	return drafts, soft
}

func normalizeRow(m map[string]any, now time.Time, hasSalary bool) domain.Draft {
	d := domain.Draft{
		Title:       textOr(m["title"], DefaultTitle),
		Company:     textOr(m["company"], DefaultCompany),
		Location:    textOr(m["location"], DefaultLocation),
		Description: description(m["description"]),
		JobURL:      textOr(m["job_url"], ""),
		PostedDate:  postedDate(m, now),
		JobType:     textOr(m["job_type"], DefaultJobType),
		Site:        textOr(m["site"], ""),
		MinAmount:   number(m["min_amount"]),
		MaxAmount:   number(m["max_amount"]),
		IsRemote:    boolean(m["is_remote"]),
	}
	if hasSalary {
		s := textOr(m["salary"], DefaultSalary)
		d.Salary = &s
	}

	for k, v := range m {
		if knownColumns[k] {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]any)
		}
		d.Extra[k] = plain(v)
	}
	return d
}

func asMap(r any) (map[string]any, bool) {
	switch m := r.(type) {
	case domain.RawRow:
		return m, m != nil
	case map[string]any:
		return m, m != nil
	default:
		return nil, false
	}
}

// dedupKey compares raw values exactly; null is distinct from every string.
func dedupKey(v any) string {
	if isNull(v) {
		return "\x00null"
	}
	if s, ok := v.(string); ok {
		return "s:" + s
	}
	return fmt.Sprintf("%T:%v", v, v)
}

func isNull(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case float64:
		return math.IsNaN(x) || math.IsInf(x, 0)
	case float32:
		f := float64(x)
		return math.IsNaN(f) || math.IsInf(f, 0)
	case json.Number:
		f, err := x.Float64()
		return err == nil && (math.IsNaN(f) || math.IsInf(f, 0))
	case *string:
		return x == nil
	case *float64:
		return x == nil || math.IsNaN(*x)
	case *bool:
		return x == nil
	case time.Time:
		return x.IsZero()
	}
	return false
}

// text reads v as trimmed text. Blank counts as missing: the CSV scrapers
// write absent cells as "".
func text(v any) (string, bool) {
	if isNull(v) {
		return "", false
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case *string:
		s = *x
	case time.Time:
		s = x.Format(time.RFC3339)
	case float64:
		s = strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		s = x.String()
	default:
		s = fmt.Sprint(x)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func textOr(v any, def string) string {
	if s, ok := text(v); ok {
		return s
	}
	return def
}

func description(v any) string {
	s, ok := text(v)
	if ok && util.LooksLikeHTML(s) {
		s = util.HTMLToText(s)
		ok = s != ""
	}
	if !ok {
		return DefaultDescription
	}
	return util.Truncate(s, MaxDescription, TruncateMarker)
}

func postedDate(m map[string]any, now time.Time) string {
	v, ok := m["posted_date"]
	if !ok || isNull(v) {
		v = m["date_posted"]
	}
	switch x := v.(type) {
	case time.Time:
		if !x.IsZero() {
			return x.Format(dateLayout)
		}
	case string:
		s := strings.TrimSpace(x)
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.Format(dateLayout)
		}
		if s != "" {
			return s
		}
	default:
		if s, ok := text(x); ok {
			return s
		}
	}
	return now.Format(dateLayout)
}

func number(v any) *float64 {
	if isNull(v) {
		return nil
	}
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return nil
		}
		f = n
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		f = n
	case *float64:
		f = *x
	default:
		return nil
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func boolean(v any) *bool {
	if isNull(v) {
		return nil
	}
	var b bool
	switch x := v.(type) {
	case bool:
		b = x
	case *bool:
		b = *x
	case string:
		p, err := strconv.ParseBool(strings.TrimSpace(x))
		if err != nil {
			return nil
		}
		b = p
	default:
		return nil
	}
	return &b
}

// plain maps a loosely typed scraped value onto JSON-friendly values with no
// float sentinels left behind.
func plain(v any) any {
	if isNull(v) {
		return nil
	}
	switch x := v.(type) {
	case json.Number:
		if f, err := x.Float64(); err == nil {
			return f
		}
		return x.String()
	case time.Time:
		return x.Format(time.RFC3339)
	case float32:
		return float64(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = plain(x[i])
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = plain(e)
		}
		return out
	}
	return v
}
