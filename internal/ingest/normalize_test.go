package ingest

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"jobscout-engine/internal/domain"
)

var fixedNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func TestNormalizeDropsBatchDuplicates(t *testing.T) {
	rows := []any{
		domain.RawRow{"title": "X", "company": "Y", "location": "Austin"},
		domain.RawRow{"title": "Other", "company": "Y"},
		domain.RawRow{"title": "X", "company": "Y", "location": "Dallas"},
		domain.RawRow{"title": "x", "company": "Y"},
	}

	drafts, soft := Normalize(rows, fixedNow)
	if len(soft) != 0 {
		t.Fatalf("unexpected soft errors: %v", soft)
	}
	var got []string
	for _, d := range drafts {
		got = append(got, d.Title+"|"+d.Location)
	}
	want := []string{"X|Austin", "Other|Location", "x|Location"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("drafts mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeNullTitlesDedupTogether(t *testing.T) {
	rows := []any{
		domain.RawRow{"title": nil, "company": "Y"},
		domain.RawRow{"title": math.NaN(), "company": "Y"},
		domain.RawRow{"title": "Job Title", "company": "Y"},
	}
	drafts, _ := Normalize(rows, fixedNow)
	if len(drafts) != 2 {
		t.Fatalf("expected 2 drafts, got %d", len(drafts))
	}
}

func TestNormalizeDefaults(t *testing.T) {
	drafts, _ := Normalize([]any{map[string]any{}}, fixedNow)
	want := []domain.Draft{{
		Title:       "Job Title",
		Company:     "Company",
		Location:    "Location",
		Description: "No description available",
		PostedDate:  "2025-03-14",
		JobType:     "Full Time",
	}}
	if diff := cmp.Diff(want, drafts); diff != "" {
		t.Errorf("defaults mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeBlankTextIsMissing(t *testing.T) {
	drafts, _ := Normalize([]any{domain.RawRow{
		"title":    "",
		"company":  "  ",
		"location": "\t",
		"job_type": "contract ",
	}}, fixedNow)
	if len(drafts) != 1 {
		t.Fatalf("expected 1 draft, got %d", len(drafts))
	}
	got := []string{drafts[0].Title, drafts[0].Company, drafts[0].Location, drafts[0].JobType}
	if diff := cmp.Diff([]string{"Job Title", "Company", "Location", "contract"}, got); diff != "" {
		t.Errorf("blank text mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeSalaryDefaultOnlyWhenColumnPresent(t *testing.T) {
	drafts, _ := Normalize([]any{
		domain.RawRow{"title": "A", "salary": nil},
		domain.RawRow{"title": "B"},
		domain.RawRow{"title": "C", "salary": "$100k"},
	}, fixedNow)
	got := []string{*drafts[0].Salary, *drafts[1].Salary, *drafts[2].Salary}
	if diff := cmp.Diff([]string{"Salary not specified", "Salary not specified", "$100k"}, got); diff != "" {
		t.Errorf("salary mismatch (-want +got):\n%s", diff)
	}

	drafts, _ = Normalize([]any{domain.RawRow{"title": "A"}}, fixedNow)
	if drafts[0].Salary != nil {
		t.Errorf("salary should stay nil without a salary column, got %q", *drafts[0].Salary)
	}
}

func TestNormalizeTruncatesDescription(t *testing.T) {
	drafts, _ := Normalize([]any{domain.RawRow{"description": strings.Repeat("d", 600)}}, fixedNow)
	got := drafts[0].Description
	if n := utf8.RuneCountInString(got); n != 503 {
		t.Fatalf("description length = %d, want 503", n)
	}
	if !strings.HasSuffix(got, "...") || strings.Count(got, "d") != 500 {
		t.Errorf("unexpected description tail %q", got[490:])
	}

	drafts, _ = Normalize([]any{domain.RawRow{"description": strings.Repeat("d", 500)}}, fixedNow)
	if got := drafts[0].Description; len(got) != 500 || strings.HasSuffix(got, "...") {
		t.Errorf("500 chars must not be truncated, got len %d", len(got))
	}
}

func TestNormalizeStripsHTMLDescription(t *testing.T) {
	drafts, _ := Normalize([]any{domain.RawRow{"description": "<p>Build <b>APIs</b></p><script>x()</script>"}}, fixedNow)
	if got := drafts[0].Description; got != "Build APIs" {
		t.Errorf("description = %q", got)
	}
}

func TestNormalizeTypedValues(t *testing.T) {
	posted := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)
	drafts, _ := Normalize([]any{
		map[string]any{
			"title":       "Go Dev",
			"company":     "Acme",
			"date_posted": posted,
			"min_amount":  json.Number("80000"),
			"max_amount":  math.NaN(),
			"is_remote":   "True",
			"job_type":    "fulltime",
			"emails":      math.Inf(1),
			"scraped_at":  posted,
			"rating":      json.Number("4.5"),
		},
	}, fixedNow)

	d := drafts[0]
	if d.PostedDate != "2025-03-01" {
		t.Errorf("posted_date = %q", d.PostedDate)
	}
	if d.MinAmount == nil || *d.MinAmount != 80000 {
		t.Errorf("min_amount = %v", d.MinAmount)
	}
	if d.MaxAmount != nil {
		t.Errorf("NaN max_amount should be nil, got %v", *d.MaxAmount)
	}
	if diff := cmp.Diff(ptr(true), d.IsRemote); diff != "" {
		t.Errorf("is_remote mismatch:\n%s", diff)
	}
	if d.JobType != "fulltime" {
		t.Errorf("job_type = %q", d.JobType)
	}
	wantExtra := map[string]any{
		"emails":     nil,
		"scraped_at": "2025-03-01T18:00:00Z",
		"rating":     4.5,
	}
	if diff := cmp.Diff(wantExtra, d.Extra); diff != "" {
		t.Errorf("extra mismatch (-want +got):\n%s", diff)
	}
}

func TestNormalizeSkipsMalformedRows(t *testing.T) {
	var nilRow domain.RawRow
	drafts, soft := Normalize([]any{"oops", domain.RawRow{"title": "ok"}, nilRow, 42}, fixedNow)
	if len(drafts) != 1 || drafts[0].Title != "ok" {
		t.Fatalf("drafts = %+v", drafts)
	}
	if len(soft) != 3 {
		t.Fatalf("expected 3 soft errors, got %v", soft)
	}
	if !strings.HasPrefix(soft[0], "row 0:") {
		t.Errorf("soft error should name the row, got %q", soft[0])
	}
}
