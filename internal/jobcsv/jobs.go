package jobcsv

import (
	"io"
	"time"

	"jobscout-engine/internal/domain"
)

// Columns is the export column order.
var Columns = []string{
	"id", "site", "job_url", "title", "company", "location", "posted_date",
	"job_type", "salary", "min_amount", "max_amount", "is_remote",
	"description", "user_id", "created_at",
}

// WriteJobs writes a header and one record per job.
func WriteJobs(w io.Writer, jobs []domain.Job) error {
	cw := NewWriter(w)
	if err := cw.WriteHeader(Columns); err != nil {
		return err
	}
	for _, j := range jobs {
		if err := cw.Write(record(j)); err != nil {
			return err
		}
	}
	return cw.Flush()
}

func record(j domain.Job) []any {
	return []any{
		j.ID,
		j.Site,
		j.JobURL,
		j.Title,
		j.Company,
		j.Location,
		j.PostedDate,
		j.JobType,
		j.Salary,
		j.MinAmount,
		j.MaxAmount,
		j.IsRemote,
		j.Description,
		j.UserID,
		j.CreatedAt.UTC().Format(time.RFC3339),
	}
}
