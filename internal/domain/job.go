package domain

import "time"

type JobStatus string

const (
	JobActive   JobStatus = "active"
	JobInactive JobStatus = "inactive"
)

// Draft is a normalized posting that has not been persisted yet.
// Optional columns stay nil when the scraped row had no usable value.
type Draft struct {
	Title       string         `json:"title"`
	Company     string         `json:"company"`
	Location    string         `json:"location"`
	Description string         `json:"description"`
	JobURL      string         `json:"job_url"`
	PostedDate  string         `json:"posted_date"`
	JobType     string         `json:"job_type"`
	Site        string         `json:"site,omitempty"`
	Salary      *string        `json:"salary,omitempty"`
	MinAmount   *float64       `json:"min_amount"`
	MaxAmount   *float64       `json:"max_amount"`
	IsRemote    *bool          `json:"is_remote"`
	Extra       map[string]any `json:"extra,omitempty"`
}

type Job struct {
	ID string `json:"id"`
	Draft

	Status       JobStatus  `json:"status"`
	UserID       *string    `json:"user_id"`
	CreatedAt    time.Time  `json:"created_at"`
	Applications int        `json:"applications"`
	DeletedBy    *string    `json:"deleted_by,omitempty"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`

	// set only on the applied-jobs view
	AppliedAt         *time.Time `json:"applied_at,omitempty"`
	ApplicationStatus string     `json:"application_status,omitempty"`
}

// OwnedBy reports whether the job belongs to userID.
func (j Job) OwnedBy(userID string) bool {
	return j.UserID != nil && *j.UserID == userID
}

// RawRow is one scraped row as handed over by a scraper: column name to
// loosely typed value (string, float64, bool, json.Number, time.Time or nil).
type RawRow map[string]any
