package domain

import "time"

const ApplicationApplied = "applied"

type Application struct {
	JobID     string    `json:"job_id"`
	UserID    string    `json:"user_id"`
	AppliedAt time.Time `json:"applied_at"`
	Status    string    `json:"status"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

type Stats struct {
	TotalJobs          int `json:"total_jobs"`
	RemoteJobs         int `json:"remote_jobs"`
	AvgSalary          int `json:"avg_salary"`
	UniqueCompanies    int `json:"unique_companies"`
	AppliedJobs        int `json:"applied_jobs"`
	SearchesPerformed  int `json:"searches_performed"`
	TotalJobsAvailable int `json:"total_jobs_available"`
}
