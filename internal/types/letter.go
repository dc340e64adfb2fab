package types

import "time"

// GeneratedLetter is a persisted cover letter, one per (owner, job).
type GeneratedLetter struct {
	ID        string    `json:"id"`
	JobID     string    `json:"job_id"`
	OwnerID   string    `json:"owner_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpdateLetterRequest is the body of a direct letter edit.
type UpdateLetterRequest struct {
	Content string `json:"content" validate:"required"`
}

// GenerateRequest is the body of a generation request.
// JobID is set when the user retries or regenerates for an existing job.
type GenerateRequest struct {
	Job   JobInput `json:"job"`
	JobID string   `json:"job_id,omitempty"`
}

// GenerateResponse is returned after a successful generation run.
type GenerateResponse struct {
	Job    *JobRecord       `json:"job"`
	Letter *GeneratedLetter `json:"letter"`
}

// ImportJobRequest asks the server to pre-fill a job from a posting URL.
type ImportJobRequest struct {
	URL        string `json:"url" validate:"required,url"`
	UseBrowser bool   `json:"use_browser,omitempty"`
}
