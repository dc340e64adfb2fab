// Package gateway implements the remote calls of a generation run together
// with the job, letter and profile reads and edits the HTTP API exposes.
// Postgres is the production implementation; Memory backs offline runs and
// tests.
package gateway

import (
	"context"

	"github.com/jonathan/cover-letter-studio/internal/db"
	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

// ErrNotFound is returned when a job or letter does not exist or is not
// owned by the caller.
var ErrNotFound = db.ErrNotFound

// Repository is a generation gateway plus the owner-scoped reads and edits
// outside a run.
type Repository interface {
	generation.Gateway

	ListJobs(ctx context.Context, ownerID string, limit int) ([]types.JobRecord, error)
	// GetJob returns ErrNotFound unless the job exists and belongs to ownerID.
	GetJob(ctx context.Context, ownerID, jobID string) (*types.JobRecord, error)
	DeleteJob(ctx context.Context, ownerID, jobID string) error
	// LetterForJob returns nil, nil when no letter has been generated yet.
	LetterForJob(ctx context.Context, ownerID, jobID string) (*types.GeneratedLetter, error)
	UpdateLetter(ctx context.Context, ownerID, letterID, content string) (*types.GeneratedLetter, error)
	SaveProfile(ctx context.Context, profile *types.ApplicantProfile) (*types.ApplicantProfile, error)
}
