package generation

import (
	"context"

	"github.com/jonathan/cover-letter-studio/internal/types"
)

// Gateway performs the remote calls of a run. Each method is one round trip
// without retries. Failures should be *Error values so they classify by kind.
type Gateway interface {
	// FetchProfile returns an empty profile when the owner has none yet.
	FetchProfile(ctx context.Context, ownerID string) (*types.ApplicantProfile, error)
	// SaveJob updates existingJobID when given and returns it, else inserts.
	SaveJob(ctx context.Context, input types.JobInput, ownerID, existingJobID string) (string, error)
	// GenerateLetterContent returns the generated letter text.
	GenerateLetterContent(ctx context.Context, input types.JobInput, profile *types.ApplicantProfile) (string, error)
	// SaveLetter upserts the letter for (ownerID, jobID).
	SaveLetter(ctx context.Context, ownerID, jobID, content string) (*types.GeneratedLetter, error)
	// FetchJob returns nil, nil when the job does not exist.
	FetchJob(ctx context.Context, jobID string) (*types.JobRecord, error)
}
