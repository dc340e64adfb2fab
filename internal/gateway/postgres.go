package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jonathan/cover-letter-studio/internal/db"
	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/logger"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

// Store is the subset of *db.DB the gateway needs.
type Store interface {
	CreateJob(ctx context.Context, userID uuid.UUID, in types.JobInput) (uuid.UUID, error)
	UpdateJob(ctx context.Context, userID, jobID uuid.UUID, in types.JobInput) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*db.Job, error)
	ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]db.Job, error)
	DeleteJob(ctx context.Context, userID, jobID uuid.UUID) error
	GetProfile(ctx context.Context, userID uuid.UUID) (*db.Profile, error)
	UpsertProfile(ctx context.Context, p *db.Profile) (*db.Profile, error)
	UpsertLetter(ctx context.Context, userID, jobID uuid.UUID, content string) (*db.Letter, error)
	GetLetterByJob(ctx context.Context, userID, jobID uuid.UUID) (*db.Letter, error)
	UpdateLetterContent(ctx context.Context, userID, letterID uuid.UUID, content string) (*db.Letter, error)
}

// Postgres stores jobs, profiles and letters in PostgreSQL and writes
// letters with a Writer.
type Postgres struct {
	store  Store
	writer Writer
	log    *logger.Logger
}

// NewPostgres creates a gateway. A nil logger discards output.
func NewPostgres(store Store, writer Writer, log *logger.Logger) *Postgres {
	if log == nil {
		log = logger.Nop()
	}
	return &Postgres{store: store, writer: writer, log: log}
}

var _ Repository = (*Postgres)(nil)

func parseOwner(op, ownerID string) (uuid.UUID, error) {
	id, err := uuid.Parse(ownerID)
	if err != nil {
		e := generation.NewError(generation.KindValidationRejected, op, err)
		e.Fields = []string{"owner"}
		return uuid.Nil, e
	}
	return id, nil
}

// FetchProfile returns the owner's profile, or an empty one.
func (p *Postgres) FetchProfile(ctx context.Context, ownerID string) (*types.ApplicantProfile, error) {
	const op = "fetch profile"
	owner, err := parseOwner(op, ownerID)
	if err != nil {
		return nil, err
	}
	row, err := p.store.GetProfile(ctx, owner)
	if err != nil {
		return nil, storeError(op, err)
	}
	if row == nil {
		return &types.ApplicantProfile{OwnerID: ownerID}, nil
	}
	return row.Applicant(), nil
}

// SaveJob updates existingJobID, which must name a job of the owner, or
// inserts a new job when it is empty.
func (p *Postgres) SaveJob(ctx context.Context, input types.JobInput, ownerID, existingJobID string) (string, error) {
	const op = "save job"
	owner, err := parseOwner(op, ownerID)
	if err != nil {
		return "", err
	}

	if existingJobID != "" {
		jobID, err := uuid.Parse(existingJobID)
		if err != nil {
			return "", unknownJob(op, existingJobID, err)
		}
		err = p.store.UpdateJob(ctx, owner, jobID, input)
		switch {
		case errors.Is(err, db.ErrNotFound):
			p.log.Warn("existing job not found", "job_id", existingJobID, "owner", ownerID)
			return "", unknownJob(op, existingJobID, err)
		case err != nil:
			return "", storeError(op, err)
		}
		return existingJobID, nil
	}

	id, err := p.store.CreateJob(ctx, owner, input)
	if err != nil {
		return "", storeError(op, err)
	}
	return id.String(), nil
}

// GenerateLetterContent delegates to the writer.
func (p *Postgres) GenerateLetterContent(ctx context.Context, input types.JobInput, profile *types.ApplicantProfile) (string, error) {
	return p.writer.Write(ctx, input, profile)
}

// SaveLetter upserts the letter for (ownerID, jobID).
func (p *Postgres) SaveLetter(ctx context.Context, ownerID, jobID, content string) (*types.GeneratedLetter, error) {
	const op = "save letter"
	owner, err := parseOwner(op, ownerID)
	if err != nil {
		return nil, err
	}
	job, err := uuid.Parse(jobID)
	if err != nil {
		return nil, generation.NewError(generation.KindUpstreamUnavailable, op, fmt.Errorf("invalid job id %q: %w", jobID, err))
	}
	row, err := p.store.UpsertLetter(ctx, owner, job, content)
	if err != nil {
		return nil, storeError(op, err)
	}
	return row.Generated(), nil
}

// FetchJob returns nil, nil for unknown or malformed IDs.
func (p *Postgres) FetchJob(ctx context.Context, jobID string) (*types.JobRecord, error) {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, nil
	}
	row, err := p.store.GetJob(ctx, id)
	if err != nil {
		return nil, storeError("fetch job", err)
	}
	if row == nil {
		return nil, nil
	}
	return row.Record(), nil
}

// ListJobs returns the owner's jobs, most recently updated first.
func (p *Postgres) ListJobs(ctx context.Context, ownerID string, limit int) ([]types.JobRecord, error) {
	owner, err := parseOwner("list jobs", ownerID)
	if err != nil {
		return nil, err
	}
	rows, err := p.store.ListJobs(ctx, owner, limit)
	if err != nil {
		return nil, err
	}
	out := make([]types.JobRecord, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].Record())
	}
	return out, nil
}

// GetJob returns ErrNotFound for jobs of other owners.
func (p *Postgres) GetJob(ctx context.Context, ownerID, jobID string) (*types.JobRecord, error) {
	job, err := p.FetchJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil || job.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return job, nil
}

// DeleteJob removes a job and its letter.
func (p *Postgres) DeleteJob(ctx context.Context, ownerID, jobID string) error {
	owner, err := parseOwner("delete job", ownerID)
	if err != nil {
		return err
	}
	id, err := uuid.Parse(jobID)
	if err != nil {
		return ErrNotFound
	}
	return p.store.DeleteJob(ctx, owner, id)
}

// LetterForJob returns the letter of a job, or nil when none exists.
func (p *Postgres) LetterForJob(ctx context.Context, ownerID, jobID string) (*types.GeneratedLetter, error) {
	owner, err := parseOwner("get letter", ownerID)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(jobID)
	if err != nil {
		return nil, nil
	}
	row, err := p.store.GetLetterByJob(ctx, owner, id)
	if err != nil || row == nil {
		return nil, err
	}
	return row.Generated(), nil
}

// UpdateLetter replaces the content of an existing letter.
func (p *Postgres) UpdateLetter(ctx context.Context, ownerID, letterID, content string) (*types.GeneratedLetter, error) {
	owner, err := parseOwner("update letter", ownerID)
	if err != nil {
		return nil, err
	}
	id, err := uuid.Parse(letterID)
	if err != nil {
		return nil, ErrNotFound
	}
	row, err := p.store.UpdateLetterContent(ctx, owner, id, content)
	if err != nil {
		return nil, err
	}
	return row.Generated(), nil
}

// SaveProfile creates or replaces the owner's profile.
func (p *Postgres) SaveProfile(ctx context.Context, profile *types.ApplicantProfile) (*types.ApplicantProfile, error) {
	owner, err := parseOwner("save profile", profile.OwnerID)
	if err != nil {
		return nil, err
	}
	row, err := p.store.UpsertProfile(ctx, &db.Profile{
		UserID:     owner,
		Name:       profile.Name,
		Email:      profile.Email,
		Phone:      profile.Phone,
		Address:    profile.Address,
		Experience: profile.Experience,
		Education:  profile.Education,
		Skills:     db.StringArray(profile.Skills),
	})
	if err != nil {
		return nil, err
	}
	return row.Applicant(), nil
}
