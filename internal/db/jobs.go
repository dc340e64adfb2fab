package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jonathan/cover-letter-studio/internal/types"
)

const jobColumns = `id, user_id, title, company, description, contact_person, url, deadline, created_at, updated_at`

func scanJob(row pgx.Row) (*Job, error) {
	var j Job
	err := row.Scan(&j.ID, &j.UserID, &j.Title, &j.Company, &j.Description,
		&j.ContactPerson, &j.URL, &j.Deadline, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

// CreateJob inserts a job for userID and returns its ID.
// Blank optional fields are stored as NULL.
func (db *DB) CreateJob(ctx context.Context, userID uuid.UUID, in types.JobInput) (uuid.UUID, error) {
	in = in.Normalize()
	var id uuid.UUID
	err := db.pool.QueryRow(ctx,
		`INSERT INTO jobs (user_id, title, company, description, contact_person, url, deadline)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		userID, in.Title, in.Company, in.Description, in.ContactPerson, in.URL, in.Deadline,
	).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create job: %w", err)
	}
	return id, nil
}

// UpdateJob overwrites the editable fields of a job owned by userID.
// updated_at always moves forward, even for updates in the same instant.
func (db *DB) UpdateJob(ctx context.Context, userID, jobID uuid.UUID, in types.JobInput) error {
	in = in.Normalize()
	result, err := db.pool.Exec(ctx,
		`UPDATE jobs
		 SET title = $3, company = $4, description = $5, contact_person = $6, url = $7, deadline = $8,
		     updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')
		 WHERE id = $1 AND user_id = $2`,
		jobID, userID, in.Title, in.Company, in.Description, in.ContactPerson, in.URL, in.Deadline,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}

// GetJob retrieves a job by ID. Returns nil, nil when absent.
func (db *DB) GetJob(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	j, err := scanJob(db.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, jobID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return j, nil
}

// ListJobs returns a user's jobs, most recently updated first.
func (db *DB) ListJobs(ctx context.Context, userID uuid.UUID, limit int) ([]Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE user_id = $1 ORDER BY updated_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// DeleteJob deletes a job owned by userID and its letter (via cascade).
func (db *DB) DeleteJob(ctx context.Context, userID, jobID uuid.UUID) error {
	result, err := db.pool.Exec(ctx, `DELETE FROM jobs WHERE id = $1 AND user_id = $2`, jobID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", jobID, ErrNotFound)
	}
	return nil
}
