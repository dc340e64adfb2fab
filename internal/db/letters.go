package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const letterColumns = `id, job_id, user_id, content, created_at, updated_at`

func scanLetter(row pgx.Row) (*Letter, error) {
	var l Letter
	if err := row.Scan(&l.ID, &l.JobID, &l.UserID, &l.Content, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

// UpsertLetter stores content as the letter for (userID, jobID), replacing
// the content of an existing letter. The job must belong to userID;
// otherwise ErrNotFound is returned.
func (db *DB) UpsertLetter(ctx context.Context, userID, jobID uuid.UUID, content string) (*Letter, error) {
	l, err := scanLetter(db.pool.QueryRow(ctx,
		`INSERT INTO letters (user_id, job_id, content)
		 SELECT $1, $2, $3
		 WHERE EXISTS (SELECT 1 FROM jobs WHERE id = $2 AND user_id = $1)
		 ON CONFLICT (user_id, job_id) DO UPDATE SET
		     content = EXCLUDED.content,
		     updated_at = GREATEST(clock_timestamp(), letters.updated_at + interval '1 microsecond')
		 RETURNING `+letterColumns,
		userID, jobID, content,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("job %s: %w", jobID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to save letter: %w", err)
	}
	return l, nil
}

// GetLetter retrieves a letter by ID. Returns nil, nil when absent.
func (db *DB) GetLetter(ctx context.Context, letterID uuid.UUID) (*Letter, error) {
	l, err := scanLetter(db.pool.QueryRow(ctx,
		`SELECT `+letterColumns+` FROM letters WHERE id = $1`, letterID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get letter: %w", err)
	}
	return l, nil
}

// GetLetterByJob retrieves the letter for (userID, jobID). Returns nil, nil when absent.
func (db *DB) GetLetterByJob(ctx context.Context, userID, jobID uuid.UUID) (*Letter, error) {
	l, err := scanLetter(db.pool.QueryRow(ctx,
		`SELECT `+letterColumns+` FROM letters WHERE user_id = $1 AND job_id = $2`, userID, jobID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get letter: %w", err)
	}
	return l, nil
}

// UpdateLetterContent replaces the content of a letter owned by userID.
// This is the direct edit path; it does not touch the job.
func (db *DB) UpdateLetterContent(ctx context.Context, userID, letterID uuid.UUID, content string) (*Letter, error) {
	l, err := scanLetter(db.pool.QueryRow(ctx,
		`UPDATE letters
		 SET content = $3, updated_at = GREATEST(clock_timestamp(), updated_at + interval '1 microsecond')
		 WHERE id = $1 AND user_id = $2
		 RETURNING `+letterColumns,
		letterID, userID, content,
	))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, fmt.Errorf("letter %s: %w", letterID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to update letter: %w", err)
	}
	return l, nil
}
