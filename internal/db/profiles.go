package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// GetProfile retrieves the applicant profile of userID.
// Returns nil, nil when the user has not filled one in yet.
func (db *DB) GetProfile(ctx context.Context, userID uuid.UUID) (*Profile, error) {
	var p Profile
	err := db.pool.QueryRow(ctx,
		`SELECT user_id, name, email, phone, address, experience, education, skills, updated_at
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(&p.UserID, &p.Name, &p.Email, &p.Phone, &p.Address, &p.Experience, &p.Education, &p.Skills, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// UpsertProfile creates or replaces the profile of p.UserID.
func (db *DB) UpsertProfile(ctx context.Context, p *Profile) (*Profile, error) {
	out := Profile{}
	err := db.pool.QueryRow(ctx,
		`INSERT INTO profiles (user_id, name, email, phone, address, experience, education, skills)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE SET
		     name = $2, email = $3, phone = $4, address = $5,
		     experience = $6, education = $7, skills = $8, updated_at = NOW()
		 RETURNING user_id, name, email, phone, address, experience, education, skills, updated_at`,
		p.UserID, p.Name, p.Email, p.Phone, p.Address, p.Experience, p.Education, p.Skills,
	).Scan(&out.UserID, &out.Name, &out.Email, &out.Phone, &out.Address, &out.Experience, &out.Education, &out.Skills, &out.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	return &out, nil
}
