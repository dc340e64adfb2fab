package db

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/cover-letter-studio/internal/types"
)

// User is an account row.
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-" db:"password_hash"` // Never serialize to JSON
	PasswordSet  bool      `json:"password_set" db:"password_set"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Job is a saved job posting owned by a user.
type Job struct {
	ID            uuid.UUID   `json:"id"`
	UserID        uuid.UUID   `json:"user_id"`
	Title         string      `json:"title"`
	Company       string      `json:"company"`
	Description   string      `json:"description"`
	ContactPerson *string     `json:"contact_person,omitempty"`
	URL           *string     `json:"url,omitempty"`
	Deadline      *types.Date `json:"deadline,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Record converts the row to the domain type.
func (j *Job) Record() *types.JobRecord {
	return &types.JobRecord{
		ID:            j.ID.String(),
		OwnerID:       j.UserID.String(),
		Title:         j.Title,
		Company:       j.Company,
		Description:   j.Description,
		ContactPerson: j.ContactPerson,
		URL:           j.URL,
		Deadline:      j.Deadline,
		CreatedAt:     j.CreatedAt,
		UpdatedAt:     j.UpdatedAt,
	}
}

// Profile is the applicant data attached to a user.
type Profile struct {
	UserID     uuid.UUID   `json:"user_id"`
	Name       string      `json:"name"`
	Email      string      `json:"email"`
	Phone      string      `json:"phone"`
	Address    string      `json:"address"`
	Experience string      `json:"experience"`
	Education  string      `json:"education"`
	Skills     StringArray `json:"skills"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// Applicant converts the row to the domain type.
func (p *Profile) Applicant() *types.ApplicantProfile {
	return &types.ApplicantProfile{
		OwnerID:    p.UserID.String(),
		Name:       p.Name,
		Email:      p.Email,
		Phone:      p.Phone,
		Address:    p.Address,
		Experience: p.Experience,
		Education:  p.Education,
		Skills:     []string(p.Skills),
		UpdatedAt:  p.UpdatedAt,
	}
}

// Letter is a generated cover letter, unique per (user, job).
type Letter struct {
	ID        uuid.UUID `json:"id"`
	JobID     uuid.UUID `json:"job_id"`
	UserID    uuid.UUID `json:"user_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Generated converts the row to the domain type.
func (l *Letter) Generated() *types.GeneratedLetter {
	return &types.GeneratedLetter{
		ID:        l.ID.String(),
		JobID:     l.JobID.String(),
		OwnerID:   l.UserID.String(),
		Content:   l.Content,
		CreatedAt: l.CreatedAt,
		UpdatedAt: l.UpdatedAt,
	}
}

// StringArray handles JSONB string arrays
type StringArray []string

// Scan implements the Scanner interface for StringArray
func (a *StringArray) Scan(src interface{}) error {
	if src == nil {
		*a = []string{}
		return nil
	}
	var source []byte
	switch v := src.(type) {
	case []byte:
		source = v
	case string:
		source = []byte(v)
	default:
		return errors.New("type assertion .([]byte) failed")
	}
	return json.Unmarshal(source, a)
}

// Value implements the Valuer interface for StringArray
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(a)
}
