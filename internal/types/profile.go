package types

import (
	"strings"
	"time"
)

// ApplicantProfile holds the applicant data used to personalize a letter.
// It is maintained by the profile endpoints and only read during generation.
type ApplicantProfile struct {
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Phone      string    `json:"phone,omitempty"`
	Address    string    `json:"address,omitempty"`
	Experience string    `json:"experience,omitempty"`
	Education  string    `json:"education,omitempty"`
	Skills     []string  `json:"skills,omitempty"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// IsEmpty reports whether the profile carries no applicant data at all.
func (p *ApplicantProfile) IsEmpty() bool {
	if p == nil {
		return true
	}
	return strings.TrimSpace(p.Name+p.Email+p.Phone+p.Address+p.Experience+p.Education) == "" &&
		len(p.Skills) == 0
}

// UpdateProfileRequest is the body accepted by the profile editor.
type UpdateProfileRequest struct {
	Name       string   `json:"name" validate:"max=200"`
	Email      string   `json:"email" validate:"omitempty,email"`
	Phone      string   `json:"phone" validate:"max=50"`
	Address    string   `json:"address" validate:"max=500"`
	Experience string   `json:"experience" validate:"max=20000"`
	Education  string   `json:"education" validate:"max=20000"`
	Skills     []string `json:"skills" validate:"max=100,dive,max=100"`
}

// ToProfile converts the request into a profile owned by ownerID.
func (r *UpdateProfileRequest) ToProfile(ownerID string) *ApplicantProfile {
	skills := make([]string, 0, len(r.Skills))
	for _, s := range r.Skills {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	return &ApplicantProfile{
		OwnerID:    ownerID,
		Name:       strings.TrimSpace(r.Name),
		Email:      strings.TrimSpace(r.Email),
		Phone:      strings.TrimSpace(r.Phone),
		Address:    strings.TrimSpace(r.Address),
		Experience: strings.TrimSpace(r.Experience),
		Education:  strings.TrimSpace(r.Education),
		Skills:     skills,
	}
}
