// Package types provides type definitions for structured data used throughout the cover letter system.
package types

import (
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// JobInput is the user-entered job data that drives a generation run.
// Optional fields are nil when absent; empty strings never reach storage.
type JobInput struct {
	Title         string  `json:"title" validate:"required"`
	Company       string  `json:"company" validate:"required"`
	Description   string  `json:"description" validate:"required"`
	ContactPerson *string `json:"contact_person,omitempty"`
	URL           *string `json:"url,omitempty"`
	Deadline      *Date   `json:"deadline,omitempty"`
}

// JobRecord is the persisted form of a job.
type JobRecord struct {
	ID            string    `json:"id"`
	OwnerID       string    `json:"owner_id"`
	Title         string    `json:"title"`
	Company       string    `json:"company"`
	Description   string    `json:"description"`
	ContactPerson *string   `json:"contact_person,omitempty"`
	URL           *string   `json:"url,omitempty"`
	Deadline      *Date     `json:"deadline,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Input returns the user-editable part of the record.
func (j *JobRecord) Input() JobInput {
	return JobInput{
		Title:         j.Title,
		Company:       j.Company,
		Description:   j.Description,
		ContactPerson: j.ContactPerson,
		URL:           j.URL,
		Deadline:      j.Deadline,
	}
}

// RecordFromInput builds a JobRecord from input data and a known job id.
// Used when a stored record cannot be re-read after a successful run.
func RecordFromInput(input JobInput, jobID, ownerID string) *JobRecord {
	return &JobRecord{
		ID:            jobID,
		OwnerID:       ownerID,
		Title:         input.Title,
		Company:       input.Company,
		Description:   input.Description,
		ContactPerson: input.ContactPerson,
		URL:           input.URL,
		Deadline:      input.Deadline,
	}
}

// InputValidationError lists the required fields that are missing.
type InputValidationError struct {
	Fields []string
}

func (e *InputValidationError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

var (
	inputValidator     *validator.Validate
	inputValidatorOnce sync.Once
)

func jobValidator() *validator.Validate {
	inputValidatorOnce.Do(func() {
		v := validator.New()
		// Report json names so callers can point at form fields directly.
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		inputValidator = v
	})
	return inputValidator
}

// Normalize trims every field and turns blank optional fields into nil.
func (in JobInput) Normalize() JobInput {
	out := JobInput{
		Title:         strings.TrimSpace(in.Title),
		Company:       strings.TrimSpace(in.Company),
		Description:   strings.TrimSpace(in.Description),
		ContactPerson: trimOptional(in.ContactPerson),
		URL:           trimOptional(in.URL),
		Deadline:      in.Deadline,
	}
	if out.Deadline != nil && out.Deadline.IsZero() {
		out.Deadline = nil
	}
	return out
}

// Validate checks the required fields after trimming whitespace.
// A failure is always an *InputValidationError.
func (in JobInput) Validate() error {
	normalized := in.Normalize()
	err := jobValidator().Struct(normalized)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &InputValidationError{Fields: []string{"(input)"}}
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return &InputValidationError{Fields: fields}
}

func trimOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	return trimOptional(&s)
}
