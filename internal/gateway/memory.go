package gateway

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

type letterKey struct {
	owner string
	job   string
}

// Memory keeps everything in process. Timestamps are strictly increasing
// across all writes.
type Memory struct {
	writer Writer

	mu       sync.Mutex
	now      func() time.Time
	last     time.Time
	jobs     map[string]*types.JobRecord
	letters  map[letterKey]*types.GeneratedLetter
	profiles map[string]*types.ApplicantProfile
}

// NewMemory creates an empty in-memory gateway. A nil writer selects
// TemplateWriter.
func NewMemory(writer Writer) *Memory {
	if writer == nil {
		writer = TemplateWriter{}
	}
	return &Memory{
		writer:   writer,
		now:      time.Now,
		jobs:     make(map[string]*types.JobRecord),
		letters:  make(map[letterKey]*types.GeneratedLetter),
		profiles: make(map[string]*types.ApplicantProfile),
	}
}

var _ Repository = (*Memory)(nil)

// tick returns a timestamp after every previously returned one.
// Callers hold m.mu.
func (m *Memory) tick() time.Time {
	t := m.now().UTC()
	if !t.After(m.last) {
		t = m.last.Add(time.Microsecond)
	}
	m.last = t
	return t
}

func requireOwner(op, ownerID string) error {
	if ownerID == "" {
		e := generation.NewError(generation.KindValidationRejected, op, nil)
		e.Message = "owner is required"
		e.Fields = []string{"owner"}
		return e
	}
	return nil
}

func copyJob(j *types.JobRecord) *types.JobRecord {
	c := *j
	return &c
}

func copyLetter(l *types.GeneratedLetter) *types.GeneratedLetter {
	c := *l
	return &c
}

// FetchProfile returns the stored profile or an empty one.
func (m *Memory) FetchProfile(ctx context.Context, ownerID string) (*types.ApplicantProfile, error) {
	if err := requireOwner("fetch profile", ownerID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[ownerID]; ok {
		c := *p
		c.Skills = append([]string(nil), p.Skills...)
		return &c, nil
	}
	return &types.ApplicantProfile{OwnerID: ownerID}, nil
}

// SaveJob updates the owner's existing job, or inserts a new one when
// existingJobID is empty. An id that is missing or foreign is rejected.
func (m *Memory) SaveJob(ctx context.Context, input types.JobInput, ownerID, existingJobID string) (string, error) {
	const op = "save job"
	if err := requireOwner(op, ownerID); err != nil {
		return "", err
	}
	input = input.Normalize()
	if err := input.Validate(); err != nil {
		e := generation.NewError(generation.KindValidationRejected, op, err)
		if verr, ok := err.(*types.InputValidationError); ok {
			e.Fields = verr.Fields
		}
		return "", e
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.tick()

	if existingJobID != "" {
		job, ok := m.jobs[existingJobID]
		if !ok || job.OwnerID != ownerID {
			return "", unknownJob(op, existingJobID, nil)
		}
		updated := types.RecordFromInput(input, job.ID, ownerID)
		updated.CreatedAt = job.CreatedAt
		updated.UpdatedAt = now
		m.jobs[job.ID] = updated
		return job.ID, nil
	}

	id := uuid.NewString()
	rec := types.RecordFromInput(input, id, ownerID)
	rec.CreatedAt = now
	rec.UpdatedAt = now
	m.jobs[id] = rec
	return id, nil
}

// GenerateLetterContent delegates to the writer.
func (m *Memory) GenerateLetterContent(ctx context.Context, input types.JobInput, profile *types.ApplicantProfile) (string, error) {
	return m.writer.Write(ctx, input, profile)
}

// SaveLetter upserts the letter for (ownerID, jobID).
func (m *Memory) SaveLetter(ctx context.Context, ownerID, jobID, content string) (*types.GeneratedLetter, error) {
	const op = "save letter"
	if err := requireOwner(op, ownerID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, generation.NewError(generation.KindUpstreamUnavailable, op, ErrNotFound)
	}

	now := m.tick()
	key := letterKey{owner: ownerID, job: jobID}
	if l, ok := m.letters[key]; ok {
		l.Content = content
		l.UpdatedAt = now
		return copyLetter(l), nil
	}
	l := &types.GeneratedLetter{
		ID:        uuid.NewString(),
		JobID:     jobID,
		OwnerID:   ownerID,
		Content:   content,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.letters[key] = l
	return copyLetter(l), nil
}

// FetchJob returns nil, nil for unknown IDs.
func (m *Memory) FetchJob(ctx context.Context, jobID string) (*types.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if job, ok := m.jobs[jobID]; ok {
		return copyJob(job), nil
	}
	return nil, nil
}

// ListJobs returns the owner's jobs, most recently updated first.
func (m *Memory) ListJobs(ctx context.Context, ownerID string, limit int) ([]types.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.JobRecord
	for _, job := range m.jobs {
		if job.OwnerID == ownerID {
			out = append(out, *job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// GetJob returns ErrNotFound for jobs of other owners.
func (m *Memory) GetJob(ctx context.Context, ownerID, jobID string) (*types.JobRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return copyJob(job), nil
}

// DeleteJob removes a job and its letter.
func (m *Memory) DeleteJob(ctx context.Context, ownerID, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(m.jobs, jobID)
	delete(m.letters, letterKey{owner: ownerID, job: jobID})
	return nil
}

// LetterForJob returns the letter of a job, or nil when none exists.
func (m *Memory) LetterForJob(ctx context.Context, ownerID, jobID string) (*types.GeneratedLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.letters[letterKey{owner: ownerID, job: jobID}]; ok {
		return copyLetter(l), nil
	}
	return nil, nil
}

// UpdateLetter replaces the content of an existing letter.
func (m *Memory) UpdateLetter(ctx context.Context, ownerID, letterID, content string) (*types.GeneratedLetter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, l := range m.letters {
		if l.ID == letterID && l.OwnerID == ownerID {
			l.Content = content
			l.UpdatedAt = m.tick()
			return copyLetter(l), nil
		}
	}
	return nil, ErrNotFound
}

// SaveProfile creates or replaces the owner's profile.
func (m *Memory) SaveProfile(ctx context.Context, profile *types.ApplicantProfile) (*types.ApplicantProfile, error) {
	if err := requireOwner("save profile", profile.OwnerID); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *profile
	c.Skills = append([]string(nil), profile.Skills...)
	c.UpdatedAt = m.tick()
	m.profiles[c.OwnerID] = &c
	out := c
	return &out, nil
}
