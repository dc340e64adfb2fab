package generation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonathan/cover-letter-studio/internal/types"
)

// fakeGateway is an in-memory Gateway whose steps can be overridden.
type fakeGateway struct {
	FetchProfileFunc func(ctx context.Context, ownerID string) (*types.ApplicantProfile, error)
	SaveJobFunc      func(ctx context.Context, input types.JobInput, ownerID, existingJobID string) (string, error)
	GenerateFunc     func(ctx context.Context, input types.JobInput, profile *types.ApplicantProfile) (string, error)
	SaveLetterFunc   func(ctx context.Context, ownerID, jobID, content string) (*types.GeneratedLetter, error)
	FetchJobFunc     func(ctx context.Context, jobID string) (*types.JobRecord, error)

	saveJobCalls    atomic.Int32
	profileCalls    atomic.Int32
	generateCalls   atomic.Int32
	saveLetterCalls atomic.Int32
	fetchJobCalls   atomic.Int32

	mu      sync.Mutex
	nextID  int
	jobs    map[string]*types.JobRecord
	letters map[string]*types.GeneratedLetter
	clock   time.Time
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		jobs:    make(map[string]*types.JobRecord),
		letters: make(map[string]*types.GeneratedLetter),
		clock:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (g *fakeGateway) tick() time.Time {
	g.clock = g.clock.Add(time.Second)
	return g.clock
}

func (g *fakeGateway) FetchProfile(ctx context.Context, ownerID string) (*types.ApplicantProfile, error) {
	g.profileCalls.Add(1)
	if g.FetchProfileFunc != nil {
		return g.FetchProfileFunc(ctx, ownerID)
	}
	return &types.ApplicantProfile{OwnerID: ownerID, Name: "Jane Doe", Email: "jane@x.dk"}, nil
}

func (g *fakeGateway) SaveJob(ctx context.Context, input types.JobInput, ownerID, existingJobID string) (string, error) {
	g.saveJobCalls.Add(1)
	if g.SaveJobFunc != nil {
		return g.SaveJobFunc(ctx, input, ownerID, existingJobID)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.tick()
	if existingJobID != "" {
		job, ok := g.jobs[existingJobID]
		if !ok {
			return "", &Error{Kind: KindValidationRejected, Op: "save job", Message: "unknown job"}
		}
		updated := types.RecordFromInput(input, existingJobID, ownerID)
		updated.CreatedAt = job.CreatedAt
		updated.UpdatedAt = now
		g.jobs[existingJobID] = updated
		return existingJobID, nil
	}
	g.nextID++
	id := fmt.Sprintf("j%d", g.nextID)
	rec := types.RecordFromInput(input, id, ownerID)
	rec.CreatedAt, rec.UpdatedAt = now, now
	g.jobs[id] = rec
	return id, nil
}

func (g *fakeGateway) GenerateLetterContent(ctx context.Context, input types.JobInput, profile *types.ApplicantProfile) (string, error) {
	g.generateCalls.Add(1)
	if g.GenerateFunc != nil {
		return g.GenerateFunc(ctx, input, profile)
	}
	return fmt.Sprintf("Kære %s\n\nJeg søger stillingen som %s.\n\nVenlig hilsen\n%s", input.Company, input.Title, profile.Name), nil
}

func (g *fakeGateway) SaveLetter(ctx context.Context, ownerID, jobID, content string) (*types.GeneratedLetter, error) {
	g.saveLetterCalls.Add(1)
	if g.SaveLetterFunc != nil {
		return g.SaveLetterFunc(ctx, ownerID, jobID, content)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.tick()
	key := ownerID + "/" + jobID
	if l, ok := g.letters[key]; ok {
		l.Content = content
		l.UpdatedAt = now
		cp := *l
		return &cp, nil
	}
	l := &types.GeneratedLetter{ID: "l-" + jobID, JobID: jobID, OwnerID: ownerID, Content: content, CreatedAt: now, UpdatedAt: now}
	g.letters[key] = l
	cp := *l
	return &cp, nil
}

func (g *fakeGateway) FetchJob(ctx context.Context, jobID string) (*types.JobRecord, error) {
	g.fetchJobCalls.Add(1)
	if g.FetchJobFunc != nil {
		return g.FetchJobFunc(ctx, jobID)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	job, ok := g.jobs[jobID]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (g *fakeGateway) jobCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.jobs)
}

func (g *fakeGateway) letterCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.letters)
}
