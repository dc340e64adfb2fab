package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cover-letter-studio/internal/config"
	"github.com/jonathan/cover-letter-studio/internal/db"
	"github.com/jonathan/cover-letter-studio/internal/gateway"
	"github.com/jonathan/cover-letter-studio/internal/server/ratelimit"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

const testSecret = "test-secret-key-for-jwt-signing-minimum-32-bytes"

// fakeUsers is an in-memory DBClient.
type fakeUsers struct {
	mu      sync.Mutex
	byID    map[uuid.UUID]*db.User
	failSet bool
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byID: make(map[uuid.UUID]*db.User)}
}

func (f *fakeUsers) CheckEmailExists(_ context.Context, email string) (bool, error) {
	u, _ := f.GetUserByEmail(context.Background(), email)
	return u != nil, nil
}

func (f *fakeUsers) CreateUser(_ context.Context, name, email, phone string) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := uuid.New()
	now := time.Now()
	f.byID[id] = &db.User{ID: id, Name: name, Email: strings.ToLower(email), Phone: phone, CreatedAt: now, UpdatedAt: now}
	return id, nil
}

func (f *fakeUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("disk full")
	}
	u, ok := f.byID[id]
	if !ok {
		return db.ErrNotFound
	}
	u.PasswordHash, u.PasswordSet = hash, true
	return nil
}

func (f *fakeUsers) GetUser(_ context.Context, id uuid.UUID) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeUsers) GetUserByEmail(_ context.Context, email string) (*db.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range f.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) DeleteUser(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byID, id)
	return nil
}

// gatedWriter blocks until release is closed or the run is aborted.
type gatedWriter struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedWriter() *gatedWriter {
	return &gatedWriter{started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedWriter) Write(ctx context.Context, input types.JobInput, _ *types.ApplicantProfile) (string, error) {
	g.once.Do(func() { close(g.started) })
	select {
	case <-g.release:
		return "Kære " + input.Company, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type pingFunc func(ctx context.Context) error

func (p pingFunc) Ping(ctx context.Context) error { return p(ctx) }

type testServer struct {
	*Server
	t     *testing.T
	repo  *gateway.Memory
	users *fakeUsers
}

func testConfig() Config {
	return Config{
		Port:      0,
		Deadline:  5 * time.Second,
		JWT:       &config.JWTConfig{Secret: testSecret, ExpirationHours: 1, Issuer: "cover-letter-studio"},
		Password:  &config.PasswordConfig{BcryptCost: 10},
		RateLimit: &ratelimit.Config{Enabled: false},
	}
}

func newTestServer(t *testing.T, writer gateway.Writer, mutate ...func(*Config, *Deps)) *testServer {
	t.Helper()
	repo := gateway.NewMemory(writer)
	users := newFakeUsers()
	cfg := testConfig()
	deps := Deps{Repository: repo, Users: users}
	for _, m := range mutate {
		m(&cfg, &deps)
	}
	s, err := New(cfg, deps)
	require.NoError(t, err)
	t.Cleanup(s.rateLimiter.Stop)
	return &testServer{Server: s, t: t, repo: repo, users: users}
}

// do sends a request through the full middleware chain.
func (ts *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	ts.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.Handler().ServeHTTP(w, req)
	return w
}

// register creates an account and returns its id and token.
func (ts *testServer) register(email string) (uuid.UUID, string) {
	ts.t.Helper()
	w := ts.do(http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Mette Hansen", "email": email, "password": "hemmeligt-123",
	})
	require.Equal(ts.t, http.StatusCreated, w.Code, w.Body.String())
	var resp types.LoginResponse
	require.NoError(ts.t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.User.ID, resp.Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func testJob() types.JobInput {
	return types.JobInput{
		Title:         "Marketing Manager",
		Company:       "Acme A/S",
		Description:   "Vi søger en marketing manager til vores team i København.",
		ContactPerson: types.StringPtr("Lars Jensen"),
	}
}
