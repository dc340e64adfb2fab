package generation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cover-letter-studio/internal/progress"
)

func TestClassify_Rules(t *testing.T) {
	c := NewClassifier(60 * time.Second)

	tests := []struct {
		name        string
		err         error
		phase       progress.Phase
		elapsed     time.Duration
		wantKind    ErrorKind
		wantTitle   string
		recoverable bool
		security    bool
		silent      bool
	}{
		{
			name:     "superseded is silent",
			err:      ErrSuperseded,
			phase:    progress.PhaseGeneration,
			wantKind: KindCancelled,
			silent:   true,
		},
		{
			name:     "caller cancellation is silent",
			err:      fmt.Errorf("wrapped: %w", context.Canceled),
			wantKind: KindCancelled,
			silent:   true,
		},
		{
			name:        "elapsed past deadline is a timeout",
			err:         errors.New("anything"),
			phase:       progress.PhaseGeneration,
			elapsed:     61 * time.Second,
			wantKind:    KindGenerationTimeout,
			wantTitle:   "Tidsgrænse overskredet",
			recoverable: true,
		},
		{
			name:        "deadline sentinel is a timeout",
			err:         ErrDeadlineExceeded,
			wantKind:    KindGenerationTimeout,
			wantTitle:   "Tidsgrænse overskredet",
			recoverable: true,
		},
		{
			name:        "tagged timeout",
			err:         &Error{Kind: KindGenerationTimeout, Op: "generate letter"},
			wantKind:    KindGenerationTimeout,
			wantTitle:   "Tidsgrænse overskredet",
			recoverable: true,
		},
		{
			name:        "security keywords",
			err:         errors.New("possible SQL injection detected in payload"),
			phase:       progress.PhaseJobSave,
			wantKind:    KindSecurityFlagged,
			wantTitle:   "Sikkerhedsfejl",
			recoverable: true,
			security:    true,
		},
		{
			name:        "forged request marker",
			err:         errors.New("CSRF token mismatch"),
			wantKind:    KindSecurityFlagged,
			wantTitle:   "Sikkerhedsfejl",
			recoverable: true,
			security:    true,
		},
		{
			name:        "offline keyword",
			err:         errors.New("TypeError: Failed to fetch"),
			phase:       progress.PhaseUserFetch,
			wantKind:    KindNetwork,
			wantTitle:   "Netværksfejl",
			recoverable: true,
		},
		{
			name:        "net.Error",
			err:         &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")},
			wantKind:    KindNetwork,
			wantTitle:   "Netværksfejl",
			recoverable: true,
		},
		{
			name:        "upstream unavailable kind",
			err:         &Error{Kind: KindUpstreamUnavailable, Op: "fetch profile", Message: "pool closed"},
			phase:       progress.PhaseUserFetch,
			wantKind:    KindNetwork,
			wantTitle:   "Netværksfejl",
			recoverable: true,
		},
		{
			name:      "validation is fatal",
			err:       &Error{Kind: KindValidationRejected, Fields: []string{"title"}},
			phase:     progress.PhaseJobSave,
			wantKind:  KindValidationRejected,
			wantTitle: "Manglende oplysninger",
		},
		{
			name:        "generation rejected",
			err:         &Error{Kind: KindGenerationRejected, Message: "empty content"},
			phase:       progress.PhaseGeneration,
			wantKind:    KindGenerationRejected,
			wantTitle:   "Fejl ved generering",
			recoverable: true,
		},
		{
			name:        "job-save phase title",
			err:         errors.New("duplicate something"),
			phase:       progress.PhaseJobSave,
			wantKind:    KindUnknown,
			wantTitle:   "Fejl ved gemning af job",
			recoverable: true,
		},
		{
			name:        "user-fetch phase title",
			err:         errors.New("boom"),
			phase:       progress.PhaseUserFetch,
			wantTitle:   "Fejl ved hentning af profil",
			recoverable: true,
		},
		{
			name:        "generation phase title",
			err:         errors.New("boom"),
			phase:       progress.PhaseGeneration,
			wantTitle:   "Fejl ved generering",
			recoverable: true,
		},
		{
			name:        "letter-save phase title",
			err:         errors.New("boom"),
			phase:       progress.PhaseLetterSave,
			wantTitle:   "Fejl ved gemning",
			recoverable: true,
		},
		{
			name:        "unknown",
			err:         errors.New("boom"),
			wantKind:    KindUnknown,
			wantTitle:   "Ukendt fejl",
			recoverable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.err, tt.phase, tt.elapsed)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.Equal(t, tt.silent, got.Silent)
			if tt.silent {
				return
			}
			assert.Equal(t, tt.wantTitle, got.Title)
			assert.Equal(t, tt.recoverable, got.Recoverable)
			assert.Equal(t, tt.security, got.IsSecurity)
			assert.Equal(t, tt.phase, got.Phase)
			assert.NotEmpty(t, got.Description)
		})
	}
}

func TestClassify_NilError(t *testing.T) {
	assert.Nil(t, NewClassifier(0).Classify(nil, progress.PhaseNone, 0))
}

func TestClassify_SecurityNeverLeaksCause(t *testing.T) {
	c := NewClassifier(time.Minute)
	raw := `xss attempt: <script>alert("secret-token-123")</script>`

	got := c.Classify(errors.New(raw), progress.PhaseJobSave, 0)

	assert.True(t, got.IsSecurity)
	assert.NotContains(t, got.Description, "secret-token-123")
	assert.NotContains(t, got.Description, "script")
}

func TestClassify_UnknownDescriptionIsSanitized(t *testing.T) {
	c := NewClassifier(time.Minute)

	got := c.Classify(errors.New(`bad value <b>bold</b><img src=x>`), progress.PhaseNone, 0)

	assert.Equal(t, "Ukendt fejl", got.Title)
	assert.Contains(t, got.Description, "bad value")
	assert.Contains(t, got.Description, "bold")
	assert.NotContains(t, got.Description, "<b>")
	assert.NotContains(t, got.Description, "<img")
}

func TestClassify_PhaseDescriptionIsSanitized(t *testing.T) {
	c := NewClassifier(time.Minute)

	got := c.Classify(&Error{Kind: KindUnknown, Message: "<iframe src=evil></iframe>row rejected"}, progress.PhaseLetterSave, 0)

	assert.Equal(t, "Fejl ved gemning", got.Title)
	assert.NotContains(t, got.Description, "iframe")
	assert.Contains(t, got.Description, "row rejected")
}

func TestClassify_EmptyMessageUsesDefault(t *testing.T) {
	c := NewClassifier(time.Minute)

	got := c.Classify(errors.New("<br>"), progress.PhaseNone, 0)
	assert.Equal(t, descUnknown, got.Description)
}

func TestClassify_LongDescriptionIsTruncated(t *testing.T) {
	c := NewClassifier(time.Minute)

	got := c.Classify(errors.New(strings.Repeat("ø", 1000)), progress.PhaseNone, 0)
	assert.Equal(t, maxDescriptionRunes, len([]rune(got.Description)))
}

func TestClassify_ValidationFieldGuidance(t *testing.T) {
	c := NewClassifier(time.Minute)

	got := c.Classify(&Error{Kind: KindValidationRejected, Fields: []string{"title", "description"}}, progress.PhaseNone, 0)

	assert.False(t, got.Recoverable)
	assert.Equal(t, []string{"title", "description"}, got.Fields)
	assert.Equal(t, "Udfyld venligst: titel, beskrivelse.", got.Description)
}

func TestClassify_AlreadyClassifiedPassesThrough(t *testing.T) {
	c := NewClassifier(time.Minute)
	first := c.Classify(errors.New("boom"), progress.PhaseGeneration, 0)

	again := c.Classify(fmt.Errorf("wrap: %w", first), progress.PhaseNone, 0)
	assert.Same(t, first, again)
}

func TestClassifiedError_KeepsCauseForLogs(t *testing.T) {
	c := NewClassifier(time.Minute)
	cause := &Error{Kind: KindUpstreamUnavailable, Op: "save job", Cause: errors.New("dial tcp: refused")}

	got := c.Classify(cause, progress.PhaseJobSave, 0)

	assert.ErrorIs(t, got, cause)
	assert.Equal(t, KindUpstreamUnavailable, KindOf(got))
	assert.Contains(t, got.Error(), "Netværksfejl")
}

func TestErrorKind_String(t *testing.T) {
	assert.Equal(t, "validation_rejected", KindValidationRejected.String())
	assert.Equal(t, "network_error", KindNetwork.String())
	assert.Equal(t, "unknown_error", ErrorKind(99).String())

	text, err := KindSecurityFlagged.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "security_flagged", string(text))
}

func TestError_Message(t *testing.T) {
	assert.Equal(t, "save job: boom", NewError(KindUnknown, "save job", errors.New("boom")).Error())
	assert.Equal(t, "plain", (&Error{Message: "plain"}).Error())
}
