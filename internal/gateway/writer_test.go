package gateway

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	generativeai "github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/llm"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

type fakeLLM struct {
	text   string
	err    error
	delay  time.Duration
	prompt string
}

func (f *fakeLLM) GenerateContent(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	f.prompt = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.text, f.err
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return "", errors.New("not used")
}
func (f *fakeLLM) GetModel(tier llm.ModelTier) string { return "fake" }
func (f *fakeLLM) Close() error                       { return nil }

func TestLLMWriter_Success(t *testing.T) {
	client := &fakeLLM{text: "Her er din ansøgning:\nKære Mette\n\nJeg søger..."}
	w := NewLLMWriter(client, time.Second)

	in := testJob()
	in.ContactPerson = types.StringPtr("Mette")
	text, err := w.Write(context.Background(), in, &types.ApplicantProfile{Name: "Jane Doe", Skills: []string{"SEO", "Ads"}})
	require.NoError(t, err)
	assert.Equal(t, "Kære Mette\n\nJeg søger...", text)

	assert.Contains(t, client.prompt, "Stilling: Marketing Manager")
	assert.Contains(t, client.prompt, "Kontaktperson: Mette")
	assert.Contains(t, client.prompt, "Kompetencer: SEO, Ads")
	assert.NotContains(t, client.prompt, "pladsholdere")
}

func TestLLMWriter_EmptyProfileAddsPlaceholderHint(t *testing.T) {
	client := &fakeLLM{text: "Kære rekrutteringsansvarlige"}
	_, err := NewLLMWriter(client, time.Second).Write(context.Background(), testJob(), nil)
	require.NoError(t, err)
	assert.Contains(t, client.prompt, "pladsholdere")
	assert.Contains(t, client.prompt, "Kontaktperson: ikke oplyst")
}

func TestLLMWriter_ErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		client *fakeLLM
		want   generation.ErrorKind
	}{
		{"empty text", &fakeLLM{text: "   "}, generation.KindGenerationRejected},
		{"refusal", &fakeLLM{text: "Som en AI kan jeg ikke skrive ansøgninger på vegne af andre."}, generation.KindGenerationRejected},
		{"empty response", &fakeLLM{err: llm.ErrEmptyResponse}, generation.KindGenerationRejected},
		{"blocked", &fakeLLM{err: &generativeai.BlockedError{}}, generation.KindGenerationRejected},
		{"bad request", &fakeLLM{err: &googleapi.Error{Code: 400}}, generation.KindGenerationRejected},
		{"unauthorized", &fakeLLM{err: &googleapi.Error{Code: 403}}, generation.KindSecurityFlagged},
		{"unavailable", &fakeLLM{err: &googleapi.Error{Code: 503}}, generation.KindUpstreamUnavailable},
		{"network", &fakeLLM{err: &net.OpError{Op: "dial", Err: errors.New("refused")}}, generation.KindNetwork},
		{"call timeout", &fakeLLM{delay: time.Second}, generation.KindGenerationTimeout},
		{"other", &fakeLLM{err: errors.New("boom")}, generation.KindUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewLLMWriter(tt.client, 20*time.Millisecond)
			_, err := w.Write(context.Background(), testJob(), nil)
			require.Error(t, err)
			assert.Equal(t, tt.want, generation.KindOf(err))
		})
	}
}

func TestFindPhrases(t *testing.T) {
	phrases := []string{"som en AI", "  ", "Som en ai", "jeg kan ikke hjælpe med"}

	assert.Nil(t, findPhrases("Kære Lars, hermed min ansøgning.", phrases))
	assert.Equal(t, []string{"som en AI"}, findPhrases("SOM EN AI kan jeg ikke...", phrases))
	assert.Equal(t, []string{"som en AI", "jeg kan ikke hjælpe med"},
		findPhrases("Som en AI: jeg kan ikke hjælpe med det.", phrases))
}

func TestLLMWriter_ParentCancelIsNotTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLLMWriter(&fakeLLM{delay: time.Second}, time.Second).Write(ctx, testJob(), nil)
	require.Error(t, err)
	assert.NotEqual(t, generation.KindGenerationTimeout, generation.KindOf(err))
}

func TestTemplateWriter(t *testing.T) {
	in := testJob()
	in.ContactPerson = types.StringPtr("Mette")
	text, err := TemplateWriter{}.Write(context.Background(), in, &types.ApplicantProfile{Name: "Jane Doe", Experience: "5 år", Skills: []string{"SEO"}})
	require.NoError(t, err)
	assert.Contains(t, text, "Kære Mette")
	assert.Contains(t, text, "Marketing Manager hos Acme A/S")
	assert.Contains(t, text, "SEO")
	assert.Contains(t, text, "Jane Doe")

	text, err = TemplateWriter{}.Write(context.Background(), testJob(), nil)
	require.NoError(t, err)
	assert.Contains(t, text, "Kære rekrutteringsansvarlige")
	assert.Contains(t, text, "[dit navn]")
}

func TestStoreError(t *testing.T) {
	assert.Nil(t, storeError("op", nil))

	tagged := generation.NewError(generation.KindNetwork, "x", nil)
	assert.Same(t, tagged, storeError("op", tagged))

	tests := []struct {
		name string
		err  error
		want generation.ErrorKind
	}{
		{"not null", &pgconn.PgError{Code: "23502", ColumnName: "company"}, generation.KindValidationRejected},
		{"bad date", &pgconn.PgError{Code: "22007"}, generation.KindValidationRejected},
		{"privilege", &pgconn.PgError{Code: "42501"}, generation.KindSecurityFlagged},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, generation.KindNetwork},
		{"net", &net.OpError{Op: "dial", Err: errors.New("refused")}, generation.KindNetwork},
		{"other", errors.New("boom"), generation.KindUpstreamUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, generation.KindOf(storeError("op", tt.err)))
		})
	}
}

func TestStoreError_ClassifiesAsNetworkTitle(t *testing.T) {
	err := storeError("save job", &net.OpError{Op: "dial", Err: errors.New("connection refused")})
	ce := generation.NewClassifier(0).Classify(err, "job-save", 0)
	assert.Equal(t, "Netværksfejl", ce.Title)
	assert.True(t, ce.Recoverable)
}
