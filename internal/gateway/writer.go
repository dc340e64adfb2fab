package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/llm"
	"github.com/jonathan/cover-letter-studio/internal/prompts"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

const promptFile = "letters.json"

// DefaultCallTimeout bounds one model call. It is shorter than the run
// deadline so a slow model surfaces as a generation timeout.
const DefaultCallTimeout = 45 * time.Second

// Writer produces letter text for a job and an applicant.
type Writer interface {
	Write(ctx context.Context, input types.JobInput, profile *types.ApplicantProfile) (string, error)
}

// LLMWriter writes letters with a language model.
type LLMWriter struct {
	Client      llm.Client
	Tier        llm.ModelTier
	CallTimeout time.Duration
}

// NewLLMWriter returns a writer using the standard tier.
func NewLLMWriter(client llm.Client, callTimeout time.Duration) *LLMWriter {
	if callTimeout <= 0 {
		callTimeout = DefaultCallTimeout
	}
	return &LLMWriter{Client: client, Tier: llm.TierStandard, CallTimeout: callTimeout}
}

// Write renders the prompt and calls the model once. Failures are tagged
// generation errors.
func (w *LLMWriter) Write(ctx context.Context, input types.JobInput, profile *types.ApplicantProfile) (string, error) {
	prompt, err := BuildPrompt(input, profile)
	if err != nil {
		return "", generation.NewError(generation.KindUnknown, "build prompt", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, w.CallTimeout)
	defer cancel()

	text, err := w.Client.GenerateContent(callCtx, prompt, w.Tier)
	if err != nil {
		return "", writerError(ctx, callCtx, err)
	}
	text = llm.CleanLetterText(text)
	if text == "" {
		return "", writerError(ctx, callCtx, llm.ErrEmptyResponse)
	}
	if found := findPhrases(text, refusalPhrases); len(found) > 0 {
		e := generation.NewError(generation.KindGenerationRejected, "generate letter", nil)
		e.Message = "model declined: " + strings.Join(found, ", ")
		return "", e
	}
	return text, nil
}

// refusalPhrases mark a reply that talks about the request instead of
// being a letter.
var refusalPhrases = []string{
	"som en ai",
	"som en sprogmodel",
	"jeg kan ikke hjælpe med",
	"jeg kan desværre ikke skrive",
	"as an ai language model",
	"i can't help with",
	"i cannot help with",
}

// findPhrases returns each phrase that occurs in text, ignoring case.
// Returns nil when none do.
func findPhrases(text string, phrases []string) []string {
	lower := strings.ToLower(text)
	var found []string
	seen := make(map[string]bool)
	for _, phrase := range phrases {
		p := strings.ToLower(strings.TrimSpace(phrase))
		if p == "" || seen[p] {
			continue
		}
		if strings.Contains(lower, p) {
			found = append(found, phrase)
			seen[p] = true
		}
	}
	return found
}

// BuildPrompt renders the cover letter prompt for input and profile.
func BuildPrompt(input types.JobInput, profile *types.ApplicantProfile) (string, error) {
	prompt, err := prompts.Render(promptFile, "cover-letter", promptData(input, profile))
	if err != nil {
		return "", err
	}
	if profile.IsEmpty() {
		extra, err := prompts.Get(promptFile, "cover-letter-no-profile")
		if err != nil {
			return "", err
		}
		prompt += "\n\n" + extra
	}
	return prompt, nil
}

// SystemInstruction is the instruction the model clients are configured with.
func SystemInstruction() string {
	return prompts.MustGet(promptFile, "system")
}

func promptData(input types.JobInput, profile *types.ApplicantProfile) map[string]string {
	input = input.Normalize()
	if profile == nil {
		profile = &types.ApplicantProfile{}
	}
	deadline := "ikke oplyst"
	if input.Deadline != nil {
		deadline = input.Deadline.String()
	}
	return map[string]string{
		"Title":         input.Title,
		"Company":       input.Company,
		"Description":   input.Description,
		"ContactPerson": orNone(input.ContactPerson),
		"Deadline":      deadline,
		"Name":          profile.Name,
		"Email":         profile.Email,
		"Phone":         profile.Phone,
		"Address":       profile.Address,
		"Experience":    profile.Experience,
		"Education":     profile.Education,
		"Skills":        strings.Join(profile.Skills, ", "),
	}
}

func orNone(s *string) string {
	if s == nil {
		return "ikke oplyst"
	}
	return *s
}

// TemplateWriter builds a plain letter without a model. It is used for
// offline runs.
type TemplateWriter struct{}

// Write fills the offline letter template.
func (TemplateWriter) Write(ctx context.Context, input types.JobInput, profile *types.ApplicantProfile) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	input = input.Normalize()
	greeting := "Kære rekrutteringsansvarlige"
	if input.ContactPerson != nil {
		greeting = "Kære " + *input.ContactPerson
	}
	name := "[dit navn]"
	pitch := "[Beskriv kort din erfaring, og hvorfor du passer til stillingen.]"
	if !profile.IsEmpty() {
		if profile.Name != "" {
			name = profile.Name
		}
		if profile.Experience != "" {
			pitch = "Min erfaring: " + profile.Experience
		}
		if len(profile.Skills) > 0 {
			pitch += "\n\nMine kompetencer omfatter " + strings.Join(profile.Skills, ", ") + "."
		}
	}
	return prompts.Render(promptFile, "offline-letter", map[string]string{
		"Greeting": greeting,
		"Title":    input.Title,
		"Company":  input.Company,
		"Pitch":    pitch,
		"Name":     name,
	})
}
