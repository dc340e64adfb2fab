package generation

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/jonathan/cover-letter-studio/internal/progress"
)

// DefaultDeadline is the whole-run deadline used when none is configured.
const DefaultDeadline = 60 * time.Second

const maxDescriptionRunes = 300

// User-facing texts.
const (
	titleTimeout    = "Tidsgrænse overskredet"
	titleSecurity   = "Sikkerhedsfejl"
	titleNetwork    = "Netværksfejl"
	titleValidation = "Manglende oplysninger"
	titleGeneration = "Fejl ved generering"
	titleUnknown    = "Ukendt fejl"

	descTimeout      = "Genereringen tog for lang tid. Prøv igen."
	descSecurity     = "Der opstod en fejl under behandlingen af din anmodning. Prøv igen."
	descNetwork      = "Kunne ikke oprette forbindelse til serveren. Tjek din internetforbindelse og prøv igen."
	descValidation   = "Oplysningerne blev afvist. Kontrollér felterne og prøv igen."
	descEmptyLetter  = "AI-tjenesten returnerede ikke noget brugbart indhold. Prøv igen."
	descUnknown      = "Der opstod en uventet fejl. Prøv igen."
	descFieldsPrefix = "Udfyld venligst: "
)

var phaseTitles = map[progress.Phase]string{
	progress.PhaseJobSave:    "Fejl ved gemning af job",
	progress.PhaseUserFetch:  "Fejl ved hentning af profil",
	progress.PhaseGeneration: "Fejl ved generering",
	progress.PhaseLetterSave: "Fejl ved gemning",
}

var fieldLabels = map[string]string{
	"title":          "titel",
	"company":        "virksomhed",
	"description":    "beskrivelse",
	"owner":          "bruger",
	"job_id":         "jobopslag",
	"contact_person": "kontaktperson",
	"url":            "link",
	"deadline":       "ansøgningsfrist",
}

var securityKeywords = []string{
	"injection",
	"xss",
	"cross-site",
	"cross site",
	"csrf",
	"xsrf",
	"forged",
	"forgery",
	"<script",
	"javascript:",
	"onerror=",
}

var networkKeywords = []string{
	"network",
	"failed to fetch",
	"connection refused",
	"connection reset",
	"no such host",
	"offline",
	"unreachable",
	"dial tcp",
	"broken pipe",
}

// ClassifiedError is the only error shape the orchestrator returns.
// Cause is kept for logs and never serialized.
type ClassifiedError struct {
	Kind        ErrorKind      `json:"kind"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Recoverable bool           `json:"recoverable"`
	IsSecurity  bool           `json:"is_security"`
	Phase       progress.Phase `json:"phase,omitempty"`
	Fields      []string       `json:"fields,omitempty"`
	JobID       string         `json:"job_id,omitempty"`
	// Silent marks cancelled or superseded attempts; callers should not show it.
	Silent bool  `json:"-"`
	Cause  error `json:"-"`
}

func (e *ClassifiedError) Error() string {
	return e.Title + ": " + e.Description
}

func (e *ClassifiedError) Unwrap() error {
	return e.Cause
}

// Classifier maps raw failures to user-facing errors.
type Classifier struct {
	deadline time.Duration
	policy   *bluemonday.Policy
}

// NewClassifier creates a classifier for runs with the given deadline.
func NewClassifier(deadline time.Duration) *Classifier {
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	return &Classifier{
		deadline: deadline,
		policy:   bluemonday.StrictPolicy(),
	}
}

// Classify applies the rules in priority order: cancellation, timeout,
// security, connectivity, typed kinds, phase tag, unknown.
func (c *Classifier) Classify(err error, phase progress.Phase, elapsed time.Duration) *ClassifiedError {
	if err == nil {
		return nil
	}

	var already *ClassifiedError
	if errors.As(err, &already) {
		return already
	}

	out := &ClassifiedError{Phase: phase, Recoverable: true, Cause: err}
	msg := rawMessage(err)
	lower := strings.ToLower(err.Error())
	kind := KindOf(err)

	switch {
	case isCancellation(err, kind):
		out.Kind = KindCancelled
		out.Silent = true
		out.Title = ""
		out.Description = ""
		return out

	case elapsed >= c.deadline || isTimeout(err, kind):
		out.Kind = KindGenerationTimeout
		out.Title = titleTimeout
		out.Description = descTimeout

	case kind == KindSecurityFlagged || containsAny(lower, securityKeywords):
		out.Kind = KindSecurityFlagged
		out.IsSecurity = true
		out.Title = titleSecurity
		out.Description = descSecurity

	case kind == KindUpstreamUnavailable || kind == KindNetwork || isNetwork(err, lower):
		out.Kind = KindNetwork
		out.Title = titleNetwork
		out.Description = descNetwork

	case kind == KindValidationRejected:
		out.Kind = KindValidationRejected
		out.Recoverable = false
		out.Fields = validationFields(err)
		out.Title = titleValidation
		out.Description = c.fieldGuidance(out.Fields, msg)

	case kind == KindGenerationRejected:
		out.Kind = KindGenerationRejected
		out.Title = titleGeneration
		out.Description = descEmptyLetter

	case phaseTitles[phase] != "":
		out.Kind = kind
		out.Title = phaseTitles[phase]
		out.Description = c.orDefault(msg)

	default:
		out.Kind = KindUnknown
		out.Title = titleUnknown
		out.Description = c.orDefault(msg)
	}

	out.Description = c.Sanitize(out.Description)
	return out
}

// Sanitize strips markup from s and caps its length.
func (c *Classifier) Sanitize(s string) string {
	s = strings.TrimSpace(c.policy.Sanitize(s))
	runes := []rune(s)
	if len(runes) > maxDescriptionRunes {
		s = string(runes[:maxDescriptionRunes-1]) + "…"
	}
	return s
}

func (c *Classifier) orDefault(msg string) string {
	if strings.TrimSpace(c.policy.Sanitize(msg)) == "" {
		return descUnknown
	}
	return msg
}

func (c *Classifier) fieldGuidance(fields []string, msg string) string {
	if len(fields) == 0 {
		if strings.TrimSpace(msg) != "" {
			return descValidation + " (" + msg + ")"
		}
		return descValidation
	}
	labels := make([]string, 0, len(fields))
	for _, f := range fields {
		if l, ok := fieldLabels[f]; ok {
			labels = append(labels, l)
		} else {
			labels = append(labels, f)
		}
	}
	return descFieldsPrefix + strings.Join(labels, ", ") + "."
}

func isCancellation(err error, kind ErrorKind) bool {
	if kind == KindCancelled {
		return true
	}
	if errors.Is(err, ErrSuperseded) || errors.Is(err, ErrCancelled) {
		return true
	}
	return errors.Is(err, context.Canceled) && !errors.Is(err, ErrDeadlineExceeded)
}

func isTimeout(err error, kind ErrorKind) bool {
	return kind == KindGenerationTimeout ||
		errors.Is(err, ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded)
}

func isNetwork(err error, lower string) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return containsAny(lower, networkKeywords)
}

func validationFields(err error) []string {
	var e *Error
	if errors.As(err, &e) && len(e.Fields) > 0 {
		return e.Fields
	}
	return nil
}

// rawMessage prefers the message set on a tagged error over the full chain.
func rawMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
