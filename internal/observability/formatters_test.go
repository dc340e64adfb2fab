package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/ingestion"
	"github.com/jonathan/cover-letter-studio/internal/progress"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

func TestPrintProgress(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	p.PrintProgress(progress.Update{Progress: 50, Message: "Genererer ansøgning..."})

	out := buf.String()
	assert.Contains(t, out, " 50%")
	assert.Contains(t, out, "Genererer ansøgning...")
	assert.Equal(t, 10, strings.Count(out, "█"))
	assert.Equal(t, 10, strings.Count(out, "░"))
}

func TestPrintJob(t *testing.T) {
	var buf bytes.Buffer
	p := NewPrinter(&buf)

	deadline := types.Date{Time: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}
	p.PrintJob(&types.JobRecord{
		ID:            "job-1",
		Title:         "Marketing Manager",
		Company:       "Acme A/S",
		Description:   strings.Repeat("Vi søger en erfaren kollega. ", 20),
		ContactPerson: types.StringPtr("Lars Jensen"),
		Deadline:      &deadline,
	})

	out := buf.String()
	assert.Contains(t, out, "JOB")
	assert.Contains(t, out, "job-1")
	assert.Contains(t, out, "Acme A/S")
	assert.Contains(t, out, "Lars Jensen")
	assert.Contains(t, out, "2026-11-01")
	assert.Contains(t, out, "linjer mere")
}

func TestPrintJob_Nil(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintJob(nil)
	assert.Empty(t, buf.String())
}

func TestPrintBox_AlignsMultibyteText(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).printBox("ÆØÅ", "blåbærgrød\nkort")

	for _, line := range strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n") {
		assert.Equal(t, boxWidth, utf8.RuneCountInString(line), line)
	}
}

func TestPrintLetter(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintLetter(&types.GeneratedLetter{
		ID:        "letter-1",
		Content:   "Kære Lars\n\nHermed min ansøgning.",
		UpdatedAt: time.Now(),
	})

	out := buf.String()
	assert.Contains(t, out, "Kære Lars\n\nHermed min ansøgning.")
	assert.Contains(t, out, "letter-1")
}

func TestPrintFailure(t *testing.T) {
	t.Run("classified", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf).PrintFailure(&generation.ClassifiedError{
			Kind:        generation.KindValidationRejected,
			Title:       "Ugyldige oplysninger",
			Description: "Udfyld venligst: Stillingsbetegnelse.",
			Fields:      []string{"title"},
			Phase:       progress.PhaseJobSave,
		})
		out := buf.String()
		assert.Contains(t, out, "UGYLDIGE OPLYSNINGER")
		assert.Contains(t, out, "Stillingsbetegnelse")
		assert.Contains(t, out, "Felter: title")
		assert.NotContains(t, out, "prøve igen")
	})

	t.Run("recoverable", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf).PrintFailure(&generation.ClassifiedError{
			Kind: generation.KindNetwork, Title: "Netværksfejl", Description: "Tjek din forbindelse.", Recoverable: true, JobID: "job-9",
		})
		assert.Contains(t, buf.String(), "Du kan prøve igen.")
		assert.Contains(t, buf.String(), "job-9")
	})

	t.Run("silent", func(t *testing.T) {
		var buf bytes.Buffer
		NewPrinter(&buf).PrintFailure(&generation.ClassifiedError{Kind: generation.KindCancelled, Silent: true})
		assert.Equal(t, "Generering afbrudt.\n", buf.String())
	})
}

func TestPrintDraft(t *testing.T) {
	var buf bytes.Buffer
	NewPrinter(&buf).PrintDraft(&ingestion.Draft{
		Job: types.JobInput{Title: "Udvikler", Company: "Firma ApS", Description: "Go og Postgres"},
		Metadata: &ingestion.Metadata{
			Platform:   "jobindex",
			Extractor:  "heuristic",
			Rendered:   true,
			Incomplete: []string{"deadline"},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "IMPORTERET JOBOPSLAG")
	assert.Contains(t, out, "jobindex")
	assert.Contains(t, out, "heuristic (browser)")
	assert.Contains(t, out, "Mangler:  deadline")
}

func TestWrap(t *testing.T) {
	got := wrap("en to tre fire fem", 7)
	assert.Equal(t, "en to\ntre\nfire\nfem", got)
	assert.Equal(t, "", wrap("", 10))
}
