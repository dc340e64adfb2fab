// Package observability formats pipeline output for the command line.
package observability

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/ingestion"
	"github.com/jonathan/cover-letter-studio/internal/progress"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// barWidth is the number of cells in a progress bar
	barWidth = 20
	// maxDescriptionLines is how much of a job description a summary shows
	maxDescriptionLines = 4
)

// Printer handles formatted output for the CLI.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %s │\n", pad(title, boxWidth-4))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(p.out, "│ %s │\n", pad(truncate(line, boxWidth-4), boxWidth-4))
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintProgress writes one line per tracker update.
//
//nolint:errcheck
func (p *Printer) PrintProgress(u progress.Update) {
	filled := u.Progress * barWidth / 100
	bar := strings.Repeat("█", filled) + strings.Repeat("░", barWidth-filled)
	fmt.Fprintf(p.out, "[%s] %3d%%  %s\n", bar, u.Progress, u.Message)
}

// PrintJob outputs a summary of a saved job.
func (p *Printer) PrintJob(job *types.JobRecord) {
	if job == nil {
		return
	}
	p.printBox("JOB", jobSummary(job.Input(), job.ID))
}

// PrintLetter writes the letter text unboxed so it can be copied.
//
//nolint:errcheck
func (p *Printer) PrintLetter(letter *types.GeneratedLetter) {
	if letter == nil {
		return
	}
	fmt.Fprintf(p.out, "\n%s\n%s\n%s\n", strings.Repeat("═", boxWidth), letter.Content, strings.Repeat("═", boxWidth))
	fmt.Fprintf(p.out, "Letter %s (opdateret %s)\n", letter.ID, letter.UpdatedAt.Local().Format("2006-01-02 15:04"))
}

// PrintFailure outputs a classified error as title and description.
// Silent errors print a single cancellation line.
//
//nolint:errcheck
func (p *Printer) PrintFailure(err *generation.ClassifiedError) {
	if err == nil {
		return
	}
	if err.Silent {
		fmt.Fprintln(p.out, "Generering afbrudt.")
		return
	}
	var sb strings.Builder
	sb.WriteString(err.Description)
	if len(err.Fields) > 0 {
		fmt.Fprintf(&sb, "\n\nFelter: %s", strings.Join(err.Fields, ", "))
	}
	if err.Phase != "" {
		fmt.Fprintf(&sb, "\nFase:   %s", err.Phase)
	}
	if err.JobID != "" {
		fmt.Fprintf(&sb, "\nJob:    %s", err.JobID)
	}
	if err.Recoverable {
		sb.WriteString("\n\nDu kan prøve igen.")
	}
	p.printBox(strings.ToUpper(err.Title), wrap(sb.String(), boxWidth-4))
}

// PrintDraft outputs an imported job posting before it is saved.
func (p *Printer) PrintDraft(d *ingestion.Draft) {
	if d == nil {
		return
	}
	var sb strings.Builder
	sb.WriteString(jobSummary(d.Job, ""))
	if m := d.Metadata; m != nil {
		fmt.Fprintf(&sb, "\n\nKilde:    %s", m.Platform)
		fmt.Fprintf(&sb, "\nUdtræk:   %s", m.Extractor)
		if m.Rendered {
			sb.WriteString(" (browser)")
		}
		if len(m.Incomplete) > 0 {
			fmt.Fprintf(&sb, "\nMangler:  %s", strings.Join(m.Incomplete, ", "))
		}
	}
	p.printBox("IMPORTERET JOBOPSLAG", sb.String())
}

func jobSummary(in types.JobInput, id string) string {
	var sb strings.Builder
	if id != "" {
		fmt.Fprintf(&sb, "ID:       %s\n", id)
	}
	fmt.Fprintf(&sb, "Stilling: %s\n", in.Title)
	fmt.Fprintf(&sb, "Firma:    %s", in.Company)
	if in.ContactPerson != nil {
		fmt.Fprintf(&sb, "\nKontakt:  %s", *in.ContactPerson)
	}
	if in.Deadline != nil {
		fmt.Fprintf(&sb, "\nFrist:    %s", in.Deadline.String())
	}
	if in.URL != nil {
		fmt.Fprintf(&sb, "\nURL:      %s", *in.URL)
	}

	lines := strings.Split(wrap(in.Description, boxWidth-4), "\n")
	if len(lines) > 0 && strings.TrimSpace(in.Description) != "" {
		sb.WriteString("\n\n")
		count := min(len(lines), maxDescriptionLines)
		sb.WriteString(strings.Join(lines[:count], "\n"))
		if len(lines) > maxDescriptionLines {
			fmt.Fprintf(&sb, "\n... og %d linjer mere", len(lines)-maxDescriptionLines)
		}
	}
	return sb.String()
}

// wrap breaks text on spaces so no line exceeds width runes.
func wrap(text string, width int) string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			switch {
			case line == "":
				line = word
			case utf8.RuneCountInString(line)+1+utf8.RuneCountInString(word) <= width:
				line += " " + word
			default:
				out = append(out, line)
				line = word
			}
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}

// pad right-pads s to width runes; fmt widths count bytes.
func pad(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
