package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "JobPosting")
	Description string        // System prompt preamble describing the extraction task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint shown to the model
	Description string
	Required    bool
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = `"string"`
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		fmt.Fprintf(&sb, "  %q: %s%s", field.Name, typeHint, requiredHint)
		if field.Description != "" {
			fmt.Fprintf(&sb, " // %s", field.Description)
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Extract information directly from the text, do not invent or summarize.\n")
	sb.WriteString("- Use null for fields that are not present.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// JobPostingSchema describes the fields pulled out of an imported job
// posting page.
func JobPostingSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "JobPosting",
		Description: `You are an expert job posting parser. Postings are usually Danish; keep the original language.
Extract the fields needed to write a cover letter. Copy the description verbatim, excluding application form fields, cookie banners and legal boilerplate.`,
		Fields: []SchemaField{
			{Name: "title", Description: "Job title", Required: true},
			{Name: "company", Description: "Hiring company name", Required: true},
			{Name: "description", Description: "Full job description, responsibilities and requirements", Required: true},
			{Name: "contact_person", Type: `"string" | null`, Description: "Named contact person for questions"},
			{Name: "deadline", Type: `"YYYY-MM-DD" | null`, Description: "Application deadline"},
		},
	}
}

// ExtractedJob is the decoded answer for JobPostingSchema.
type ExtractedJob struct {
	Title         string  `json:"title"`
	Company       string  `json:"company"`
	Description   string  `json:"description"`
	ContactPerson *string `json:"contact_person"`
	Deadline      *string `json:"deadline"`
}

// ExtractJob asks client to pull job fields out of page text.
func ExtractJob(ctx context.Context, client Client, pageText string) (*ExtractedJob, error) {
	raw, err := client.GenerateJSON(ctx, BuildExtractionPrompt(JobPostingSchema(), pageText), TierLite)
	if err != nil {
		return nil, fmt.Errorf("failed to extract job posting: %w", err)
	}
	var job ExtractedJob
	if err := json.Unmarshal([]byte(CleanJSONBlock(raw)), &job); err != nil {
		return nil, fmt.Errorf("failed to decode extracted job posting: %w", err)
	}
	return &job, nil
}
