// Package ingestion turns a job posting URL into a prefilled job draft.
package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jonathan/cover-letter-studio/internal/fetch"
	"github.com/jonathan/cover-letter-studio/internal/llm"
	"github.com/jonathan/cover-letter-studio/internal/logger"
	"github.com/jonathan/cover-letter-studio/internal/schemas"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

var (
	// ErrHTTPRequestFailed is returned when the page cannot be downloaded
	ErrHTTPRequestFailed = errors.New("HTTP request failed")
	// ErrContentExtractionFailed is returned when no text can be read from the page
	ErrContentExtractionFailed = errors.New("content extraction failed")
)

// maxDescriptionRunes bounds the heuristic description.
const maxDescriptionRunes = 8000

// Draft is a job posting read from the web. It is not stored; the user
// reviews it before a generation run.
type Draft struct {
	Job      types.JobInput `json:"job"`
	Metadata *Metadata      `json:"metadata"`
}

// PageFetcher returns the HTML of a page and whether it was cached.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (string, bool, error)
}

// BrowserFunc renders a page with JavaScript enabled.
type BrowserFunc func(ctx context.Context, url string, timeout time.Duration, log *logger.Logger) (string, error)

// Importer fetches postings and extracts job fields from them.
// With a nil LLM it falls back to page metadata heuristics.
type Importer struct {
	Fetcher        PageFetcher
	LLM            llm.Client
	Browser        BrowserFunc
	BrowserTimeout time.Duration
	Log            *logger.Logger
}

// NewImporter builds an Importer with an uncached fetcher and chromedp rendering.
func NewImporter(client llm.Client, log *logger.Logger) *Importer {
	if log == nil {
		log = logger.Nop()
	}
	return &Importer{
		Fetcher:        &fetch.CachedFetcher{Log: log},
		LLM:            client,
		Browser:        fetch.WithBrowser,
		BrowserTimeout: 30 * time.Second,
		Log:            log.With("component", "importer"),
	}
}

// Import reads the posting at url. When useBrowser is set and plain HTTP
// yields too little text, the page is rendered in a headless browser.
func (im *Importer) Import(ctx context.Context, url string, useBrowser bool) (*Draft, error) {
	log := im.Log
	if log == nil {
		log = logger.Nop()
	}
	if err := fetch.ValidateURL(url); err != nil {
		return nil, err
	}

	platform := fetch.DetectPlatform(url)
	log.Debug("importing posting", "url", url, "platform", platform)

	html, cached, err := im.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHTTPRequestFailed, err)
	}

	contentSelectors := fetch.PlatformContentSelectors(platform)
	noiseSelectors := fetch.PlatformNoiseSelectors(platform)

	text, err := fetch.ExtractMainText(html, contentSelectors, noiseSelectors...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContentExtractionFailed, err)
	}

	rendered := false
	if useBrowser && im.Browser != nil && (fetch.ShouldUseBrowser(text) || platform.RendersClientSide()) {
		log.Debug("falling back to browser rendering", "chars", len(text))
		browserHTML, err := im.Browser(ctx, url, im.BrowserTimeout, log)
		if err != nil {
			log.Warn("browser rendering failed, using HTTP content", "error", err)
		} else if browserText, err := fetch.ExtractMainText(browserHTML, contentSelectors, noiseSelectors...); err == nil {
			html, text, rendered = browserHTML, browserText, true
		}
	}

	text = CleanText(text)
	if text == "" {
		return nil, fmt.Errorf("%w: page has no text", ErrContentExtractionFailed)
	}

	metadata := NewMetadata(text, url)
	metadata.Platform = string(platform)
	metadata.Rendered = rendered
	metadata.Cached = cached

	var job *llm.ExtractedJob
	if im.LLM != nil {
		job, err = llm.ExtractJob(ctx, im.LLM, text)
		if err != nil {
			log.Warn("llm extraction failed, using page metadata", "error", err)
			job = nil
		} else {
			metadata.Extractor = "llm"
		}
	}
	if job == nil {
		job = heuristicJob(html, text, platform)
		metadata.Extractor = "heuristic"
	}

	doc, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extracted job: %w", err)
	}
	if err := schemas.Validate(schemas.JobPosting, doc); err != nil {
		var ve *schemas.ValidationError
		if !errors.As(err, &ve) {
			return nil, err
		}
		metadata.Incomplete = ve.Fields()
		log.Debug("draft is incomplete", "fields", metadata.Incomplete)
	}

	in := types.JobInput{
		Title:         job.Title,
		Company:       job.Company,
		Description:   job.Description,
		ContactPerson: job.ContactPerson,
		URL:           &url,
	}
	if job.Deadline != nil {
		if d, err := types.ParseDate(*job.Deadline); err == nil {
			in.Deadline = d
		} else {
			log.Debug("ignoring unparsable deadline", "deadline", *job.Deadline)
		}
	}

	return &Draft{Job: in.Normalize(), Metadata: metadata}, nil
}

// heuristicJob reads title and company from the page head. Titles of the
// form "<role> hos <company>" or "<role> - <company>" are split.
func heuristicJob(html, text string, platform fetch.Platform) *llm.ExtractedJob {
	job := &llm.ExtractedJob{Description: truncateRunes(text, maxDescriptionRunes)}

	meta, err := fetch.ExtractPageMeta(html)
	if err != nil {
		return job
	}

	title := meta.Title
	if title == "" {
		title = meta.Heading
	}
	for _, sep := range []string{" hos ", " at ", " - ", " | "} {
		if role, company, ok := strings.Cut(title, sep); ok {
			job.Title = strings.TrimSpace(role)
			job.Company = strings.TrimSpace(company)
			break
		}
	}
	if job.Title == "" {
		job.Title = strings.TrimSpace(title)
	}
	if meta.Heading != "" && !strings.Contains(meta.Heading, job.Title) {
		job.Title = meta.Heading
	}

	// On job boards og:site_name names the board, not the employer.
	if job.Company == "" && platform == fetch.PlatformUnknown {
		job.Company = meta.SiteName
	}
	if job.Company != "" && strings.EqualFold(job.Company, meta.SiteName) && platform != fetch.PlatformUnknown {
		job.Company = ""
	}
	return job
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n]))
}
