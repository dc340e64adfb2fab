package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	generativeai "github.com/google/generative-ai-go/genai"
	"github.com/jackc/pgx/v5/pgconn"
	"google.golang.org/api/googleapi"

	vertexai "cloud.google.com/go/vertexai/genai"

	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/llm"
)

// storeError tags a storage failure with the kind the classifier expects.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var tagged *generation.Error
	if errors.As(err, &tagged) {
		return err
	}

	e := generation.NewError(generation.KindUpstreamUnavailable, op, err)

	var pgErr *pgconn.PgError
	var connErr *pgconn.ConnectError
	var netErr net.Error
	switch {
	case errors.As(err, &pgErr):
		switch {
		case pgErr.Code == "42501":
			e.Kind = generation.KindSecurityFlagged
		case strings.HasPrefix(pgErr.Code, "23"), strings.HasPrefix(pgErr.Code, "22"):
			e.Kind = generation.KindValidationRejected
			if field := constraintField(pgErr); field != "" {
				e.Fields = []string{field}
			}
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01":
			e.Kind = generation.KindNetwork
		}
	case errors.As(err, &connErr), errors.As(err, &netErr):
		e.Kind = generation.KindNetwork
	}
	return e
}

// unknownJob rejects an existing job id that does not name a job of the
// owner. A retry must never turn into a second job.
func unknownJob(op, jobID string, cause error) error {
	e := generation.NewError(generation.KindValidationRejected, op, cause)
	e.Message = fmt.Sprintf("job %q not found", jobID)
	e.Fields = []string{"job_id"}
	return e
}

// constraintField maps "jobs_title_check" style constraint names, or the
// reported column, to the input field.
func constraintField(pgErr *pgconn.PgError) string {
	if pgErr.ColumnName != "" {
		return pgErr.ColumnName
	}
	name := strings.TrimSuffix(pgErr.ConstraintName, "_check")
	if i := strings.Index(name, "_"); i >= 0 && name != pgErr.ConstraintName {
		return name[i+1:]
	}
	return ""
}

// writerError tags a text generation failure. parent is the run context and
// call the per-call context derived from it.
func writerError(parent, call context.Context, err error) error {
	if err == nil {
		return nil
	}
	const op = "generate letter"

	if errors.Is(err, context.DeadlineExceeded) && call.Err() != nil && parent.Err() == nil {
		return generation.NewError(generation.KindGenerationTimeout, op, err)
	}
	if errors.Is(err, llm.ErrEmptyResponse) {
		return generation.NewError(generation.KindGenerationRejected, op, err)
	}

	var geminiBlocked *generativeai.BlockedError
	var vertexBlocked *vertexai.BlockedError
	if errors.As(err, &geminiBlocked) || errors.As(err, &vertexBlocked) {
		return generation.NewError(generation.KindGenerationRejected, op, err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 400:
			return generation.NewError(generation.KindGenerationRejected, op, err)
		case apiErr.Code == 401 || apiErr.Code == 403:
			return generation.NewError(generation.KindSecurityFlagged, op, err)
		case apiErr.Code == 504:
			return generation.NewError(generation.KindGenerationTimeout, op, err)
		}
		return generation.NewError(generation.KindUpstreamUnavailable, op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return generation.NewError(generation.KindGenerationTimeout, op, err)
		}
		return generation.NewError(generation.KindNetwork, op, err)
	}
	return generation.NewError(generation.KindUpstreamUnavailable, op, err)
}
