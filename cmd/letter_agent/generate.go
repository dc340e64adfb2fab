package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/cover-letter-studio/internal/config"
	"github.com/jonathan/cover-letter-studio/internal/db"
	"github.com/jonathan/cover-letter-studio/internal/gateway"
	"github.com/jonathan/cover-letter-studio/internal/generation"
	"github.com/jonathan/cover-letter-studio/internal/logger"
	"github.com/jonathan/cover-letter-studio/internal/observability"
	"github.com/jonathan/cover-letter-studio/internal/progress"
	"github.com/jonathan/cover-letter-studio/internal/types"
)

// localOwner is the owner of offline runs without a database.
const localOwner = "local"

type generateOptions struct {
	title       string
	company     string
	description string
	contact     string
	url         string
	deadline    string
	owner       string
	jobID       string
	offline     bool
}

var genOpts generateOptions

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a cover letter for one job",
	Long: `Save the job, fetch the applicant profile, write the letter and store it,
printing progress as it goes. Without DATABASE_URL everything is kept in memory.
With --offline no model is called and a template letter is written.`,
	RunE: runGenerate,
}

func init() {
	f := generateCmd.Flags()
	f.StringVar(&genOpts.title, "title", "", "Job title (required)")
	f.StringVar(&genOpts.company, "company", "", "Company name (required)")
	f.StringVar(&genOpts.description, "description", "", "Job description, or @file to read it from a file (required)")
	f.StringVar(&genOpts.contact, "contact", "", "Contact person")
	f.StringVar(&genOpts.url, "url", "", "Link to the job posting")
	f.StringVar(&genOpts.deadline, "deadline", "", "Application deadline (YYYY-MM-DD)")
	f.StringVar(&genOpts.owner, "owner", "", "Owner user id (required with a database unless set in config)")
	f.StringVar(&genOpts.jobID, "job-id", "", "Regenerate the letter for an existing job")
	f.BoolVar(&genOpts.offline, "offline", false, "Write a template letter without calling a model")
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}
	defer log.Sync()

	input, err := genOpts.jobInput()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, owner, cleanup, err := buildGenerateGateway(ctx, cfg, log, genOpts)
	if err != nil {
		return err
	}
	defer cleanup()

	deadline, _ := cfg.Deadline()
	return executeGenerate(ctx, cmd.OutOrStdout(), repo, generateRun{
		owner:    owner,
		input:    input,
		jobID:    genOpts.jobID,
		deadline: deadline,
		log:      log,
	})
}

// jobInput builds the job from flags. A description starting with @ names a file.
func (o generateOptions) jobInput() (types.JobInput, error) {
	description := o.description
	if path, ok := strings.CutPrefix(description, "@"); ok {
		raw, err := os.ReadFile(path)
		if err != nil {
			return types.JobInput{}, fmt.Errorf("failed to read description: %w", err)
		}
		description = string(raw)
	}
	deadline, err := types.ParseDate(o.deadline)
	if err != nil {
		return types.JobInput{}, fmt.Errorf("invalid --deadline %q: want YYYY-MM-DD", o.deadline)
	}
	return types.JobInput{
		Title:         o.title,
		Company:       o.company,
		Description:   description,
		ContactPerson: types.StringPtr(o.contact),
		URL:           types.StringPtr(o.url),
		Deadline:      deadline,
	}, nil
}

// buildGenerateGateway picks Postgres when a database is configured and
// memory otherwise.
func buildGenerateGateway(ctx context.Context, cfg *config.Config, log *logger.Logger, o generateOptions) (generation.Gateway, string, func(), error) {
	cleanup := func() {}
	owner := strings.TrimSpace(o.owner)
	if owner == "" {
		owner = cfg.OwnerID
	}

	var writer gateway.Writer = gateway.TemplateWriter{}
	if !o.offline {
		client, err := newLLMClient(ctx, cfg)
		if err != nil {
			return nil, "", nil, err
		}
		callTimeout, _ := cfg.CallTimeout()
		writer = gateway.NewLLMWriter(client, callTimeout)
		cleanup = func() { _ = client.Close() }
	}

	if cfg.DatabaseURL == "" {
		if owner == "" {
			owner = localOwner
		}
		log.Debug("no database configured, keeping the run in memory")
		return gateway.NewMemory(writer), owner, cleanup, nil
	}

	if _, err := uuid.Parse(owner); err != nil {
		cleanup()
		return nil, "", nil, fmt.Errorf("--owner must be a user id when a database is configured")
	}
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		cleanup()
		return nil, "", nil, err
	}
	closeLLM := cleanup
	cleanup = func() {
		database.Close()
		closeLLM()
	}
	return gateway.NewPostgres(database, writer, log), owner, cleanup, nil
}

type generateRun struct {
	owner    string
	input    types.JobInput
	jobID    string
	deadline time.Duration
	log      *logger.Logger
}

// executeGenerate runs the pipeline once and prints progress, then the job
// and letter or the classified failure.
func executeGenerate(ctx context.Context, out io.Writer, gw generation.Gateway, run generateRun) error {
	printer := observability.NewPrinter(out)
	tracker := progress.NewTracker(run.owner, run.log)
	orch := generation.New(gw, tracker, generation.Options{Deadline: run.deadline, Logger: run.log})

	updates, unsubscribe := tracker.Subscribe()
	printed := make(chan struct{})
	go func() {
		defer close(printed)
		for u := range updates {
			if u.Message != "" {
				printer.PrintProgress(u)
			}
		}
	}()

	res, err := orch.Run(ctx, run.owner, run.input, generation.RunOptions{ExistingJobID: run.jobID})
	unsubscribe()
	<-printed

	if err != nil {
		var ce *generation.ClassifiedError
		if errors.As(err, &ce) {
			printer.PrintFailure(ce)
		}
		return err
	}
	printer.PrintJob(res.Job)
	printer.PrintLetter(res.Letter)
	return nil
}
