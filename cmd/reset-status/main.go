// Command reset-status moves every applicant in the directory back to one status.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/foster-pipeline-api/internal/directory"
	"github.com/noah-isme/foster-pipeline-api/internal/models"
	"github.com/noah-isme/foster-pipeline-api/pkg/config"
	"github.com/noah-isme/foster-pipeline-api/pkg/logger"
)

type resetOptions struct {
	Status    string
	UpdatedBy string
	Delay     time.Duration
	Mode      string
	DryRun    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := resetOptions{}
	cmd := &cobra.Command{
		Use:   "reset-status",
		Short: "Reset every applicant's status in the directory",
		Long: `reset-status fetches the whole roster from the directory and writes the
given status for each applicant, one request at a time. It talks to the
directory directly and does not touch the API server's pending queue.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if opts.Mode != "" {
				cfg.Directory.Mode = opts.Mode
			}
			logr, err := logger.New(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logr.Sync() //nolint:errcheck

			dir, err := directory.New(cfg.Directory, logr.Named("directory"))
			if err != nil {
				return err
			}
			report, err := resetAll(cmd.Context(), dir, opts, logr)
			logr.Info("reset finished",
				zap.Int("total", report.Total),
				zap.Int("updated", report.Updated),
				zap.Int("failed", report.Failed),
				zap.Int("skipped", report.Skipped),
			)
			if err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d status writes failed", report.Failed)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.Status, "status", string(models.StatusNew), "status to write for every applicant")
	flags.StringVar(&opts.UpdatedBy, "updated-by", "Reset Script", "value recorded in Status Updated By")
	flags.DurationVar(&opts.Delay, "delay", 200*time.Millisecond, "pause between writes")
	flags.StringVar(&opts.Mode, "directory-mode", "", "override DIRECTORY_MODE (sheets or people_api)")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "list applicants without writing")
	return cmd
}

type statusDirectory interface {
	FetchApplicants(ctx context.Context) ([]models.Applicant, error)
	SetStatus(ctx context.Context, email string, status models.ApplicantStatus, updatedBy string) error
}

type resetReport struct {
	Total   int
	Updated int
	Failed  int
	Skipped int
}

// resetAll writes opts.Status for every applicant with an email. Individual
// failures are logged and counted; a fetch failure or cancellation stops the run.
func resetAll(ctx context.Context, dir statusDirectory, opts resetOptions, logr *zap.Logger) (resetReport, error) {
	var report resetReport
	status := models.ApplicantStatus(opts.Status)
	if !status.Valid() {
		return report, fmt.Errorf("unknown status %q", opts.Status)
	}

	people, err := dir.FetchApplicants(ctx)
	if err != nil {
		return report, fmt.Errorf("fetch applicants: %w", err)
	}
	report.Total = len(people)
	logr.Info("resetting applicants", zap.Int("count", len(people)), zap.String("status", opts.Status), zap.Bool("dry_run", opts.DryRun))

	first := true
	for _, a := range people {
		if a.Key() == "" {
			report.Skipped++
			continue
		}
		if opts.DryRun {
			logr.Info("would reset", zap.String("email", a.Email), zap.String("name", a.FullName()), zap.String("from", string(a.Status)))
			continue
		}
		if !first {
			if err := sleep(ctx, opts.Delay); err != nil {
				return report, err
			}
		}
		first = false

		if err := dir.SetStatus(ctx, a.Email, status, opts.UpdatedBy); err != nil {
			if errors.Is(err, context.Canceled) {
				return report, err
			}
			report.Failed++
			logr.Error("reset failed", zap.String("email", a.Email), zap.Error(err))
			continue
		}
		report.Updated++
		logr.Info("reset", zap.String("email", a.Email), zap.String("name", a.FullName()))
	}
	return report, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
