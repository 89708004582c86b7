package directory

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/foster-pipeline-api/internal/models"
	"github.com/noah-isme/foster-pipeline-api/pkg/config"
)

// Client is everything the services need from the directory.
type Client interface {
	FetchApplicants(ctx context.Context) ([]models.Applicant, error)
	SetStatus(ctx context.Context, email string, status models.ApplicantStatus, updatedBy string) error
	Recipients(ctx context.Context) ([]Recipient, error)
	ClearedEmails(ctx context.Context) (map[string]struct{}, error)
	SendEmails(ctx context.Context, req EmailRequest) error
}

var (
	_ Client = (*Sheets)(nil)
	_ Client = (*PeopleAPI)(nil)
)

// New builds the client selected by cfg.Mode.
func New(cfg config.DirectoryConfig, logger *zap.Logger) (Client, error) {
	switch cfg.Mode {
	case config.DirectoryModePeopleAPI:
		client, err := NewPeopleAPI(cfg.PeopleAPIURL, cfg.Timeout, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.DirectoryModeSheets, "":
		loc := time.UTC
		if cfg.TimeZone != "" {
			l, err := time.LoadLocation(cfg.TimeZone)
			if err != nil {
				return nil, fmt.Errorf("directory: load time zone %q: %w", cfg.TimeZone, err)
			}
			loc = l
		}
		client, err := NewSheets(SheetsConfig{
			ScriptURL: cfg.SheetsURL,
			Key:       cfg.SheetsKey,
			Limit:     cfg.FetchLimit,
			Timeout:   cfg.Timeout,
			Location:  loc,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, fmt.Errorf("directory: unknown mode %q", cfg.Mode)
	}
}
