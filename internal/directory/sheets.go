package directory

import (
	"context"
	"errors"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/foster-pipeline-api/internal/models"
)

// Sheets reads and writes the application sheet through its Apps Script web app.
type Sheets struct {
	*scriptClient
	limit    int
	location *time.Location
}

// SheetsConfig configures a Sheets client.
type SheetsConfig struct {
	ScriptURL string
	Key       string
	Limit     int
	Timeout   time.Duration
	Location  *time.Location
}

func NewSheets(cfg SheetsConfig, logger *zap.Logger) (*Sheets, error) {
	if strings.TrimSpace(cfg.ScriptURL) == "" {
		return nil, errors.New("directory: missing Apps Script URL")
	}
	if cfg.Limit <= 0 {
		cfg.Limit = 5000
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sheets{
		scriptClient: &scriptClient{
			http:     newHTTPClient(cfg.Timeout, logger.Named("sheets")),
			endpoint: cfg.ScriptURL,
			key:      cfg.Key,
		},
		limit:    cfg.Limit,
		location: cfg.Location,
	}, nil
}

func (s *Sheets) FetchApplicants(ctx context.Context) ([]models.Applicant, error) {
	rows, err := s.rows(ctx, url.Values{
		"limit":  {strconv.Itoa(s.limit)},
		"fields": {strings.Join(rosterFields, ",")},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.Applicant, 0, len(rows))
	for _, row := range rows {
		out = append(out, applicantFromRow(row, s.location))
	}
	return out, nil
}

func applicantFromRow(row sheetRow, loc *time.Location) models.Applicant {
	cell := func(name string) string { return strings.TrimSpace(row.cells[name]) }
	return models.Applicant{
		Email:        cell(colEmail),
		RowIndex:     row.index,
		FirstName:    cell(colFirstName),
		LastName:     cell(colLastName),
		Phone:        cell(colPhone),
		Age:          cell(colAge),
		AppliedAt:    models.ParseSubmittedAt(cell(colTimestamp), loc),
		Availability: cell(colAvailability),
		SpecialNeeds: models.SplitList(cell(colSpecialNeeds)),
		Flags:        models.SplitList(cell(colFlags)),
		Status:       models.ParseApplicantStatus(cell(colStatus)),
		UpdatedAt:    cell(colUpdatedAt),
		UpdatedBy:    cell(colUpdatedBy),
		Raw:          row.cells,
	}
}
