package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/foster-pipeline-api/internal/dto"
	"github.com/noah-isme/foster-pipeline-api/internal/models"
	"github.com/noah-isme/foster-pipeline-api/internal/roster"
	appErrors "github.com/noah-isme/foster-pipeline-api/pkg/errors"
	"github.com/noah-isme/foster-pipeline-api/pkg/export"
)

type rosterEngine interface {
	Snapshot() roster.State
	SetStatus(identifier string, status models.ApplicantStatus) error
	Refresh(ctx context.Context) error
	Flush(ctx context.Context) error
}

type clearedLister interface {
	ClearedEmails(ctx context.Context) (map[string]struct{}, error)
}

// ApplicantService exposes the synchronized roster to the HTTP layer.
type ApplicantService struct {
	engine    rosterEngine
	cleared   clearedLister
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApplicantService constructs an ApplicantService. cleared may be nil, in
// which case review flags on the cached roster decide who is cleared.
func NewApplicantService(engine rosterEngine, cleared clearedLister, validate *validator.Validate, logger *zap.Logger) *ApplicantService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ApplicantService{engine: engine, cleared: cleared, validator: validate, logger: logger}
}

// List returns one page of the filtered and sorted roster.
func (s *ApplicantService) List(_ context.Context, filter dto.ApplicantFilter) ([]models.Applicant, *models.Pagination, *dto.SyncStatus, error) {
	if err := s.validateFilter(filter); err != nil {
		return nil, nil, nil, err
	}
	state := s.engine.Snapshot()
	people := filterApplicants(state.Roster, filter)
	sortApplicants(people, filter.Sort)
	page, meta := paginate(people, filter.Page, filter.PageSize)
	return page, &meta, syncStatus(state), nil
}

// Get returns the applicant with the given email.
func (s *ApplicantService) Get(_ context.Context, email string) (*models.Applicant, error) {
	matches := s.engine.Snapshot().Find(email)
	if len(matches) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
	}
	a := matches[0]
	return &a, nil
}

// SetStatus queues a status change for one applicant and returns its updated view.
func (s *ApplicantService) SetStatus(_ context.Context, email string, req dto.UpdateStatusRequest) (*models.Applicant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status")
	}
	key := models.NormalizeKey(email)
	if key == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "email is required")
	}
	status := models.ApplicantStatus(req.Status)
	if err := s.engine.SetStatus(key, status); err != nil {
		return nil, mapEngineError(err)
	}

	if matches := s.engine.Snapshot().Find(key); len(matches) > 0 {
		a := matches[0]
		return &a, nil
	}
	return &models.Applicant{Email: key, Status: status}, nil
}

// BulkSetStatus moves several applicants. Blank emails are reported as skipped.
func (s *ApplicantService) BulkSetStatus(_ context.Context, req dto.BulkStatusRequest) (*dto.BulkStatusResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk status payload")
	}
	status := models.ApplicantStatus(req.Status)
	result := &dto.BulkStatusResult{Status: status, Updated: make([]string, 0, len(req.Emails))}
	for _, email := range req.Emails {
		key := models.NormalizeKey(email)
		if key == "" {
			result.Skipped = append(result.Skipped, email)
			continue
		}
		if err := s.engine.SetStatus(key, status); err != nil {
			return nil, mapEngineError(err)
		}
		result.Updated = append(result.Updated, key)
	}
	s.logger.Info("bulk status change", zap.String("status", string(status)), zap.Int("count", len(result.Updated)))
	return result, nil
}

// PromoteCleared approves every new applicant whose review came back clean.
func (s *ApplicantService) PromoteCleared(ctx context.Context) (*dto.PromoteResult, error) {
	state := s.engine.Snapshot()

	var cleared map[string]struct{}
	if s.cleared != nil {
		var err error
		cleared, err = s.cleared.ClearedEmails(ctx)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load review results")
		}
	}

	result := &dto.PromoteResult{Promoted: []string{}}
	seen := make(map[string]struct{})
	for _, a := range state.Roster {
		key := a.Key()
		if key == "" || a.Status != models.StatusNew {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		if cleared != nil {
			if _, ok := cleared[key]; !ok {
				continue
			}
		} else if !a.Cleared() {
			continue
		}
		if err := s.engine.SetStatus(key, models.StatusApproved); err != nil {
			return nil, mapEngineError(err)
		}
		seen[key] = struct{}{}
		result.Promoted = append(result.Promoted, key)
	}
	s.logger.Info("promoted cleared applicants", zap.Int("count", len(result.Promoted)))
	return result, nil
}

// Refresh reloads the roster from the directory. Directory failures surface in
// SyncStatus.LastError rather than as an error.
func (s *ApplicantService) Refresh(ctx context.Context) (*dto.SyncStatus, error) {
	if err := s.engine.Refresh(ctx); err != nil {
		return nil, mapEngineError(err)
	}
	return syncStatus(s.engine.Snapshot()), nil
}

// Flush writes queued status changes now.
func (s *ApplicantService) Flush(ctx context.Context) (*dto.SyncStatus, error) {
	if err := s.engine.Flush(ctx); err != nil {
		return nil, mapEngineError(err)
	}
	return syncStatus(s.engine.Snapshot()), nil
}

// SyncState reports the engine state without side effects.
func (s *ApplicantService) SyncState() *dto.SyncStatus {
	return syncStatus(s.engine.Snapshot())
}

// Export renders the whole filtered roster, ignoring pagination.
func (s *ApplicantService) Export(_ context.Context, w io.Writer, filter dto.ApplicantFilter, renderer export.Renderer) error {
	if err := s.validateFilter(filter); err != nil {
		return err
	}
	people := filterApplicants(s.engine.Snapshot().Roster, filter)
	sortApplicants(people, filter.Sort)
	if err := renderer.Render(w, applicantDataset(people)); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return nil
}

func (s *ApplicantService) validateFilter(filter dto.ApplicantFilter) error {
	if err := s.validator.Struct(filter); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid applicant filter")
	}
	for _, st := range filter.Statuses {
		if !st.Valid() {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown status %q", st))
		}
	}
	return nil
}

var applicantColumns = []export.Column{
	{Key: "name", Title: "Name", Width: 2},
	{Key: "email", Title: "Email", Width: 3},
	{Key: "phone", Title: "Phone", Width: 1.5},
	{Key: "age", Title: "Age", Width: 0.7},
	{Key: "applied", Title: "Submitted", Width: 1.5},
	{Key: "availability", Title: "Availability", Width: 2},
	{Key: "needs", Title: "Special Needs", Width: 3},
	{Key: "flags", Title: "Flags", Width: 1.5},
	{Key: "status", Title: "Status", Width: 1.3},
}

func applicantDataset(people []models.Applicant) export.Dataset {
	rows := make([]map[string]string, 0, len(people))
	for _, a := range people {
		rows = append(rows, map[string]string{
			"name":         a.FullName(),
			"email":        a.Email,
			"phone":        a.Phone,
			"age":          a.Age,
			"applied":      models.FormatSubmittedAt(a.AppliedAt),
			"availability": a.Availability,
			"needs":        strings.Join(a.SpecialNeeds, ", "),
			"flags":        strings.Join(a.Flags, ", "),
			"status":       string(a.Status),
		})
	}
	return export.Dataset{Title: "Foster Applicants", Columns: applicantColumns, Rows: rows}
}

func syncStatus(state roster.State) *dto.SyncStatus {
	out := &dto.SyncStatus{
		Loading:        state.Loading,
		LastError:      state.LastError,
		Pending:        state.Pending,
		PendingUpdates: make([]dto.PendingUpdate, 0, len(state.PendingUpdates)),
		Flushing:       state.Flushing,
		LastSyncedAt:   timePtr(state.LastSyncedAt),
		LastFlushedAt:  timePtr(state.LastFlushedAt),
		RosterSize:     len(state.Roster),
	}
	for _, u := range state.PendingUpdates {
		out.PendingUpdates = append(out.PendingUpdates, dto.PendingUpdate{Email: u.Key, Status: u.Status})
	}
	return out
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func mapEngineError(err error) error {
	switch {
	case errors.Is(err, roster.ErrInvalidStatus):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status")
	case errors.Is(err, roster.ErrNotRunning):
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "roster sync is not running")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "request cancelled")
	default:
		return appErrors.FromError(err)
	}
}
