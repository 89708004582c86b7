package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/foster-pipeline-api/internal/directory"
	"github.com/noah-isme/foster-pipeline-api/internal/dto"
	"github.com/noah-isme/foster-pipeline-api/internal/models"
	appErrors "github.com/noah-isme/foster-pipeline-api/pkg/errors"
)

type interestMailer interface {
	Recipients(ctx context.Context) ([]directory.Recipient, error)
	SendEmails(ctx context.Context, req directory.EmailRequest) error
}

type emailMetrics interface {
	RecordEmailsSent(n int)
}

// EmailService sends the foster interest mailing and advances the mailed applicants.
type EmailService struct {
	engine    rosterEngine
	mailer    interestMailer
	metrics   emailMetrics
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmailService constructs an EmailService.
func NewEmailService(engine rosterEngine, mailer interestMailer, metrics emailMetrics, validate *validator.Validate, logger *zap.Logger) *EmailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &EmailService{engine: engine, mailer: mailer, metrics: metrics, validator: validate, logger: logger}
}

// Recipients splits the applicants at status into cleared and flagged rows.
// An empty status lists everyone. When no roster has been loaded yet the
// mailing script is asked directly.
func (s *EmailService) Recipients(ctx context.Context, status string) (*dto.RecipientList, error) {
	st := models.ApplicantStatus(status)
	if status != "" && !st.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown status")
	}

	list := &dto.RecipientList{Status: st, Cleared: []dto.Recipient{}, Flagged: []dto.Recipient{}}
	candidates, err := s.candidates(ctx, st)
	if err != nil {
		return nil, err
	}
	for _, r := range candidates {
		if r.Flagged {
			list.Flagged = append(list.Flagged, r)
		} else {
			list.Cleared = append(list.Cleared, r)
		}
	}
	return list, nil
}

// Send mails the selected flagged rows, then moves them to req.MoveTo
// (in-progress by default). Rows that are not selectable are ignored.
func (s *EmailService) Send(ctx context.Context, req dto.SendEmailRequest) (*dto.SendEmailResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid email payload")
	}
	moveTo := models.StatusInProgress
	if req.MoveTo != "" {
		moveTo = models.ApplicantStatus(req.MoveTo)
	}

	candidates, err := s.candidates(ctx, models.ApplicantStatus(req.Status))
	if err != nil {
		return nil, err
	}
	selectable := make(map[int]dto.Recipient)
	for _, r := range candidates {
		if r.Flagged {
			selectable[r.RowIndex] = r
		}
	}

	var (
		rows   []int
		chosen []dto.Recipient
	)
	for _, idx := range req.RowIndices {
		r, ok := selectable[idx]
		if !ok {
			continue
		}
		delete(selectable, idx)
		rows = append(rows, idx)
		chosen = append(chosen, r)
	}
	if len(rows) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no selectable recipients")
	}

	if err := s.mailer.SendEmails(ctx, directory.EmailRequest{
		Subject:    req.Subject,
		Content:    req.Content,
		RowIndices: rows,
	}); err != nil {
		s.logger.Warn("interest mailing failed", zap.Int("recipients", len(rows)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to send emails")
	}
	if s.metrics != nil {
		s.metrics.RecordEmailsSent(len(rows))
	}

	result := &dto.SendEmailResult{Sent: len(rows), MovedTo: moveTo, Moved: make([]string, 0, len(chosen))}
	for _, r := range chosen {
		if err := s.engine.SetStatus(r.Email, moveTo); err != nil {
			s.logger.Warn("move mailed applicant", zap.String("email", r.Email), zap.Error(err))
			continue
		}
		result.Moved = append(result.Moved, models.NormalizeKey(r.Email))
	}
	s.logger.Info("interest mailing sent", zap.Int("sent", result.Sent), zap.String("moved_to", string(moveTo)))
	return result, nil
}

func (s *EmailService) candidates(ctx context.Context, status models.ApplicantStatus) ([]dto.Recipient, error) {
	state := s.engine.Snapshot()
	if len(state.Roster) > 0 {
		var out []dto.Recipient
		for _, a := range state.Roster {
			if a.RowIndex == nil || a.Key() == "" {
				continue
			}
			if status != "" && a.Status != status {
				continue
			}
			out = append(out, dto.Recipient{
				RowIndex: *a.RowIndex,
				Email:    a.Email,
				FullName: a.FullName(),
				Flagged:  !a.Cleared(),
			})
		}
		return out, nil
	}

	legacy, err := s.mailer.Recipients(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, "failed to load recipients")
	}
	out := make([]dto.Recipient, 0, len(legacy))
	for _, r := range legacy {
		out = append(out, dto.Recipient{
			RowIndex: r.RowIndex,
			Email:    r.Email,
			FullName: models.Applicant{FirstName: r.FirstName, LastName: r.LastName}.FullName(),
			Flagged:  r.Flagged,
		})
	}
	return out, nil
}
