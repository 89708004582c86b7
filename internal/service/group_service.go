package service

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/foster-pipeline-api/internal/directory"
	"github.com/noah-isme/foster-pipeline-api/internal/models"
	"github.com/noah-isme/foster-pipeline-api/internal/roster"
	"github.com/noah-isme/foster-pipeline-api/pkg/jobs"
)

const groupJobType = "group.add_member"

type groupNotifier interface {
	AddMember(ctx context.Context, email string) error
}

type groupMetrics interface {
	RecordGroupRequest(result string)
}

// GroupService adds applicants to the mailing group when they are approved.
// Requests run on a background queue; failures are retried then logged.
type GroupService struct {
	notifier groupNotifier
	metrics  groupMetrics
	queue    *jobs.Queue
	logger   *zap.Logger
}

var _ roster.StatusHook = (*GroupService)(nil)

// NewGroupService constructs a GroupService. A nil notifier disables it.
func NewGroupService(notifier groupNotifier, metrics groupMetrics, cfg jobs.QueueConfig, logger *zap.Logger) *GroupService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &GroupService{notifier: notifier, metrics: metrics, logger: logger}
	if notifier != nil {
		cfg.Logger = logger
		s.queue = jobs.NewQueue("group-membership", s.handle, cfg)
	}
	return s
}

// Enabled reports whether a group script is configured.
func (s *GroupService) Enabled() bool {
	return s.queue != nil
}

// Start launches the workers.
func (s *GroupService) Start(ctx context.Context) {
	if s.queue != nil {
		s.queue.Start(ctx)
	}
}

// Stop waits for in-flight requests. Queued requests are dropped.
func (s *GroupService) Stop() {
	if s.queue != nil {
		s.queue.Stop()
	}
}

// StatusChanged queues a membership request for newly approved applicants.
func (s *GroupService) StatusChanged(change roster.StatusChange) {
	if s.queue == nil || change.Status != models.StatusApproved || change.Previous == models.StatusApproved {
		return
	}
	email := change.Key
	if change.Applicant != nil && change.Applicant.Email != "" {
		email = change.Applicant.Email
	}
	id, err := s.queue.Enqueue(jobs.Job{Type: groupJobType, Payload: email})
	if err != nil {
		s.record("dropped")
		s.logger.Warn("group membership request not queued", zap.String("email", email), zap.Error(err))
		return
	}
	s.logger.Debug("group membership request queued", zap.String("email", email), zap.String("job_id", id))
}

func (s *GroupService) handle(ctx context.Context, job jobs.Job) error {
	email, ok := job.Payload.(string)
	if !ok || email == "" {
		return backoff.Permanent(fmt.Errorf("group job %s: unexpected payload %T", job.ID, job.Payload))
	}
	if err := s.notifier.AddMember(ctx, email); err != nil {
		s.record("failure")
		if directory.IsClientError(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	s.record("success")
	s.logger.Info("applicant added to mailing group", zap.String("email", email))
	return nil
}

func (s *GroupService) record(result string) {
	if s.metrics != nil {
		s.metrics.RecordGroupRequest(result)
	}
}
