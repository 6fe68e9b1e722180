package task

import (
	"context"

	"go.uber.org/zap"

	"github.com/nsbb/platform-sdk/internal/domain"
	"github.com/nsbb/platform-sdk/internal/platform"
	"github.com/nsbb/platform-sdk/internal/remote"
)

// StatusPublisher publishes a task status to the platform.
type StatusPublisher interface {
	Publish(ctx context.Context, status *domain.TaskStatus) error
}

// Publisher is the production StatusPublisher. It is bound at construction
// to one job and its status location, and performs two effects per publish:
// the serialized status document is written to storage first, then the
// coarse job state is reported to the platform API. The ordering matters;
// the state report may reference the just-written document.
type Publisher struct {
	jobID          string
	statusLocation *remote.Location
	platform       platform.Client
	logger         *zap.Logger
}

// NewPublisher creates a Publisher for one task.
func NewPublisher(jobID string, statusLocation *remote.Location, client platform.Client, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{
		jobID:          jobID,
		statusLocation: statusLocation,
		platform:       client,
		logger:         logger,
	}
}

// Publish writes the status document and reports the job state. The failure
// type accompanies the state report only when the task has failed.
func (p *Publisher) Publish(ctx context.Context, status *domain.TaskStatus) error {
	doc, err := status.Serialize()
	if err != nil {
		return &PublishError{Stage: "status document", Err: err}
	}
	if err := p.statusLocation.UploadBytes(ctx, doc, "application/json"); err != nil {
		return &PublishError{Stage: "status document", Err: err}
	}
	p.logger.Info("task_status_written", zap.String("job_id", p.jobID))

	state, failureType := status.Snapshot()
	if err := p.platform.UpdateJobState(ctx, p.jobID, state, failureType); err != nil {
		return &PublishError{Stage: "job state", Err: err}
	}
	return nil
}
