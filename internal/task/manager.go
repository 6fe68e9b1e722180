// Package task manages the execution lifecycle of one unit of analytic
// work: descriptor download, state tracking, input/parameter transfer,
// output and logfile publication, and the graceful and epic failure
// protocols.
package task

import (
	"context"

	"go.uber.org/zap"

	"github.com/nsbb/platform-sdk/internal/domain"
	"github.com/nsbb/platform-sdk/internal/media"
	"github.com/nsbb/platform-sdk/internal/platform"
	"github.com/nsbb/platform-sdk/internal/remote"
)

// Manager orchestrates the lifecycle of a single task. It exclusively owns
// one descriptor and one status for the lifetime of the run and delegates
// transfer work to the storage layer and state reporting to the platform
// client.
type Manager struct {
	desc      *domain.Descriptor
	status    *domain.TaskStatus
	platform  platform.Client
	transfer  *remote.Transfer
	publisher StatusPublisher
	logger    *zap.Logger
}

// ManagerConfig carries the collaborators a Manager needs. Platform and
// Transfer are required; Logger defaults to a no-op; Publisher defaults to
// the production Publisher bound to the descriptor's job and status
// location.
type ManagerConfig struct {
	Platform  platform.Client
	Transfer  *remote.Transfer
	Publisher StatusPublisher
	Logger    *zap.Logger
}

// NewManager creates a Manager for an already-parsed descriptor.
func NewManager(desc *domain.Descriptor, cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = NewPublisher(desc.JobID, cfg.Transfer.Location(desc.Status), cfg.Platform, logger)
	}
	return &Manager{
		desc:      desc,
		status:    domain.NewTaskStatus(desc),
		platform:  cfg.Platform,
		transfer:  cfg.Transfer,
		publisher: pub,
		logger:    logger,
	}
}

// NewManagerFromURL downloads and parses the descriptor from a signed URL
// and creates a Manager for it.
func NewManagerFromURL(ctx context.Context, taskURL string, cfg ManagerConfig) (*Manager, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	desc, err := DownloadDescriptor(ctx, taskURL, cfg.Transfer, logger)
	if err != nil {
		return nil, err
	}
	return NewManager(desc, cfg), nil
}

// Descriptor returns the task descriptor.
func (m *Manager) Descriptor() *domain.Descriptor {
	return m.desc
}

// Status returns the task status record.
func (m *Manager) Status() *domain.TaskStatus {
	return m.status
}

// Start marks the task as started and publishes the status.
func (m *Manager) Start(ctx context.Context) error {
	return StartTask(ctx, m.status, m.publisher, m.logger)
}

// DownloadInputs downloads all task inputs into inputsDir.
func (m *Manager) DownloadInputs(ctx context.Context, inputsDir string) (map[string]string, error) {
	return DownloadInputs(ctx, inputsDir, m.desc, m.status, m.transfer, m.logger)
}

// ParseParameters resolves the task parameters, downloading data parameters
// into dataDir.
func (m *Manager) ParseParameters(ctx context.Context, dataDir string) (map[string]any, error) {
	return ParseParameters(ctx, dataDir, m.desc, m.status, m.transfer, m.logger)
}

// RecordInputMetadata records caller-supplied metadata about a named input.
func (m *Manager) RecordInputMetadata(name string, metadata any) {
	m.status.RecordInputMetadata(name, metadata)
}

// RecordVideoInputMetadata derives standard metadata (frame count, duration,
// size) from a video file and records it for the named input.
func (m *Manager) RecordVideoInputMetadata(ctx context.Context, name, videoPath string) error {
	vm, err := media.InspectVideo(ctx, "", videoPath)
	if err != nil {
		return err
	}
	m.status.RecordInputMetadata(name, vm)
	return nil
}

// PostJobMetadata forwards job metadata to the platform.
func (m *Manager) PostJobMetadata(ctx context.Context, metadata platform.JobMetadata) error {
	return PostJobMetadata(ctx, metadata, m.desc, m.status, m.platform)
}

// PostJobMetadataForVideo derives job metadata from the given video, which
// must be the task's sole input, and forwards it to the platform.
func (m *Manager) PostJobMetadataForVideo(ctx context.Context, videoPath string) error {
	vm, err := media.InspectVideo(ctx, "", videoPath)
	if err != nil {
		return err
	}
	return m.PostJobMetadata(ctx, platform.JobMetadata{
		FrameCount:      vm.FrameCount,
		DurationSeconds: vm.DurationSeconds,
		SizeBytes:       vm.SizeBytes,
	})
}

// UploadOutput uploads the task output to the declared output location.
func (m *Manager) UploadOutput(ctx context.Context, outputPath string) error {
	return UploadOutput(ctx, outputPath, m.desc, m.status, m.transfer, m.logger)
}

// UploadOutputAsData uploads a task output through the platform's data
// ingestion path and returns the assigned data ID.
func (m *Manager) UploadOutputAsData(ctx context.Context, name, outputPath string) (string, error) {
	return UploadOutputAsData(ctx, name, outputPath, m.desc, m.status, m.platform, m.logger)
}

// AddStatusMessage appends a message to the status without publishing.
func (m *Manager) AddStatusMessage(msg string) {
	m.status.AddMessage(msg)
}

// PublishStatus publishes the current status.
func (m *Manager) PublishStatus(ctx context.Context) error {
	return m.publisher.Publish(ctx, m.status)
}

// Complete marks the task complete, publishes the status, and uploads the
// logfile when a path is given.
func (m *Manager) Complete(ctx context.Context, logfilePath string) error {
	return CompleteTask(ctx, m.desc, m.status, m.publisher, m.transfer, logfilePath, m.logger)
}

// FailGracefully marks the task failed and best-effort reports whatever can
// still be reported. See FailGracefully for the containment policy.
func (m *Manager) FailGracefully(ctx context.Context, failureType domain.FailureType, cause error, logfilePath string) WindDown {
	return FailGracefully(ctx, failureType, cause, logfilePath, m.desc, m.status, m.publisher, m.transfer, m.logger)
}
