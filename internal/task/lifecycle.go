package task

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nsbb/platform-sdk/internal/domain"
	"github.com/nsbb/platform-sdk/internal/platform"
	"github.com/nsbb/platform-sdk/internal/remote"
)

// The functions in this file are the stateless lifecycle operations. Each
// works on an explicit (descriptor, status) pair so it can be exercised
// without a Manager; the Manager methods are thin wrappers.

// DownloadDescriptor fetches and parses the task descriptor document from a
// signed URL.
func DownloadDescriptor(ctx context.Context, taskURL string, transfer *remote.Transfer, logger *zap.Logger) (*domain.Descriptor, error) {
	data, err := transfer.FromSignedURL(taskURL).DownloadBytes(ctx)
	if err != nil {
		return nil, &TransferError{Name: "task descriptor", Op: "download", Err: err}
	}

	desc, err := domain.ParseDescriptor(data)
	if err != nil {
		return nil, err
	}
	logger.Info("task_descriptor_downloaded",
		zap.String("analytic", desc.Analytic),
		zap.String("version", desc.Version),
		zap.String("job_id", desc.JobID),
	)
	return desc, nil
}

// StartTask marks the task as started and publishes the status.
func StartTask(ctx context.Context, status *domain.TaskStatus, pub StatusPublisher, logger *zap.Logger) error {
	if _, err := status.Start(""); err != nil {
		return err
	}
	logger.Info("task_started")
	return pub.Publish(ctx, status)
}

// DownloadInputs downloads every declared input into inputsDir and returns
// a map of input name to local path. A progress message is appended per
// input; messages accumulate locally until the next publish.
func DownloadInputs(ctx context.Context, inputsDir string, desc *domain.Descriptor, status *domain.TaskStatus, transfer *remote.Transfer, logger *zap.Logger) (map[string]string, error) {
	inputPaths := make(map[string]string, len(desc.Inputs))
	for name, spec := range desc.Inputs {
		localPath, err := transfer.Location(spec).Download(ctx, inputsDir)
		if err != nil {
			return nil, &TransferError{Name: name, Op: "download input", Err: err}
		}
		inputPaths[name] = localPath
		logger.Info("task_input_downloaded", zap.String("input", name), zap.String("path", localPath))
		status.AddMessage(fmt.Sprintf("Input '%s' downloaded", name))
	}
	return inputPaths, nil
}

// ParseParameters resolves the task parameters. Literal parameters pass
// through unchanged; data parameters are downloaded into dataDir and yield
// their local path. A data parameter with an empty dataDir is a config
// error.
func ParseParameters(ctx context.Context, dataDir string, desc *domain.Descriptor, status *domain.TaskStatus, transfer *remote.Transfer, logger *zap.Logger) (map[string]any, error) {
	parameters := make(map[string]any, len(desc.Parameters))
	for name, param := range desc.Parameters {
		if !param.IsData() {
			logger.Debug("task_parameter_value", zap.String("parameter", name))
			parameters[name] = param.Literal()
			continue
		}

		if dataDir == "" {
			return nil, domain.NewConfigError("parameters."+name,
				"is a data parameter but no data directory was supplied")
		}
		localPath, err := transfer.Location(param.Location()).Download(ctx, dataDir)
		if err != nil {
			return nil, &TransferError{Name: name, Op: "download parameter", Err: err}
		}
		parameters[name] = localPath
		logger.Info("task_parameter_downloaded", zap.String("parameter", name), zap.String("path", localPath))
		status.AddMessage(fmt.Sprintf("Parameter '%s' downloaded", name))
	}
	return parameters, nil
}

// PostJobMetadata forwards job metadata to the platform and records a
// confirmation message. The message is not published automatically.
func PostJobMetadata(ctx context.Context, metadata platform.JobMetadata, desc *domain.Descriptor, status *domain.TaskStatus, client platform.Client) error {
	if err := client.PostJobMetadata(ctx, desc.JobID, metadata); err != nil {
		return err
	}
	status.AddMessage("Job metadata posted")
	return nil
}

// UploadOutput uploads a task output to the declared output location. Tasks
// that post their output as data declare no output location; calling this
// for such a task is a config error.
func UploadOutput(ctx context.Context, outputPath string, desc *domain.Descriptor, status *domain.TaskStatus, transfer *remote.Transfer, logger *zap.Logger) error {
	if desc.Output == nil {
		return domain.NewConfigError("output", "is not declared for this task")
	}
	if err := transfer.Location(*desc.Output).Upload(ctx, outputPath, ""); err != nil {
		return &TransferError{Name: "output", Op: "upload", Err: err}
	}
	logger.Info("task_output_uploaded", zap.String("path", outputPath))
	status.AddMessage("Output published")
	return nil
}

// UploadOutputAsData uploads a task output through the platform's data
// ingestion path and records the assigned data ID under the output name.
func UploadOutputAsData(ctx context.Context, name, outputPath string, desc *domain.Descriptor, status *domain.TaskStatus, client platform.Client, logger *zap.Logger) (string, error) {
	dataID, err := client.UploadJobOutputAsData(ctx, desc.JobID, outputPath)
	if err != nil {
		return "", &TransferError{Name: name, Op: "post as data", Err: err}
	}
	status.RecordPostedData(name, dataID)
	logger.Info("task_output_posted_as_data", zap.String("output", name), zap.String("data_id", dataID))
	status.AddMessage(fmt.Sprintf("Output '%s' published as data", name))
	return dataID, nil
}

// CompleteTask marks the task complete, publishes the status, and uploads
// the logfile when a path is given. Unlike the graceful-failure wind-down,
// errors here surface to the caller.
func CompleteTask(ctx context.Context, desc *domain.Descriptor, status *domain.TaskStatus, pub StatusPublisher, transfer *remote.Transfer, logfilePath string, logger *zap.Logger) error {
	if _, err := status.Complete(""); err != nil {
		return err
	}
	logger.Info("task_complete")
	if err := pub.Publish(ctx, status); err != nil {
		return err
	}
	if logfilePath != "" {
		return UploadLogfile(ctx, logfilePath, desc, transfer, logger)
	}
	return nil
}

// UploadLogfile uploads the task logfile to the declared logfile location.
func UploadLogfile(ctx context.Context, logfilePath string, desc *domain.Descriptor, transfer *remote.Transfer, logger *zap.Logger) error {
	if err := transfer.Location(desc.Logfile).Upload(ctx, logfilePath, "text/plain"); err != nil {
		return &TransferError{Name: "logfile", Op: "upload", Err: err}
	}
	logger.Info("task_logfile_uploaded", zap.String("path", logfilePath))
	return nil
}
