package task

import (
	"context"
	"fmt"
	"net/url"
	"path"

	"go.uber.org/zap"

	"github.com/nsbb/platform-sdk/internal/domain"
	"github.com/nsbb/platform-sdk/internal/platform"
	"github.com/nsbb/platform-sdk/internal/remote"
)

// WindDown reports the outcome of the graceful-failure steps. The errors
// are diagnostics for logging only; by policy they are never propagated,
// because the task is already failing and a reporting error must not mask
// the original failure.
type WindDown struct {
	PublishErr error
	LogfileErr error
}

// FailGracefully marks the task as failed and best-effort publishes
// whatever can still be reported: the status document and, when a path is
// given, the logfile. The two attempts are independent; a publish failure
// does not prevent the logfile upload.
func FailGracefully(ctx context.Context, failureType domain.FailureType, cause error, logfilePath string, desc *domain.Descriptor, status *domain.TaskStatus, pub StatusPublisher, transfer *remote.Transfer, logger *zap.Logger) WindDown {
	logger.Error("task_failed",
		zap.String("failure_type", string(failureType)),
		zap.Error(cause),
	)
	if _, err := status.Fail(failureType, ""); err != nil {
		// Already terminal. Keep the existing record and still attempt the
		// reporting steps below.
		logger.Warn("task_already_terminal", zap.Error(err))
	}

	var wd WindDown
	if wd.PublishErr = pub.Publish(ctx, status); wd.PublishErr != nil {
		logger.Error("failed to publish task status", zap.Error(wd.PublishErr))
	}
	if logfilePath != "" {
		if wd.LogfileErr = UploadLogfile(ctx, logfilePath, desc, transfer, logger); wd.LogfileErr != nil {
			logger.Error("failed to upload logfile", zap.Error(wd.LogfileErr))
		}
	}
	return wd
}

// FailEpically handles a failure that happened before the task descriptor
// could be obtained: no status, no known log or status locations, only the
// original descriptor URL. The job ID is recovered from the URL by
// convention and a single attempt is made to mark the job FAILED with
// failure type PLATFORM. Nothing escapes this function.
func FailEpically(ctx context.Context, taskURL string, client platform.Client, cause error, logger *zap.Logger) {
	logger.Error("task_failed_before_descriptor", zap.Error(cause))

	jobID, err := JobIDFromTaskURL(taskURL)
	if err != nil {
		logger.Error("failed to extract job id from task url", zap.Error(err))
		return
	}

	if err := client.UpdateJobState(ctx, jobID, domain.StateFailed, domain.FailurePlatform); err != nil {
		logger.Error("unable to communicate with platform API", zap.Error(err))
		return
	}
	logger.Info("job_state_posted",
		zap.String("job_id", jobID),
		zap.String("state", string(domain.StateFailed)),
		zap.String("failure_type", string(domain.FailurePlatform)),
	)
}

// JobIDFromTaskURL extracts the job ID from a task descriptor URL. Signed
// descriptor URLs have the form <arbitrary>/:jobID/<document>?<query>, so
// the job ID is the parent path segment of the final path component, after
// the query string is removed and the path is percent-decoded.
func JobIDFromTaskURL(taskURL string) (string, error) {
	u, err := url.Parse(taskURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse task url: %w", err)
	}

	jobID := path.Base(path.Dir(u.Path))
	if jobID == "" || jobID == "." || jobID == "/" {
		return "", fmt.Errorf("no job id in task url path %q", u.Path)
	}
	return jobID, nil
}
