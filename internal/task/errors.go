package task

import "fmt"

// TransferError reports a failed download or upload of a named item. The
// transfer layer is not retried here; retry policy belongs to storage.
type TransferError struct {
	Name string
	Op   string
	Err  error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("failed to %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// PublishError reports a failure to publish the task status. Stage is
// "status document" or "job state"; the status document write always comes
// first, so a "job state" failure means the document was already written.
type PublishError struct {
	Stage string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("failed to publish %s: %v", e.Stage, e.Err)
}

func (e *PublishError) Unwrap() error {
	return e.Err
}
