package task

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/nsbb/platform-sdk/internal/domain"
	"github.com/nsbb/platform-sdk/internal/platform"
	"github.com/nsbb/platform-sdk/internal/remote"
)

type orderRecorder struct {
	mu     sync.Mutex
	events []string
}

func (r *orderRecorder) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

type orderedPlatform struct {
	rec *orderRecorder
}

func (p *orderedPlatform) UpdateJobState(ctx context.Context, jobID string, state domain.TaskState, failureType domain.FailureType) error {
	p.rec.record("job state")
	return nil
}

func (p *orderedPlatform) PostJobMetadata(ctx context.Context, jobID string, metadata platform.JobMetadata) error {
	return nil
}

func (p *orderedPlatform) UploadJobOutputAsData(ctx context.Context, jobID, localPath string) (string, error) {
	return "", errors.New("not implemented")
}

func TestPublishWritesDocumentBeforeJobState(t *testing.T) {
	rec := &orderRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		rec.record("status document")
	}))
	defer srv.Close()

	transfer := remote.NewTransfer(remote.TransferConfig{})
	statusLoc := transfer.Location(domain.LocationSpec{SignedURL: srv.URL + "/status.json", Method: http.MethodPut})
	pub := NewPublisher("job-1", statusLoc, &orderedPlatform{rec: rec}, zap.NewNop())

	desc := &domain.Descriptor{Analytic: "a", Version: "1", JobID: "job-1"}
	status := domain.NewTaskStatus(desc)

	if err := pub.Publish(context.Background(), status); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if len(rec.events) != 2 || rec.events[0] != "status document" || rec.events[1] != "job state" {
		t.Fatalf("publish effects out of order: %v", rec.events)
	}
}

func TestPublishStopsWhenDocumentWriteFails(t *testing.T) {
	rec := &orderRecorder{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()

	transfer := remote.NewTransfer(remote.TransferConfig{})
	statusLoc := transfer.Location(domain.LocationSpec{SignedURL: srv.URL + "/status.json", Method: http.MethodPut})
	pub := NewPublisher("job-1", statusLoc, &orderedPlatform{rec: rec}, zap.NewNop())

	status := domain.NewTaskStatus(&domain.Descriptor{Analytic: "a", Version: "1", JobID: "job-1"})

	err := pub.Publish(context.Background(), status)
	var perr *PublishError
	if !errors.As(err, &perr) || perr.Stage != "status document" {
		t.Fatalf("expected status document PublishError, got %v", err)
	}
	if len(rec.events) != 0 {
		t.Fatalf("job state must not be reported after a document write failure: %v", rec.events)
	}
}

func TestPublishReportsFailureTypeOnlyWhenFailed(t *testing.T) {
	fs := newFakeStorage(t)
	pc := &fakePlatform{}
	statusSpec := fs.spec("/jobs/job-1/status.json", http.MethodPut)

	transfer := remote.NewTransfer(remote.TransferConfig{})
	pub := NewPublisher("job-1", transfer.Location(statusSpec), pc, zap.NewNop())

	status := domain.NewTaskStatus(&domain.Descriptor{Analytic: "a", Version: "1", JobID: "job-1"})
	if _, err := status.Fail(domain.FailureUser, ""); err != nil {
		t.Fatalf("Fail: %v", err)
	}

	if err := pub.Publish(context.Background(), status); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if len(pc.states) != 1 || pc.states[0].failureType != domain.FailureUser {
		t.Fatalf("failure type not reported with FAILED state: %+v", pc.states)
	}
}
