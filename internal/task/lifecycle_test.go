package task

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"go.uber.org/zap"

	"github.com/nsbb/platform-sdk/internal/domain"
	"github.com/nsbb/platform-sdk/internal/remote"
)

const descriptorDoc = `{
	"analytic": "vehicle-counter",
	"version": "1.2.0",
	"job_id": "job-123",
	"status": {"signed_url": "https://s/jobs/job-123/status.json", "method": "PUT"},
	"logfile": {"signed_url": "https://s/jobs/job-123/task.log", "method": "PUT"}
}`

func TestDownloadDescriptor(t *testing.T) {
	fs := newFakeStorage(t)
	fs.put("/projects/job-123/task.json", []byte(descriptorDoc))

	transfer := remote.NewTransfer(remote.TransferConfig{})
	desc, err := DownloadDescriptor(context.Background(),
		fs.srv.URL+"/projects/job-123/task.json?sig=x", transfer, zap.NewNop())
	if err != nil {
		t.Fatalf("DownloadDescriptor: %v", err)
	}
	if desc.JobID != "job-123" || desc.Analytic != "vehicle-counter" {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
}

func TestDownloadDescriptorTransferError(t *testing.T) {
	fs := newFakeStorage(t)

	transfer := remote.NewTransfer(remote.TransferConfig{})
	_, err := DownloadDescriptor(context.Background(),
		fs.srv.URL+"/projects/job-123/task.json", transfer, zap.NewNop())

	var terr *TransferError
	if !errors.As(err, &terr) || terr.Name != "task descriptor" {
		t.Fatalf("expected descriptor TransferError, got %v", err)
	}
}

func TestDownloadDescriptorMalformed(t *testing.T) {
	fs := newFakeStorage(t)
	fs.put("/projects/job-123/task.json", []byte(`{"analytic": "a"}`))

	transfer := remote.NewTransfer(remote.TransferConfig{})
	_, err := DownloadDescriptor(context.Background(),
		fs.srv.URL+"/projects/job-123/task.json", transfer, zap.NewNop())

	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestNewManagerFromURL(t *testing.T) {
	fs := newFakeStorage(t)
	fs.put("/projects/job-123/task.json", []byte(descriptorDoc))

	mgr, err := NewManagerFromURL(context.Background(),
		fs.srv.URL+"/projects/job-123/task.json", ManagerConfig{
			Platform: &fakePlatform{},
			Transfer: remote.NewTransfer(remote.TransferConfig{}),
			Logger:   zap.NewNop(),
		})
	if err != nil {
		t.Fatalf("NewManagerFromURL: %v", err)
	}

	state, failureType := mgr.Status().Snapshot()
	if state != domain.StateScheduled || failureType != domain.FailureNone {
		t.Fatalf("fresh status should be SCHEDULED/NONE, got %s/%s", state, failureType)
	}
	if mgr.Descriptor().Status.Method != http.MethodPut {
		t.Fatalf("descriptor not parsed: %+v", mgr.Descriptor())
	}
}
