package domain

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// TaskState is the lifecycle state of a task.
type TaskState string

const (
	StateScheduled TaskState = "SCHEDULED"
	StateRunning   TaskState = "RUNNING"
	StateComplete  TaskState = "COMPLETE"
	StateFailed    TaskState = "FAILED"
)

// FailureType records which party is responsible for a failed task.
type FailureType string

const (
	FailureUser     FailureType = "USER"
	FailureAnalytic FailureType = "ANALYTIC"
	FailurePlatform FailureType = "PLATFORM"
	FailureNone     FailureType = "NONE"
)

// StatusMessage is a timestamped entry in the task's audit log.
type StatusMessage struct {
	Message string `json:"message"`
	Time    string `json:"time"`
}

// Timestamp returns the current time in the ISO 8601 form used throughout
// the status document.
func Timestamp() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// TaskStatus is the mutable, serializable record of one task's progress.
// Transitions move SCHEDULED -> RUNNING -> {COMPLETE|FAILED}; terminal
// states reject further transitions. All mutation is guarded by a single
// lock so concurrent download workers may append messages and metadata
// safely, with message order reflecting completion order.
type TaskStatus struct {
	mu sync.Mutex

	Analytic     string            `json:"analytic"`
	Version      string            `json:"version"`
	State        TaskState         `json:"state"`
	FailureType  FailureType       `json:"failure_type"`
	StartTime    *string           `json:"start_time"`
	CompleteTime *string           `json:"complete_time"`
	FailTime     *string           `json:"fail_time"`
	Messages     []StatusMessage   `json:"messages"`
	Inputs       map[string]any    `json:"inputs"`
	PostedData   map[string]string `json:"posted_data"`
}

// NewTaskStatus creates the status record for a task, starting in SCHEDULED
// with no failure type and empty message/metadata collections.
func NewTaskStatus(desc *Descriptor) *TaskStatus {
	return &TaskStatus{
		Analytic:    desc.Analytic,
		Version:     desc.Version,
		State:       StateScheduled,
		FailureType: FailureNone,
		Messages:    []StatusMessage{},
		Inputs:      map[string]any{},
		PostedData:  map[string]string{},
	}
}

// Start marks the task as running. Valid only from SCHEDULED; calling it
// twice returns ErrInvalidTransition. An empty msg uses the default
// "Task started". Returns the recorded start timestamp.
func (s *TaskStatus) Start(msg string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateScheduled {
		return "", fmt.Errorf("start from %s: %w", s.State, ErrInvalidTransition)
	}
	if msg == "" {
		msg = "Task started"
	}
	ts := s.appendMessageLocked(msg)
	s.StartTime = &ts
	s.State = StateRunning
	return ts, nil
}

// Complete marks the task as complete. Valid only from RUNNING. An empty
// msg uses the default "Task complete". Returns the recorded completion
// timestamp.
func (s *TaskStatus) Complete(msg string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateRunning {
		return "", fmt.Errorf("complete from %s: %w", s.State, ErrInvalidTransition)
	}
	if msg == "" {
		msg = "Task complete"
	}
	ts := s.appendMessageLocked(msg)
	s.CompleteTime = &ts
	s.State = StateComplete
	return ts, nil
}

// Fail marks the task as failed with the given failure type. Valid from
// SCHEDULED or RUNNING; terminal states reject the call. An empty msg uses
// the default "Task failed". Returns the recorded failure timestamp.
func (s *TaskStatus) Fail(failureType FailureType, msg string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State != StateScheduled && s.State != StateRunning {
		return "", fmt.Errorf("fail from %s: %w", s.State, ErrInvalidTransition)
	}
	if msg == "" {
		msg = "Task failed"
	}
	ts := s.appendMessageLocked(msg)
	s.FailTime = &ts
	s.State = StateFailed
	s.FailureType = failureType
	return ts, nil
}

// AddMessage appends a timestamped message. Always legal, including in
// terminal states. Returns the timestamp of the appended message.
func (s *TaskStatus) AddMessage(msg string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendMessageLocked(msg)
}

func (s *TaskStatus) appendMessageLocked(msg string) string {
	m := StatusMessage{Message: msg, Time: Timestamp()}
	s.Messages = append(s.Messages, m)
	return m.Time
}

// RecordInputMetadata records metadata about a named input, overwriting any
// previous entry for that name.
func (s *TaskStatus) RecordInputMetadata(name string, metadata any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Inputs[name] = metadata
}

// RecordPostedData records the platform data ID assigned to a named output,
// overwriting any previous entry for that name.
func (s *TaskStatus) RecordPostedData(name, dataID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.PostedData[name] = dataID
}

// Snapshot returns the current state and failure type.
func (s *TaskStatus) Snapshot() (TaskState, FailureType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State, s.FailureType
}

// Serialize renders the full status document as JSON.
func (s *TaskStatus) Serialize() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return json.Marshal(s)
}

// ParseTaskStatus parses a serialized status document.
func ParseTaskStatus(data []byte) (*TaskStatus, error) {
	var s TaskStatus
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse task status: %w", err)
	}
	return &s, nil
}
