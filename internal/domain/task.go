package domain

import (
	"encoding/json"
	"fmt"
)

// Descriptor is the immutable declaration of one task: the analytic to run,
// the job it belongs to, its named inputs and parameters, and the remote
// locations where status, logfile and output are published.
type Descriptor struct {
	Analytic   string
	Version    string
	JobID      string
	Inputs     map[string]LocationSpec
	Parameters map[string]Parameter
	Status     LocationSpec
	Logfile    LocationSpec
	Output     *LocationSpec
}

// Parameter is a tagged variant: either a literal value carried inline in
// the descriptor, or a reference to remote data that must be downloaded
// before use. The classification happens once, at parse time.
type Parameter struct {
	literal  any
	location *LocationSpec
}

// LiteralParameter wraps an inline parameter value.
func LiteralParameter(v any) Parameter {
	return Parameter{literal: v}
}

// DataParameter wraps a remote data reference.
func DataParameter(spec LocationSpec) Parameter {
	return Parameter{location: &spec}
}

// IsData reports whether the parameter refers to remote data.
func (p Parameter) IsData() bool {
	return p.location != nil
}

// Literal returns the inline value. Only meaningful when IsData is false.
func (p Parameter) Literal() any {
	return p.literal
}

// Location returns the remote reference. Only meaningful when IsData is true.
func (p Parameter) Location() LocationSpec {
	if p.location == nil {
		return LocationSpec{}
	}
	return *p.location
}

type descriptorDoc struct {
	Analytic   string                     `json:"analytic"`
	Version    string                     `json:"version"`
	JobID      string                     `json:"job_id"`
	Inputs     map[string]LocationSpec    `json:"inputs"`
	Parameters map[string]json.RawMessage `json:"parameters"`
	Status     *LocationSpec              `json:"status"`
	Logfile    *LocationSpec              `json:"logfile"`
	Output     *LocationSpec              `json:"output"`
}

// ParseDescriptor parses a task descriptor document. Required fields are
// analytic, version, job_id, status and logfile; inputs and parameters
// default to empty and output to absent.
func ParseDescriptor(data []byte) (*Descriptor, error) {
	var doc descriptorDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, NewConfigError("", fmt.Sprintf("malformed document: %v", err))
	}

	if doc.Analytic == "" {
		return nil, NewConfigError("analytic", "is required")
	}
	if doc.Version == "" {
		return nil, NewConfigError("version", "is required")
	}
	if doc.JobID == "" {
		return nil, NewConfigError("job_id", "is required")
	}
	if doc.Status == nil || doc.Status.SignedURL == "" {
		return nil, NewConfigError("status", "is required")
	}
	if doc.Logfile == nil || doc.Logfile.SignedURL == "" {
		return nil, NewConfigError("logfile", "is required")
	}
	if doc.Output != nil && doc.Output.SignedURL == "" {
		return nil, NewConfigError("output", "is missing signed_url")
	}

	desc := &Descriptor{
		Analytic:   doc.Analytic,
		Version:    doc.Version,
		JobID:      doc.JobID,
		Inputs:     make(map[string]LocationSpec, len(doc.Inputs)),
		Parameters: make(map[string]Parameter, len(doc.Parameters)),
		Status:     *doc.Status,
		Logfile:    *doc.Logfile,
		Output:     doc.Output,
	}

	for name, spec := range doc.Inputs {
		if spec.SignedURL == "" {
			return nil, NewConfigError("inputs."+name, "is missing signed_url")
		}
		desc.Inputs[name] = spec
	}

	for name, raw := range doc.Parameters {
		param, err := parseParameter(raw)
		if err != nil {
			return nil, NewConfigError("parameters."+name, err.Error())
		}
		desc.Parameters[name] = param
	}

	return desc, nil
}

func parseParameter(raw json.RawMessage) (Parameter, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Parameter{}, fmt.Errorf("is malformed: %v", err)
	}
	if !IsLocationSpec(v) {
		return LiteralParameter(v), nil
	}

	var spec LocationSpec
	if err := json.Unmarshal(raw, &spec); err != nil {
		return Parameter{}, fmt.Errorf("has an invalid location spec: %v", err)
	}
	return DataParameter(spec), nil
}
