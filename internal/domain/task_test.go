package domain

import (
	"errors"
	"testing"
)

const validDescriptor = `{
	"analytic": "vehicle-counter",
	"version": "1.2.0",
	"job_id": "job-123",
	"inputs": {
		"video": {"signed_url": "https://storage.example.com/in/video.mp4", "method": "GET"}
	},
	"parameters": {
		"threshold": 0.5,
		"labels": ["car", "truck"],
		"mask": {"signed_url": "https://storage.example.com/in/mask.png", "method": "GET"}
	},
	"status": {"signed_url": "https://storage.example.com/job-123/status.json", "method": "PUT"},
	"logfile": {"signed_url": "https://storage.example.com/job-123/task.log", "method": "PUT"},
	"output": {"signed_url": "https://storage.example.com/out/labels.json", "method": "PUT"}
}`

func TestParseDescriptor(t *testing.T) {
	desc, err := ParseDescriptor([]byte(validDescriptor))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}

	if desc.Analytic != "vehicle-counter" || desc.Version != "1.2.0" || desc.JobID != "job-123" {
		t.Fatalf("unexpected identity: %+v", desc)
	}
	if len(desc.Inputs) != 1 {
		t.Fatalf("expected 1 input, got %d", len(desc.Inputs))
	}
	if desc.Inputs["video"].SignedURL != "https://storage.example.com/in/video.mp4" {
		t.Fatalf("unexpected input spec: %+v", desc.Inputs["video"])
	}
	if desc.Output == nil || desc.Output.SignedURL != "https://storage.example.com/out/labels.json" {
		t.Fatalf("unexpected output: %+v", desc.Output)
	}
}

func TestParseDescriptorParameterDiscrimination(t *testing.T) {
	desc, err := ParseDescriptor([]byte(validDescriptor))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}

	threshold, ok := desc.Parameters["threshold"]
	if !ok || threshold.IsData() {
		t.Fatalf("threshold should be a literal parameter")
	}
	if v, ok := threshold.Literal().(float64); !ok || v != 0.5 {
		t.Fatalf("unexpected threshold value: %v", threshold.Literal())
	}

	labels := desc.Parameters["labels"]
	if labels.IsData() {
		t.Fatalf("labels should be a literal parameter")
	}

	mask, ok := desc.Parameters["mask"]
	if !ok || !mask.IsData() {
		t.Fatalf("mask should be a data parameter")
	}
	if mask.Location().SignedURL != "https://storage.example.com/in/mask.png" {
		t.Fatalf("unexpected mask location: %+v", mask.Location())
	}
}

func TestParseDescriptorDefaults(t *testing.T) {
	doc := `{
		"analytic": "a", "version": "1", "job_id": "j",
		"status": {"signed_url": "https://s/status.json"},
		"logfile": {"signed_url": "https://s/task.log"}
	}`
	desc, err := ParseDescriptor([]byte(doc))
	if err != nil {
		t.Fatalf("ParseDescriptor: %v", err)
	}
	if len(desc.Inputs) != 0 || len(desc.Parameters) != 0 {
		t.Fatalf("expected empty inputs and parameters, got %+v", desc)
	}
	if desc.Output != nil {
		t.Fatalf("expected absent output, got %+v", desc.Output)
	}
}

func TestParseDescriptorMissingRequired(t *testing.T) {
	cases := []struct {
		name  string
		doc   string
		field string
	}{
		{
			name:  "analytic",
			doc:   `{"version": "1", "job_id": "j", "status": {"signed_url": "u"}, "logfile": {"signed_url": "u"}}`,
			field: "analytic",
		},
		{
			name:  "version",
			doc:   `{"analytic": "a", "job_id": "j", "status": {"signed_url": "u"}, "logfile": {"signed_url": "u"}}`,
			field: "version",
		},
		{
			name:  "job_id",
			doc:   `{"analytic": "a", "version": "1", "status": {"signed_url": "u"}, "logfile": {"signed_url": "u"}}`,
			field: "job_id",
		},
		{
			name:  "status",
			doc:   `{"analytic": "a", "version": "1", "job_id": "j", "logfile": {"signed_url": "u"}}`,
			field: "status",
		},
		{
			name:  "logfile",
			doc:   `{"analytic": "a", "version": "1", "job_id": "j", "status": {"signed_url": "u"}}`,
			field: "logfile",
		},
		{
			name:  "input missing signed_url",
			doc:   `{"analytic": "a", "version": "1", "job_id": "j", "status": {"signed_url": "u"}, "logfile": {"signed_url": "u"}, "inputs": {"video": {"method": "GET"}}}`,
			field: "inputs.video",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseDescriptor([]byte(tc.doc))
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, cfgErr.Field)
			}
		})
	}
}

func TestParseDescriptorMalformed(t *testing.T) {
	_, err := ParseDescriptor([]byte("not json"))
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestIsLocationSpec(t *testing.T) {
	cases := []struct {
		name string
		v    any
		want bool
	}{
		{"spec map", map[string]any{"signed_url": "https://s/x", "method": "GET"}, true},
		{"url only", map[string]any{"signed_url": "https://s/x"}, true},
		{"empty url", map[string]any{"signed_url": ""}, false},
		{"non-string url", map[string]any{"signed_url": 7.0}, false},
		{"plain map", map[string]any{"url": "https://s/x"}, false},
		{"scalar", 5.0, false},
		{"string", "https://s/x", false},
		{"nil", nil, false},
	}
	for _, tc := range cases {
		if got := IsLocationSpec(tc.v); got != tc.want {
			t.Errorf("%s: IsLocationSpec = %v, want %v", tc.name, got, tc.want)
		}
	}
}
