package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worker.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
platform:
  api_url: https://api.example.com
  api_token: secret
  timeout: 10s
worker:
  work_dir: /var/lib/worker
  analytic_command: ["python3", "analytic.py"]
  analytic_timeout: 30m
logger:
  level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Platform.APIURL != "https://api.example.com" || cfg.Platform.APIToken != "secret" {
		t.Fatalf("platform config not loaded: %+v", cfg.Platform)
	}
	if cfg.Platform.Timeout != 10*time.Second {
		t.Fatalf("timeout %v, want 10s", cfg.Platform.Timeout)
	}
	if len(cfg.Worker.AnalyticCommand) != 2 || cfg.Worker.AnalyticCommand[0] != "python3" {
		t.Fatalf("analytic command not loaded: %+v", cfg.Worker.AnalyticCommand)
	}
	if cfg.Logger.Level != "debug" {
		t.Fatalf("logger level %q, want debug", cfg.Logger.Level)
	}
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
platform:
  api_url: https://api.example.com
  api_token: secret
worker:
  analytic_command: ["run"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Platform.Timeout != 30*time.Second {
		t.Fatalf("default platform timeout %v, want 30s", cfg.Platform.Timeout)
	}
	if cfg.Worker.TransferTimeout != 5*time.Minute {
		t.Fatalf("default transfer timeout %v, want 5m", cfg.Worker.TransferTimeout)
	}
	if cfg.Worker.WorkDir == "" {
		t.Fatalf("work dir default not applied")
	}
	if cfg.Logger.Level != "info" {
		t.Fatalf("default logger level %q, want info", cfg.Logger.Level)
	}
}

func TestLoadValidation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "missing api url",
			content: `
platform:
  api_token: secret
worker:
  analytic_command: ["run"]
`,
			wantErr: "platform.api_url",
		},
		{
			name: "missing token",
			content: `
platform:
  api_url: https://api.example.com
worker:
  analytic_command: ["run"]
`,
			wantErr: "platform.api_token",
		},
		{
			name: "missing analytic command",
			content: `
platform:
  api_url: https://api.example.com
  api_token: secret
`,
			wantErr: "worker.analytic_command",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content))
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}

func TestTaskURLFromEnv(t *testing.T) {
	t.Setenv(TaskDescriptionEnvVar, "https://storage.example.com/projects/job-1/task.json?sig=x")
	url, err := TaskURLFromEnv()
	if err != nil {
		t.Fatalf("TaskURLFromEnv: %v", err)
	}
	if !strings.HasPrefix(url, "https://storage.example.com") {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestTaskURLFromEnvMissing(t *testing.T) {
	t.Setenv(TaskDescriptionEnvVar, "")
	if _, err := TaskURLFromEnv(); err == nil {
		t.Fatalf("expected error when %s is unset", TaskDescriptionEnvVar)
	}
}
