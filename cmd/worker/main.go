package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nsbb/platform-sdk/internal/config"
	"github.com/nsbb/platform-sdk/internal/domain"
	"github.com/nsbb/platform-sdk/internal/executor"
	"github.com/nsbb/platform-sdk/internal/platform"
	"github.com/nsbb/platform-sdk/internal/remote"
	"github.com/nsbb/platform-sdk/internal/stats"
	"github.com/nsbb/platform-sdk/internal/task"
)

const Version = "0.1.0"

// analyticFailure marks errors raised by the analytic subprocess so the
// failure type can be attributed to the analytic rather than the platform.
type analyticFailure struct {
	err error
}

func (e *analyticFailure) Error() string { return e.err.Error() }
func (e *analyticFailure) Unwrap() error { return e.err }

func main() {
	configPath := flag.String("config", "worker.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		os.Exit(2)
	}

	taskURL, err := config.TaskURLFromEnv()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	runID := uuid.New().String()
	workDir := filepath.Join(cfg.Worker.WorkDir, "task-"+runID)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		fmt.Fprintln(os.Stderr, "failed to create work dir:", err)
		os.Exit(2)
	}

	logfilePath := cfg.Logger.LogPath
	if logfilePath == "" {
		logfilePath = filepath.Join(workDir, "task.log")
	}

	logger := initLogger(cfg.Logger.Level, logfilePath)
	defer logger.Sync()

	logger.Info("starting worker",
		zap.String("version", Version),
		zap.String("run_id", runID),
		zap.String("platform", cfg.Platform.APIURL),
	)

	platformClient := platform.NewClient(platform.ClientConfig{
		BaseURL:  cfg.Platform.APIURL,
		APIToken: cfg.Platform.APIToken,
		Timeout:  cfg.Platform.Timeout,
		Logger:   logger,
	})
	transfer := remote.NewTransfer(remote.TransferConfig{
		Timeout: cfg.Worker.TransferTimeout,
		Logger:  logger,
	})

	ctx := context.Background()

	mgr, err := task.NewManagerFromURL(ctx, taskURL, task.ManagerConfig{
		Platform: platformClient,
		Transfer: transfer,
		Logger:   logger,
	})
	if err != nil {
		// No descriptor means no status and no known publication targets.
		task.FailEpically(ctx, taskURL, platformClient, err, logger)
		os.Exit(1)
	}

	if err := run(ctx, cfg, mgr, workDir, logger); err != nil {
		mgr.FailGracefully(ctx, classifyFailure(err), err, logfilePath)
		os.Exit(1)
	}

	if err := mgr.Complete(ctx, logfilePath); err != nil {
		logger.Error("failed to complete task", zap.Error(err))
		mgr.FailGracefully(ctx, classifyFailure(err), err, logfilePath)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, mgr *task.Manager, workDir string, logger *zap.Logger) error {
	snap := stats.Collect()
	logger.Info("host_snapshot",
		zap.String("hostname", snap.Hostname),
		zap.Float64("cpu", snap.CPUUsage),
		zap.Float64("ram", snap.RAMUsage),
		zap.String("platform", snap.Platform),
	)

	if err := mgr.Start(ctx); err != nil {
		return err
	}

	inputsDir := filepath.Join(workDir, "inputs")
	dataDir := filepath.Join(workDir, "data")
	outputDir := filepath.Join(workDir, "out")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}

	inputs, err := mgr.DownloadInputs(ctx, inputsDir)
	if err != nil {
		return err
	}
	parameters, err := mgr.ParseParameters(ctx, dataDir)
	if err != nil {
		return err
	}

	recordVideoMetadata(ctx, mgr, inputs, logger)

	if err := mgr.PublishStatus(ctx); err != nil {
		return err
	}

	exec := executor.New(cfg.Worker.AnalyticTimeout, logger)
	if _, err := exec.Execute(ctx, executor.Run{
		Command:    cfg.Worker.AnalyticCommand,
		Inputs:     inputs,
		Parameters: parameters,
		OutputDir:  outputDir,
		WorkDir:    workDir,
	}); err != nil {
		return &analyticFailure{err: err}
	}

	return publishOutputs(ctx, mgr, outputDir)
}

// recordVideoMetadata best-effort derives and reports video metadata for a
// single-input task. Inputs that ffprobe cannot read are skipped; metadata
// is informational and must not fail the task.
func recordVideoMetadata(ctx context.Context, mgr *task.Manager, inputs map[string]string, logger *zap.Logger) {
	if len(inputs) != 1 {
		return
	}
	for name, path := range inputs {
		if err := mgr.RecordVideoInputMetadata(ctx, name, path); err != nil {
			logger.Warn("failed to inspect input video", zap.String("input", name), zap.Error(err))
			return
		}
		if err := mgr.PostJobMetadataForVideo(ctx, path); err != nil {
			logger.Warn("failed to post job metadata", zap.Error(err))
		}
	}
}

// publishOutputs uploads everything the analytic left in outputDir: to the
// declared output location when the descriptor has one, otherwise through
// the platform's data ingestion path.
func publishOutputs(ctx context.Context, mgr *task.Manager, outputDir string) error {
	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return fmt.Errorf("failed to read output dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		outputPath := filepath.Join(outputDir, entry.Name())
		if mgr.Descriptor().Output != nil {
			if err := mgr.UploadOutput(ctx, outputPath); err != nil {
				return err
			}
			continue
		}
		if _, err := mgr.UploadOutputAsData(ctx, entry.Name(), outputPath); err != nil {
			return err
		}
	}
	return nil
}

func classifyFailure(err error) domain.FailureType {
	var af *analyticFailure
	if errors.As(err, &af) {
		return domain.FailureAnalytic
	}
	return domain.FailurePlatform
}

func initLogger(level, logfilePath string) *zap.Logger {
	parsedLevel, err := zapcore.ParseLevel(level)
	if err != nil {
		parsedLevel = zapcore.InfoLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	consoleCore := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		parsedLevel,
	)
	cores := []zapcore.Core{consoleCore}

	// The task logfile doubles as the logfile uploaded on complete/fail.
	if file, err := os.OpenFile(logfilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644); err == nil {
		fileCore := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			zapcore.AddSync(file),
			parsedLevel,
		)
		cores = append(cores, fileCore)
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller())
}
