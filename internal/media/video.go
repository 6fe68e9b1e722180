// Package media derives standard metadata from video files via ffprobe.
package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strconv"
	"strings"
)

// VideoMetadata carries the fields the platform records for a video input.
type VideoMetadata struct {
	FrameCount      int64   `json:"frame_count"`
	DurationSeconds float64 `json:"duration_seconds"`
	SizeBytes       int64   `json:"size_bytes"`
}

type probeStream struct {
	CodecType    string `json:"codec_type"`
	NBFrames     string `json:"nb_frames"`
	AvgFrameRate string `json:"avg_frame_rate"`
	Duration     string `json:"duration"`
}

type probeFormat struct {
	Duration string `json:"duration"`
	Size     string `json:"size"`
}

type probeResult struct {
	Streams []probeStream `json:"streams"`
	Format  probeFormat   `json:"format"`
}

// InspectVideo runs ffprobe against the given path and derives frame count,
// duration and size. An empty binary defaults to "ffprobe" on PATH.
func InspectVideo(ctx context.Context, binary, videoPath string) (VideoMetadata, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(videoPath) == "" {
		return VideoMetadata{}, errors.New("ffprobe inspect: empty path")
	}

	cmd := exec.CommandContext(ctx, binary,
		"-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", videoPath)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return VideoMetadata{}, fmt.Errorf("ffprobe inspect: %w: %s", err, strings.TrimSpace(string(output)))
	}

	vm, err := parseProbeOutput(output)
	if err != nil {
		return VideoMetadata{}, err
	}
	if vm.SizeBytes == 0 {
		if info, statErr := os.Stat(videoPath); statErr == nil {
			vm.SizeBytes = info.Size()
		}
	}
	return vm, nil
}

func parseProbeOutput(output []byte) (VideoMetadata, error) {
	var result probeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return VideoMetadata{}, fmt.Errorf("ffprobe parse: %w", err)
	}

	vm := VideoMetadata{
		DurationSeconds: parseFloat(result.Format.Duration),
		SizeBytes:       parseInt(result.Format.Size),
	}

	for _, stream := range result.Streams {
		if !strings.EqualFold(stream.CodecType, "video") {
			continue
		}
		if frames := parseInt(stream.NBFrames); frames > 0 {
			vm.FrameCount = frames
			break
		}
		// Some containers omit nb_frames; estimate from the frame rate.
		duration := parseFloat(stream.Duration)
		if duration == 0 {
			duration = vm.DurationSeconds
		}
		if fps := parseFrameRate(stream.AvgFrameRate); fps > 0 && duration > 0 {
			vm.FrameCount = int64(math.Round(duration * fps))
		}
		break
	}

	return vm, nil
}

func parseFrameRate(value string) float64 {
	num, den, ok := strings.Cut(strings.TrimSpace(value), "/")
	if !ok {
		return parseFloat(value)
	}
	n := parseFloat(num)
	d := parseFloat(den)
	if d == 0 {
		return 0
	}
	return n / d
}

func parseFloat(value string) float64 {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return 0
	}
	parsed, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return parsed
}

func parseInt(value string) int64 {
	parsed := parseFloat(value)
	if parsed < 0 {
		return 0
	}
	return int64(parsed)
}
