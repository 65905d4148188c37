// Package encoder runs ffmpeg to produce one HLS rendition of a source file.
package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"hlsladder/core/ladder"
	"hlsladder/core/playlist"
	"hlsladder/logger"
)

// Fixed output parameters of every rendition.
const (
	Channels        = 2
	SampleRate      = 44100
	SegmentSeconds  = 6
	SegmentPattern  = "segment_%03d.ts"
	StderrTailBytes = 500
)

// Result describes a finished rendition.
type Result struct {
	Tier         string
	Playlist     string // local path of the sub-playlist
	SegmentCount int
}

// EncodeError is returned when ffmpeg fails. StderrTail keeps the end of its
// diagnostic output for triage.
type EncodeError struct {
	Tier       string
	ExitCode   int
	StderrTail string
	Err        error
}

func (e *EncodeError) Error() string {
	msg := fmt.Sprintf("encode %s failed (exit %d)", e.Tier, e.ExitCode)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if tail := strings.TrimSpace(e.StderrTail); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// FFmpegEncoder invokes ffmpeg and ffprobe as subprocesses with an argument
// vector; no shell is involved.
type FFmpegEncoder struct {
	ffmpegPath  string
	ffprobePath string
	watch       bool
}

// NewFFmpegEncoder creates an encoder. When ffprobePath is empty it is derived
// from ffmpegPath.
func NewFFmpegEncoder(ffmpegPath, ffprobePath string) *FFmpegEncoder {
	if ffprobePath == "" {
		dir, name := filepath.Split(ffmpegPath)
		ffprobePath = filepath.Join(dir, strings.Replace(name, "ffmpeg", "ffprobe", 1))
	}
	return &FFmpegEncoder{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath, watch: true}
}

// Check verifies that the ffmpeg binary can be found.
func (p *FFmpegEncoder) Check() error {
	if _, err := exec.LookPath(p.ffmpegPath); err != nil {
		return fmt.Errorf("ffmpeg not found at %q: %w", p.ffmpegPath, err)
	}
	return nil
}

// Args returns the ffmpeg argument vector for one rendition.
func Args(sourceFile string, tier ladder.RenditionSpec, outputDir string) []string {
	rate := strconv.Itoa(tier.BitrateKbps) + "k"
	bufsize := strconv.Itoa(tier.BitrateKbps*2) + "k"
	return []string{
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", sourceFile,
		"-vn",
		"-ac", strconv.Itoa(Channels),
		"-ar", strconv.Itoa(SampleRate),
		"-c:a", "aac",
		"-b:a", rate,
		"-minrate", rate,
		"-maxrate", rate,
		"-bufsize", bufsize,
		"-f", "hls",
		"-hls_time", strconv.Itoa(SegmentSeconds),
		"-hls_playlist_type", "vod",
		"-hls_list_size", "0",
		"-start_number", "0",
		"-hls_segment_filename", filepath.Join(outputDir, SegmentPattern),
		filepath.Join(outputDir, ladder.PlaylistName),
	}
}

// Encode writes outputDir/index.m3u8 and its segments. It never retries.
func (p *FFmpegEncoder) Encode(ctx context.Context, sourceFile string, tier ladder.RenditionSpec, outputDir string) (Result, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return Result{}, fmt.Errorf("create output directory %s: %w", outputDir, err)
	}

	var watcher *segmentWatcher
	if p.watch {
		w, err := watchSegments(outputDir, tier.Name)
		if err != nil {
			logger.Debug("segment watcher unavailable", logger.String("dir", outputDir), logger.ErrorField(err))
		} else {
			watcher = w
		}
	}

	args := Args(sourceFile, tier, outputDir)
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)
	stderr := newTailBuffer(StderrTailBytes)
	cmd.Stderr = stderr

	logger.Debug("executing ffmpeg",
		logger.String("tier", tier.Name),
		logger.String("ffmpeg", p.ffmpegPath),
		logger.Strings("args", args))

	runErr := cmd.Run()
	watched := 0
	if watcher != nil {
		watched = watcher.Close()
	}
	if runErr != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return Result{}, &EncodeError{Tier: tier.Name, ExitCode: exitCode, StderrTail: stderr.String(), Err: runErr}
	}

	playlistPath := filepath.Join(outputDir, ladder.PlaylistName)
	data, err := os.ReadFile(playlistPath)
	if err != nil {
		return Result{}, &EncodeError{Tier: tier.Name, StderrTail: stderr.String(), Err: fmt.Errorf("read sub-playlist: %w", err)}
	}
	count := playlist.CountSegments(data)
	if count == 0 {
		return Result{}, &EncodeError{Tier: tier.Name, StderrTail: stderr.String(), Err: errors.New("sub-playlist lists no segments")}
	}
	if watcher != nil && watched != count {
		logger.Debug("segment watcher count differs from playlist",
			logger.String("tier", tier.Name),
			logger.Int("watched", watched),
			logger.Int("listed", count))
	}

	return Result{Tier: tier.Name, Playlist: playlistPath, SegmentCount: count}, nil
}

// ffprobeOutput defines the structure for ffprobe JSON output.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Probe returns the duration of inputFile in seconds.
func (p *FFmpegEncoder) Probe(ctx context.Context, inputFile string) (float64, error) {
	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		inputFile,
	}

	cmd := exec.CommandContext(ctx, p.ffprobePath, args...)
	var out bytes.Buffer
	stderr := newTailBuffer(StderrTailBytes)
	cmd.Stdout = &out
	cmd.Stderr = stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w: %s", inputFile, err, stderr.String())
	}
	return parseDuration(out.Bytes())
}

func parseDuration(raw []byte) (float64, error) {
	var probeData ffprobeOutput
	if err := json.Unmarshal(raw, &probeData); err != nil {
		return 0, fmt.Errorf("unmarshal ffprobe output: %w", err)
	}
	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output")
	}
	duration, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probeData.Format.Duration, err)
	}
	return duration, nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf []byte
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.buf = append(t.buf, p...)
	if over := len(t.buf) - t.max; over > 0 {
		t.buf = append(t.buf[:0], t.buf[over:]...)
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	return string(t.buf)
}
