package transcode

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// stderrTailSize bounds how much ffmpeg diagnostic output a TranscodeError
// carries.
const stderrTailSize = 8 * 1024

// Runner executes the codec tool for one plan.
type Runner struct {
	FFmpegPath string
	Logger     *slog.Logger
}

// Run invokes ffmpeg with the plan's arguments and blocks until it exits.
// A non-zero exit produces a TranscodeError carrying the tail of stderr.
func (r Runner) Run(ctx context.Context, plan *Plan) error {
	if plan == nil {
		return errors.New("transcode plan is required")
	}
	binary := r.FFmpegPath
	if binary == "" {
		binary = "ffmpeg"
	}
	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tail := &tailBuffer{limit: stderrTailSize}
	cmd := exec.CommandContext(ctx, binary, plan.Args...)
	cmd.Stdout = newLogWriter(logger, "stdout")
	cmd.Stderr = io.MultiWriter(newLogWriter(logger, "stderr"), tail)

	logger.Info("ffmpeg starting", "binary", binary, "renditions", len(plan.Renditions))
	if err := cmd.Run(); err != nil {
		exitCode := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
		return &TranscodeError{ExitCode: exitCode, Output: tail.String(), Err: err}
	}
	logger.Info("ffmpeg completed")
	return nil
}

// tailBuffer keeps the last limit bytes written to it.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	limit int
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.buf = append(t.buf, p...)
	if len(t.buf) > t.limit {
		t.buf = t.buf[len(t.buf)-t.limit:]
	}
	return len(p), nil
}

func (t *tailBuffer) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(bytes.TrimSpace(t.buf))
}

// logWriter forwards process output to the logger one line at a time.
type logWriter struct {
	logger *slog.Logger
	stream string
	mu     sync.Mutex
	rest   []byte
}

func newLogWriter(logger *slog.Logger, stream string) *logWriter {
	return &logWriter{logger: logger, stream: stream}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := len(p)
	data := append(w.rest, p...)
	for {
		idx := bytes.IndexByte(data, '\n')
		if idx == -1 {
			break
		}
		line := bytes.TrimSpace(data[:idx])
		data = data[idx+1:]
		if len(line) == 0 {
			continue
		}
		w.logger.Debug("ffmpeg output", "stream", w.stream, "line", string(line))
	}
	w.rest = append(w.rest[:0], data...)
	return total, nil
}
