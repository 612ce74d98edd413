package audit

import (
	"fmt"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is the durable, rotated record of orchestration cycles and harness
// runs. Each entry is written as a single timestamped line; the underlying
// writer is serialized so concurrent writers never interleave partial lines.
type Logger struct {
	mu     sync.Mutex
	out    *lumberjack.Logger
	now    func() time.Time
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// Options controls audit log placement and retention
type Options struct {
	// Path is the current log file; rotated generations live alongside it
	Path string

	// MaxGenerations is the number of compressed rotations retained
	MaxGenerations int

	// RotateEvery is the rotation cadence (default 24h)
	RotateEvery time.Duration
}

// New opens (or creates) the audit log at opts.Path and starts the rotation
// timer. Rotation closes the current file, renames it, compresses it, and
// reopens a fresh file, so no in-flight write is lost.
func New(opts Options) *Logger {
	if opts.MaxGenerations == 0 {
		opts.MaxGenerations = 7
	}
	if opts.RotateEvery == 0 {
		opts.RotateEvery = 24 * time.Hour
	}

	l := &Logger{
		out: &lumberjack.Logger{
			Filename: opts.Path,
			// Rotation is time-driven; the size ceiling is only a backstop
			// against a runaway writer between ticks.
			MaxSize:    512, // megabytes
			MaxBackups: opts.MaxGenerations,
			Compress:   true,
		},
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	l.wg.Add(1)
	go l.rotateLoop(opts.RotateEvery)

	return l
}

// Event appends one timestamped line to the audit log
func (l *Logger) Event(component, msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	line := fmt.Sprintf("%s [%s] %s\n", l.now().UTC().Format(time.RFC3339), component, msg)
	if _, err := l.out.Write([]byte(line)); err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// Eventf appends a formatted timestamped line to the audit log
func (l *Logger) Eventf(component, format string, args ...interface{}) error {
	return l.Event(component, fmt.Sprintf(format, args...))
}

// rotateLoop rotates the current file on a fixed cadence
func (l *Logger) rotateLoop(every time.Duration) {
	defer l.wg.Done()

	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.mu.Lock()
			_ = l.out.Rotate()
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

// Close stops the rotation timer and closes the current file
func (l *Logger) Close() error {
	close(l.stopCh)
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}
