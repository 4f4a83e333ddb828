// Package servicelog records per-machine service events as NDJSON files, one
// file per serial number. Writes are queued and flushed by a background
// goroutine so logging never blocks the session flow.
package servicelog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Event is one service-log record.
type Event struct {
	Timestamp string         `json:"ts"`
	Serial    string         `json:"serial"`
	Direction string         `json:"direction"` // "operator" or "assistant"
	EventType string         `json:"event_type"`
	Content   string         `json:"content,omitempty"`
	Meta      map[string]any `json:"meta,omitempty"`
}

// Logger accepts service events. Implementations must be safe for concurrent
// use and must never block the caller.
type Logger interface {
	Log(event Event)
	Close() error
}

// Config controls the file logger.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// New builds a Logger from config. Disabled config yields a no-op logger.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return noopLogger{}, nil
	}
	return newFileLogger(cfg, logger)
}

type noopLogger struct{}

func (noopLogger) Log(Event)    {}
func (noopLogger) Close() error { return nil }

// fileLogger appends NDJSON lines to <dir>/<serial>.ndjson.
type fileLogger struct {
	dir    string
	queue  chan Event
	done   chan struct{}
	wg     sync.WaitGroup
	logger *slog.Logger

	closeOnce sync.Once
}

func newFileLogger(cfg Config, logger *slog.Logger) (*fileLogger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create service log directory: %w", err)
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}

	l := &fileLogger{
		dir:    cfg.Dir,
		queue:  make(chan Event, queueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

// Log enqueues an event, dropping it if the queue is full.
func (l *fileLogger) Log(event Event) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("service log queue full, dropping event",
			"serial", event.Serial, "event_type", event.EventType)
	}
}

// Close drains the queue and stops the writer.
func (l *fileLogger) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.wg.Wait()
	})
	return nil
}

func (l *fileLogger) run() {
	defer l.wg.Done()
	for {
		select {
		case event := <-l.queue:
			l.write(event)
		case <-l.done:
			// Drain whatever is left before exiting.
			for {
				select {
				case event := <-l.queue:
					l.write(event)
				default:
					return
				}
			}
		}
	}
}

func (l *fileLogger) write(event Event) {
	line, err := json.Marshal(event)
	if err != nil {
		l.logger.Warn("failed to marshal service log event", "error", err)
		return
	}

	path := filepath.Join(l.dir, sanitizeSerial(event.Serial)+".ndjson")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.logger.Warn("failed to open service log file", "path", path, "error", err)
		return
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			l.logger.Warn("failed to close service log file", "path", path, "error", closeErr)
		}
	}()

	if _, err := f.Write(append(line, '\n')); err != nil {
		l.logger.Warn("failed to write service log event", "path", path, "error", err)
	}
}

// sanitizeSerial keeps serial-derived filenames safe on every platform.
func sanitizeSerial(serial string) string {
	if serial == "" {
		return "unknown"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, serial)
}
