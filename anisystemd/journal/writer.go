package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"github.com/pyw0w/AniSystemd/anisystemd"
)

// Event describes the JSON structure of an event to be written.
type Event struct {
	Time time.Time        `json:"time"`
	Type string           `json:"type"`
	Data anisystemd.Event `json:"data"`
}

// Writer is a simple journaler that writes line-delimited JSON events into the
// writer.
type Writer struct{ w io.Writer }

var _ anisystemd.Journaler = Writer{}

// NewWriter creates a new journal writer.
func NewWriter(w io.Writer) Writer {
	return Writer{w}
}

// Write writes the given event into the writer. Each event is written with a
// single Write call, so writes to an O_APPEND file are atomic.
func (l Writer) Write(ev anisystemd.Event) error {
	evJSON := Event{
		Time: time.Now(),
		Type: ev.Type(),
		Data: ev,
	}

	buf := bytes.Buffer{}
	buf.Grow(512)

	// Encode appends the trailing new line.
	if err := json.NewEncoder(&buf).Encode(evJSON); err != nil {
		return errors.Wrap(err, "failed to marshal event")
	}

	_, err := l.w.Write(buf.Bytes())
	if err != nil {
		return errors.Wrap(err, "failed to write event")
	}

	return nil
}

// LogWriter is a journaler that renders events through a structured logger,
// so they end up in the service's stderr and thus in journald.
type LogWriter struct {
	l *slog.Logger
}

var _ anisystemd.Journaler = (*LogWriter)(nil)

// NewLogWriter creates a journaler that logs to l.
func NewLogWriter(l *slog.Logger) *LogWriter {
	return &LogWriter{l}
}

// Write logs the event with the event type as the message.
func (w *LogWriter) Write(ev anisystemd.Event) error {
	w.l.LogAttrs(context.Background(), Level(ev), ev.Type(), slog.Any("data", ev))
	return nil
}

// Level returns the log level an event is logged at.
func Level(ev anisystemd.Event) slog.Level {
	switch ev := ev.(type) {
	case *anisystemd.EventWarning,
		*anisystemd.EventNotifyFailed,
		*anisystemd.EventWorkerSpawnError:
		return slog.LevelWarn
	case *anisystemd.EventOutcome:
		if ev.Error != "" {
			return slog.LevelError
		}
	case *anisystemd.EventWorkerExited:
		if ev.ExitCode != 0 {
			return slog.LevelWarn
		}
	}
	return slog.LevelInfo
}
