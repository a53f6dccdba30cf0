package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/pyw0w/AniSystemd/anisystemd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLockJournaler(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "journal.json")

	j, err := NewFileLockJournaler(path)
	require.NoError(t, err)

	_, err = NewFileLockJournaler(path)
	assert.True(t, errors.Is(err, ErrLockedElsewhere), "second lock: %v", err)

	require.NoError(t, j.Write(&anisystemd.EventReady{}))
	require.NoError(t, j.Write(&anisystemd.EventRestartRequested{Paths: []string{"x_plugin.so"}}))
	require.NoError(t, j.Write(&anisystemd.EventOutcome{Outcome: "plugin changed", Restart: true}))
	require.NoError(t, j.Close())

	entries, err := ReadFile(path, 0)
	require.NoError(t, err)
	require.Len(t, entries, 4)

	// Newest first.
	assert.Equal(t, &anisystemd.EventOutcome{Outcome: "plugin changed", Restart: true}, entries[0].Event)
	assert.Equal(t, &anisystemd.EventRestartRequested{Paths: []string{"x_plugin.so"}}, entries[1].Event)
	assert.Equal(t, &anisystemd.EventReady{}, entries[2].Event)
	assert.Equal(t, &anisystemd.EventAcquired{}, entries[3].Event)
	assert.False(t, entries[0].Time.IsZero())

	last, err := ReadFile(path, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "outcome", last[0].Event.Type())

	// Released, so it can be taken again.
	j, err = NewFileLockJournaler(path)
	require.NoError(t, err)
	j.Close()
}

func TestFileLockJournalerWait(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")

	j, err := NewFileLockJournaler(path)
	require.NoError(t, err)
	defer j.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = NewFileLockJournalerWait(ctx, path)
	assert.Error(t, err)
}

func TestReaderBadLines(t *testing.T) {
	t.Run("unknown event", func(t *testing.T) {
		r := NewReader(strings.NewReader(`{"type":"nope","data":{}}` + "\n"))
		_, _, err := r.Read()
		assert.EqualError(t, err, `unknown event "nope"`)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := ReadLast(strings.NewReader("not json\n"), 0)

		var corrupt *CorruptError
		require.True(t, errors.As(err, &corrupt), "unexpected error: %v", err)
		assert.Equal(t, 1, corrupt.Skipped)
		assert.Equal(t, []byte("not json"), corrupt.First.Line)
	})
}

func TestReadFileTornLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.json")

	j, err := NewFileLockJournaler(path)
	require.NoError(t, err)
	require.NoError(t, j.Write(&anisystemd.EventReady{}))
	require.NoError(t, j.Write(&anisystemd.EventInterrupted{}))
	require.NoError(t, j.Close())

	// A write cut short by SIGKILL leaves a partial line at the end.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	_, err = f.WriteString(`{"time":"2026-10-16T00:00:00Z","type":"outc`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	entries, err := ReadFile(path, 2)

	var corrupt *CorruptError
	require.True(t, errors.As(err, &corrupt), "unexpected error: %v", err)
	assert.Equal(t, 1, corrupt.Skipped)

	require.Len(t, entries, 2)
	assert.Equal(t, &anisystemd.EventInterrupted{}, entries[0].Event)
	assert.Equal(t, &anisystemd.EventReady{}, entries[1].Event)
}

func TestWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)

	require.NoError(t, w.Write(&anisystemd.EventArtifactChanged{
		Kind:  anisystemd.WatchCreated,
		Paths: []string{"plugins/x_service.dll"},
	}))

	line := buf.String()
	assert.True(t, strings.HasSuffix(line, "}\n"))
	assert.Equal(t, 1, strings.Count(line, "\n"))

	var decoded struct {
		Type string `json:"type"`
		Data struct {
			Kind  string   `json:"kind"`
			Paths []string `json:"paths"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "artifact changed", decoded.Type)
	assert.Equal(t, "created", decoded.Data.Kind)
}

func TestLogWriter(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	w := NewLogWriter(logger)
	require.NoError(t, w.Write(&anisystemd.EventWarning{Component: "watcher", Error: "inotify error: overflow"}))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "WARN", record["level"])
	assert.Equal(t, "warning", record["msg"])
	assert.Equal(t, "watcher", record["data"].(map[string]any)["component"])
}

func TestLevel(t *testing.T) {
	tests := []struct {
		event anisystemd.Event
		level slog.Level
	}{
		{&anisystemd.EventReady{}, slog.LevelInfo},
		{&anisystemd.EventWarning{}, slog.LevelWarn},
		{&anisystemd.EventNotifyFailed{}, slog.LevelWarn},
		{&anisystemd.EventWorkerSpawnError{}, slog.LevelWarn},
		{&anisystemd.EventWorkerExited{ExitCode: 0}, slog.LevelInfo},
		{&anisystemd.EventWorkerExited{ExitCode: 2}, slog.LevelWarn},
		{&anisystemd.EventOutcome{Outcome: "plugin changed"}, slog.LevelInfo},
		{&anisystemd.EventOutcome{Outcome: "worker completed", Error: "boom"}, slog.LevelError},
	}

	for _, test := range tests {
		assert.Equal(t, test.level, Level(test.event), "%#v", test.event)
	}
}

type failJournaler struct{ err error }

func (j failJournaler) Write(anisystemd.Event) error { return j.err }

func TestMultiWriter(t *testing.T) {
	var a, b bytes.Buffer
	first := errors.New("first")

	w := MultiWriter(NewWriter(&a), failJournaler{first}, failJournaler{errors.New("second")}, NewWriter(&b))

	err := w.Write(&anisystemd.EventInterrupted{})
	assert.Equal(t, first, err)

	// Every writer gets the event regardless of errors.
	assert.NotZero(t, a.Len())
	assert.NotZero(t, b.Len())
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "missing.json"), 0)
	assert.True(t, os.IsNotExist(err))
}
