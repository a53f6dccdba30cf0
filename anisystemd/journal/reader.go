package journal

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/pyw0w/AniSystemd/anisystemd"
	"github.com/pyw0w/AniSystemd/anisystemd/journal/backwardio"
)

// Reader parses journals written by Writer from the bottom up, so the most
// recent event comes first.
type Reader struct {
	b *backwardio.BackwardsReader
}

// NewReader creates a new journal reader.
func NewReader(r io.ReadSeeker) *Reader {
	return &Reader{backwardio.NewBackwardsReader(r)}
}

// LineError is returned by Read for a line that could not be decoded. The line
// is consumed, so reading can go on past it.
type LineError struct {
	Line []byte
	Err  error
}

func (err *LineError) Error() string { return err.Err.Error() }

// Unwrap returns the decoding error.
func (err *LineError) Unwrap() error { return err.Err }

// CorruptError is returned by ReadLast, together with the entries that could
// be decoded, when some lines could not be. A line torn by a crash in the
// middle of a write ends up here.
type CorruptError struct {
	Skipped int
	First   *LineError // newest skipped line
}

func (err *CorruptError) Error() string {
	return fmt.Sprintf("skipped %d undecodable lines: %v", err.Skipped, err.First)
}

// Read reads a single entry, starting from the end of the file. An EOF error
// is returned if the file has been fully consumed. Lines that fail to decode
// are reported as a *LineError.
func (r *Reader) Read() (anisystemd.Event, time.Time, error) {
	var line []byte
	var err error

	for {
		line, err = r.b.ReadUntil('\n')
		if err != nil {
			return nil, time.Time{}, err
		}
		if len(line) > 0 {
			break
		}
	}

	var rawEvent struct {
		Time time.Time       `json:"time"`
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(line, &rawEvent); err != nil {
		return nil, time.Time{}, &LineError{line, errors.Wrap(err, "failed to decode JSON")}
	}

	event := anisystemd.NewEvent(rawEvent.Type)
	if event == nil {
		return nil, time.Time{}, &LineError{line, fmt.Errorf("unknown event %q", rawEvent.Type)}
	}

	if err := json.Unmarshal(rawEvent.Data, event); err != nil {
		return nil, time.Time{}, &LineError{line, errors.Wrap(err, "failed to decode event data")}
	}

	return event, rawEvent.Time, nil
}

// Entry is a single decoded journal line.
type Entry struct {
	Time  time.Time
	Event anisystemd.Event
}

// ReadFile reads up to n of the most recent entries in the journal at path,
// newest first. A non-positive n reads everything.
func ReadFile(path string, n int) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ReadLast(f, n)
}

// ReadLast is like ReadFile, but reads from r. Undecodable lines are skipped
// and reported as a *CorruptError once reading is done; any other error stops
// the read. Either way, the entries read so far are returned.
func ReadLast(r io.ReadSeeker, n int) ([]Entry, error) {
	reader := NewReader(r)

	var entries []Entry
	var corrupt *CorruptError

	for n <= 0 || len(entries) < n {
		ev, t, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}

			var lineErr *LineError
			if errors.As(err, &lineErr) {
				if corrupt == nil {
					corrupt = &CorruptError{First: lineErr}
				}
				corrupt.Skipped++
				continue
			}

			return entries, err
		}

		entries = append(entries, Entry{Time: t, Event: ev})
	}

	if corrupt != nil {
		return entries, corrupt
	}
	return entries, nil
}
