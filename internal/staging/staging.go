// Package staging defines the play-event row and the CSV layout and file
// naming used to hand data between pipeline steps.
package staging

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// RunDateLayout formats a run date as DD-MM-YY.
const RunDateLayout = "02-01-06"

// listenDateLen is the length of the calendar-date prefix of an ISO-8601 timestamp.
const listenDateLen = 10

// numColumns is the number of fields in a staged row.
const numColumns = 4

// ErrMalformedRow is returned when a staged row does not have four fields.
var ErrMalformedRow = errors.New("malformed staged row")

// PlayEvent is one recently played track.
type PlayEvent struct {
	SongName   string
	ArtistName string
	PlayedAt   string // ISO-8601, as returned by the API
	ListenDate string // first 10 characters of PlayedAt
}

// NewPlayEvent builds a PlayEvent, deriving ListenDate from playedAt.
func NewPlayEvent(song, artist, playedAt string) PlayEvent {
	return PlayEvent{
		SongName:   song,
		ArtistName: artist,
		PlayedAt:   playedAt,
		ListenDate: ListenDate(playedAt),
	}
}

// ListenDate returns the date portion of an ISO-8601 timestamp.
// Shorter inputs are returned unchanged.
func ListenDate(playedAt string) string {
	if len(playedAt) < listenDateLen {
		return playedAt
	}
	return playedAt[:listenDateLen]
}

// RunDate formats t as the DD-MM-YY run date used in file and object names.
func RunDate(t time.Time) string {
	return t.Format(RunDateLayout)
}

// LocalName is the staged file name for a run date.
func LocalName(runDate string) string {
	return runDate + "-recently-played.csv"
}

// ObjectKey is the archive object key for a run date. The underscore differs
// from LocalName's hyphen; existing archives depend on it.
func ObjectKey(runDate string) string {
	return runDate + "-recently_played.csv"
}

// LocalPath joins dir with the staged file name for runDate.
func LocalPath(dir, runDate string) string {
	return filepath.Join(dir, LocalName(runDate))
}

// Write encodes events as header-less CSV rows in the given order.
func Write(w io.Writer, events []PlayEvent) error {
	cw := csv.NewWriter(w)
	for _, e := range events {
		if err := cw.Write([]string{e.SongName, e.ArtistName, e.PlayedAt, e.ListenDate}); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing rows: %w", err)
	}
	return nil
}

// Read decodes header-less CSV rows written by Write.
func Read(r io.Reader) ([]PlayEvent, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	var events []PlayEvent
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", line, err)
		}
		if len(rec) != numColumns {
			return nil, fmt.Errorf("%w: row %d has %d fields", ErrMalformedRow, line, len(rec))
		}
		events = append(events, PlayEvent{
			SongName:   rec[0],
			ArtistName: rec[1],
			PlayedAt:   rec[2],
			ListenDate: rec[3],
		})
	}
	return events, nil
}

// WriteFile writes events to path, creating the parent directory if needed.
// An empty events slice produces an empty file.
func WriteFile(path string, events []PlayEvent) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating staged file: %w", err)
	}

	if err := Write(f, events); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing staged file: %w", err)
	}
	return nil
}

// ReadFile reads all events from the staged file at path.
func ReadFile(path string) ([]PlayEvent, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening staged file: %w", err)
	}
	defer f.Close()

	return Read(f)
}
