// Package roster manages the per-event export artifacts: one append-only
// CSV file per activity check, located by a pure function of the event id.
// The roster is derived state; the registry's relational index is the
// single source of truth and every roster write follows a confirmed
// relational mutation.
package roster

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/spaolacci/murmur3"

	rcerrors "github.com/rollcall/rollcall/internal/errors"
)

const (
	// FileName is the artifact file name inside each event directory.
	FileName = "roster.csv"

	// Header is the first line of every roster artifact.
	Header = "participant_id,displayName,checkInDate"

	// TimeLayout is the check-in timestamp format, second resolution.
	TimeLayout = "2006-01-02T15:04:05"
)

// Entry is one check-in line of a roster artifact.
type Entry struct {
	ParticipantID int64
	DisplayName   string
	CheckedInAt   time.Time
}

// Store locates and writes roster artifacts under a root directory.
type Store struct {
	root string
}

// NewStore creates a roster store rooted at dir, creating it if needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, rcerrors.NewRosterError(rcerrors.CodeRosterWriteFailed,
			"failed to create roster root", err)
	}
	return &Store{root: dir}, nil
}

// Path returns the artifact path for an event id. The path is deterministic:
// a two-hex-digit murmur3 fanout shard, then the decimal id.
func (s *Store) Path(eventID int64) string {
	return filepath.Join(s.root, fanout(eventID), strconv.FormatInt(eventID, 10), FileName)
}

// fanout shards event directories so a single level never grows unbounded.
func fanout(eventID int64) string {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(eventID))
	return fmt.Sprintf("%02x", murmur3.Sum32(buf[:])%256)
}

// Create writes a header-only artifact for the event, truncating any
// pre-existing file at that path.
func (s *Store) Create(eventID int64) error {
	path := s.Path(eventID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return rcerrors.NewRosterError(rcerrors.CodeRosterWriteFailed,
			fmt.Sprintf("failed to create event directory for %d", eventID), err)
	}
	if err := os.WriteFile(path, []byte(Header+"\n"), 0644); err != nil {
		return rcerrors.NewRosterError(rcerrors.CodeRosterWriteFailed,
			fmt.Sprintf("failed to write roster header for event %d", eventID), err)
	}
	return nil
}

// Append adds one check-in line to the event's artifact. The artifact must
// already exist; a missing artifact means the creation invariant was broken.
func (s *Store) Append(eventID int64, e Entry) error {
	path := s.Path(eventID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return rcerrors.New(rcerrors.ErrCategoryRoster, rcerrors.CodeRosterMissing,
				fmt.Sprintf("roster artifact missing for event %d", eventID))
		}
		return rcerrors.NewRosterError(rcerrors.CodeRosterWriteFailed,
			fmt.Sprintf("failed to open roster for event %d", eventID), err)
	}
	defer f.Close()

	// One write call per record so concurrent appenders via O_APPEND never
	// interleave within a line.
	line := FormatEntry(e)
	if _, err := f.Write([]byte(line)); err != nil {
		return rcerrors.NewRosterError(rcerrors.CodeRosterWriteFailed,
			fmt.Sprintf("failed to append to roster for event %d", eventID), err)
	}
	return nil
}

// FormatEntry renders one roster line, including the trailing newline.
// Timestamps are normalized to UTC so a rebuilt roster is byte-identical
// to one written live, whatever zone the check-in arrived in.
func FormatEntry(e Entry) string {
	return fmt.Sprintf("%d,%s,%s\n",
		e.ParticipantID, EscapeField(e.DisplayName), e.CheckedInAt.UTC().Format(TimeLayout))
}

// Exists reports whether the event's artifact exists and is a regular file.
func (s *Store) Exists(eventID int64) (bool, error) {
	info, err := os.Stat(s.Path(eventID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Rebuild regenerates an artifact from relational rows, header first, rows
// in the order given. Used for consistency repair after a partial failure.
func (s *Store) Rebuild(eventID int64, entries []Entry) error {
	if err := s.Create(eventID); err != nil {
		return err
	}
	for _, e := range entries {
		if err := s.Append(eventID, e); err != nil {
			return err
		}
	}
	return nil
}

// ListEventIDs walks the artifact tree and returns every event id that has
// a roster file on disk, ascending. Used by reconciliation to detect
// orphaned artifacts.
func (s *Store) ListEventIDs() ([]int64, error) {
	shards, err := os.ReadDir(s.root)
	if err != nil {
		return nil, rcerrors.NewRosterError(rcerrors.CodeRosterReadFailed,
			"failed to read roster root", err)
	}

	var ids []int64
	for _, shard := range shards {
		if !shard.IsDir() {
			continue
		}
		events, err := os.ReadDir(filepath.Join(s.root, shard.Name()))
		if err != nil {
			return nil, rcerrors.NewRosterError(rcerrors.CodeRosterReadFailed,
				"failed to read shard directory", err)
		}
		for _, ev := range events {
			if !ev.IsDir() {
				continue
			}
			id, err := strconv.ParseInt(ev.Name(), 10, 64)
			if err != nil {
				continue
			}
			if _, err := os.Stat(filepath.Join(s.root, shard.Name(), ev.Name(), FileName)); err == nil {
				ids = append(ids, id)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// ReadEntries parses an event's artifact back into entries. A quoted field
// may contain commas and newlines, so records are scanned with quote state
// rather than split on line breaks.
func (s *Store) ReadEntries(eventID int64) ([]Entry, error) {
	data, err := os.ReadFile(s.Path(eventID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, rcerrors.New(rcerrors.ErrCategoryRoster, rcerrors.CodeRosterMissing,
				fmt.Sprintf("roster artifact missing for event %d", eventID))
		}
		return nil, rcerrors.NewRosterError(rcerrors.CodeRosterReadFailed,
			fmt.Sprintf("failed to read roster for event %d", eventID), err)
	}

	records := splitRecords(string(data))
	if len(records) == 0 || records[0] != Header {
		return nil, rcerrors.New(rcerrors.ErrCategoryRoster, rcerrors.CodeRosterMissing,
			fmt.Sprintf("roster artifact malformed for event %d", eventID))
	}

	var entries []Entry
	for _, rec := range records[1:] {
		e, err := parseRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("roster: event %d: %w", eventID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// splitRecords splits artifact content into records, treating newlines
// inside quoted fields as data.
func splitRecords(data string) []string {
	var records []string
	start := 0
	inQuotes := false
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '"':
			inQuotes = !inQuotes
		case '\n':
			if !inQuotes {
				records = append(records, data[start:i])
				start = i + 1
			}
		}
	}
	if start < len(data) {
		records = append(records, data[start:])
	}
	return records
}

// parseRecord parses "<id>,<quoted name>,<timestamp>". The name field is
// delimited by the first comma and the last comma of the record.
func parseRecord(rec string) (Entry, error) {
	first := -1
	last := -1
	inQuotes := false
	for i := 0; i < len(rec); i++ {
		switch rec[i] {
		case '"':
			inQuotes = !inQuotes
		case ',':
			if !inQuotes {
				if first == -1 {
					first = i
				}
				last = i
			}
		}
	}
	if first == -1 || last == first {
		return Entry{}, fmt.Errorf("malformed record %q", rec)
	}

	id, err := strconv.ParseInt(rec[:first], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("bad participant id in record %q: %w", rec, err)
	}
	name, err := UnescapeField(rec[first+1 : last])
	if err != nil {
		return Entry{}, err
	}
	at, err := time.Parse(TimeLayout, rec[last+1:])
	if err != nil {
		return Entry{}, fmt.Errorf("bad timestamp in record %q: %w", rec, err)
	}
	return Entry{ParticipantID: id, DisplayName: name, CheckedInAt: at}, nil
}
