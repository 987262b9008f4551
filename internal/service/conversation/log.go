package conversation

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	model "github.com/zhouzirui/speech-coach/backend/internal/model/conversation"
)

// ErrMalformedRemoteState marks a serialized conversation that could not be
// parsed as an array of entries.
var ErrMalformedRemoteState = errors.New("malformed remote conversation")

// Log is the ordered message log of one session. It is not safe for
// concurrent use; the session controller serialises access.
type Log struct {
	entries []model.Entry
	nextID  int64
	dirty   bool
	now     func() time.Time
}

// NewLog returns an empty log whose first entry gets id 1.
func NewLog() *Log {
	return &Log{nextID: 1, now: time.Now}
}

// Append assigns the next id to entry, stores it at the end and returns the
// stored copy.
func (l *Log) Append(entry model.Entry) model.Entry {
	entry.ID = l.nextID
	l.nextID++
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = l.now()
	}
	entry.CreatedAt = entry.CreatedAt.UTC()

	l.entries = append(l.entries, entry)
	l.dirty = true
	return entry
}

// Remove deletes the entry with id. It reports whether an entry was removed.
func (l *Log) Remove(id int64) bool {
	for i, entry := range l.entries {
		if entry.ID != id {
			continue
		}
		l.entries = append(l.entries[:i], l.entries[i+1:]...)
		l.dirty = true
		return true
	}
	return false
}

// Get returns the entry with id.
func (l *Log) Get(id int64) (model.Entry, bool) {
	for _, entry := range l.entries {
		if entry.ID == id {
			return entry, true
		}
	}
	return model.Entry{}, false
}

// Clear empties the log. Ids already handed out are not reused.
func (l *Log) Clear() {
	l.entries = nil
	l.dirty = true
}

// Entries returns a copy of the log in conversation order.
func (l *Log) Entries() []model.Entry {
	copied := make([]model.Entry, len(l.entries))
	copy(copied, l.entries)
	return copied
}

// Len returns the number of entries.
func (l *Log) Len() int {
	return len(l.entries)
}

// Dirty reports whether the log changed since the last MarkClean or Hydrate.
func (l *Log) Dirty() bool {
	return l.dirty
}

// MarkClean clears the dirty flag.
func (l *Log) MarkClean() {
	l.dirty = false
}

// Counter is the highest id ever assigned in this log. It only grows, so the
// backend can use it as an activity metric.
func (l *Log) Counter() int64 {
	return l.nextID - 1
}

// Serialize encodes the full log as a JSON array string.
func (l *Log) Serialize() string {
	entries := l.entries
	if entries == nil {
		entries = []model.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		log.Printf("[conversation] serialize log failed: %v", err)
		return "[]"
	}
	return string(data)
}

// Hydrate replaces the log contents with the decoded form of raw. Input that
// cannot be decoded leaves the log empty and the decode error is returned for
// logging only. The log is clean afterwards.
func (l *Log) Hydrate(raw string) error {
	entries, err := Decode(raw)
	if err != nil {
		entries = nil
	}

	l.entries = entries
	l.dirty = false
	l.nextID = 1
	for _, entry := range entries {
		if entry.ID >= l.nextID {
			l.nextID = entry.ID + 1
		}
	}
	return err
}

// Advance makes sure the next id is greater than counter. It is used when
// the remote record remembers ids that were since deleted.
func (l *Log) Advance(counter int64) {
	if counter >= l.nextID {
		l.nextID = counter + 1
	}
}

// Decode parses a serialized conversation. Individual entries with an
// unknown type or sender, or with a shape that does not decode, are dropped.
// Entries without a usable id receive fresh ids after the highest valid one.
func Decode(raw string) ([]model.Entry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRemoteState, err)
	}

	entries := make([]model.Entry, 0, len(items))
	seen := make(map[int64]bool, len(items))
	var maxID int64
	for _, item := range items {
		var entry model.Entry
		if err := json.Unmarshal(item, &entry); err != nil {
			continue
		}
		if !entry.Kind.Valid() || !entry.Sender.Valid() {
			continue
		}
		if entry.ID > 0 && !seen[entry.ID] {
			seen[entry.ID] = true
			if entry.ID > maxID {
				maxID = entry.ID
			}
		} else {
			entry.ID = 0
		}
		if !entry.CreatedAt.IsZero() {
			entry.CreatedAt = entry.CreatedAt.UTC()
		}
		entries = append(entries, entry)
	}

	for i := range entries {
		if entries[i].ID == 0 {
			maxID++
			entries[i].ID = maxID
		}
	}
	return entries, nil
}
