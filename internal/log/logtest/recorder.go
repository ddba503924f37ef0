/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package logtest provides a log.FieldLogger that records entries in memory
// so tests can assert on what was logged.
package logtest

import (
	"sync"
	"time"

	"github.com/ssgreg/logf"

	"github.com/Muminur/shopgenfy-sub002/internal/log"
)

// RecordedEntry is a single captured log entry.
type RecordedEntry struct {
	LoggerName string
	Fields     []log.Field
	Level      log.Level
	Time       time.Time
	Text       string
}

// FindField looks a field up in the entry by its key.
func (re *RecordedEntry) FindField(key string) (*log.Field, bool) {
	for i := range re.Fields {
		if re.Fields[i].Key == key {
			return &re.Fields[i], true
		}
	}
	return nil, false
}

type capturingEntryWriter struct {
	mu      sync.RWMutex
	entries []RecordedEntry
}

//nolint:gocritic
func (ew *capturingEntryWriter) WriteEntry(e logf.Entry) {
	fields := make([]log.Field, 0, len(e.Fields)+len(e.DerivedFields))
	fields = append(fields, e.Fields...)
	fields = append(fields, e.DerivedFields...)

	ew.mu.Lock()
	ew.entries = append(ew.entries, RecordedEntry{
		LoggerName: e.LoggerName,
		Fields:     fields,
		Level:      logfLevelToLevel(e.Level),
		Time:       e.Time,
		Text:       e.Text,
	})
	ew.mu.Unlock()
}

// Recorder is a log.FieldLogger keeping every logged entry for later inspection.
type Recorder struct {
	*log.LogfAdapter
	entryWriter *capturingEntryWriter
}

// NewRecorder returns an initialized Recorder logging at debug level.
func NewRecorder() *Recorder {
	ew := &capturingEntryWriter{}
	return &Recorder{&log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, ew)}, ew}
}

// With returns a derived Recorder sharing the same entry storage.
func (r *Recorder) With(fs ...log.Field) log.FieldLogger {
	return &Recorder{r.LogfAdapter.With(fs...).(*log.LogfAdapter), r.entryWriter}
}

// Entries returns a copy of all recorded entries.
func (r *Recorder) Entries() []RecordedEntry {
	r.entryWriter.mu.RLock()
	defer r.entryWriter.mu.RUnlock()
	return append([]RecordedEntry{}, r.entryWriter.entries...)
}

// FindEntry looks a recorded entry up by its message text.
func (r *Recorder) FindEntry(msg string) (RecordedEntry, bool) {
	return r.FindEntryByFilter(func(entry RecordedEntry) bool {
		return entry.Text == msg
	})
}

// FindEntryByFilter returns the first recorded entry matching the filter.
func (r *Recorder) FindEntryByFilter(filter func(entry RecordedEntry) bool) (RecordedEntry, bool) {
	r.entryWriter.mu.RLock()
	defer r.entryWriter.mu.RUnlock()
	for _, entry := range r.entryWriter.entries {
		if filter(entry) {
			return entry, true
		}
	}
	return RecordedEntry{}, false
}

func logfLevelToLevel(value logf.Level) log.Level {
	switch value {
	case logf.LevelError:
		return log.LevelError
	case logf.LevelWarn:
		return log.LevelWarn
	case logf.LevelDebug:
		return log.LevelDebug
	default:
		return log.LevelInfo
	}
}
