// PodLink
// Copyright (c) 2026 The PodLink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of PodLink.
//
// PodLink is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// PodLink is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with PodLink.  If not, see <http://www.gnu.org/licenses/>.

// Package eventlog is the bounded, presentation-facing record of transport,
// parse and command failures. Every entry is mirrored to the zerolog logger.
package eventlog

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/podlink/podlink/pkg/helpers/syncutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const DefaultMaxEntries = 1000

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Kinds name the failure taxonomy an entry belongs to.
const (
	KindTransportUnavailable = "TransportUnavailable"
	KindConnectionFailed     = "ConnectionFailed"
	KindConnectionTimedOut   = "ConnectionTimedOut"
	KindNotConnected         = "NotConnected"
	KindSendFailed           = "SendFailed"
	KindReadFailed           = "ReadFailed"
	KindParse                = "ParseError"
	KindExtraction           = "ExtractionError"
	KindCommandFailed        = "CommandFailed"
	KindEmergency            = "Emergency"
	KindDataHandling         = "DataHandling"
)

type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	ID        string    `json:"id"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
	Kind      string    `json:"kind,omitempty"`
}

// Recorder is the write side of the log, shared by every component.
type Recorder interface {
	Record(message string, severity Severity) Entry
	RecordKind(kind, message string, severity Severity) Entry
}

// Log keeps the most recent entries in insertion order. Hooks run after
// the lock is released.
type Log struct {
	clock     clockwork.Clock
	onAdded   func(Entry)
	onCleared func()
	entries   []Entry
	mu        syncutil.RWMutex
	max       int
}

func New(maxEntries int, clock clockwork.Clock) *Log {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Log{
		clock:   clock,
		max:     maxEntries,
		entries: make([]Entry, 0, min(maxEntries, 64)),
	}
}

// SetHooks registers callbacks for new entries and clears. Either may be nil.
func (l *Log) SetHooks(added func(Entry), cleared func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onAdded = added
	l.onCleared = cleared
}

func (l *Log) Record(message string, severity Severity) Entry {
	return l.RecordKind("", message, severity)
}

func (l *Log) RecordKind(kind, message string, severity Severity) Entry {
	entry := Entry{
		ID:        uuid.New().String(),
		Timestamp: l.clock.Now(),
		Message:   message,
		Severity:  severity,
		Kind:      kind,
	}

	l.mu.Lock()
	l.entries = append(l.entries, entry)
	if over := len(l.entries) - l.max; over > 0 {
		// shift down instead of reslicing so the backing array stays bounded
		n := copy(l.entries, l.entries[over:])
		clear(l.entries[n:])
		l.entries = l.entries[:n]
	}
	hook := l.onAdded
	l.mu.Unlock()

	logEvent(entry)

	if hook != nil {
		hook(entry)
	}
	return entry
}

func logEvent(entry Entry) {
	var ev *zerolog.Event
	switch entry.Severity {
	case SeverityError:
		ev = log.Error()
	case SeverityWarning:
		ev = log.Warn()
	default:
		ev = log.Info()
	}
	if entry.Kind != "" {
		ev = ev.Str("kind", entry.Kind)
	}
	ev.Str("entry_id", entry.ID).Msg(entry.Message)
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Last returns the newest entry, if any.
func (l *Log) Last() (Entry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.entries) == 0 {
		return Entry{}, false
	}
	return l.entries[len(l.entries)-1], true
}

func (l *Log) Clear() {
	l.mu.Lock()
	clear(l.entries)
	l.entries = l.entries[:0]
	hook := l.onCleared
	l.mu.Unlock()

	log.Info().Msg("event log cleared")
	if hook != nil {
		hook()
	}
}
