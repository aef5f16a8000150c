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

package eventlog

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_AssignsIDAndTimestamp(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	l := New(10, clock)

	first := l.Record("Connection failed: device busy", SeverityError)
	clock.Advance(time.Second)
	second := l.RecordKind(KindSendFailed, "Send command error: broken pipe", SeverityError)

	assert.NotEmpty(t, first.ID)
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, clock.Now().Add(-time.Second), first.Timestamp)
	assert.Equal(t, clock.Now(), second.Timestamp)
	assert.Equal(t, KindSendFailed, second.Kind)

	entries := l.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, first, entries[0], "entries are kept oldest first")
	assert.Equal(t, second, entries[1])
}

func TestRecord_EvictsOldest(t *testing.T) {
	t.Parallel()

	l := New(3, clockwork.NewFakeClock())
	for i := range 5 {
		l.Record(fmt.Sprintf("entry %d", i), SeverityInfo)
	}

	entries := l.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "entry 2", entries[0].Message)
	assert.Equal(t, "entry 4", entries[2].Message)

	last, ok := l.Last()
	require.True(t, ok)
	assert.Equal(t, "entry 4", last.Message)
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	l := New(0, nil)
	assert.Equal(t, DefaultMaxEntries, l.max)
	assert.NotNil(t, l.clock)

	_, ok := l.Last()
	assert.False(t, ok)
}

func TestEntries_ReturnsCopy(t *testing.T) {
	t.Parallel()

	l := New(10, clockwork.NewFakeClock())
	l.Record("original", SeverityWarning)

	entries := l.Entries()
	entries[0].Message = "mutated"

	assert.Equal(t, "original", l.Entries()[0].Message)
}

func TestClear(t *testing.T) {
	t.Parallel()

	l := New(10, clockwork.NewFakeClock())
	l.Record("one", SeverityInfo)
	l.Record("two", SeverityInfo)

	l.Clear()
	assert.Equal(t, 0, l.Len())
	assert.Empty(t, l.Entries())

	l.Record("three", SeverityInfo)
	assert.Equal(t, 1, l.Len())
}

func TestHooks(t *testing.T) {
	t.Parallel()

	l := New(10, clockwork.NewFakeClock())

	var added []Entry
	cleared := 0
	l.SetHooks(func(e Entry) {
		// hooks run outside the lock, so reading back is safe
		_ = l.Len()
		added = append(added, e)
	}, func() {
		cleared++
	})

	e := l.Record("hello", SeverityInfo)
	l.Clear()

	require.Len(t, added, 1)
	assert.Equal(t, e, added[0])
	assert.Equal(t, 1, cleared)
}

func TestRecord_Concurrent(t *testing.T) {
	t.Parallel()

	l := New(50, nil)

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				l.Record(fmt.Sprintf("worker %d entry %d", i, j), SeverityInfo)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, l.Len())
}
