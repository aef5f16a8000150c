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

// Package history keeps bounded per-channel time series of telemetry values.
package history

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/podlink/podlink/pkg/helpers/syncutil"
	"github.com/podlink/podlink/pkg/telemetry"
)

const (
	DefaultMaxPoints = 120
	DefaultWindow    = 120 * time.Second
)

type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
}

type Series []Point

// Bounds caps a series by count and age.
type Bounds struct {
	MaxPoints int
	Window    time.Duration
}

func DefaultBounds() Bounds {
	return Bounds{MaxPoints: DefaultMaxPoints, Window: DefaultWindow}
}

// Append returns a new series with value added at now, then evicts points
// at least Window old and keeps the newest MaxPoints. The input is not
// modified.
func Append(s Series, value float64, now time.Time, b Bounds) Series {
	out := make(Series, 0, len(s)+1)
	for _, p := range s {
		if b.Window > 0 && now.Sub(p.Timestamp) >= b.Window {
			continue
		}
		out = append(out, p)
	}
	out = append(out, Point{Timestamp: now, Value: value})
	if b.MaxPoints > 0 && len(out) > b.MaxPoints {
		out = out[len(out)-b.MaxPoints:]
	}
	return out
}

// Clear returns an empty series.
func Clear(Series) Series {
	return Series{}
}

// Manager owns one series per channel. Series handed out are copies.
type Manager struct {
	clock  clockwork.Clock
	series map[telemetry.Channel]Series
	bounds Bounds
	mu     syncutil.RWMutex
}

func NewManager(b Bounds, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if b.MaxPoints <= 0 {
		b.MaxPoints = DefaultMaxPoints
	}
	if b.Window <= 0 {
		b.Window = DefaultWindow
	}
	m := &Manager{
		clock:  clock,
		bounds: b,
		series: make(map[telemetry.Channel]Series, len(telemetry.Channels)),
	}
	m.resetLocked()
	return m
}

func (m *Manager) resetLocked() {
	for _, ch := range telemetry.Channels {
		m.series[ch] = Series{}
	}
}

func (m *Manager) Bounds() Bounds {
	return m.bounds
}

// Record appends every sample with one shared timestamp.
func (m *Manager) Record(samples []telemetry.Sample) {
	if len(samples) == 0 {
		return
	}
	now := m.clock.Now()

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range samples {
		m.series[s.Channel] = Append(m.series[s.Channel], s.Value, now, m.bounds)
	}
}

func (m *Manager) Series(ch telemetry.Channel) Series {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.series[ch]
	if !ok {
		return nil
	}
	out := make(Series, len(s))
	copy(out, s)
	return out
}

// All returns copies of every tracked series.
func (m *Manager) All() map[telemetry.Channel]Series {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[telemetry.Channel]Series, len(m.series))
	for ch, s := range m.series {
		c := make(Series, len(s))
		copy(c, s)
		out[ch] = c
	}
	return out
}

func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}
