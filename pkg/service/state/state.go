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

package state

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/api/notifications"
	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/helpers/syncutil"
	"github.com/podlink/podlink/pkg/telemetry"
	"github.com/podlink/podlink/pkg/telemetry/history"
)

// Aggregator is the single source of truth for the pod's current state. It
// owns the sensor snapshot, the relay states and the history series.
//
// LOCKING RULES: mu guards the snapshot, relays and history as one unit.
//   - Never send notifications or write to the event log while holding mu
//   - Pattern: lock → modify state → copy needed data → unlock → notify
//   - Lock order is Aggregator.mu then history.Manager's lock, never reverse
type Aggregator struct {
	clock         clockwork.Clock
	log           eventlog.Recorder
	parser        *telemetry.Parser
	history       *history.Manager
	Notifications chan<- models.Notification
	reported      map[string]bool
	active        map[int64]bool
	updatedAt     time.Time
	healthTable   []telemetry.HealthWeight
	snapshot      telemetry.Snapshot
	relays        telemetry.RelayState
	mu            syncutil.RWMutex
}

func NewAggregator(
	rec eventlog.Recorder,
	bounds history.Bounds,
	clock clockwork.Clock,
	ns chan<- models.Notification,
) *Aggregator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Aggregator{
		clock:         clock,
		log:           rec,
		parser:        telemetry.NewParser(rec),
		history:       history.NewManager(bounds, clock),
		Notifications: ns,
		reported:      make(map[string]bool),
		active:        make(map[int64]bool),
		healthTable:   telemetry.DefaultHealthTable,
		snapshot:      telemetry.NewSnapshot(),
	}
}

// Reset returns every piece of state to its session-start value.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	a.snapshot = telemetry.NewSnapshot()
	a.relays = telemetry.RelayState{}
	a.reported = make(map[string]bool)
	a.active = make(map[int64]bool)
	a.updatedAt = time.Time{}
	a.history.Clear()
	a.mu.Unlock()
}

// ApplyLine runs one raw device line through the parser and merges whatever
// it carried. A line may be a JSON telemetry object, a relay state line or
// neither; both shapes are always tried.
func (a *Aggregator) ApplyLine(line string) {
	update, relays := a.parser.ParseLine(line)
	a.Apply(update, relays)
}

// Apply merges a partial sensor update and an optional authoritative relay
// report into the current state.
func (a *Aggregator) Apply(update telemetry.SensorUpdate, report *telemetry.RelayState) {
	hasUpdate := !update.IsEmpty()
	if !hasUpdate && report == nil {
		return
	}

	a.mu.Lock()

	var (
		payload  *models.TelemetryUpdatedParams
		raised   []telemetry.EmergencyCondition
		relaysCh *telemetry.RelayState
	)

	prevRelays := a.relays
	if hasUpdate {
		prevMask := a.snapshot.EmergencyReasonMask
		update.ApplyTo(&a.snapshot)
		update.Relays.ApplyTo(&a.relays)
		for k := range update.Health {
			a.reported[k] = true
		}
		if update.EmergencyReasonMask != nil && *update.EmergencyReasonMask != prevMask {
			raised = a.updateEmergenciesLocked(*update.EmergencyReasonMask)
		}
		a.history.Record(update.Samples())
		a.updatedAt = a.clock.Now()
		payload = &models.TelemetryUpdatedParams{
			Snapshot: a.snapshot.Clone(),
			Health:   a.healthScoreLocked(),
		}
	}
	if report != nil {
		a.relays = *report
	}
	if a.relays != prevRelays {
		r := a.relays
		relaysCh = &r
	}

	a.mu.Unlock()

	for _, c := range raised {
		a.log.RecordKind(eventlog.KindEmergency, c.Message, c.Severity)
	}
	if payload != nil {
		notifications.TelemetryUpdated(a.Notifications, *payload)
	}
	if relaysCh != nil {
		notifications.RelaysChanged(a.Notifications, *relaysCh)
	}
}

// updateEmergenciesLocked makes the active set match mask and returns the
// conditions whose bits just went from unset to set.
func (a *Aggregator) updateEmergenciesLocked(mask int64) []telemetry.EmergencyCondition {
	conditions := telemetry.DecodeMask(mask)
	next := make(map[int64]bool, len(conditions))
	var raised []telemetry.EmergencyCondition
	for _, c := range conditions {
		next[c.Bit] = true
		if !a.active[c.Bit] {
			raised = append(raised, c)
		}
	}
	if len(raised) > 0 {
		log.Warn().Int64("mask", mask).Int("raised", len(raised)).Msg("emergency mask changed")
	}
	a.active = next
	return raised
}

// SetRelay applies an optimistic local relay change after a command was
// sent. A later device report overrides it.
func (a *Aggregator) SetRelay(id int, on bool) {
	a.mu.Lock()
	prev := a.relays
	a.relays.Set(id, on)
	r := a.relays
	a.mu.Unlock()

	if r != prev {
		notifications.RelaysChanged(a.Notifications, r)
	}
}

// SetAllRelays applies an optimistic change to every relay.
func (a *Aggregator) SetAllRelays(on bool) {
	a.mu.Lock()
	prev := a.relays
	a.relays = telemetry.AllRelays(on)
	r := a.relays
	a.mu.Unlock()

	if r != prev {
		notifications.RelaysChanged(a.Notifications, r)
	}
}

func (a *Aggregator) Snapshot() telemetry.Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot.Clone()
}

func (a *Aggregator) Relays() telemetry.RelayState {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.relays
}

func (a *Aggregator) Relay(id int) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.relays.Get(id)
}

// UpdatedAt is the time of the last merged sensor update, zero if none.
func (a *Aggregator) UpdatedAt() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.updatedAt
}

// ActiveEmergencies lists the conditions currently set, lowest bit first.
func (a *Aggregator) ActiveEmergencies() []telemetry.EmergencyCondition {
	a.mu.RLock()
	var mask int64
	for b := range a.active {
		mask |= b
	}
	a.mu.RUnlock()
	return telemetry.DecodeMask(mask)
}

func (a *Aggregator) HealthScore() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.healthScoreLocked()
}

func (a *Aggregator) healthScoreLocked() float64 {
	return telemetry.HealthScore(a.healthTable, a.snapshot.Health, a.reported)
}

// Health breaks the overall score down per subsystem.
func (a *Aggregator) Health() models.HealthResponse {
	a.mu.RLock()
	defer a.mu.RUnlock()

	score := a.healthScoreLocked()
	resp := models.HealthResponse{
		Score:      score,
		Label:      telemetry.ScoreLabel(score),
		Subsystems: make([]models.SubsystemHealth, 0, len(a.healthTable)),
	}
	for _, row := range a.healthTable {
		code := a.snapshot.Health[row.Key]
		resp.Subsystems = append(resp.Subsystems, models.SubsystemHealth{
			Key:      row.Key,
			Code:     code,
			Label:    telemetry.CodeLabel(code),
			Reported: a.reported[row.Key],
			Critical: row.Critical,
		})
	}
	return resp
}

// SnapshotResponse bundles everything a dashboard needs in one read.
func (a *Aggregator) SnapshotResponse() models.SnapshotResponse {
	a.mu.RLock()
	resp := models.SnapshotResponse{
		Snapshot: a.snapshot.Clone(),
		Relays:   a.relays,
	}
	if !a.updatedAt.IsZero() {
		t := a.updatedAt
		resp.UpdatedAt = &t
	}
	a.mu.RUnlock()

	resp.Emergencies = make([]models.EmergencyResponse, 0)
	for _, c := range a.ActiveEmergencies() {
		resp.Emergencies = append(resp.Emergencies, models.EmergencyResponse{
			Bit:      c.Bit,
			Message:  c.Message,
			Severity: c.Severity,
		})
	}
	return resp
}

func (a *Aggregator) History() map[telemetry.Channel]history.Series {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.history.All()
}

// Series returns one channel's history, nil for an unknown channel.
func (a *Aggregator) Series(ch telemetry.Channel) history.Series {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.history.Series(ch)
}

func (a *Aggregator) HistoryBounds() history.Bounds {
	return a.history.Bounds()
}

func (a *Aggregator) ClearHistory() {
	a.mu.Lock()
	a.history.Clear()
	a.mu.Unlock()

	notifications.HistoryCleared(a.Notifications)
}
