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
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/telemetry"
	"github.com/podlink/podlink/pkg/telemetry/history"
)

type fixture struct {
	agg   *Aggregator
	log   *eventlog.Log
	clock *clockwork.FakeClock
	ns    chan models.Notification
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	l := eventlog.New(0, clock)
	ns := make(chan models.Notification, 100)
	return fixture{
		agg:   NewAggregator(l, history.DefaultBounds(), clock, ns),
		log:   l,
		clock: clock,
		ns:    ns,
	}
}

func drain(ns chan models.Notification) []string {
	var methods []string
	for {
		select {
		case n := <-ns:
			methods = append(methods, n.Method)
		default:
			return methods
		}
	}
}

func emergencyEntries(l *eventlog.Log) []eventlog.Entry {
	var out []eventlog.Entry
	for _, e := range l.Entries() {
		if e.Kind == eventlog.KindEmergency {
			out = append(out, e)
		}
	}
	return out
}

func TestApplyLine_MergesAndRecordsHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.ApplyLine(`{"voltage1": 48.5, "gap_height": 12.0, "orientation": [1, 2, 3]}`)

	snap := f.agg.Snapshot()
	assert.InDelta(t, 48.5, snap.Voltage1, 0.0001)
	assert.InDelta(t, 12.0, snap.GapHeight, 0.0001)
	assert.Equal(t, telemetry.Vector3{X: 1, Y: 2, Z: 3}, snap.Orientation)

	v := f.agg.Series(telemetry.ChannelVoltage1)
	require.Len(t, v, 1)
	assert.InDelta(t, 48.5, v[0].Value, 0.0001)
	assert.Empty(t, f.agg.Series(telemetry.ChannelPressure))
	assert.Equal(t, f.clock.Now(), f.agg.UpdatedAt())

	assert.Equal(t, []string{models.NotificationTelemetryUpdated}, drain(f.ns))
}

func TestApplyLine_PartialUpdateKeepsOtherFields(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.ApplyLine(`{"voltage1": 48.5, "pressure": 101.3, "temp_sensors": [20, 21, 22, 23]}`)
	before := f.agg.Snapshot()

	f.agg.ApplyLine(`{"voltage1": 47.0}`)
	after := f.agg.Snapshot()

	assert.InDelta(t, 47.0, after.Voltage1, 0.0001)
	after.Voltage1 = before.Voltage1
	assert.Equal(t, before, after)
}

func TestApplyLine_MalformedJSON(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	before := f.agg.Snapshot()
	f.agg.ApplyLine("{not json")

	assert.Equal(t, before, f.agg.Snapshot())
	assert.True(t, f.agg.UpdatedAt().IsZero())

	entries := f.log.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, eventlog.KindParse, entries[0].Kind)
	assert.Contains(t, entries[0].Message, "{not json")
	assert.Empty(t, drain(f.ns))
}

func TestApplyLine_NonTelemetryIgnored(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.ApplyLine("ACK RELAY1_ON")

	assert.Empty(t, f.log.Entries())
	assert.Empty(t, drain(f.ns))
}

func TestApplyLine_RelayReport(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.ApplyLine("STATE:1,0,1,0")

	assert.Equal(t, telemetry.RelayState{Relay1: true, Relay3: true}, f.agg.Relays())
	assert.Equal(t, []string{models.NotificationRelaysChanged}, drain(f.ns))

	// Same state again changes nothing.
	f.agg.ApplyLine("STATE:1,0,1,0")
	assert.Empty(t, drain(f.ns))
}

func TestRelayReport_OverridesOptimistic(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.SetRelay(2, true)
	assert.True(t, f.agg.Relay(2))

	f.agg.ApplyLine("STATE:0,0,0,0")
	assert.False(t, f.agg.Relay(2))

	f.agg.SetAllRelays(true)
	f.agg.ApplyLine(`{"relayStates": {"relay3": false}}`)
	assert.Equal(t, telemetry.RelayState{Relay1: true, Relay2: true, Relay4: true}, f.agg.Relays())
}

func TestEmergency_EdgeTriggered(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		masks []int64
		want  int
	}{
		{name: "persistent fault logs once", masks: []int64{0, 0b10, 0b10, 0b10, 0}, want: 1},
		{name: "reappearing fault logs again", masks: []int64{0b10, 0, 0b10}, want: 2},
		{name: "new bit alongside existing", masks: []int64{0b10, 0b110}, want: 2},
		{name: "partial clear then return", masks: []int64{0b110, 0b100, 0b110}, want: 3},
		{name: "no fault", masks: []int64{0, 0, 0}, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t)
			for _, m := range tt.masks {
				f.agg.ApplyLine(fmt.Sprintf(`{"emergency_reason_mask": %d}`, m))
			}
			assert.Len(t, emergencyEntries(f.log), tt.want)
		})
	}
}

func TestEmergency_MessagesAndActiveSet(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.ApplyLine(`{"emergency_reason_mask": 129}`)

	entries := emergencyEntries(f.log)
	require.Len(t, entries, 2)
	assert.Equal(t, telemetry.EmergencyTable[0x001].Message, entries[0].Message)
	assert.Equal(t, telemetry.EmergencyTable[0x080].Message, entries[1].Message)
	assert.Equal(t, eventlog.SeverityError, entries[0].Severity)

	active := f.agg.ActiveEmergencies()
	require.Len(t, active, 2)
	assert.Equal(t, int64(0x001), active[0].Bit)

	resp := f.agg.SnapshotResponse()
	assert.Len(t, resp.Emergencies, 2)

	f.agg.ApplyLine(`{"emergency_reason_mask": 0}`)
	assert.Empty(t, f.agg.ActiveEmergencies())
}

func TestEmergency_UnknownBit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.ApplyLine(`{"emergency_reason_mask": 4096}`)

	entries := emergencyEntries(f.log)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "Unknown emergency bit 12")
	assert.Equal(t, eventlog.SeverityWarning, entries[0].Severity)
}

func TestHealth_CriticalOverride(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.ApplyLine(`{"bno_health": 3, "icg_health": 3, "lidar_health": 2, "pressure_health": 2, "voltage1_health": 0}`)

	assert.Zero(t, f.agg.HealthScore())
	h := f.agg.Health()
	assert.Equal(t, telemetry.HealthCritical, h.Label)

	var v1 models.SubsystemHealth
	for _, s := range h.Subsystems {
		if s.Key == telemetry.HealthVoltage1 {
			v1 = s
		}
	}
	assert.True(t, v1.Reported)
	assert.True(t, v1.Critical)
	assert.Equal(t, telemetry.HealthFailed, v1.Label)
}

func TestHealth_OnlyReportedSubsystemsCount(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.ApplyLine(`{"bno_health": 3, "voltage1_health": 2}`)

	assert.InDelta(t, 100.0, f.agg.HealthScore(), 0.0001)
	assert.Equal(t, telemetry.HealthExcellent, f.agg.Health().Label)
}

func TestClearHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.ApplyLine(`{"voltage1": 48.5}`)
	drain(f.ns)

	f.agg.ClearHistory()

	assert.Empty(t, f.agg.Series(telemetry.ChannelVoltage1))
	assert.InDelta(t, 48.5, f.agg.Snapshot().Voltage1, 0.0001)
	assert.Equal(t, []string{models.NotificationHistoryCleared}, drain(f.ns))
}

func TestReset(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.ApplyLine(`{"voltage1": 48.5, "emergency_reason_mask": 2, "pressure_health": 1}`)
	f.agg.SetAllRelays(true)

	f.agg.Reset()

	assert.Equal(t, telemetry.NewSnapshot(), f.agg.Snapshot())
	assert.Equal(t, telemetry.RelayState{}, f.agg.Relays())
	assert.Empty(t, f.agg.ActiveEmergencies())
	assert.Empty(t, f.agg.Series(telemetry.ChannelVoltage1))
	assert.True(t, f.agg.UpdatedAt().IsZero())

	// The fault logs again in the new session.
	f.agg.ApplyLine(`{"emergency_reason_mask": 2}`)
	assert.Len(t, emergencyEntries(f.log), 2)
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.agg.ApplyLine(`{"pressure_health": 2}`)
	snap := f.agg.Snapshot()
	snap.Health[telemetry.HealthPressure] = 0

	assert.Equal(t, 2, f.agg.Snapshot().Health[telemetry.HealthPressure])
}
