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

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podlink/podlink/internal/metrics"
	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/config"
	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/service/relays"
	"github.com/podlink/podlink/pkg/service/state"
	"github.com/podlink/podlink/pkg/telemetry"
	"github.com/podlink/podlink/pkg/telemetry/history"
	"github.com/podlink/podlink/pkg/transport"
)

type fakeLink struct {
	connectErr error
	sendErr    error
	onData     func(string)
	onClosed   func(error)
	// runs at the end of Connect, as if the device spoke while opening
	whileOpening func(f *fakeLink)
	sent         []string
	baud         int
	disconnects  int
	connected    bool
	mu           sync.Mutex
}

func (f *fakeLink) Connect(_ context.Context, baudRate int) error {
	f.mu.Lock()
	f.baud = baudRate
	if f.connectErr != nil {
		f.mu.Unlock()
		return f.connectErr
	}
	f.connected = true
	hook := f.whileOpening
	f.mu.Unlock()

	if hook != nil {
		hook(f)
	}
	return nil
}

// drop closes the link from the device side.
func (f *fakeLink) drop(err error) {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	f.onClosed(err)
}

func (f *fakeLink) isConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeLink) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeLink) Send(command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return transport.ErrNotConnected
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, command)
	return nil
}

func (f *fakeLink) OnData(cb func(string)) {
	f.onData = cb
}

func (f *fakeLink) OnClosed(cb func(error)) {
	f.onClosed = cb
}

func (*fakeLink) Name() string {
	return "fake"
}

func (f *fakeLink) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fixture struct {
	sess   *Session
	link   *fakeLink
	events *eventlog.Log
	ns     chan models.Notification
}

func newFixture(t *testing.T, link *fakeLink) fixture {
	t.Helper()
	if link == nil {
		link = &fakeLink{}
	}
	ns := make(chan models.Notification, 100)
	events := eventlog.New(0, nil)
	agg := state.NewAggregator(events, history.DefaultBounds(), nil, ns)
	cfg := config.NewInMemory(config.BaseDefaults)
	return fixture{
		sess:   New(cfg, link, agg, events, metrics.New(), ns),
		link:   link,
		events: events,
		ns:     ns,
	}
}

func drain(ns chan models.Notification) []models.Notification {
	var out []models.Notification
	for {
		select {
		case n := <-ns:
			out = append(out, n)
		default:
			return out
		}
	}
}

func methods(ns []models.Notification) []string {
	out := make([]string, 0, len(ns))
	for _, n := range ns {
		out = append(out, n.Method)
	}
	return out
}

func TestConnect_Success(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	require.NoError(t, f.sess.Connect(context.Background()))

	st := f.sess.Status()
	assert.True(t, st.IsConnected)
	assert.False(t, st.IsConnecting)
	assert.Equal(t, models.ConnectionConnected, st.State)
	assert.Empty(t, st.LastError)
	assert.Equal(t, config.DefaultBaudRate, f.link.baud)
	assert.Equal(t, []string{relays.CmdStatus}, f.link.Sent())

	assert.Equal(t, []string{
		models.NotificationConnectionChanged,
		models.NotificationConnectionChanged,
	}, methods(drain(f.ns)))
}

func TestConnect_AlreadyConnectedIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	require.NoError(t, f.sess.Connect(context.Background()))
	require.NoError(t, f.sess.ConnectWithBaud(context.Background(), 9600))

	assert.Equal(t, config.DefaultBaudRate, f.link.baud)
	assert.Len(t, f.link.Sent(), 1)
}

func TestConnect_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		kind string
	}{
		{
			name: "unavailable",
			err:  transport.ErrTransportUnavailable,
			kind: eventlog.KindTransportUnavailable,
		},
		{
			name: "open failed",
			err:  fmt.Errorf("%w: permission denied", transport.ErrConnectionFailed),
			kind: eventlog.KindConnectionFailed,
		},
		{
			name: "timed out",
			err:  fmt.Errorf("%w after 5s", transport.ErrConnectionTimedOut),
			kind: eventlog.KindConnectionTimedOut,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			f := newFixture(t, &fakeLink{connectErr: tt.err})

			err := f.sess.Connect(context.Background())
			require.ErrorIs(t, err, tt.err)

			st := f.sess.Status()
			assert.False(t, st.IsConnected)
			assert.False(t, st.IsConnecting)
			assert.Equal(t, "Connection failed: "+tt.err.Error(), st.LastError)

			last, ok := f.events.Last()
			require.True(t, ok)
			assert.Equal(t, tt.kind, last.Kind)
			assert.Equal(t, eventlog.SeverityError, last.Severity)
			assert.Empty(t, f.link.Sent())
		})
	}
}

func TestConnect_LinkDropsWhileOpening(t *testing.T) {
	t.Parallel()
	link := &fakeLink{whileOpening: func(f *fakeLink) {
		f.onData(`{"voltage1": 12.5}`)
		f.drop(io.EOF)
	}}
	f := newFixture(t, link)

	err := f.sess.Connect(context.Background())
	require.ErrorIs(t, err, ErrLinkDropped)

	st := f.sess.Status()
	assert.False(t, st.IsConnected)
	assert.Equal(t, models.ConnectionDisconnected, st.State)
	assert.Equal(t, "Connection closed: end of stream", st.LastError)
	assert.InDelta(t, 12.5, f.sess.Aggregator().Snapshot().Voltage1, 0.0001,
		"a line received while opening is kept")
	assert.Empty(t, f.link.Sent())

	link.mu.Lock()
	link.whileOpening = nil
	link.mu.Unlock()

	require.NoError(t, f.sess.Connect(context.Background()))
	assert.True(t, f.sess.Status().IsConnected)
	assert.True(t, link.isConnected())
}

func TestConnect_KeepsLinesReceivedWhileOpening(t *testing.T) {
	t.Parallel()
	link := &fakeLink{whileOpening: func(f *fakeLink) {
		f.onData(`{"voltage1": 12.5}`)
	}}
	f := newFixture(t, link)

	require.NoError(t, f.sess.Connect(context.Background()))
	assert.True(t, f.sess.Status().IsConnected)
	assert.InDelta(t, 12.5, f.sess.Aggregator().Snapshot().Voltage1, 0.0001)
}

func TestDisconnect_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	require.NoError(t, f.sess.Connect(context.Background()))
	f.sess.Disconnect()
	assert.False(t, f.sess.Status().IsConnected)
	f.sess.Disconnect()
	assert.False(t, f.sess.Status().IsConnected)
	assert.Equal(t, 2, f.link.disconnects)
}

func TestDisconnect_WithoutConnect(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	assert.NotPanics(t, f.sess.Disconnect)
	assert.Equal(t, models.ConnectionDisconnected, f.sess.Status().State)
	assert.Empty(t, drain(f.ns))
}

func TestLinkClosed_UpdatesStatus(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.NoError(t, f.sess.Connect(context.Background()))

	f.link.onClosed(errors.New("device unplugged"))

	st := f.sess.Status()
	assert.False(t, st.IsConnected)
	assert.Equal(t, "Serial reading error: device unplugged", st.LastError)
}

func TestIncomingLines(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.NoError(t, f.sess.Connect(context.Background()))

	f.link.onData(`{"voltage1": 48.5}`)
	f.link.onData("STATE:0,1,0,0")

	agg := f.sess.Aggregator()
	assert.InDelta(t, 48.5, agg.Snapshot().Voltage1, 0.0001)
	assert.Equal(t, telemetry.RelayState{Relay2: true}, agg.Relays())
}

func TestHandleLine_RecoversPanic(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	f.sess.apply = func(string) { panic("bad line") }

	assert.NotPanics(t, func() { f.link.onData(`{"voltage1": 1}`) })

	last, ok := f.events.Last()
	require.True(t, ok)
	assert.Equal(t, eventlog.KindDataHandling, last.Kind)
	assert.Equal(t, "Data handling error: bad line", last.Message)
}

func TestToggleRelay(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.NoError(t, f.sess.Connect(context.Background()))

	on, err := f.sess.ToggleRelay(2)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, f.sess.Aggregator().Relay(2))
	assert.Equal(t, "RELAY2_ON", f.link.Sent()[1])

	on, err = f.sess.ToggleRelay(2)
	require.NoError(t, err)
	assert.False(t, on)
	assert.Equal(t, "RELAY2_OFF", f.link.Sent()[2])
}

func TestToggleRelay_ConcurrentTogglesAreSerialised(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.NoError(t, f.sess.Connect(context.Background()))

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.sess.ToggleRelay(1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"RELAY1_ON", "RELAY1_OFF"}, f.link.Sent()[1:])
	assert.False(t, f.sess.Aggregator().Relay(1))
}

func TestToggleRelay_FailureKeepsStateAndConnection(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.NoError(t, f.sess.Connect(context.Background()))
	f.link.sendErr = errors.New("write timeout")

	_, err := f.sess.ToggleRelay(3)
	require.ErrorIs(t, err, relays.ErrCommandFailed)

	assert.False(t, f.sess.Aggregator().Relay(3))
	assert.True(t, f.sess.Status().IsConnected)

	last, ok := f.events.Last()
	require.True(t, ok)
	assert.Equal(t, eventlog.KindCommandFailed, last.Kind)
}

func TestToggleRelay_NotConnected(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	_, err := f.sess.ToggleRelay(1)
	require.ErrorIs(t, err, transport.ErrNotConnected)
	assert.False(t, f.sess.Aggregator().Relay(1))
}

func TestAllOnOffAndEmergencyStop(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	require.NoError(t, f.sess.Connect(context.Background()))

	require.NoError(t, f.sess.TurnAllOn())
	assert.Equal(t, telemetry.AllRelays(true), f.sess.Aggregator().Relays())

	require.NoError(t, f.sess.TurnAllOff())
	assert.Equal(t, telemetry.AllRelays(false), f.sess.Aggregator().Relays())

	require.NoError(t, f.sess.TurnAllOn())
	require.NoError(t, f.sess.EmergencyStop())
	assert.Equal(t, telemetry.AllRelays(false), f.sess.Aggregator().Relays())

	assert.Equal(t,
		[]string{relays.CmdStatus, relays.CmdAllOn, relays.CmdAllOff, relays.CmdAllOn, relays.CmdAllOff},
		f.link.Sent())

	last, ok := f.events.Last()
	require.True(t, ok)
	assert.Equal(t, "Emergency stop issued", last.Message)
	assert.Equal(t, eventlog.SeverityInfo, last.Severity)
}

func TestClearErrorLog_Notifies(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	f.events.Record("something", eventlog.SeverityInfo)
	f.sess.ClearErrorLog()

	assert.Zero(t, f.events.Len())
	assert.Equal(t,
		[]string{models.NotificationLogAdded, models.NotificationLogCleared},
		methods(drain(f.ns)))
}

func TestClearHistory(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	f.link.onData(`{"pressure": 101.3}`)
	f.sess.ClearHistory()

	assert.Empty(t, f.sess.Aggregator().Series(telemetry.ChannelPressure))
}
