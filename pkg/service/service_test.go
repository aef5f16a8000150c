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

package service

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/config"
	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/service/session"
	"github.com/podlink/podlink/pkg/testing/fixtures"
	"github.com/podlink/podlink/pkg/testing/helpers"
	"github.com/podlink/podlink/pkg/transport"
)

func TestNewOpener(t *testing.T) {
	t.Parallel()

	tests := []struct {
		check   func(t *testing.T, o transport.Opener)
		name    string
		kind    string
		path    string
		url     string
		wantErr bool
	}{
		{
			name: "serial",
			kind: config.TransportSerial,
			path: "/dev/ttyACM0",
			check: func(t *testing.T, o transport.Opener) {
				t.Helper()
				s, ok := o.(*transport.SerialOpener)
				require.True(t, ok)
				assert.Equal(t, "/dev/ttyACM0", s.Path)
			},
		},
		{
			name: "websocket",
			kind: config.TransportWebSocket,
			url:  "ws://pod.local:81/",
			check: func(t *testing.T, o transport.Opener) {
				t.Helper()
				assert.IsType(t, &transport.WebSocketOpener{}, o)
			},
		},
		{name: "websocket without url", kind: config.TransportWebSocket, wantErr: true},
		{
			name: "replay",
			kind: config.TransportReplay,
			path: "capture.log",
			check: func(t *testing.T, o transport.Opener) {
				t.Helper()
				assert.IsType(t, &transport.ReplayOpener{}, o)
			},
		},
		{name: "replay without path", kind: config.TransportReplay, wantErr: true},
		{name: "unknown", kind: "carrier-pigeon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			vals := config.BaseDefaults
			vals.Transport.Kind = tt.kind
			vals.Transport.Path = tt.path
			vals.Transport.URL = tt.url

			o, err := NewOpener(config.NewInMemory(vals), afero.NewMemMapFs())
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, o)
		})
	}
}

func TestNewOpener_UnknownKindIsSentinel(t *testing.T) {
	t.Parallel()
	vals := config.BaseDefaults
	vals.Transport.Kind = "carrier-pigeon"

	_, err := NewOpener(config.NewInMemory(vals), afero.NewMemMapFs())
	require.ErrorIs(t, err, ErrUnknownTransport)
}

func testConfig() *config.Instance {
	vals := config.BaseDefaults
	port := 0
	disabled := false
	vals.Service.APIPort = &port
	vals.Service.APIListen = "127.0.0.1"
	vals.Service.Discovery.Enabled = &disabled
	vals.Transport.AutoConnect = true
	return config.NewInMemory(vals)
}

func TestRun_AutoConnectIngestAndShutdown(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	link := &helpers.FakeLink{}
	core := NewCore(cfg, func(eventlog.Recorder) session.Link { return link })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, cfg, core)
	}()

	require.Eventually(t, func() bool {
		return core.Session.Status().IsConnected
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, config.DefaultBaudRate, link.Baud())

	link.Emit(fixtures.TelemetryLine)
	require.Eventually(t, func() bool {
		return core.Session.Aggregator().Snapshot().Voltage1 == 48.5
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}
	assert.Equal(t, models.ConnectionDisconnected, core.Session.Status().State)
}

func TestRun_NoAutoConnect(t *testing.T) {
	t.Parallel()

	vals := config.BaseDefaults
	port := 0
	disabled := false
	vals.Service.APIPort = &port
	vals.Service.APIListen = "127.0.0.1"
	vals.Service.Discovery.Enabled = &disabled
	cfg := config.NewInMemory(vals)

	link := &helpers.FakeLink{}
	core := NewCore(cfg, func(eventlog.Recorder) session.Link { return link })

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, Run(ctx, cfg, core))
	assert.Empty(t, link.Sent())
	assert.False(t, core.Session.Status().IsConnected)
}

func TestNewCore_UsesConfiguredBounds(t *testing.T) {
	t.Parallel()

	vals := config.BaseDefaults
	vals.History.MaxPoints = 7
	vals.History.WindowSeconds = 30
	cfg := config.NewInMemory(vals)

	var rec eventlog.Recorder
	core := NewCore(cfg, func(r eventlog.Recorder) session.Link {
		rec = r
		return &helpers.FakeLink{}
	})

	require.NotNil(t, rec)
	b := core.Session.Aggregator().HistoryBounds()
	assert.Equal(t, 7, b.MaxPoints)
	assert.Equal(t, 30*time.Second, b.Window)
	assert.Equal(t, NotificationQueueSize, cap(core.Notifications))
}
