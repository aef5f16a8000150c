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

package helpers

import (
	"testing"

	"github.com/podlink/podlink/internal/metrics"
	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/config"
	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/service/session"
	"github.com/podlink/podlink/pkg/service/state"
	"github.com/podlink/podlink/pkg/telemetry/history"
)

// NotificationBuffer is large enough that tests never lose notifications.
const NotificationBuffer = 1000

// TestSession bundles a session with the pieces a test inspects.
type TestSession struct {
	Session       *session.Session
	Link          *FakeLink
	Config        *config.Instance
	Events        *eventlog.Log
	Metrics       *metrics.Metrics
	Notifications chan models.Notification
}

// NewTestSession wires a session around a FakeLink with default config.
func NewTestSession(t *testing.T) *TestSession {
	t.Helper()
	return NewTestSessionWith(t, config.NewInMemory(config.BaseDefaults), &FakeLink{})
}

func NewTestSessionWith(t *testing.T, cfg *config.Instance, link *FakeLink) *TestSession {
	t.Helper()
	ns := make(chan models.Notification, NotificationBuffer)
	events := eventlog.New(cfg.ErrorLogMaxEntries(), nil)
	maxPoints, window := cfg.HistoryBounds()
	agg := state.NewAggregator(events, history.Bounds{MaxPoints: maxPoints, Window: window}, nil, ns)
	m := metrics.New()
	return &TestSession{
		Session:       session.New(cfg, link, agg, events, m, ns),
		Link:          link,
		Config:        cfg,
		Events:        events,
		Metrics:       m,
		Notifications: ns,
	}
}

// DrainNotifications returns the methods of every queued notification.
func (ts *TestSession) DrainNotifications() []string {
	var out []string
	for {
		select {
		case n := <-ts.Notifications:
			out = append(out, n.Method)
		default:
			return out
		}
	}
}
