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

// Package session owns one pod link and everything derived from it: the
// connection state machine, the aggregator and relay commands.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/internal/metrics"
	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/api/notifications"
	"github.com/podlink/podlink/pkg/config"
	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/helpers/syncutil"
	"github.com/podlink/podlink/pkg/service/relays"
	"github.com/podlink/podlink/pkg/service/state"
	"github.com/podlink/podlink/pkg/transport"
)

// ErrLinkDropped is returned by Connect when the link closed again before
// the connection was established.
var ErrLinkDropped = errors.New("link closed while connecting")

// Link is the line-oriented connection a session drives. *transport.Adapter
// implements it.
type Link interface {
	Connect(ctx context.Context, baudRate int) error
	Disconnect() error
	Send(command string) error
	OnData(cb func(line string))
	OnClosed(cb func(err error))
	Name() string
}

type Session struct {
	cfg           *config.Instance
	link          Link
	agg           *state.Aggregator
	dispatcher    *relays.Dispatcher
	events        *eventlog.Log
	metrics       *metrics.Metrics
	Notifications chan<- models.Notification
	apply         func(line string)
	state         string
	lastError     string
	// bumped whenever the link drops
	generation uint64
	mu         syncutil.RWMutex
	// serialises Connect and Disconnect
	lifecycle syncutil.Mutex
	// serialises relay commands
	commands syncutil.Mutex
}

// New wires a session around link. The event log's hooks are taken over to
// broadcast entries and count them.
func New(
	cfg *config.Instance,
	link Link,
	agg *state.Aggregator,
	events *eventlog.Log,
	m *metrics.Metrics,
	ns chan<- models.Notification,
) *Session {
	s := &Session{
		cfg:           cfg,
		link:          link,
		agg:           agg,
		dispatcher:    relays.NewDispatcher(link, events),
		events:        events,
		metrics:       m,
		Notifications: ns,
		apply:         agg.ApplyLine,
		state:         models.ConnectionDisconnected,
	}

	events.SetHooks(
		func(e eventlog.Entry) {
			m.EventRecorded(e)
			notifications.LogAdded(ns, e)
		},
		func() {
			notifications.LogCleared(ns)
		},
	)
	link.OnData(s.handleLine)
	link.OnClosed(s.handleClosed)
	return s
}

func (s *Session) Aggregator() *state.Aggregator {
	return s.agg
}

func (s *Session) Events() *eventlog.Log {
	return s.events
}

// Status reports the connection state for the presentation layer.
func (s *Session) Status() models.StatusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statusLocked()
}

func (s *Session) statusLocked() models.StatusResponse {
	return models.StatusResponse{
		Transport:    s.link.Name(),
		State:        s.state,
		LastError:    s.lastError,
		IsConnected:  s.state == models.ConnectionConnected,
		IsConnecting: s.state == models.ConnectionConnecting,
	}
}

func (s *Session) setState(next, lastError string, keepError bool) {
	s.mu.Lock()
	s.state = next
	if !keepError {
		s.lastError = lastError
	}
	status := s.statusLocked()
	s.mu.Unlock()

	s.publishStatus(status)
}

func (s *Session) publishStatus(status models.StatusResponse) {
	s.metrics.SetConnected(status.IsConnected)
	notifications.ConnectionChanged(s.Notifications, status)
}

// Connect opens the link at the configured baud rate.
func (s *Session) Connect(ctx context.Context) error {
	return s.ConnectWithBaud(ctx, s.cfg.BaudRate())
}

// ConnectWithBaud resets the session's state, opens the link and asks the
// pod for its relay states. Lines that arrive while the link is opening are
// kept. If the link drops before Connect returns, the session stays
// disconnected and ErrLinkDropped is returned. Connecting while connected
// is a no-op. There is no automatic reconnect.
func (s *Session) ConnectWithBaud(ctx context.Context, baudRate int) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.RLock()
	current := s.state
	s.mu.RUnlock()
	if current == models.ConnectionConnected {
		return nil
	}

	s.agg.Reset()
	s.mu.Lock()
	s.state = models.ConnectionConnecting
	s.lastError = ""
	gen := s.generation
	status := s.statusLocked()
	s.mu.Unlock()
	s.publishStatus(status)
	log.Info().Str("transport", s.link.Name()).Int("baud", baudRate).Msg("connecting to pod")

	err := s.link.Connect(ctx, baudRate)
	s.metrics.ConnectAttempt(err)
	if err != nil {
		msg := "Connection failed: " + err.Error()
		s.events.RecordKind(connectErrorKind(err), msg, eventlog.SeverityError)
		s.setState(models.ConnectionDisconnected, msg, false)
		return err
	}

	if !s.promote(gen) {
		log.Warn().Str("transport", s.link.Name()).Msg("pod link closed while connecting")
		return ErrLinkDropped
	}

	if s.cfg.StatusOnConnect() {
		// failure is already recorded as a warning
		_ = s.RequestStatus()
	}
	return nil
}

// promote moves a connecting session to connected unless the link dropped
// since gen was taken.
func (s *Session) promote(gen uint64) bool {
	s.mu.Lock()
	if s.generation != gen || s.state != models.ConnectionConnecting {
		s.mu.Unlock()
		return false
	}
	s.state = models.ConnectionConnected
	status := s.statusLocked()
	s.mu.Unlock()

	s.publishStatus(status)
	return true
}

func connectErrorKind(err error) string {
	switch {
	case errors.Is(err, transport.ErrTransportUnavailable):
		return eventlog.KindTransportUnavailable
	case errors.Is(err, transport.ErrConnectionTimedOut):
		return eventlog.KindConnectionTimedOut
	default:
		return eventlog.KindConnectionFailed
	}
}

// Disconnect closes the link. It is safe to call at any time, any number
// of times.
func (s *Session) Disconnect() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if err := s.link.Disconnect(); err != nil {
		log.Warn().Err(err).Msg("error while disconnecting")
	}

	s.mu.RLock()
	current := s.state
	s.mu.RUnlock()
	if current != models.ConnectionDisconnected {
		s.setState(models.ConnectionDisconnected, "", true)
	}
}

// handleClosed runs when the link drops without a Disconnect call.
func (s *Session) handleClosed(err error) {
	msg := "Connection closed: end of stream"
	if err != nil && !errors.Is(err, context.Canceled) {
		msg = fmt.Sprintf("Serial reading error: %v", err)
	}
	log.Warn().Err(err).Msg("pod link closed")

	s.mu.Lock()
	s.generation++
	s.state = models.ConnectionDisconnected
	s.lastError = msg
	status := s.statusLocked()
	s.mu.Unlock()
	s.publishStatus(status)
}

// handleLine is the single consumer of the link's line queue. A panic while
// handling one line is recorded and ingestion carries on.
func (s *Session) handleLine(line string) {
	defer func() {
		if r := recover(); r != nil {
			s.events.RecordKind(eventlog.KindDataHandling,
				fmt.Sprintf("Data handling error: %v", r), eventlog.SeverityError)
		}
	}()

	start := time.Now()
	s.apply(line)
	s.metrics.LineProcessed(time.Since(start))

	if s.metrics != nil {
		snap := s.agg.Snapshot()
		s.metrics.ObserveState(&snap, s.agg.Relays(), s.agg.HealthScore())
	}
}

// ToggleRelay flips one relay and applies the new state optimistically.
// A failed command leaves the relay as it was.
func (s *Session) ToggleRelay(id int) (bool, error) {
	s.commands.Lock()
	defer s.commands.Unlock()

	current := s.agg.Relay(id)
	next, err := s.dispatcher.Toggle(id, current)
	if errors.Is(err, relays.ErrInvalidRelay) {
		return current, err
	}
	s.metrics.CommandSent(metrics.CommandToggle, err)
	if err != nil {
		return current, err
	}
	s.agg.SetRelay(id, next)
	s.metrics.ObserveRelays(s.agg.Relays())
	return next, nil
}

func (s *Session) TurnAllOn() error {
	s.commands.Lock()
	defer s.commands.Unlock()

	err := s.dispatcher.TurnAllOn()
	s.metrics.CommandSent(metrics.CommandAllOn, err)
	if err != nil {
		return err
	}
	s.agg.SetAllRelays(true)
	s.metrics.ObserveRelays(s.agg.Relays())
	return nil
}

func (s *Session) TurnAllOff() error {
	s.commands.Lock()
	defer s.commands.Unlock()

	err := s.dispatcher.TurnAllOff()
	s.metrics.CommandSent(metrics.CommandAllOff, err)
	if err != nil {
		return err
	}
	s.agg.SetAllRelays(false)
	s.metrics.ObserveRelays(s.agg.Relays())
	return nil
}

// EmergencyStop cuts every relay.
func (s *Session) EmergencyStop() error {
	s.commands.Lock()
	defer s.commands.Unlock()

	err := s.dispatcher.TurnAllOff()
	s.metrics.CommandSent(metrics.CommandStop, err)
	if err != nil {
		return err
	}
	s.agg.SetAllRelays(false)
	s.metrics.ObserveRelays(s.agg.Relays())
	s.events.Record("Emergency stop issued", eventlog.SeverityInfo)
	return nil
}

// RequestStatus asks the pod to report its relay states. The reply is
// merged when it arrives as a relay state line.
func (s *Session) RequestStatus() error {
	s.commands.Lock()
	defer s.commands.Unlock()

	err := s.dispatcher.GetStatus()
	s.metrics.CommandSent(metrics.CommandStatus, err)
	return err
}

func (s *Session) ClearHistory() {
	s.agg.ClearHistory()
}

func (s *Session) ClearErrorLog() {
	s.events.Clear()
}
