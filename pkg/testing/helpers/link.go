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

// Package helpers provides test doubles and wiring shortcuts for tests that
// need a pod session without real hardware.
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//		ts := helpers.NewTestSession(t)
//		require.NoError(t, ts.Session.Connect(context.Background()))
//		ts.Link.Emit(fixtures.TelemetryLine)
//	}
package helpers

import (
	"context"
	"sync"

	"github.com/podlink/podlink/pkg/transport"
)

// FakeLink is an in-memory pod link. It records sent commands and lets a
// test push device lines with Emit.
type FakeLink struct {
	ConnectErr error
	SendErr    error
	onData     func(string)
	onClosed   func(error)
	sent       []string
	baud       int
	connected  bool
	mu         sync.Mutex
}

func (f *FakeLink) Connect(_ context.Context, baudRate int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.baud = baudRate
	if f.ConnectErr != nil {
		return f.ConnectErr
	}
	f.connected = true
	return nil
}

func (f *FakeLink) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *FakeLink) Send(command string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return transport.ErrNotConnected
	}
	if f.SendErr != nil {
		return f.SendErr
	}
	f.sent = append(f.sent, command)
	return nil
}

func (f *FakeLink) OnData(cb func(string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onData = cb
}

func (f *FakeLink) OnClosed(cb func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onClosed = cb
}

func (*FakeLink) Name() string {
	return "fake"
}

// Emit delivers a line as if the pod had sent it.
func (f *FakeLink) Emit(line string) {
	f.mu.Lock()
	cb := f.onData
	f.mu.Unlock()
	if cb != nil {
		cb(line)
	}
}

// Drop simulates the device going away.
func (f *FakeLink) Drop(err error) {
	f.mu.Lock()
	cb := f.onClosed
	f.connected = false
	f.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

func (f *FakeLink) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

// LastSent returns the most recent command, or "" if none.
func (f *FakeLink) LastSent() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return ""
	}
	return f.sent[len(f.sent)-1]
}

func (f *FakeLink) Baud() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.baud
}
