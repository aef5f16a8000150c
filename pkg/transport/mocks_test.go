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

package transport

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"
)

var errPortClosed = errors.New("port closed")

// mockPort feeds Read from a channel of chunks. Pushing an error ends the
// stream with that error.
type mockPort struct {
	chunks   chan any
	closed   chan struct{}
	written  bytes.Buffer
	writeErr error
	shortBy  int
	mu       sync.Mutex
	once     sync.Once
	timeout  time.Duration
}

func newMockPort() *mockPort {
	return &mockPort{
		chunks: make(chan any, 64),
		closed: make(chan struct{}),
	}
}

func (m *mockPort) push(chunks ...string) {
	for _, c := range chunks {
		m.chunks <- []byte(c)
	}
}

func (m *mockPort) fail(err error) {
	m.chunks <- err
}

func (m *mockPort) Read(p []byte) (int, error) {
	select {
	case <-m.closed:
		return 0, errPortClosed
	case item := <-m.chunks:
		switch v := item.(type) {
		case error:
			return 0, v
		case []byte:
			return copy(p, v), nil
		}
		return 0, nil
	}
}

func (m *mockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	n := len(p) - m.shortBy
	m.written.Write(p[:n])
	return n, nil
}

func (m *mockPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = t
	return nil
}

func (m *mockPort) Close() error {
	m.once.Do(func() { close(m.closed) })
	return nil
}

func (m *mockPort) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

func (m *mockPort) writtenString() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

type mockOpener struct {
	port  Port
	err   error
	block chan struct{}
	baud  int
	opens int
	mu    sync.Mutex
}

func (*mockOpener) Name() string {
	return "mock"
}

func (o *mockOpener) Open(_ context.Context, baudRate int) (Port, error) {
	if o.block != nil {
		<-o.block
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.baud = baudRate
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	return o.port, nil
}
