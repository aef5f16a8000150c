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
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

const (
	DefaultLineQueueSize = 256
	readBufferSize       = 1024
)

// Options tune an Adapter. Zero values pick defaults; a zero
// ConnectTimeout means no timeout.
type Options struct {
	ConnectTimeout time.Duration
	LineQueueSize  int
}

// Adapter runs one connection at a time. Lines read from the port pass
// through a bounded queue and are delivered in order to the OnData
// callback from a single goroutine.
type Adapter struct {
	opener   Opener
	log      eventlog.Recorder
	conn     *conn
	onData   func(string)
	onClosed func(error)
	opts     Options
	mu       syncutil.Mutex
	// serialises Connect and Disconnect
	lifecycle syncutil.Mutex
}

type conn struct {
	port    Port
	ctx     context.Context
	cancel  context.CancelFunc
	lines   chan string
	wg      sync.WaitGroup
	writeMu syncutil.Mutex
}

func NewAdapter(opener Opener, rec eventlog.Recorder, opts Options) *Adapter {
	if opts.LineQueueSize <= 0 {
		opts.LineQueueSize = DefaultLineQueueSize
	}
	return &Adapter{
		opener: opener,
		log:    rec,
		opts:   opts,
	}
}

// OnData sets the single line consumer, replacing any previous one.
func (a *Adapter) OnData(cb func(line string)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onData = cb
}

// OnClosed is called when the link drops on its own, not on Disconnect.
func (a *Adapter) OnClosed(cb func(err error)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onClosed = cb
}

func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil
}

func (a *Adapter) Name() string {
	return a.opener.Name()
}

type openResult struct {
	port Port
	err  error
}

// Connect opens the link and starts reading. Connecting while connected
// is a no-op.
func (a *Adapter) Connect(ctx context.Context, baudRate int) error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	if a.Connected() {
		return nil
	}

	openCtx := ctx
	if a.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, a.opts.ConnectTimeout)
		defer cancel()
	}

	// some device opens ignore the context, so wait on it separately
	resCh := make(chan openResult, 1)
	go func() {
		port, err := a.opener.Open(openCtx, baudRate)
		resCh <- openResult{port: port, err: err}
	}()

	var res openResult
	select {
	case res = <-resCh:
	case <-openCtx.Done():
		go func() {
			if late := <-resCh; late.port != nil {
				_ = late.port.Close()
			}
		}()
		if errors.Is(openCtx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%w after %s", ErrConnectionTimedOut, a.opts.ConnectTimeout)
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailed, openCtx.Err())
	}

	if res.err != nil {
		if errors.Is(res.err, ErrTransportUnavailable) || errors.Is(res.err, ErrConnectionFailed) {
			return res.err
		}
		return fmt.Errorf("%w: %w", ErrConnectionFailed, res.err)
	}

	connCtx, connCancel := context.WithCancel(context.Background())
	c := &conn{
		port:   res.port,
		ctx:    connCtx,
		cancel: connCancel,
		lines:  make(chan string, a.opts.LineQueueSize),
	}

	a.mu.Lock()
	a.conn = c
	a.mu.Unlock()

	c.wg.Add(2)
	go a.readLoop(c)
	go a.dispatchLoop(c)

	log.Info().Str("transport", a.opener.Name()).Msg("transport connected")
	return nil
}

// Disconnect stops the read loop, drops queued lines and closes the port.
// It is safe to call when not connected. It must not be called from the
// OnData callback.
func (a *Adapter) Disconnect() error {
	a.lifecycle.Lock()
	defer a.lifecycle.Unlock()

	a.mu.Lock()
	c := a.conn
	a.conn = nil
	a.mu.Unlock()

	if c == nil {
		return nil
	}

	c.cancel()
	err := c.port.Close()
	c.wg.Wait()

	log.Info().Str("transport", a.opener.Name()).Msg("transport disconnected")
	if err != nil {
		return fmt.Errorf("failed to close port: %w", err)
	}
	return nil
}

// Send writes command plus a newline. Failures are recorded in the event
// log before being returned.
func (a *Adapter) Send(command string) error {
	a.mu.Lock()
	c := a.conn
	a.mu.Unlock()

	if c == nil {
		a.log.RecordKind(eventlog.KindNotConnected,
			"Send command error: "+ErrNotConnected.Error(), eventlog.SeverityError)
		return ErrNotConnected
	}

	data := []byte(command + "\n")
	c.writeMu.Lock()
	n, err := c.port.Write(data)
	c.writeMu.Unlock()

	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrSendFailed, err)
		a.log.RecordKind(eventlog.KindSendFailed,
			"Send command error: "+wrapped.Error(), eventlog.SeverityError)
		return wrapped
	}

	log.Debug().Str("command", command).Msg("sent command")
	return nil
}

func (a *Adapter) readLoop(c *conn) {
	defer c.wg.Done()
	defer close(c.lines)

	var lb LineBuffer
	buf := make([]byte, readBufferSize)
	for {
		if c.ctx.Err() != nil {
			return
		}

		n, err := c.port.Read(buf)
		if n > 0 {
			for _, line := range lb.Feed(buf[:n]) {
				select {
				case c.lines <- line:
				case <-c.ctx.Done():
					return
				}
			}
		}
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			a.readFailed(c, err)
			return
		}
	}
}

func (a *Adapter) dispatchLoop(c *conn) {
	defer c.wg.Done()
	defer c.cancel()
	for line := range c.lines {
		if c.ctx.Err() != nil {
			// drain so the reader can exit, lines after a disconnect are dropped
			continue
		}
		a.mu.Lock()
		cb := a.onData
		a.mu.Unlock()
		if cb != nil {
			cb(line)
		}
	}
}

// readFailed tears down a connection whose read loop hit an error. Lines
// already queued are still delivered. It runs on the read goroutine, so it
// must not wait on the connection.
func (a *Adapter) readFailed(c *conn, err error) {
	a.mu.Lock()
	owned := a.conn == c
	if owned {
		a.conn = nil
	}
	cb := a.onClosed
	a.mu.Unlock()

	if !owned {
		return
	}

	if errors.Is(err, io.EOF) {
		a.log.RecordKind(eventlog.KindReadFailed,
			"Connection closed: end of stream", eventlog.SeverityWarning)
	} else {
		a.log.RecordKind(eventlog.KindReadFailed,
			fmt.Sprintf("Serial reading error: %v", err), eventlog.SeverityError)
	}

	if closeErr := c.port.Close(); closeErr != nil {
		log.Debug().Err(closeErr).Msg("closing port after read error")
	}

	if cb != nil {
		cb(err)
	}
}
