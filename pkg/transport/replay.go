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
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// ReplayOpener plays back a recorded capture, one line per Interval.
// Commands written to it are logged and dropped.
type ReplayOpener struct {
	Fs       afero.Fs
	Clock    clockwork.Clock
	Path     string
	Interval time.Duration
}

func NewReplayOpener(fs afero.Fs, path string, interval time.Duration) *ReplayOpener {
	return &ReplayOpener{Fs: fs, Path: path, Interval: interval}
}

func (*ReplayOpener) Name() string {
	return "replay"
}

func (o *ReplayOpener) Open(_ context.Context, _ int) (Port, error) {
	if o.Fs == nil || o.Path == "" {
		return nil, fmt.Errorf("%w: no replay file configured", ErrTransportUnavailable)
	}
	f, err := o.Fs.Open(o.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	clock := o.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log.Info().Str("path", o.Path).Dur("interval", o.Interval).Msg("replaying capture")
	return &replayPort{
		file:     f,
		scanner:  bufio.NewScanner(f),
		clock:    clock,
		interval: o.Interval,
		closed:   make(chan struct{}),
	}, nil
}

var errReplayClosed = errors.New("replay closed")

type replayPort struct {
	file     afero.File
	scanner  *bufio.Scanner
	clock    clockwork.Clock
	closed   chan struct{}
	pending  []byte
	interval time.Duration
	once     sync.Once
}

func (p *replayPort) Read(b []byte) (int, error) {
	if len(p.pending) == 0 {
		if p.interval > 0 {
			select {
			case <-p.closed:
				return 0, errReplayClosed
			case <-p.clock.After(p.interval):
			}
		}
		select {
		case <-p.closed:
			return 0, errReplayClosed
		default:
		}
		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return 0, fmt.Errorf("replay read: %w", err)
			}
			return 0, io.EOF
		}
		p.pending = append(append(p.pending[:0], p.scanner.Bytes()...), '\n')
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (*replayPort) Write(b []byte) (int, error) {
	log.Debug().Str("command", string(b)).Msg("replay: dropping command")
	return len(b), nil
}

func (p *replayPort) Close() error {
	var err error
	p.once.Do(func() {
		close(p.closed)
		err = p.file.Close()
	})
	if err != nil {
		return fmt.Errorf("replay close: %w", err)
	}
	return nil
}
