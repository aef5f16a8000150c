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
	"fmt"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WebSocketOpener connects to a device bridge that relays controller lines
// as text frames. The baud rate is ignored.
type WebSocketOpener struct {
	Dialer *websocket.Dialer
	URL    string
}

func NewWebSocketOpener(url string) *WebSocketOpener {
	return &WebSocketOpener{URL: url, Dialer: websocket.DefaultDialer}
}

func (*WebSocketOpener) Name() string {
	return "websocket"
}

func (o *WebSocketOpener) Open(ctx context.Context, _ int) (Port, error) {
	if o.URL == "" {
		return nil, fmt.Errorf("%w: no websocket url configured", ErrTransportUnavailable)
	}
	dialer := o.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	conn, resp, err := dialer.DialContext(ctx, o.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, o.URL, err)
	}

	log.Info().Str("url", o.URL).Msg("connected to websocket bridge")
	return &wsPort{conn: conn}, nil
}

// wsPort presents frames as a byte stream, one line per frame.
type wsPort struct {
	conn    *websocket.Conn
	pending []byte
	writeMu sync.Mutex
}

func (p *wsPort) Read(b []byte) (int, error) {
	for len(p.pending) == 0 {
		_, msg, err := p.conn.ReadMessage()
		if err != nil {
			return 0, fmt.Errorf("websocket read: %w", err)
		}
		if len(msg) == 0 {
			continue
		}
		if msg[len(msg)-1] != '\n' {
			msg = append(msg, '\n')
		}
		p.pending = msg
	}
	n := copy(b, p.pending)
	p.pending = p.pending[n:]
	return n, nil
}

func (p *wsPort) Write(b []byte) (int, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	cmd := strings.TrimRight(string(b), "\r\n")
	if err := p.conn.WriteMessage(websocket.TextMessage, []byte(cmd)); err != nil {
		return 0, fmt.Errorf("websocket write: %w", err)
	}
	return len(b), nil
}

func (p *wsPort) Close() error {
	if err := p.conn.Close(); err != nil {
		return fmt.Errorf("websocket close: %w", err)
	}
	return nil
}
