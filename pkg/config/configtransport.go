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

package config

import "time"

const (
	TransportSerial    = "serial"
	TransportWebSocket = "websocket"
	TransportReplay    = "replay"
)

const (
	DefaultBaudRate         = 115200
	DefaultConnectTimeoutMs = 5000
	DefaultLineQueueSize    = 256
	DefaultReplayIntervalMs = 50
)

type Transport struct {
	StatusOnConnect  *bool  `toml:"status_on_connect,omitempty"`
	Kind             string `toml:"kind" validate:"oneof=serial websocket replay"`
	Path             string `toml:"path,omitempty"`
	URL              string `toml:"url,omitempty" validate:"omitempty,url"`
	BaudRate         int    `toml:"baud_rate" validate:"gt=0"`
	ConnectTimeoutMs int    `toml:"connect_timeout_ms" validate:"gte=0"`
	ReplayIntervalMs int    `toml:"replay_interval_ms" validate:"gte=0"`
	LineQueueSize    int    `toml:"line_queue_size" validate:"gt=0"`
	AutoConnect      bool   `toml:"auto_connect"`
}

func (c *Instance) TransportKind() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Transport.Kind
}

// TransportPath is the serial device or replay file. An empty serial path
// means the first detected device is used.
func (c *Instance) TransportPath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Transport.Path
}

func (c *Instance) TransportURL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Transport.URL
}

func (c *Instance) BaudRate() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Transport.BaudRate
}

func (c *Instance) SetBaudRate(baud int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.Transport.BaudRate = baud
}

func (c *Instance) ConnectTimeout() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Transport.ConnectTimeoutMs) * time.Millisecond
}

func (c *Instance) ReplayInterval() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Duration(c.vals.Transport.ReplayIntervalMs) * time.Millisecond
}

func (c *Instance) LineQueueSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Transport.LineQueueSize
}

func (c *Instance) AutoConnect() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.Transport.AutoConnect
}

func (c *Instance) StatusOnConnect() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.vals.Transport.StatusOnConnect == nil {
		return true
	}
	return *c.vals.Transport.StatusOnConnect
}
