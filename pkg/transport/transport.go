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

// Package transport owns the physical link to the pod controller and turns
// its byte stream into lines.
package transport

import (
	"context"
	"errors"
	"io"
)

var (
	ErrTransportUnavailable = errors.New("transport unavailable")
	ErrConnectionFailed     = errors.New("connection failed")
	ErrConnectionTimedOut   = errors.New("connection timed out")
	ErrNotConnected         = errors.New("not connected")
	ErrSendFailed           = errors.New("send failed")
)

// Port is an open link. Read may return 0 bytes and no error when a read
// timeout elapses. Close must unblock a pending Read.
type Port interface {
	io.ReadWriteCloser
}

// Opener opens a Port. Implementations return errors wrapping
// ErrTransportUnavailable or ErrConnectionFailed.
type Opener interface {
	Open(ctx context.Context, baudRate int) (Port, error)
	Name() string
}
