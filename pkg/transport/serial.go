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
	"os"
	"runtime"
	"time"

	"github.com/podlink/podlink/pkg/helpers"
	"github.com/rs/zerolog/log"
	"go.bug.st/serial"
)

const serialReadTimeout = 100 * time.Millisecond

// SerialPort is the subset of serial.Port the adapter uses.
type SerialPort interface {
	Read(p []byte) (n int, err error)
	Write(p []byte) (n int, err error)
	Close() error
	SetReadTimeout(t time.Duration) error
}

type SerialPortFactory func(path string, mode *serial.Mode) (SerialPort, error)

func DefaultSerialPortFactory(path string, mode *serial.Mode) (SerialPort, error) {
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}
	return port, nil
}

// SerialOpener opens a USB serial link. An empty Path picks the best
// detected device.
type SerialOpener struct {
	Factory     SerialPortFactory
	ListDevices func() ([]string, error)
	Path        string
}

func NewSerialOpener(path string) *SerialOpener {
	return &SerialOpener{
		Path:        path,
		Factory:     DefaultSerialPortFactory,
		ListDevices: helpers.GetSerialDeviceList,
	}
}

func (*SerialOpener) Name() string {
	return "serial"
}

func (o *SerialOpener) resolvePath() (string, error) {
	if o.Path != "" {
		return o.Path, nil
	}
	if o.ListDevices == nil {
		return "", fmt.Errorf("%w: no serial device configured", ErrTransportUnavailable)
	}
	devices, err := o.ListDevices()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransportUnavailable, err)
	}
	if len(devices) == 0 {
		return "", fmt.Errorf("%w: no serial devices found", ErrTransportUnavailable)
	}
	log.Info().Str("path", devices[0]).Msg("auto-detected serial device")
	return devices[0], nil
}

func (o *SerialOpener) Open(_ context.Context, baudRate int) (Port, error) {
	path, err := o.resolvePath()
	if err != nil {
		return nil, err
	}

	if runtime.GOOS != "windows" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
		}
	}

	factory := o.Factory
	if factory == nil {
		factory = DefaultSerialPortFactory
	}
	port, err := factory(path, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, path, err)
	}

	if err := port.SetReadTimeout(serialReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("%w: failed to set read timeout: %w", ErrConnectionFailed, err)
	}

	log.Info().Str("path", path).Int("baud", baudRate).Msg("opened serial port")
	return port, nil
}
