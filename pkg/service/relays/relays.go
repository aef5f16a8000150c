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

// Package relays translates relay intents into device wire commands.
package relays

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/telemetry"
)

const (
	CmdAllOn  = "ALL_ON"
	CmdAllOff = "ALL_OFF"
	CmdStatus = "STATUS"
)

var (
	ErrCommandFailed = errors.New("relay command failed")
	ErrInvalidRelay  = errors.New("invalid relay id")
)

// Sender writes one command line to the device.
type Sender interface {
	Send(command string) error
}

type Dispatcher struct {
	sender Sender
	log    eventlog.Recorder
}

func NewDispatcher(sender Sender, rec eventlog.Recorder) *Dispatcher {
	return &Dispatcher{sender: sender, log: rec}
}

// Command builds RELAY{id}_ON or RELAY{id}_OFF.
func Command(id int, on bool) (string, error) {
	if id < 1 || id > telemetry.RelayCount {
		return "", fmt.Errorf("%w: %d", ErrInvalidRelay, id)
	}
	if on {
		return fmt.Sprintf("RELAY%d_ON", id), nil
	}
	return fmt.Sprintf("RELAY%d_OFF", id), nil
}

// Toggle sends the command that inverts current and returns the new state
// for the caller to apply optimistically.
func (d *Dispatcher) Toggle(id int, current bool) (bool, error) {
	next := !current
	cmd, err := Command(id, next)
	if err != nil {
		return current, err
	}
	if err := d.sender.Send(cmd); err != nil {
		d.log.RecordKind(
			eventlog.KindCommandFailed,
			fmt.Sprintf("Failed to toggle relay %d (%s): %v", id, telemetry.RelayName(id), err),
			eventlog.SeverityError,
		)
		return current, fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmd, err)
	}
	log.Info().Int("relay", id).Bool("on", next).Msg("relay toggled")
	return next, nil
}

func (d *Dispatcher) TurnAllOn() error {
	return d.all(true)
}

func (d *Dispatcher) TurnAllOff() error {
	return d.all(false)
}

func (d *Dispatcher) all(on bool) error {
	cmd, word := CmdAllOff, "off"
	if on {
		cmd, word = CmdAllOn, "on"
	}
	if err := d.sender.Send(cmd); err != nil {
		d.log.RecordKind(
			eventlog.KindCommandFailed,
			fmt.Sprintf("Failed to turn all relays %s: %v", word, err),
			eventlog.SeverityError,
		)
		return fmt.Errorf("%w: %s: %w", ErrCommandFailed, cmd, err)
	}
	log.Info().Bool("on", on).Msg("all relays switched")
	return nil
}

// GetStatus asks the device to echo its relay states. A failure is only a
// warning since no local state depends on it.
func (d *Dispatcher) GetStatus() error {
	if err := d.sender.Send(CmdStatus); err != nil {
		d.log.RecordKind(
			eventlog.KindCommandFailed,
			fmt.Sprintf("Failed to get relay status: %v", err),
			eventlog.SeverityWarning,
		)
		return fmt.Errorf("%w: %s: %w", ErrCommandFailed, CmdStatus, err)
	}
	return nil
}
