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

// Package cli holds the command line flags shared by the podlink binary
// and the setup every entry point runs before starting the service.
package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"runtime"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/internal/errreport"
	"github.com/podlink/podlink/pkg/api/client"
	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/config"
	"github.com/podlink/podlink/pkg/helpers"
)

// ErrServiceRunning is returned when a foreground run finds another
// instance answering on the API port.
var ErrServiceRunning = errors.New("service already running")

// listPorts is swapped out in tests.
var listPorts = helpers.GetSerialDeviceList

type Flags struct {
	API       *string
	Watch     *string
	Service   *string
	Version   *bool
	Stop      *bool
	Status    *bool
	ListPorts *bool
	Daemon    *bool
}

// SetupFlags defines every podlink flag on fs.
func SetupFlags(fs *flag.FlagSet) *Flags {
	return &Flags{
		API: fs.String(
			"api",
			"",
			"send method and params to API and print response (method:params)",
		),
		Watch: fs.String(
			"watch",
			"",
			"print every notification of the given method until interrupted",
		),
		Service: fs.String(
			"service",
			"",
			"manage the background service (start, stop, restart, status)",
		),
		Version: fs.Bool(
			"version",
			false,
			"print version and exit",
		),
		Stop: fs.Bool(
			"stop",
			false,
			"emergency stop: switch every relay off",
		),
		Status: fs.Bool(
			"status",
			false,
			"print the connection status and exit",
		),
		ListPorts: fs.Bool(
			"list-ports",
			false,
			"list detected serial devices and exit",
		),
		Daemon: fs.Bool(
			"daemon",
			false,
			"run service in foreground and log to stderr",
		),
	}
}

// Pre parses args and handles the flags that need no config or logging.
// done is true when the process should exit.
func (f *Flags) Pre(fs *flag.FlagSet, args []string, out io.Writer) (done bool, err error) {
	if err := fs.Parse(args); err != nil {
		return true, fmt.Errorf("failed to parse flags: %w", err)
	}

	switch {
	case *f.Version:
		_, _ = fmt.Fprintf(out, "PodLink v%s (%s/%s)\n", config.AppVersion, runtime.GOOS, runtime.GOARCH)
		return true, nil
	case *f.ListPorts:
		ports, err := listPorts()
		if err != nil {
			return true, fmt.Errorf("failed to list serial devices: %w", err)
		}
		if len(ports) == 0 {
			_, _ = fmt.Fprintln(out, "no serial devices found")
			return true, nil
		}
		for _, p := range ports {
			_, _ = fmt.Fprintln(out, p)
		}
		return true, nil
	}
	return false, nil
}

func printJSON(out io.Writer, raw string) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(raw), "", "  "); err != nil {
		_, _ = fmt.Fprintln(out, raw)
		return
	}
	_, _ = fmt.Fprintln(out, buf.String())
}

// Post handles the flags that talk to a running service. handled is true
// when one of them ran and the process should exit.
func (f *Flags) Post(ctx context.Context, c client.APIClient, out io.Writer) (handled bool, err error) {
	switch {
	case *f.Stop:
		if _, err := c.Call(ctx, models.MethodEmergencyStop, ""); err != nil {
			log.Error().Err(err).Msg("error sending emergency stop")
			return true, fmt.Errorf("emergency stop failed: %w", err)
		}
		_, _ = fmt.Fprintln(out, "Emergency stop sent: all relays off")
		return true, nil
	case *f.Status:
		resp, err := c.Call(ctx, models.MethodStatus, "")
		if err != nil {
			return true, fmt.Errorf("error getting status: %w", err)
		}
		printJSON(out, resp)
		return true, nil
	case *f.API != "":
		method, params, _ := strings.Cut(*f.API, ":")
		resp, err := c.Call(ctx, method, params)
		if err != nil {
			log.Error().Err(err).Msg("error calling API")
			return true, fmt.Errorf("error calling API: %w", err)
		}
		printJSON(out, resp)
		return true, nil
	case *f.Watch != "":
		return true, watch(ctx, c, *f.Watch, out)
	}
	return false, nil
}

func watch(ctx context.Context, c client.APIClient, method string, out io.Writer) error {
	for {
		params, err := c.WaitNotification(ctx, -1, method)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("error waiting for notification: %w", err)
		}
		printJSON(out, params)
	}
}

// Setup creates the directories, starts logging, loads the config and
// enables opt-in error reporting.
//
//nolint:gocritic // config struct copied for immutability
func Setup(dirs helpers.Dirs, defaults config.Values, writers []io.Writer) (*config.Instance, error) {
	if err := helpers.EnsureDirectories(dirs); err != nil {
		return nil, fmt.Errorf("error creating directories: %w", err)
	}

	if err := helpers.InitLogging(dirs.Log, writers); err != nil {
		return nil, fmt.Errorf("error initializing logging: %w", err)
	}

	cfg, err := config.NewConfig(dirs.Config, defaults)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}

	helpers.SetDebugLogging(cfg.DebugLogging())

	enabled, dsn := cfg.ErrorReporting()
	if err := errreport.Init(enabled, dsn, cfg.DeviceID(), config.AppVersion); err != nil {
		log.Warn().Err(err).Msg("failed to initialize error reporting")
	}

	return cfg, nil
}
