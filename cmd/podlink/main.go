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

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/internal/errreport"
	"github.com/podlink/podlink/pkg/api/client"
	"github.com/podlink/podlink/pkg/cli"
	"github.com/podlink/podlink/pkg/config"
	"github.com/podlink/podlink/pkg/helpers"
	"github.com/podlink/podlink/pkg/service"
	"github.com/podlink/podlink/pkg/service/daemon"
)

// errQuiet exits non-zero without printing anything more.
var errQuiet = errors.New("quiet exit")

func main() {
	if err := run(); err != nil {
		if !errors.Is(err, errQuiet) {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		}
		errreport.Flush()
		os.Exit(1)
	}
}

func run() error {
	flags := cli.SetupFlags(flag.CommandLine)
	if done, err := flags.Pre(flag.CommandLine, os.Args[1:], os.Stdout); done {
		return err
	}

	var logWriters []io.Writer
	if *flags.Daemon || *flags.Service == "exec" {
		logWriters = []io.Writer{os.Stderr}
	}

	dirs := helpers.DefaultDirs()
	cfg, err := cli.Setup(dirs, config.BaseDefaults, logWriters)
	if err != nil {
		return err
	}
	defer errreport.Close()

	defer func() {
		if r := recover(); r != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Panic: %v\n", r)
			log.Error().Msgf("panic: %v", r)
			errreport.Flush()
			panic(r)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if handled, err := flags.Post(ctx, client.NewLocalAPIClient(cfg), os.Stdout); handled {
		return err
	}

	svc, err := daemon.NewService(dirs.Run, cfg.Path(), func() (func() error, <-chan struct{}, error) {
		return service.Start(cfg)
	})
	if err != nil {
		return fmt.Errorf("error setting up service: %w", err)
	}

	if *flags.Service != "" {
		out, err := svc.Handle(ctx, *flags.Service)
		if out != "" {
			_, _ = fmt.Println(out)
		}
		if errors.Is(err, daemon.ErrNotRunning) && *flags.Service == "status" {
			return errQuiet
		}
		return err
	}

	if client.IsServiceRunning(cfg) {
		return cli.ErrServiceRunning
	}
	log.Info().Msg("starting service in foreground")
	return svc.Exec(ctx)
}
