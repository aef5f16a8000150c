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

// Package daemon runs the service in the foreground or as a detached
// background process tracked by a PID file.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/pkg/api/client"
	"github.com/podlink/podlink/pkg/config"
)

var (
	ErrAlreadyRunning = errors.New("service already running")
	ErrNotRunning     = errors.New("service not running")
)

const (
	stopWaitTimeout  = 10 * time.Second
	stopPollInterval = 250 * time.Millisecond
	pidWaitTimeout   = 3 * time.Second
)

// ServiceEntry starts the service and returns a stop function and a
// channel closed when it has shut down on its own.
type ServiceEntry func() (stop func() error, done <-chan struct{}, err error)

type Service struct {
	start   ServiceEntry
	pidPath string
	cfgPath string
}

// NewService tracks the service through a PID file in runDir. cfgPath is
// handed to a spawned background process so it reads the same config.
func NewService(runDir, cfgPath string, entry ServiceEntry) (*Service, error) {
	if err := os.MkdirAll(runDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}
	return &Service{
		start:   entry,
		pidPath: filepath.Join(runDir, config.PidFile),
		cfgPath: cfgPath,
	}, nil
}

func (s *Service) createPidFile() error {
	err := os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600)
	if err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	return nil
}

func (s *Service) removePidFile() {
	if err := os.Remove(s.pidPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Error().Err(err).Msg("error removing pid file")
	}
}

// Pid returns the PID recorded for the service, 0 if there is none.
func (s *Service) Pid() (int, error) {
	//nolint:gosec // PID file path is built from the runtime dir
	data, err := os.ReadFile(s.pidPath)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	} else if err != nil {
		return 0, fmt.Errorf("error reading pid file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("error parsing pid: %w", err)
	}
	return pid, nil
}

// Running reports whether the recorded process is alive.
func (s *Service) Running() bool {
	pid, err := s.Pid()
	if err != nil || pid == 0 {
		return false
	}
	return processAlive(pid)
}

// Exec runs the service in this process until SIGINT or SIGTERM, or until
// the service shuts down on its own.
func (s *Service) Exec(ctx context.Context) error {
	if s.Running() {
		return ErrAlreadyRunning
	}

	log.Info().Msg("starting service")
	if err := s.createPidFile(); err != nil {
		return err
	}
	defer s.removePidFile()

	stop, done, err := s.start()
	if err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	select {
	case <-ctx.Done():
		log.Info().Msg("stopping service")
		if err := stop(); err != nil {
			return fmt.Errorf("error stopping service: %w", err)
		}
	case <-done:
		log.Info().Msg("service shut down internally")
	}
	return nil
}

// Start spawns a detached copy of this binary running "-service exec".
func (s *Service) Start() error {
	if s.Running() {
		return ErrAlreadyRunning
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("error getting binary path: %w", err)
	}

	//nolint:gosec // exe is from os.Executable()
	cmd := exec.CommandContext(context.Background(), exe, "-service", "exec")
	cmd.Env = os.Environ()
	if s.cfgPath != "" {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", config.CfgEnv, s.cfgPath))
	}
	cmd.SysProcAttr = detachedAttr()

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("error starting service: %w", err)
	}
	if err := cmd.Process.Release(); err != nil {
		return fmt.Errorf("error releasing service process: %w", err)
	}

	deadline := time.Now().Add(pidWaitTimeout)
	for !s.Running() {
		if time.Now().After(deadline) {
			return errors.New("service process did not record its PID")
		}
		time.Sleep(stopPollInterval)
	}

	pid, _ := s.Pid()
	log.Info().Msgf("service process started with PID %d", pid)
	return nil
}

// Stop asks the background service to shut down.
func (s *Service) Stop() error {
	if !s.Running() {
		return ErrNotRunning
	}

	pid, err := s.Pid()
	if err != nil {
		return err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}
	if err := terminate(process); err != nil {
		return fmt.Errorf("failed to signal process %d: %w", pid, err)
	}
	return nil
}

func (s *Service) Restart() error {
	if s.Running() {
		if err := s.Stop(); err != nil {
			return err
		}
	}

	deadline := time.Now().Add(stopWaitTimeout)
	for s.Running() {
		if time.Now().After(deadline) {
			return errors.New("timeout waiting for service to stop")
		}
		time.Sleep(stopPollInterval)
	}

	return s.Start()
}

// WaitForAPI waits for the service API to answer. It fails early if the
// process has died.
func (s *Service) WaitForAPI(cfg *config.Instance, maxWait, checkInterval time.Duration) error {
	if client.WaitForAPI(cfg, maxWait, checkInterval) {
		log.Info().Msg("API is now available")
		return nil
	}
	if !s.Running() {
		return errors.New("service process crashed during startup")
	}
	return errors.New("API did not become available within timeout")
}

// Handle runs one -service subcommand. The returned string is the
// human-readable outcome for status.
func (s *Service) Handle(ctx context.Context, cmd string) (string, error) {
	switch cmd {
	case "exec":
		return "", s.Exec(ctx)
	case "start":
		return "started", s.Start()
	case "stop":
		return "stopping", s.Stop()
	case "restart":
		return "restarted", s.Restart()
	case "status":
		if s.Running() {
			return "running", nil
		}
		return "stopped", ErrNotRunning
	default:
		return "", fmt.Errorf("unknown service argument: %s", cmd)
	}
}
