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

package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podlink/podlink/pkg/config"
)

func noopEntry() (func() error, <-chan struct{}, error) {
	done := make(chan struct{})
	return func() error {
		close(done)
		return nil
	}, done, nil
}

func newTestService(t *testing.T, entry ServiceEntry) *Service {
	t.Helper()
	if entry == nil {
		entry = noopEntry
	}
	s, err := NewService(filepath.Join(t.TempDir(), "run"), "", entry)
	require.NoError(t, err)
	return s
}

func TestPid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		write   bool
		want    int
		wantErr bool
	}{
		{name: "no pid file", want: 0},
		{name: "valid", content: "4242", write: true, want: 4242},
		{name: "trailing newline", content: "4242\n", write: true, want: 4242},
		{name: "garbage", content: "pod", write: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestService(t, nil)
			if tt.write {
				require.NoError(t, os.WriteFile(s.pidPath, []byte(tt.content), 0o600))
			}

			pid, err := s.Pid()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pid)
		})
	}
}

func TestRunning(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)

	assert.False(t, s.Running())

	require.NoError(t, os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600))
	assert.True(t, s.Running())
}

func TestExec_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	stopped := make(chan struct{})
	entry := func() (func() error, <-chan struct{}, error) {
		return func() error {
			close(stopped)
			return nil
		}, make(chan struct{}), nil
	}
	s := newTestService(t, entry)

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- s.Exec(ctx) }()

	require.Eventually(t, s.Running, time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("exec did not return")
	}
	<-stopped
	_, err := os.Stat(s.pidPath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestExec_ServiceDoneRemovesPidFile(t *testing.T) {
	t.Parallel()

	entry := func() (func() error, <-chan struct{}, error) {
		done := make(chan struct{})
		close(done)
		return func() error { return nil }, done, nil
	}
	s := newTestService(t, entry)

	require.NoError(t, s.Exec(context.Background()))
	assert.False(t, s.Running())
}

func TestExec_StartError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	s := newTestService(t, func() (func() error, <-chan struct{}, error) {
		return nil, nil, boom
	})

	err := s.Exec(context.Background())
	require.ErrorIs(t, err, boom)
	_, statErr := os.Stat(s.pidPath)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestExec_AlreadyRunning(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)
	require.NoError(t, os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600))

	require.ErrorIs(t, s.Exec(context.Background()), ErrAlreadyRunning)
}

func TestHandle(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)

	out, err := s.Handle(context.Background(), "status")
	require.ErrorIs(t, err, ErrNotRunning)
	assert.Equal(t, "stopped", out)

	_, err = s.Handle(context.Background(), "stop")
	require.ErrorIs(t, err, ErrNotRunning)

	_, err = s.Handle(context.Background(), "teleport")
	require.Error(t, err)

	require.NoError(t, os.WriteFile(s.pidPath, []byte(strconv.Itoa(os.Getpid())), 0o600))
	out, err = s.Handle(context.Background(), "status")
	require.NoError(t, err)
	assert.Equal(t, "running", out)
}

func TestWaitForAPI_DeadProcess(t *testing.T) {
	t.Parallel()
	s := newTestService(t, nil)

	vals := config.BaseDefaults
	port := 1
	vals.Service.APIPort = &port
	err := s.WaitForAPI(config.NewInMemory(vals), 100*time.Millisecond, 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "crashed")
}
