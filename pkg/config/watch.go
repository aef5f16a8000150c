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

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watch reloads the config whenever its file changes on disk until ctx is
// done. onReload runs after each successful reload. A file that fails to
// load leaves the previous values in place.
//
// The parent directory is watched so editors that replace the file by
// rename are picked up.
func (c *Instance) Watch(ctx context.Context, onReload func()) error {
	path := c.Path()
	if path == "" {
		return errors.New("config path not set")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create config watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch config directory: %w", err)
	}

	go func() {
		defer func() {
			if err := watcher.Close(); err != nil {
				log.Error().Err(err).Msg("error closing config watcher")
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) ||
					!event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}
				if err := c.Load(); err != nil {
					log.Warn().Err(err).Msg("config changed on disk but failed to load, keeping previous values")
					continue
				}
				log.Info().Str("path", path).Msg("config reloaded")
				if onReload != nil {
					onReload()
				}
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Error().Err(watchErr).Msg("config watcher error")
			}
		}
	}()

	return nil
}
