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

package helpers

import (
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/podlink/podlink/pkg/config"
)

type Dirs struct {
	Config string
	Log    string
	// Run holds the service PID file.
	Run string
}

// DefaultDirs follows the XDG layout: config under $XDG_CONFIG_HOME/podlink
// and logs under $XDG_STATE_HOME/podlink. The PID file lives in
// $XDG_RUNTIME_DIR/podlink.
func DefaultDirs() Dirs {
	return Dirs{
		Config: config.DefaultConfigDir(),
		Log:    filepath.Join(xdg.StateHome, config.AppName),
		Run:    filepath.Join(xdg.RuntimeDir, config.AppName),
	}
}
