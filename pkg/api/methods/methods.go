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

// Package methods implements the JSON-RPC handlers exposed by the API
// server. Every handler has the same shape so the server can keep them in
// a single method map.
package methods

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// NoContent is returned by methods that succeed without a result.
type NoContent struct{}

func invalidParams(err error) error {
	log.Warn().Err(err).Msg("invalid params")
	return fmt.Errorf("invalid params: %w", err)
}
