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

package methods

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/api/models/requests"
	"github.com/podlink/podlink/pkg/api/validation"
)

func HandleStatus(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Debug().Msg("received status request")
	return env.Session.Status(), nil
}

// HandleConnect opens the pod link. An explicit baud rate overrides the
// configured one for this connection only.
func HandleConnect(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received connect request")

	var params models.ConnectParams
	if err := validation.ValidateOptional(env.Params, &params); err != nil {
		return nil, invalidParams(err)
	}

	baud := env.Config.BaudRate()
	if params.BaudRate != nil {
		baud = *params.BaudRate
	}

	if err := env.Session.ConnectWithBaud(env.Context, baud); err != nil {
		return nil, fmt.Errorf("connect failed: %w", err)
	}
	return env.Session.Status(), nil
}

func HandleDisconnect(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received disconnect request")
	env.Session.Disconnect()
	return env.Session.Status(), nil
}
