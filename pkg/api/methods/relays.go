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
	"github.com/podlink/podlink/pkg/telemetry"
)

func relaysResponse(r telemetry.RelayState) models.RelaysResponse {
	resp := models.RelaysResponse{Relays: make([]models.RelayResponse, 0, telemetry.RelayCount)}
	for id := 1; id <= telemetry.RelayCount; id++ {
		resp.Relays = append(resp.Relays, models.RelayResponse{
			ID:   id,
			Name: telemetry.RelayName(id),
			On:   r.Get(id),
		})
	}
	return resp
}

func HandleRelays(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Debug().Msg("received relays request")
	return relaysResponse(env.Session.Aggregator().Relays()), nil
}

func HandleRelaysToggle(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received relay toggle request")

	var params models.RelayToggleParams
	if err := validation.ValidateAndUnmarshal(env.Params, &params); err != nil {
		return nil, invalidParams(err)
	}

	on, err := env.Session.ToggleRelay(params.Relay)
	if err != nil {
		return nil, fmt.Errorf("toggle relay %d: %w", params.Relay, err)
	}
	return models.RelayToggleResponse{ID: params.Relay, On: on}, nil
}

func HandleRelaysAllOn(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received all relays on request")
	if err := env.Session.TurnAllOn(); err != nil {
		return nil, fmt.Errorf("turn all relays on: %w", err)
	}
	return relaysResponse(env.Session.Aggregator().Relays()), nil
}

func HandleRelaysAllOff(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received all relays off request")
	if err := env.Session.TurnAllOff(); err != nil {
		return nil, fmt.Errorf("turn all relays off: %w", err)
	}
	return relaysResponse(env.Session.Aggregator().Relays()), nil
}

// HandleRelaysStatus asks the pod to report its relays. The answer arrives
// later as a relays.changed notification.
func HandleRelaysStatus(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received relay status request")
	if err := env.Session.RequestStatus(); err != nil {
		return nil, fmt.Errorf("request relay status: %w", err)
	}
	return NoContent{}, nil
}

// HandleEmergencyStop cuts every relay. It is never rate limited.
func HandleEmergencyStop(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Warn().Msg("received emergency stop request")
	if err := env.Session.EmergencyStop(); err != nil {
		return nil, fmt.Errorf("emergency stop: %w", err)
	}
	return relaysResponse(env.Session.Aggregator().Relays()), nil
}
