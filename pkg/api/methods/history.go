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
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/api/models/requests"
	"github.com/podlink/podlink/pkg/api/validation"
	"github.com/podlink/podlink/pkg/telemetry"
	"github.com/podlink/podlink/pkg/telemetry/history"
)

// HandleHistory returns every channel's series, or just one when a channel
// is named.
func HandleHistory(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Debug().Msg("received history request")

	var params models.HistoryParams
	if err := validation.ValidateOptional(env.Params, &params); err != nil {
		return nil, invalidParams(err)
	}

	agg := env.Session.Aggregator()
	if params.Channel != nil && *params.Channel != "" {
		ch := telemetry.Channel(*params.Channel)
		series := agg.Series(ch)
		if series == nil {
			series = history.Series{}
		}
		return models.HistoryResponse{
			Series: map[telemetry.Channel]history.Series{ch: series},
		}, nil
	}

	return models.HistoryResponse{Series: agg.History()}, nil
}

func HandleHistoryExport(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received history export request")

	var sb strings.Builder
	if err := history.WriteCSV(&sb, env.Session.Aggregator().History()); err != nil {
		log.Error().Err(err).Msg("error exporting history")
		return nil, errors.New("error exporting history")
	}
	return models.HistoryExportResponse{CSV: sb.String()}, nil
}

func HandleHistoryClear(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received history clear request")
	env.Session.ClearHistory()
	return NoContent{}, nil
}
