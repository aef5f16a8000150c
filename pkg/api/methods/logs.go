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
	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/api/models/requests"
	"github.com/podlink/podlink/pkg/api/validation"
	"github.com/podlink/podlink/pkg/eventlog"
)

// HandleLog returns error log entries oldest first. With a limit only the
// newest entries are kept.
func HandleLog(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Debug().Msg("received log request")

	var params models.LogParams
	if err := validation.ValidateOptional(env.Params, &params); err != nil {
		return nil, invalidParams(err)
	}

	all := env.Session.Events().Entries()
	entries := make([]eventlog.Entry, 0, len(all))
	for _, e := range all {
		if params.Severity != nil && string(e.Severity) != *params.Severity {
			continue
		}
		entries = append(entries, e)
	}
	if params.Limit != nil && len(entries) > *params.Limit {
		entries = entries[len(entries)-*params.Limit:]
	}

	return models.LogResponse{Entries: entries}, nil
}

func HandleLogClear(env requests.RequestEnv) (any, error) { //nolint:gocritic // single-use parameter in API handler
	log.Info().Msg("received log clear request")
	env.Session.ClearErrorLog()
	return NoContent{}, nil
}
