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

package requests

import (
	"context"
	"encoding/json"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/config"
	"github.com/podlink/podlink/pkg/service/session"
)

// RequestEnv carries everything a method handler may touch for one
// JSON-RPC request.
type RequestEnv struct {
	Context context.Context
	Config  *config.Instance
	Session *session.Session
	Params  json.RawMessage
	ID      models.RPCID
	IsLocal bool
}
