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

package models

import (
	"encoding/json"
)

const (
	NotificationTelemetryUpdated  = "telemetry.updated"
	NotificationRelaysChanged     = "relays.changed"
	NotificationConnectionChanged = "connection.changed"
	NotificationLogAdded          = "log.added"
	NotificationLogCleared        = "log.cleared"
	NotificationHistoryCleared    = "history.cleared"
)

const (
	MethodStatus        = "status"
	MethodSnapshot      = "snapshot"
	MethodHealth        = "health"
	MethodHistory       = "history"
	MethodHistoryExport = "history.export"
	MethodHistoryClear  = "history.clear"
	MethodLog           = "log"
	MethodLogClear      = "log.clear"
	MethodConnect       = "connect"
	MethodDisconnect    = "disconnect"
	MethodRelays        = "relays"
	MethodRelaysToggle  = "relays.toggle"
	MethodRelaysAllOn   = "relays.all_on"
	MethodRelaysAllOff  = "relays.all_off"
	MethodRelaysStatus  = "relays.status"
	MethodEmergencyStop = "emergency_stop"
	MethodVersion       = "version"
)

type Notification struct {
	Method string
	Params json.RawMessage
}

type RequestObject struct {
	ID      *RPCID          `json:"id,omitempty"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type ErrorObject struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

type ResponseObject struct {
	Result  any          `json:"result"`
	Error   *ErrorObject `json:"error,omitempty"`
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
}

// ResponseErrorObject omits result so error replies carry only the error,
// while ResponseObject still sends a null result.
type ResponseErrorObject struct {
	Error   *ErrorObject `json:"error"`
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
}

// NotificationObject is the wire form of a server push.
type NotificationObject struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}
