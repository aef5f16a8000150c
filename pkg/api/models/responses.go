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
	"time"

	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/telemetry"
	"github.com/podlink/podlink/pkg/telemetry/history"
)

// Connection states.
const (
	ConnectionDisconnected = "disconnected"
	ConnectionConnecting   = "connecting"
	ConnectionConnected    = "connected"
)

type StatusResponse struct {
	Transport    string `json:"transport"`
	State        string `json:"state"`
	LastError    string `json:"lastError"`
	IsConnected  bool   `json:"isConnected"`
	IsConnecting bool   `json:"isConnecting"`
}

type SnapshotResponse struct {
	Snapshot    telemetry.Snapshot   `json:"snapshot"`
	Relays      telemetry.RelayState `json:"relays"`
	UpdatedAt   *time.Time           `json:"updatedAt,omitempty"`
	Emergencies []EmergencyResponse  `json:"emergencies"`
}

type EmergencyResponse struct {
	Message  string            `json:"message"`
	Severity eventlog.Severity `json:"severity"`
	Bit      int64             `json:"bit"`
}

type SubsystemHealth struct {
	Key      string                `json:"key"`
	Label    telemetry.HealthLabel `json:"label"`
	Code     int                   `json:"code"`
	Reported bool                  `json:"reported"`
	Critical bool                  `json:"critical"`
}

type HealthResponse struct {
	Label      telemetry.HealthLabel `json:"label"`
	Subsystems []SubsystemHealth     `json:"subsystems"`
	Score      float64               `json:"score"`
}

type HistoryResponse struct {
	Series map[telemetry.Channel]history.Series `json:"series"`
}

type HistoryExportResponse struct {
	CSV string `json:"csv"`
}

type LogResponse struct {
	Entries []eventlog.Entry `json:"entries"`
}

type RelayResponse struct {
	Name string `json:"name"`
	ID   int    `json:"id"`
	On   bool   `json:"on"`
}

type RelaysResponse struct {
	Relays []RelayResponse `json:"relays"`
}

type RelayToggleResponse struct {
	ID int  `json:"id"`
	On bool `json:"on"`
}

type VersionResponse struct {
	Version  string `json:"version"`
	Platform string `json:"platform"`
	DeviceID string `json:"deviceId"`
}

// TelemetryUpdatedParams is pushed after each applied message.
type TelemetryUpdatedParams struct {
	Snapshot telemetry.Snapshot `json:"snapshot"`
	Health   float64            `json:"health"`
}
