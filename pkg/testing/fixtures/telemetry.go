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

// Package fixtures holds sample device lines for tests.
package fixtures

// TelemetryLine is a full current-format telemetry object.
const TelemetryLine = `{"voltage1": 48.5, "voltage2": 24.1, "gap_height": 11.8,` +
	` "pressure": 101.3, "temp_sensors": [25.1, 26.2, 24.8, 27.0],` +
	` "orientation": [0.5, -1.2, 90.0], "acceleration": [0.1, 0.0, 9.8],` +
	` "bno_health": 3, "icg_health": 3, "lidar_health": 2, "pressure_health": 3, "voltage1_health": 2,` +
	` "emergency_reason_mask": 0}`

// LegacyTelemetryLine uses the older flat field names.
const LegacyTelemetryLine = `{"voltage": 47.9, "temp1": 22.0, "temp2": 23.0,` +
	` "orientX": 1.0, "orientY": 2.0, "orientZ": 3.0, "voltage_health": 2}`

// EmergencyLine raises two conditions.
const EmergencyLine = `{"emergency_reason_mask": 129}`

const (
	RelaysAllOnLine  = "STATE:1,1,1,1"
	RelaysAllOffLine = "STATE:0,0,0,0"
	RelaysMixedLine  = "STATE:1,0,1,0"
)

const MalformedLine = `{"voltage1": 48.5,`

// ReplayLog is a short capture for the replay transport.
const ReplayLog = TelemetryLine + "\n" + RelaysMixedLine + "\n" + EmergencyLine + "\n"
