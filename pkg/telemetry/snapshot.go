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

// Package telemetry holds the canonical pod sensor model and the parser that
// turns raw controller lines into partial updates of it.
package telemetry

import "maps"

// TemperatureChannels is the fixed number of physical temperature sensors.
const TemperatureChannels = 4

type Vector3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type Acceleration struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Magnitude float64 `json:"magnitude"`
}

// Calibration levels run from 0 to 3, where 3 is fully calibrated.
type Calibration struct {
	Gyro    int `json:"gyro"`
	Sys     int `json:"sys"`
	Magneto int `json:"magneto"`
}

// Known health code keys. Devices may report others ending in "_health";
// those are carried in Snapshot.Health too.
const (
	HealthBNO             = "bno_health"
	HealthICG             = "icg_health"
	HealthLidar           = "lidar_health"
	HealthLidar2          = "lidar2_health"
	HealthTemp1           = "temp1_health"
	HealthTemp2           = "temp2_health"
	HealthTemp3           = "temp3_health"
	HealthVoltage1        = "voltage1_health"
	HealthVoltage2        = "voltage2_health"
	HealthVoltage3        = "voltage3_health"
	HealthPressure        = "pressure_health"
	HealthWiring          = "wiring_health"
	HealthSafetyHeartbeat = "safety_heartbeat_health"
)

var KnownHealthKeys = []string{
	HealthBNO, HealthICG, HealthLidar, HealthLidar2,
	HealthTemp1, HealthTemp2, HealthTemp3,
	HealthVoltage1, HealthVoltage2, HealthVoltage3,
	HealthPressure, HealthWiring, HealthSafetyHeartbeat,
}

// Snapshot is the full current pod state. Every field always holds a value;
// fields the device has not reported yet are zero.
type Snapshot struct {
	Health               map[string]int               `json:"health"`
	CurrentState         string                       `json:"currentState"`
	Orientation          Vector3                      `json:"orientation"`
	Calibration          Calibration                  `json:"calibration"`
	Acceleration         Acceleration                 `json:"acceleration"`
	Temperatures         [TemperatureChannels]float64 `json:"temperatures"`
	GapHeight            float64                      `json:"gapHeight"`
	GapHeight2           float64                      `json:"gapHeight2"`
	Voltage1             float64                      `json:"voltage1"`
	Voltage2             float64                      `json:"voltage2"`
	Voltage3             float64                      `json:"voltage3"`
	Pressure             float64                      `json:"pressure"`
	EmergencyReasonMask  int64                        `json:"emergencyReasonMask"`
	HeartbeatCount       int64                        `json:"heartbeatCount"`
	LastHeartbeatMs      int64                        `json:"lastHeartbeatMs"`
	SafetyHeartbeatCount int64                        `json:"safetyHeartbeatCount"`
	SafetyHBLastTime     int64                        `json:"safetyHbLastTime"`
	DeviceTimeMs         int64                        `json:"deviceTimeMs"`
}

func NewSnapshot() Snapshot {
	health := make(map[string]int, len(KnownHealthKeys))
	for _, k := range KnownHealthKeys {
		health[k] = 0
	}
	return Snapshot{Health: health}
}

// Clone returns a deep copy safe to hand to readers.
func (s *Snapshot) Clone() Snapshot {
	out := *s
	out.Health = maps.Clone(s.Health)
	if out.Health == nil {
		out.Health = make(map[string]int)
	}
	return out
}

// RelayState is the commanded or reported state of the four pod relays.
type RelayState struct {
	Relay1 bool `json:"relay1"`
	Relay2 bool `json:"relay2"`
	Relay3 bool `json:"relay3"`
	Relay4 bool `json:"relay4"`
}

const RelayCount = 4

func (r *RelayState) Get(id int) bool {
	switch id {
	case 1:
		return r.Relay1
	case 2:
		return r.Relay2
	case 3:
		return r.Relay3
	case 4:
		return r.Relay4
	default:
		return false
	}
}

// Set ignores ids outside 1..4.
func (r *RelayState) Set(id int, on bool) {
	switch id {
	case 1:
		r.Relay1 = on
	case 2:
		r.Relay2 = on
	case 3:
		r.Relay3 = on
	case 4:
		r.Relay4 = on
	}
}

func AllRelays(on bool) RelayState {
	return RelayState{Relay1: on, Relay2: on, Relay3: on, Relay4: on}
}

var relayNames = [RelayCount]string{"Main Power", "Propulsion", "Levitation", "Auxiliary"}

// RelayName returns the panel label for a relay id.
func RelayName(id int) string {
	if id < 1 || id > RelayCount {
		return "Unknown"
	}
	return relayNames[id-1]
}
