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

package telemetry

import "math"

// RelayUpdate holds the relay states a message reported. Nil means the
// message said nothing about that relay.
type RelayUpdate struct {
	Relay1 *bool `json:"relay1,omitempty"`
	Relay2 *bool `json:"relay2,omitempty"`
	Relay3 *bool `json:"relay3,omitempty"`
	Relay4 *bool `json:"relay4,omitempty"`
}

func (u *RelayUpdate) ApplyTo(s *RelayState) {
	if u == nil {
		return
	}
	if u.Relay1 != nil {
		s.Relay1 = *u.Relay1
	}
	if u.Relay2 != nil {
		s.Relay2 = *u.Relay2
	}
	if u.Relay3 != nil {
		s.Relay3 = *u.Relay3
	}
	if u.Relay4 != nil {
		s.Relay4 = *u.Relay4
	}
}

// SensorUpdate is a partial Snapshot. Only non-nil fields were present in
// the source message.
type SensorUpdate struct {
	Orientation          *Vector3
	Acceleration         *Acceleration
	Calibration          *Calibration
	Temperatures         *[TemperatureChannels]float64
	GapHeight            *float64
	GapHeight2           *float64
	Voltage1             *float64
	Voltage2             *float64
	Voltage3             *float64
	Pressure             *float64
	EmergencyReasonMask  *int64
	HeartbeatCount       *int64
	LastHeartbeatMs      *int64
	SafetyHeartbeatCount *int64
	SafetyHBLastTime     *int64
	DeviceTimeMs         *int64
	CurrentState         *string
	Health               map[string]int
	Relays               *RelayUpdate
}

// IsEmpty reports whether the update carries no sensor or relay fields.
func (u *SensorUpdate) IsEmpty() bool {
	return u.Orientation == nil && u.Acceleration == nil && u.Calibration == nil &&
		u.Temperatures == nil && u.GapHeight == nil && u.GapHeight2 == nil &&
		u.Voltage1 == nil && u.Voltage2 == nil && u.Voltage3 == nil &&
		u.Pressure == nil && u.EmergencyReasonMask == nil && u.HeartbeatCount == nil &&
		u.LastHeartbeatMs == nil && u.SafetyHeartbeatCount == nil &&
		u.SafetyHBLastTime == nil && u.DeviceTimeMs == nil && u.CurrentState == nil &&
		len(u.Health) == 0 && u.Relays == nil
}

// ApplyTo overwrites the fields of s that are present in u. Nested values
// such as Orientation are replaced whole.
func (u *SensorUpdate) ApplyTo(s *Snapshot) {
	if u.Orientation != nil {
		s.Orientation = *u.Orientation
	}
	if u.Acceleration != nil {
		s.Acceleration = *u.Acceleration
	}
	if u.Calibration != nil {
		s.Calibration = *u.Calibration
	}
	if u.Temperatures != nil {
		s.Temperatures = *u.Temperatures
	}
	setFloat(&s.GapHeight, u.GapHeight)
	setFloat(&s.GapHeight2, u.GapHeight2)
	setFloat(&s.Voltage1, u.Voltage1)
	setFloat(&s.Voltage2, u.Voltage2)
	setFloat(&s.Voltage3, u.Voltage3)
	setFloat(&s.Pressure, u.Pressure)
	setInt(&s.EmergencyReasonMask, u.EmergencyReasonMask)
	setInt(&s.HeartbeatCount, u.HeartbeatCount)
	setInt(&s.LastHeartbeatMs, u.LastHeartbeatMs)
	setInt(&s.SafetyHeartbeatCount, u.SafetyHeartbeatCount)
	setInt(&s.SafetyHBLastTime, u.SafetyHBLastTime)
	setInt(&s.DeviceTimeMs, u.DeviceTimeMs)
	if u.CurrentState != nil {
		s.CurrentState = *u.CurrentState
	}
	if len(u.Health) > 0 {
		if s.Health == nil {
			s.Health = make(map[string]int, len(u.Health))
		}
		for k, v := range u.Health {
			s.Health[k] = v
		}
	}
}

func setFloat(dst, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func setInt(dst, src *int64) {
	if src != nil {
		*dst = *src
	}
}

// Samples lists the history channel values present in the update.
func (u *SensorUpdate) Samples() []Sample {
	var out []Sample
	if u.Temperatures != nil {
		for i, v := range u.Temperatures {
			out = append(out, Sample{Channel: TemperatureChannel(i), Value: v})
		}
	}
	add := func(ch Channel, v *float64) {
		if v != nil {
			out = append(out, Sample{Channel: ch, Value: *v})
		}
	}
	add(ChannelGapHeight, u.GapHeight)
	add(ChannelGapHeight2, u.GapHeight2)
	add(ChannelVoltage1, u.Voltage1)
	add(ChannelVoltage2, u.Voltage2)
	add(ChannelVoltage3, u.Voltage3)
	add(ChannelPressure, u.Pressure)
	return out
}

func magnitude(x, y, z float64) float64 {
	return math.Sqrt(x*x + y*y + z*z)
}

// Channel names a numeric series kept in history.
type Channel string

const (
	ChannelTemp1      Channel = "temp1"
	ChannelTemp2      Channel = "temp2"
	ChannelTemp3      Channel = "temp3"
	ChannelTemp4      Channel = "temp4"
	ChannelGapHeight  Channel = "gap_height"
	ChannelGapHeight2 Channel = "gap_height2"
	ChannelVoltage1   Channel = "voltage1"
	ChannelVoltage2   Channel = "voltage2"
	ChannelVoltage3   Channel = "voltage3"
	ChannelPressure   Channel = "pressure"
)

var Channels = []Channel{
	ChannelTemp1, ChannelTemp2, ChannelTemp3, ChannelTemp4,
	ChannelGapHeight, ChannelGapHeight2,
	ChannelVoltage1, ChannelVoltage2, ChannelVoltage3,
	ChannelPressure,
}

func TemperatureChannel(i int) Channel {
	return []Channel{ChannelTemp1, ChannelTemp2, ChannelTemp3, ChannelTemp4}[i]
}

func ValidChannel(name string) bool {
	for _, c := range Channels {
		if string(c) == name {
			return true
		}
	}
	return false
}

type Sample struct {
	Channel Channel
	Value   float64
}
