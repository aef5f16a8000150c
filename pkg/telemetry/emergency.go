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

import (
	"fmt"
	"math/bits"

	"github.com/podlink/podlink/pkg/eventlog"
)

type EmergencyCondition struct {
	Message  string
	Severity eventlog.Severity
	Bit      int64
}

// EmergencyTable maps safety controller mask bits to log entries. Sensor
// failures are errors, range conditions are warnings.
var EmergencyTable = map[int64]EmergencyCondition{
	0x001: {Bit: 0x001, Message: "Emergency: BNO055 IMU failure", Severity: eventlog.SeverityError},
	0x002: {Bit: 0x002, Message: "Emergency: ICG IMU failure", Severity: eventlog.SeverityError},
	0x004: {Bit: 0x004, Message: "Emergency: LIDAR 1 failure", Severity: eventlog.SeverityError},
	0x008: {Bit: 0x008, Message: "Emergency: LIDAR 2 failure", Severity: eventlog.SeverityError},
	0x010: {Bit: 0x010, Message: "Emergency: temperature over limit", Severity: eventlog.SeverityWarning},
	0x020: {Bit: 0x020, Message: "Emergency: voltage out of range", Severity: eventlog.SeverityWarning},
	0x040: {Bit: 0x040, Message: "Emergency: pressure out of range", Severity: eventlog.SeverityWarning},
	0x080: {Bit: 0x080, Message: "Emergency: safety heartbeat lost", Severity: eventlog.SeverityError},
	0x100: {Bit: 0x100, Message: "Emergency: wiring fault", Severity: eventlog.SeverityError},
}

// DecodeMask lists the conditions set in mask, lowest bit first. Bits with
// no table entry get a generic warning.
func DecodeMask(mask int64) []EmergencyCondition {
	var out []EmergencyCondition
	m := uint64(mask)
	for m != 0 {
		i := bits.TrailingZeros64(m)
		bit := int64(1) << i
		m &^= 1 << i
		if c, ok := EmergencyTable[bit]; ok {
			out = append(out, c)
			continue
		}
		out = append(out, EmergencyCondition{
			Bit:      bit,
			Message:  fmt.Sprintf("Unknown emergency bit %d (0x%x)", i, uint64(bit)),
			Severity: eventlog.SeverityWarning,
		})
	}
	return out
}
