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

// HealthWeight is one row of the overall health table. MaxCode is the
// nominal code for the subsystem; higher codes count as nominal too.
type HealthWeight struct {
	Key      string
	Weight   float64
	MaxCode  int
	Critical bool
}

var DefaultHealthTable = []HealthWeight{
	{Key: HealthBNO, Weight: 6, MaxCode: 3},
	{Key: HealthICG, Weight: 6, MaxCode: 3},
	{Key: HealthLidar, Weight: 7, MaxCode: 2},
	{Key: HealthLidar2, Weight: 7, MaxCode: 2},
	{Key: HealthTemp1, Weight: 8, MaxCode: 2},
	{Key: HealthTemp2, Weight: 8, MaxCode: 2},
	{Key: HealthTemp3, Weight: 8, MaxCode: 2},
	{Key: HealthVoltage1, Weight: 10, MaxCode: 2, Critical: true},
	{Key: HealthVoltage2, Weight: 8, MaxCode: 2},
	{Key: HealthVoltage3, Weight: 8, MaxCode: 2},
	{Key: HealthPressure, Weight: 10, MaxCode: 2, Critical: true},
	{Key: HealthWiring, Weight: 9, MaxCode: 2},
	{Key: HealthSafetyHeartbeat, Weight: 10, MaxCode: 2, Critical: true},
}

type HealthLabel string

const (
	HealthExcellent HealthLabel = "Excellent"
	HealthGood      HealthLabel = "Good"
	HealthDegraded  HealthLabel = "Degraded"
	HealthCritical  HealthLabel = "Critical"
	HealthFailed    HealthLabel = "Failed"
	HealthOK        HealthLabel = "OK"
)

// HealthScore is the weighted 0-100 health over the table rows whose key is
// in present. A critical row reporting 0 forces the score to 0.
func HealthScore(table []HealthWeight, codes map[string]int, present map[string]bool) float64 {
	var sum, total float64
	for _, row := range table {
		if !present[row.Key] {
			continue
		}
		code, ok := codes[row.Key]
		if !ok {
			continue
		}
		if row.Critical && code == 0 {
			return 0
		}
		ratio := 1.0
		if row.MaxCode > 0 {
			ratio = min(max(float64(code)/float64(row.MaxCode), 0), 1)
		}
		sum += ratio * row.Weight
		total += row.Weight
	}
	if total == 0 {
		return 0
	}
	return sum / total * 100
}

func ScoreLabel(score float64) HealthLabel {
	switch {
	case score >= 75:
		return HealthExcellent
	case score >= 50:
		return HealthGood
	case score >= 25:
		return HealthDegraded
	default:
		return HealthCritical
	}
}

// CodeLabel maps a per-subsystem code: 0 failed, 1 degraded, 2+ OK.
func CodeLabel(code int) HealthLabel {
	switch {
	case code <= 0:
		return HealthFailed
	case code == 1:
		return HealthDegraded
	default:
		return HealthOK
	}
}
