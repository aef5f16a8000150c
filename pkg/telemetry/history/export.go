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

package history

import (
	"fmt"
	"io"
	"sort"

	"github.com/gocarina/gocsv"
	"github.com/podlink/podlink/pkg/telemetry"
)

type csvRow struct {
	Channel   string  `csv:"channel"`
	Timestamp string  `csv:"timestamp"`
	Value     float64 `csv:"value"`
}

const csvTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// WriteCSV writes the given series as channel,timestamp,value rows, grouped
// by channel in name order and oldest first within a channel.
func WriteCSV(w io.Writer, series map[telemetry.Channel]Series) error {
	channels := make([]string, 0, len(series))
	for ch := range series {
		channels = append(channels, string(ch))
	}
	sort.Strings(channels)

	rows := make([]*csvRow, 0)
	for _, ch := range channels {
		for _, p := range series[telemetry.Channel(ch)] {
			rows = append(rows, &csvRow{
				Channel:   ch,
				Timestamp: p.Timestamp.UTC().Format(csvTimeFormat),
				Value:     p.Value,
			})
		}
	}

	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write history csv: %w", err)
	}
	return nil
}
