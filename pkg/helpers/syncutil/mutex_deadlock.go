//go:build deadlock

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

// Package syncutil holds the lock types used across PodLink. Building with
// -tags=deadlock swaps them for go-deadlock detectors.
package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// DeadlockEnabled reports whether the deadlock detector build is active.
const DeadlockEnabled = true

func init() {
	// the ingest loop holds the aggregator lock for microseconds; anything
	// near this long is a real deadlock
	deadlock.Opts.DeadlockTimeout = 10 * time.Second
}

// Mutex reports lock-order inversions and long waits.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex reports lock-order inversions and long waits.
type RWMutex struct {
	deadlock.RWMutex
}
