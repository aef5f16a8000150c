//go:build !deadlock

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

import "sync"

// DeadlockEnabled reports whether the deadlock detector build is active.
const DeadlockEnabled = false

// Mutex is a plain sync.Mutex in regular builds.
//
//nolint:gocritic // wrapper type
type Mutex struct {
	sync.Mutex //nolint:forbidigo // the one place sync.Mutex is allowed
}

// RWMutex is a plain sync.RWMutex in regular builds.
//
//nolint:gocritic // wrapper type
type RWMutex struct {
	sync.RWMutex //nolint:forbidigo // the one place sync.RWMutex is allowed
}
