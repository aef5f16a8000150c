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

package state

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/telemetry/history"
)

// Ingestion, optimistic relay writes and readers must not deadlock when the
// notification consumer is slow or the buffer is full. Run with
// -tags=deadlock to also catch lock ordering violations.
func TestAggregator_NoDeadlockWithSlowConsumer(t *testing.T) {
	t.Parallel()

	l := eventlog.New(0, nil)
	ns := make(chan models.Notification, 4)
	agg := NewAggregator(l, history.DefaultBounds(), nil, ns)

	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			select {
			case <-ns:
				time.Sleep(2 * time.Millisecond)
			case <-done:
				return
			}
		}
	}()

	var wg sync.WaitGroup
	wg.Add(4)
	go func() {
		defer wg.Done()
		for i := range 200 {
			agg.ApplyLine(fmt.Sprintf(`{"voltage1": %d, "emergency_reason_mask": %d}`, i, i%4))
		}
	}()
	go func() {
		defer wg.Done()
		for i := range 200 {
			agg.SetRelay(i%4+1, i%2 == 0)
			agg.ApplyLine(fmt.Sprintf("STATE:%d,0,1,0", i%2))
		}
	}()
	go func() {
		defer wg.Done()
		for range 200 {
			_ = agg.SnapshotResponse()
			_ = agg.Health()
			_ = agg.History()
		}
	}()
	go func() {
		defer wg.Done()
		for range 20 {
			agg.ClearHistory()
		}
	}()

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(10 * time.Second):
		t.Fatal("deadlock: aggregator operations did not finish")
	}

	assert.LessOrEqual(t, len(agg.Series("voltage1")), history.DefaultMaxPoints)
}
