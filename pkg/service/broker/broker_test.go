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

package broker

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/podlink/podlink/pkg/api/models"
)

func receive(t *testing.T, c <-chan models.Notification) models.Notification {
	t.Helper()
	select {
	case n, ok := <-c:
		require.True(t, ok, "subscription closed")
		return n
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
		return models.Notification{}
	}
}

func TestSubscribe_AssignsIDs(t *testing.T) {
	t.Parallel()

	b := NewBroker(context.Background(), make(chan models.Notification))

	first := b.Subscribe(10)
	second := b.Subscribe(10)

	assert.Equal(t, 0, first.ID)
	assert.Equal(t, 1, second.ID)
	assert.Equal(t, 2, b.SubscriberCount())
}

func TestUnsubscribe(t *testing.T) {
	t.Parallel()

	b := NewBroker(context.Background(), make(chan models.Notification))
	sub := b.Subscribe(1)

	b.Unsubscribe(sub.ID)
	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Zero(t, b.SubscriberCount())

	assert.NotPanics(t, func() { b.Unsubscribe(sub.ID) })
}

func TestBroadcast_AllSubscribersInOrder(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 10)
	b := NewBroker(context.Background(), source)
	subs := []Subscription{b.Subscribe(10), b.Subscribe(10)}
	b.Start()

	for i := range 5 {
		source <- models.Notification{Method: fmt.Sprintf("m%d", i)}
	}

	for _, s := range subs {
		for i := range 5 {
			assert.Equal(t, fmt.Sprintf("m%d", i), receive(t, s.C).Method)
		}
	}
}

func TestBroadcast_SlowSubscriberDoesNotBlock(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification)
	b := NewBroker(context.Background(), source)
	slow := b.Subscribe(1)
	fast := b.Subscribe(100)
	b.Start()

	for range 50 {
		select {
		case source <- models.Notification{Method: models.NotificationTelemetryUpdated}:
		case <-time.After(time.Second):
			t.Fatal("broker blocked on slow subscriber")
		}
	}

	require.Eventually(t, func() bool {
		return len(fast.C) == 50 && b.Dropped(slow.ID) == 49
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, slow.C, 1)
	assert.Zero(t, b.Dropped(fast.ID))
}

func TestStop_ContextCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	b := NewBroker(ctx, make(chan models.Notification))
	sub := b.Subscribe(1)
	b.Start()

	cancel()

	select {
	case <-b.Done():
	case <-time.After(time.Second):
		t.Fatal("broker did not stop")
	}
	_, ok := <-sub.C
	assert.False(t, ok)
}

func TestStop_SourceClosed(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification)
	b := NewBroker(context.Background(), source)
	sub := b.Subscribe(1)
	b.Start()

	close(source)

	<-b.Done()
	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Zero(t, b.SubscriberCount())
}

func TestConcurrentSubscribeUnsubscribe(t *testing.T) {
	t.Parallel()

	source := make(chan models.Notification, 100)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := NewBroker(ctx, source)
	b.Start()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				s := b.Subscribe(5)
				source <- models.Notification{Method: models.NotificationLogAdded}
				b.Unsubscribe(s.ID)
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, b.SubscriberCount())
}
