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

// Package broker fans notifications out to every API client, publisher and
// other in-process consumer without letting a slow one stall ingestion.
package broker

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/helpers/syncutil"
)

// Subscription is one consumer's view of the stream. C is closed when the
// subscription ends or the broker stops.
type Subscription struct {
	C  <-chan models.Notification
	ID int
}

type subscriber struct {
	ch      chan models.Notification
	dropped uint64
}

type Broker struct {
	ctx         context.Context
	source      <-chan models.Notification
	done        chan struct{}
	subscribers map[int]*subscriber
	mu          syncutil.RWMutex
	nextID      int
}

func NewBroker(ctx context.Context, source <-chan models.Notification) *Broker {
	return &Broker{
		ctx:         ctx,
		source:      source,
		done:        make(chan struct{}),
		subscribers: make(map[int]*subscriber),
	}
}

// Start runs the fan-out loop until the source closes or the context ends,
// then closes every subscription.
func (b *Broker) Start() {
	go func() {
		defer close(b.done)
		defer b.closeAll()
		for {
			select {
			case n, ok := <-b.source:
				if !ok {
					log.Debug().Msg("broker source closed")
					return
				}
				b.broadcast(n)
			case <-b.ctx.Done():
				return
			}
		}
	}()
}

// Done is closed once the fan-out loop has exited.
func (b *Broker) Done() <-chan struct{} {
	return b.done
}

// broadcast never blocks. A full subscriber misses the notification;
// telemetry drops are routine and only logged at debug level.
func (b *Broker) broadcast(n models.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, sub := range b.subscribers {
		select {
		case sub.ch <- n:
		default:
			sub.dropped++
			ev := log.Warn()
			if n.Method == models.NotificationTelemetryUpdated {
				ev = log.Debug()
			}
			ev.Int("subscriber", id).
				Str("method", n.Method).
				Uint64("dropped", sub.dropped).
				Msg("subscriber full, dropping notification")
		}
	}
}

func (b *Broker) Subscribe(bufferSize int) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan models.Notification, bufferSize)
	b.subscribers[id] = &subscriber{ch: ch}

	log.Debug().Int("subscriber", id).Int("buffer", bufferSize).Msg("subscriber added")
	return Subscription{ID: id, C: ch}
}

// Unsubscribe closes the subscription. Unknown ids are ignored.
func (b *Broker) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		close(sub.ch)
	}
}

// Dropped reports how many notifications a subscriber has missed.
func (b *Broker) Dropped(id int) uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if sub, ok := b.subscribers[id]; ok {
		return sub.dropped
	}
	return 0
}

func (b *Broker) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

func (b *Broker) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, sub := range b.subscribers {
		close(sub.ch)
		delete(b.subscribers, id)
	}
}
