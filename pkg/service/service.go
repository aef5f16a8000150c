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

// Package service wires the pod link, the session and every outer surface
// (API, discovery, publishers) into one running process.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"github.com/podlink/podlink/internal/metrics"
	"github.com/podlink/podlink/pkg/api"
	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/config"
	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/helpers"
	"github.com/podlink/podlink/pkg/service/broker"
	"github.com/podlink/podlink/pkg/service/discovery"
	"github.com/podlink/podlink/pkg/service/publishers"
	"github.com/podlink/podlink/pkg/service/session"
	"github.com/podlink/podlink/pkg/service/state"
	"github.com/podlink/podlink/pkg/telemetry/history"
	"github.com/podlink/podlink/pkg/transport"
)

// NotificationQueueSize bounds the queue between the session and the
// broker. Producers drop rather than block when it is full.
const (
	NotificationQueueSize = 256
	subscriberBuffer      = 100
)

var ErrUnknownTransport = errors.New("unknown transport kind")

// NewOpener builds the pod link opener selected by the transport config.
func NewOpener(cfg *config.Instance, fs afero.Fs) (transport.Opener, error) {
	switch kind := cfg.TransportKind(); kind {
	case config.TransportSerial:
		return transport.NewSerialOpener(cfg.TransportPath()), nil
	case config.TransportWebSocket:
		if cfg.TransportURL() == "" {
			return nil, errors.New("websocket transport needs a url")
		}
		return transport.NewWebSocketOpener(cfg.TransportURL()), nil
	case config.TransportReplay:
		if cfg.TransportPath() == "" {
			return nil, errors.New("replay transport needs a path")
		}
		return transport.NewReplayOpener(fs, cfg.TransportPath(), cfg.ReplayInterval()), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownTransport, kind)
	}
}

// Core is the in-process state shared by every surface.
type Core struct {
	Session       *session.Session
	Metrics       *metrics.Metrics
	Notifications chan models.Notification
}

// NewCore builds the session around the link returned by newLink, which
// gets the event log to record transport faults in.
func NewCore(cfg *config.Instance, newLink func(rec eventlog.Recorder) session.Link) *Core {
	ns := make(chan models.Notification, NotificationQueueSize)
	events := eventlog.New(cfg.ErrorLogMaxEntries(), nil)
	link := newLink(events)
	maxPoints, window := cfg.HistoryBounds()
	agg := state.NewAggregator(events, history.Bounds{MaxPoints: maxPoints, Window: window}, nil, ns)
	m := metrics.New()
	return &Core{
		Session:       session.New(cfg, link, agg, events, m, ns),
		Metrics:       m,
		Notifications: ns,
	}
}

func startPublishers(
	ctx context.Context,
	g *errgroup.Group,
	cfg *config.Instance,
	b *broker.Broker,
) {
	active := publishers.FromConfig(cfg.GetMQTTPublishers())
	for _, p := range active {
		sub := b.Subscribe(subscriberBuffer)
		g.Go(func() error {
			defer b.Unsubscribe(sub.ID)
			log.Info().Str("broker", p.Broker()).Str("topic", p.Topic()).Msg("starting MQTT publisher")
			if err := p.Start(sub.C); err != nil {
				// a dead broker must not take the service down
				log.Error().Err(err).Str("broker", p.Broker()).Msg("failed to start MQTT publisher")
				return nil
			}
			<-ctx.Done()
			p.Stop()
			return nil
		})
	}
	if len(active) > 0 {
		log.Info().Msgf("configured %d MQTT publisher(s)", len(active))
	}
}

// Run starts every component and blocks until ctx is cancelled or the API
// server fails. The pod link is closed before it returns.
func Run(ctx context.Context, cfg *config.Instance, core *Core) error {
	log.Info().Msgf("version: %s", config.AppVersion)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	b := broker.NewBroker(gctx, core.Notifications)
	b.Start()

	log.Info().Msg("starting API service")
	g.Go(func() error {
		return api.Start(gctx, cfg, core.Session, b, core.Metrics)
	})

	log.Info().Msg("starting mDNS discovery service")
	discoveryService := discovery.New(cfg, core.Session.Status().Transport)
	if err := discoveryService.Start(); err != nil {
		log.Error().Err(err).Msg("mDNS discovery failed to start (continuing without discovery)")
	}

	startPublishers(gctx, g, cfg, b)

	if cfg.Path() != "" {
		err := cfg.Watch(gctx, func() {
			helpers.SetDebugLogging(cfg.DebugLogging())
		})
		if err != nil {
			log.Warn().Err(err).Msg("config hot reload unavailable")
		}
	}

	if cfg.AutoConnect() {
		g.Go(func() error {
			if err := core.Session.Connect(gctx); err != nil {
				log.Warn().Err(err).Msg("auto connect failed")
			}
			return nil
		})
	}

	<-gctx.Done()
	log.Info().Msg("service context cancelled, running cleanup")

	discoveryService.Stop()
	core.Session.Disconnect()
	err := g.Wait()
	<-b.Done()

	log.Info().Msg("service cleanup completed")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Start runs the service in the background. stop cancels it and waits for
// cleanup; done closes once cleanup has finished.
func Start(cfg *config.Instance) (stop func() error, done <-chan struct{}, err error) {
	opener, err := NewOpener(cfg, afero.NewOsFs())
	if err != nil {
		return nil, nil, err
	}

	core := NewCore(cfg, func(rec eventlog.Recorder) session.Link {
		return transport.NewAdapter(opener, rec, transport.Options{
			ConnectTimeout: cfg.ConnectTimeout(),
			LineQueueSize:  cfg.LineQueueSize(),
		})
	})

	ctx, cancel := context.WithCancel(context.Background())
	doneCh := make(chan struct{})
	var runErr error
	go func() {
		defer close(doneCh)
		runErr = Run(ctx, cfg, core)
		if runErr != nil {
			log.Error().Err(runErr).Msg("service stopped with error")
		}
	}()

	stop = func() error {
		cancel()
		<-doneCh
		return runErr
	}
	return stop, doneCh, nil
}
