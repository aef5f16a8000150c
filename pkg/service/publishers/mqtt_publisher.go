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

// Package publishers mirrors API notifications to external brokers.
package publishers

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/config"
)

const (
	DefaultTelemetryRate = 5.0
	publishTimeout       = 5 * time.Second
	connectTimeout       = 10 * time.Second
)

// retained methods describe current state, so late subscribers get the
// latest value straight away.
var retainedMethods = []string{
	models.NotificationRelaysChanged,
	models.NotificationConnectionChanged,
}

// MQTTPublisher forwards notifications to topic/<method>. Telemetry updates
// are sampled down to a fixed rate, everything else is sent as it comes.
type MQTTPublisher struct {
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client
	limiter   *rate.Limiter
	stopCh    chan struct{}
	broker    string
	topic     string
	filter    []string
	wg        sync.WaitGroup
	stopOnce  sync.Once
}

// NewMQTTPublisher creates a publisher. An empty filter publishes every
// notification.
func NewMQTTPublisher(broker, topic string, filter []string) *MQTTPublisher {
	return &MQTTPublisher{
		broker:    broker,
		topic:     strings.TrimSuffix(topic, "/"),
		filter:    filter,
		limiter:   rate.NewLimiter(rate.Limit(DefaultTelemetryRate), 1),
		stopCh:    make(chan struct{}),
		newClient: mqtt.NewClient,
	}
}

func (p *MQTTPublisher) Broker() string {
	return p.broker
}

func (p *MQTTPublisher) Topic() string {
	return p.topic
}

// FromConfig builds a publisher per enabled [[service.publishers.mqtt]]
// entry.
func FromConfig(entries []config.MQTTPublisher) []*MQTTPublisher {
	var out []*MQTTPublisher
	for _, e := range entries {
		if e.Enabled != nil && !*e.Enabled {
			continue
		}
		p := NewMQTTPublisher(e.Broker, e.Topic, e.Filter)
		if e.TelemetryRate > 0 {
			p.limiter.SetLimit(rate.Limit(e.TelemetryRate))
		}
		out = append(out, p)
	}
	return out
}

func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}

// Start connects and begins forwarding from notifications.
func (p *MQTTPublisher) Start(notifications <-chan models.Notification) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(p.broker))
	opts.SetClientID(config.AppName + "-" + uuid.New().String()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(p.topic+"/status", "offline", 1, true)
	opts.OnConnect = func(c mqtt.Client) {
		log.Info().Str("broker", p.broker).Msg("mqtt publisher connected")
		c.Publish(p.topic+"/status", 1, true, "online")
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", p.broker).Msg("mqtt publisher connection lost")
	}

	p.client = p.newClient(opts)
	// with connect retry the token stays pending until the broker answers
	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		log.Warn().Str("broker", p.broker).Msg("mqtt broker not reachable yet, retrying in background")
	} else if token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", p.broker, token.Error())
	}

	p.wg.Add(1)
	go p.publishNotifications(notifications)
	return nil
}

// Stop ends forwarding and disconnects. Safe to call more than once.
func (p *MQTTPublisher) Stop() {
	p.stopOnce.Do(func() {
		close(p.stopCh)
		p.wg.Wait()
		if p.client == nil {
			return
		}
		if p.client.IsConnected() {
			p.client.Publish(p.topic+"/status", 1, true, "offline").WaitTimeout(publishTimeout)
		}
		// also cancels a pending connect retry
		p.client.Disconnect(250)
	})
}

func (p *MQTTPublisher) publishNotifications(notifications <-chan models.Notification) {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case n, ok := <-notifications:
			if !ok {
				return
			}
			p.publish(n)
		}
	}
}

func (p *MQTTPublisher) publish(n models.Notification) {
	if !p.matchesFilter(n.Method) {
		return
	}
	if n.Method == models.NotificationTelemetryUpdated && !p.limiter.Allow() {
		return
	}

	payload := []byte(n.Params)
	if payload == nil {
		payload = []byte("{}")
	}
	retained := slices.Contains(retainedMethods, n.Method)

	token := p.client.Publish(p.topicFor(n.Method), 0, retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		log.Warn().Str("method", n.Method).Msg("mqtt publish timed out")
		return
	}
	if err := token.Error(); err != nil {
		log.Error().Err(err).Str("method", n.Method).Msg("mqtt publish failed")
		return
	}
	log.Debug().Str("method", n.Method).Msg("published notification to mqtt")
}

func (p *MQTTPublisher) topicFor(method string) string {
	return p.topic + "/" + method
}

func (p *MQTTPublisher) matchesFilter(method string) bool {
	return len(p.filter) == 0 || slices.Contains(p.filter, method)
}
