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

// Package metrics exposes pod telemetry and link health as Prometheus
// metrics. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/telemetry"
)

const namespace = "podlink"

// Command labels.
const (
	CommandToggle = "relay_toggle"
	CommandAllOn  = "all_on"
	CommandAllOff = "all_off"
	CommandStatus = "status"
	CommandStop   = "emergency_stop"
)

type Metrics struct {
	registry      *prometheus.Registry
	lines         prometheus.Counter
	lineDuration  prometheus.Histogram
	events        *prometheus.CounterVec
	commands      *prometheus.CounterVec
	connects      *prometheus.CounterVec
	connected     prometheus.Gauge
	health        prometheus.Gauge
	emergencyMask prometheus.Gauge
	sensors       *prometheus.GaugeVec
	relays        *prometheus.GaugeVec
}

// New builds the metrics on their own registry, alongside the Go runtime
// and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		lines: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_received_total",
			Help:      "Lines received from the pod.",
		}),
		lineDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "line_processing_seconds",
			Help:      "Time spent parsing and merging one line.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Event log entries by kind and severity.",
		}, []string{"kind", "severity"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Relay commands sent, by command and result.",
		}, []string{"command", "result"}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connection attempts by result.",
		}, []string{"result"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the pod link is up.",
		}),
		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "health_score",
			Help:      "Overall weighted health, 0 to 100.",
		}),
		emergencyMask: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "emergency_reason_mask",
			Help:      "Last reported emergency bit mask.",
		}),
		sensors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_value",
			Help:      "Latest value per history channel.",
		}, []string{"channel"}),
		relays: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relay_on",
			Help:      "1 when the relay is on.",
		}, []string{"relay", "name"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.lines, m.lineDuration, m.events, m.commands, m.connects,
		m.connected, m.health, m.emergencyMask, m.sensors, m.relays,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) LineProcessed(d time.Duration) {
	if m == nil {
		return
	}
	m.lines.Inc()
	m.lineDuration.Observe(d.Seconds())
}

func (m *Metrics) EventRecorded(e eventlog.Entry) {
	if m == nil {
		return
	}
	kind := e.Kind
	if kind == "" {
		kind = "none"
	}
	m.events.WithLabelValues(kind, string(e.Severity)).Inc()
}

func (m *Metrics) CommandSent(command string, err error) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(command, result(err)).Inc()
}

func (m *Metrics) ConnectAttempt(err error) {
	if m == nil {
		return
	}
	m.connects.WithLabelValues(result(err)).Inc()
}

func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	m.connected.Set(boolValue(connected))
}

// ObserveState copies the current snapshot, relays and health into gauges.
func (m *Metrics) ObserveState(s *telemetry.Snapshot, relays telemetry.RelayState, health float64) {
	if m == nil {
		return
	}
	m.health.Set(health)
	m.emergencyMask.Set(float64(s.EmergencyReasonMask))
	for i, v := range s.Temperatures {
		m.sensors.WithLabelValues(string(telemetry.TemperatureChannel(i))).Set(v)
	}
	m.sensors.WithLabelValues(string(telemetry.ChannelGapHeight)).Set(s.GapHeight)
	m.sensors.WithLabelValues(string(telemetry.ChannelGapHeight2)).Set(s.GapHeight2)
	m.sensors.WithLabelValues(string(telemetry.ChannelVoltage1)).Set(s.Voltage1)
	m.sensors.WithLabelValues(string(telemetry.ChannelVoltage2)).Set(s.Voltage2)
	m.sensors.WithLabelValues(string(telemetry.ChannelVoltage3)).Set(s.Voltage3)
	m.sensors.WithLabelValues(string(telemetry.ChannelPressure)).Set(s.Pressure)
	m.ObserveRelays(relays)
}

func (m *Metrics) ObserveRelays(relays telemetry.RelayState) {
	if m == nil {
		return
	}
	for id := 1; id <= telemetry.RelayCount; id++ {
		m.relays.WithLabelValues(strconv.Itoa(id), telemetry.RelayName(id)).Set(boolValue(relays.Get(id)))
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
