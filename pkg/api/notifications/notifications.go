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

// Package notifications builds the server pushes broadcast to API clients.
package notifications

import (
	"encoding/json"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/eventlog"
	"github.com/podlink/podlink/pkg/telemetry"
	"github.com/rs/zerolog/log"
)

// sendNotification never blocks; a full channel drops the notification.
func sendNotification(ns chan<- models.Notification, method string, payload any) {
	if ns == nil {
		return
	}

	var params json.RawMessage
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("method", method).Msg("failed to marshal notification payload")
			return
		}
		params = b
	}

	select {
	case ns <- models.Notification{Method: method, Params: params}:
	default:
		log.Warn().Str("method", method).Msg("notification channel full, dropping notification")
	}
}

func TelemetryUpdated(ns chan<- models.Notification, payload models.TelemetryUpdatedParams) {
	sendNotification(ns, models.NotificationTelemetryUpdated, payload)
}

func RelaysChanged(ns chan<- models.Notification, relays telemetry.RelayState) {
	sendNotification(ns, models.NotificationRelaysChanged, relays)
}

func ConnectionChanged(ns chan<- models.Notification, status models.StatusResponse) {
	sendNotification(ns, models.NotificationConnectionChanged, status)
}

func LogAdded(ns chan<- models.Notification, entry eventlog.Entry) {
	sendNotification(ns, models.NotificationLogAdded, entry)
}

func LogCleared(ns chan<- models.Notification) {
	sendNotification(ns, models.NotificationLogCleared, nil)
}

func HistoryCleared(ns chan<- models.Notification) {
	sendNotification(ns, models.NotificationHistoryCleared, nil)
}
