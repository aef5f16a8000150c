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

// Package client talks to a running PodLink service over its WebSocket
// API. The CLI uses it for one-shot calls.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/config"
)

var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrInvalidParams    = errors.New("invalid params")
	ErrRequestCancelled = errors.New("request cancelled")
)

const APIPath = "/api"

// RPCError is an error returned by the service for a request.
type RPCError struct {
	Message string
	Code    int
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

func localURL(cfg *config.Instance) string {
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort("localhost", strconv.Itoa(cfg.APIPort())),
		Path:   APIPath,
	}
	return u.String()
}

func dial(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	c, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", wsURL, err)
	}
	return c, nil
}

func closeConn(c *websocket.Conn) {
	if err := c.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing websocket")
	}
}

// LocalClient calls method on the service running on this machine and
// returns the raw JSON result.
func LocalClient(
	ctx context.Context,
	cfg *config.Instance,
	method string,
	params string,
) (string, error) {
	return Call(ctx, localURL(cfg), config.APIRequestTimeout, method, params)
}

// Call sends one JSON-RPC request to wsURL and waits for its response.
func Call(
	ctx context.Context,
	wsURL string,
	timeout time.Duration,
	method string,
	params string,
) (string, error) {
	id := models.NewStringID(uuid.NewString())
	req := models.RequestObject{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
	}
	if params != "" {
		if !json.Valid([]byte(params)) {
			return "", ErrInvalidParams
		}
		req.Params = json.RawMessage(params)
	}

	c, err := dial(ctx, wsURL)
	if err != nil {
		return "", err
	}
	defer closeConn(c)

	done := make(chan struct{})
	var resp *models.ResponseObject
	var raw struct {
		Result json.RawMessage `json:"result"`
	}

	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Msg("error reading message")
				return
			}

			var m models.ResponseObject
			if err := json.Unmarshal(message, &m); err != nil {
				continue
			}
			if m.JSONRPC != "2.0" {
				log.Warn().Msg("invalid jsonrpc version")
				continue
			}
			if m.ID.String() != id.String() {
				continue
			}
			_ = json.Unmarshal(message, &raw)
			resp = &m
			return
		}
	}()

	if err := c.WriteJSON(req); err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		closeConn(c)
		return "", ErrRequestTimeout
	case <-ctx.Done():
		closeConn(c)
		return "", ErrRequestCancelled
	}

	if resp == nil {
		return "", ErrRequestTimeout
	}
	if resp.Error != nil {
		return "", &RPCError{Message: resp.Error.Message, Code: resp.Error.Code}
	}
	if len(raw.Result) == 0 {
		return "null", nil
	}
	return string(raw.Result), nil
}

// WaitNotification blocks until the local service broadcasts a
// notification named method. A zero timeout uses the API request timeout
// and a negative one waits forever.
func WaitNotification(
	ctx context.Context,
	timeout time.Duration,
	cfg *config.Instance,
	method string,
) (string, error) {
	_, params, err := WaitNotifications(ctx, timeout, localURL(cfg), method)
	return params, err
}

// WaitNotifications waits on wsURL for any of methods and returns the one
// received with its params.
func WaitNotifications(
	ctx context.Context,
	timeout time.Duration,
	wsURL string,
	methods ...string,
) (string, string, error) {
	wanted := make(map[string]bool, len(methods))
	for _, m := range methods {
		wanted[m] = true
	}

	c, err := dial(ctx, wsURL)
	if err != nil {
		return "", "", err
	}
	defer closeConn(c)

	done := make(chan struct{})
	var got *models.NotificationObject

	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Msg("error reading message")
				return
			}

			var m models.RequestObject
			if err := json.Unmarshal(message, &m); err != nil {
				continue
			}
			if m.JSONRPC != "2.0" || !m.ID.IsAbsent() || !wanted[m.Method] {
				continue
			}
			got = &models.NotificationObject{JSONRPC: m.JSONRPC, Method: m.Method, Params: m.Params}
			return
		}
	}()

	var timerChan <-chan time.Time
	switch {
	case timeout == 0:
		timer := time.NewTimer(config.APIRequestTimeout)
		defer timer.Stop()
		timerChan = timer.C
	case timeout > 0:
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerChan = timer.C
	}

	select {
	case <-done:
	case <-timerChan:
		closeConn(c)
		return "", "", ErrRequestTimeout
	case <-ctx.Done():
		closeConn(c)
		return "", "", ErrRequestCancelled
	}

	if got == nil {
		return "", "", ErrRequestTimeout
	}
	params := string(got.Params)
	if params == "" {
		params = "null"
	}
	return got.Method, params, nil
}

// IsServiceRunning reports whether the local service answers a version
// request.
func IsServiceRunning(cfg *config.Instance) bool {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := Call(ctx, localURL(cfg), time.Second, models.MethodVersion, "")
	return err == nil
}

// WaitForAPI polls until the local service answers or timeout passes.
func WaitForAPI(cfg *config.Instance, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if IsServiceRunning(cfg) {
			return true
		}
		if time.Now().Add(interval).After(deadline) {
			time.Sleep(time.Until(deadline))
			return false
		}
		time.Sleep(interval)
	}
}
