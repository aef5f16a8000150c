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

// Package middleware holds the HTTP and WebSocket guards in front of the
// PodLink API.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/podlink/podlink/pkg/helpers/syncutil"
)

const (
	// Dashboards poll snapshot and history, so the limit is generous.
	RequestsPerMinute = 600
	BurstSize         = 60
	staleAfter        = 10 * time.Minute
	cleanupInterval   = 5 * time.Minute
)

// IPRateLimiter keeps one token bucket per client address.
type IPRateLimiter struct {
	clock    clockwork.Clock
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	mu       syncutil.Mutex
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewIPRateLimiter() *IPRateLimiter {
	return NewIPRateLimiterWith(rate.Limit(RequestsPerMinute/60.0), BurstSize, nil)
}

func NewIPRateLimiterWith(limit rate.Limit, burst int, clock clockwork.Clock) *IPRateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &IPRateLimiter{
		clock:    clock,
		limiters: make(map[string]*limiterEntry),
		limit:    limit,
		burst:    burst,
	}
}

func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now
	return entry.limiter
}

// Allow reports whether ip may make one more request now.
func (rl *IPRateLimiter) Allow(ip string) bool {
	return rl.GetLimiter(ip).AllowN(rl.clock.Now(), 1)
}

// Cleanup forgets clients not seen for a while.
func (rl *IPRateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	for ip, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > staleAfter {
			delete(rl.limiters, ip)
		}
	}
}

func (rl *IPRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// StartCleanup runs Cleanup periodically until ctx ends.
func (rl *IPRateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := rl.clock.NewTicker(cleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				rl.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func HTTPRateLimitMiddleware(limiter *IPRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := ParseRemoteIP(r.RemoteAddr).String()
			if !limiter.Allow(host) {
				log.Warn().Str("ip", host).Str("path", r.URL.Path).Msg("HTTP rate limit exceeded")
				http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type rateLimitError struct {
	ID      json.RawMessage `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Error   struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// WebSocketRateLimitHandler applies the limiter to WebSocket messages.
// Messages for which exempt returns true always pass; an emergency stop
// must never be throttled.
func WebSocketRateLimitHandler(
	limiter *IPRateLimiter,
	exempt func(msg []byte) bool,
	handler func(*melody.Session, []byte),
) func(*melody.Session, []byte) {
	return func(session *melody.Session, msg []byte) {
		if exempt != nil && exempt(msg) {
			handler(session, msg)
			return
		}

		host := ParseRemoteIP(session.Request.RemoteAddr).String()
		if limiter.Allow(host) {
			handler(session, msg)
			return
		}

		log.Warn().Str("ip", host).Int("size", len(msg)).Msg("WebSocket rate limit exceeded")
		resp := rateLimitError{JSONRPC: "2.0", ID: requestID(msg)}
		resp.Error.Code = -32000
		resp.Error.Message = "Rate limit exceeded"
		data, err := json.Marshal(resp)
		if err != nil {
			log.Error().Err(err).Msg("failed to marshal rate limit error")
			return
		}
		if err := session.Write(data); err != nil {
			log.Debug().Err(err).Msg("failed to send rate limit error")
		}
	}
}

// requestID echoes the id of a rejected request so the client can match
// the error. Anything unparsable gets null.
func requestID(msg []byte) json.RawMessage {
	var req struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(msg, &req); err != nil || len(req.ID) == 0 {
		return json.RawMessage("null")
	}
	trimmed := bytes.TrimSpace(req.ID)
	if trimmed[0] == '{' || trimmed[0] == '[' {
		return json.RawMessage("null")
	}
	return req.ID
}
