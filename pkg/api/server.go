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

// Package api serves the JSON-RPC 2.0 presentation API over WebSocket and
// broadcasts state notifications to every connected client.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/internal/metrics"
	"github.com/podlink/podlink/pkg/api/methods"
	"github.com/podlink/podlink/pkg/api/middleware"
	"github.com/podlink/podlink/pkg/api/models"
	"github.com/podlink/podlink/pkg/api/models/requests"
	"github.com/podlink/podlink/pkg/api/validation"
	"github.com/podlink/podlink/pkg/config"
	"github.com/podlink/podlink/pkg/service/broker"
	"github.com/podlink/podlink/pkg/service/session"
)

var (
	JSONRPCErrorParseError = models.ErrorObject{
		Code:    -32700,
		Message: "Parse error",
	}
	JSONRPCErrorInvalidRequest = models.ErrorObject{
		Code:    -32600,
		Message: "Invalid Request",
	}
	JSONRPCErrorMethodNotFound = models.ErrorObject{
		Code:    -32601,
		Message: "Method not found",
	}
	JSONRPCErrorInvalidParams = models.ErrorObject{
		Code:    -32602,
		Message: "Invalid params",
	}
	JSONRPCErrorServerError = models.ErrorObject{
		Code:    -32000,
		Message: "Server error",
	}
)

const (
	// NotificationBuffer is the broker subscription size for WebSocket
	// broadcasts.
	NotificationBuffer = 256
	shutdownTimeout    = 5 * time.Second
	maxMessageSize     = 64 * 1024
)

var errUnknownMethod = errors.New("unknown method")

type handlerFunc func(requests.RequestEnv) (any, error)

var methodMap = map[string]handlerFunc{
	// connection
	models.MethodStatus:     methods.HandleStatus,
	models.MethodConnect:    methods.HandleConnect,
	models.MethodDisconnect: methods.HandleDisconnect,
	// telemetry
	models.MethodSnapshot:      methods.HandleSnapshot,
	models.MethodHealth:        methods.HandleHealth,
	models.MethodHistory:       methods.HandleHistory,
	models.MethodHistoryExport: methods.HandleHistoryExport,
	models.MethodHistoryClear:  methods.HandleHistoryClear,
	// error log
	models.MethodLog:      methods.HandleLog,
	models.MethodLogClear: methods.HandleLogClear,
	// relays
	models.MethodRelays:        methods.HandleRelays,
	models.MethodRelaysToggle:  methods.HandleRelaysToggle,
	models.MethodRelaysAllOn:   methods.HandleRelaysAllOn,
	models.MethodRelaysAllOff:  methods.HandleRelaysAllOff,
	models.MethodRelaysStatus:  methods.HandleRelaysStatus,
	models.MethodEmergencyStop: methods.HandleEmergencyStop,
	// utils
	models.MethodVersion: methods.HandleVersion,
}

// Server owns the HTTP router and the WebSocket hub.
type Server struct {
	ctx     context.Context
	cfg     *config.Instance
	session *session.Session
	metrics *metrics.Metrics
	hub     *melody.Melody
	limiter *middleware.IPRateLimiter
	router  chi.Router
}

// NewServer builds the router. ctx bounds the work started by requests,
// such as connecting to the pod.
func NewServer(
	ctx context.Context,
	cfg *config.Instance,
	sess *session.Session,
	m *metrics.Metrics,
	limiter *middleware.IPRateLimiter,
) *Server {
	if limiter == nil {
		limiter = middleware.NewIPRateLimiter()
	}
	s := &Server{
		ctx:     ctx,
		cfg:     cfg,
		session: sess,
		metrics: m,
		hub:     melody.New(),
		limiter: limiter,
	}
	s.hub.Config.MaxMessageSize = maxMessageSize
	s.hub.Upgrader.CheckOrigin = s.checkOrigin
	s.hub.HandleConnect(func(ms *melody.Session) {
		log.Debug().Str("addr", ms.Request.RemoteAddr).Msg("api client connected")
	})
	s.hub.HandleDisconnect(func(ms *melody.Session) {
		log.Debug().Str("addr", ms.Request.RemoteAddr).Msg("api client disconnected")
	})
	s.hub.HandleMessage(middleware.WebSocketRateLimitHandler(limiter, isExemptMessage, s.handleWSMessage))
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.HTTPIPFilterMiddleware(middleware.NewIPFilter(s.cfg.AllowedIPs())))

	origins := s.cfg.AllowedOrigins()
	if len(origins) == 0 {
		origins = []string{"http://*", "https://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet},
		AllowedHeaders: []string{"Accept"},
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.HTTPRateLimitMiddleware(s.limiter))
		r.Get("/api", func(w http.ResponseWriter, r *http.Request) {
			if err := s.hub.HandleRequest(w, r); err != nil {
				log.Error().Err(err).Msg("handling websocket request")
			}
		})
	})

	if s.cfg.MetricsEnabled() {
		r.Group(func(r chi.Router) {
			r.Use(chimiddleware.NoCache)
			r.Use(chimiddleware.Timeout(config.APIRequestTimeout))
			r.Handle("/metrics", s.metrics.Handler())
		})
	}

	return r
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// checkOrigin allows non-browser clients and browsers from a configured
// origin. With no origins configured every origin is accepted.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	allowed := s.cfg.AllowedOrigins()
	if origin == "" || len(allowed) == 0 {
		return true
	}
	for _, o := range allowed {
		if o == "*" || strings.EqualFold(o, origin) {
			return true
		}
	}
	log.Warn().Str("origin", origin).Msg("rejected websocket origin")
	return false
}

// isExemptMessage keeps heartbeats and emergency stops outside the
// WebSocket rate limit.
func isExemptMessage(msg []byte) bool {
	if bytes.Equal(msg, []byte("ping")) {
		return true
	}
	var req struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(msg, &req); err != nil {
		return false
	}
	return strings.EqualFold(req.Method, models.MethodEmergencyStop)
}

func (s *Server) handleRequest(env requests.RequestEnv, req models.RequestObject) (any, error) { //nolint:gocritic // env is copied per request
	log.Debug().Str("method", req.Method).Str("id", req.ID.String()).Msg("received request")

	fn, ok := methodMap[strings.ToLower(req.Method)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errUnknownMethod, req.Method)
	}

	env.ID = *req.ID
	env.Params = req.Params
	return fn(env)
}

// errorObject maps a handler error to a JSON-RPC error.
func errorObject(err error) models.ErrorObject {
	var verr *validation.Error
	switch {
	case errors.Is(err, errUnknownMethod):
		return JSONRPCErrorMethodNotFound
	case errors.As(err, &verr),
		errors.Is(err, validation.ErrMissingParams),
		errors.Is(err, validation.ErrInvalidParams):
		return models.ErrorObject{Code: JSONRPCErrorInvalidParams.Code, Message: err.Error()}
	default:
		return models.ErrorObject{Code: JSONRPCErrorServerError.Code, Message: err.Error()}
	}
}

func writeJSON(ms *melody.Session, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error marshalling response: %w", err)
	}
	if err := ms.Write(data); err != nil {
		return fmt.Errorf("error writing response: %w", err)
	}
	return nil
}

func sendResponse(ms *melody.Session, id models.RPCID, result any) error {
	if _, ok := result.(methods.NoContent); ok {
		result = nil
	}
	return writeJSON(ms, models.ResponseObject{
		JSONRPC: "2.0",
		ID:      id,
		Result:  result,
	})
}

func sendError(ms *melody.Session, id models.RPCID, errObj models.ErrorObject) error {
	log.Debug().Int("code", errObj.Code).Str("message", errObj.Message).Msg("sending error")
	return writeJSON(ms, models.ResponseErrorObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &errObj,
	})
}

func (s *Server) handleWSMessage(ms *melody.Session, msg []byte) {
	// heartbeat
	if bytes.Equal(msg, []byte("ping")) {
		if err := ms.Write([]byte("pong")); err != nil {
			log.Error().Err(err).Msg("sending pong")
		}
		return
	}

	if !json.Valid(msg) {
		log.Warn().Msg("data not valid json")
		if err := sendError(ms, models.NullRPCID, JSONRPCErrorParseError); err != nil {
			log.Error().Err(err).Msg("error sending error response")
		}
		return
	}

	var req models.RequestObject
	if err := json.Unmarshal(msg, &req); err != nil {
		log.Warn().Err(err).Msg("message does not match known types")
		if err := sendError(ms, models.NullRPCID, JSONRPCErrorInvalidRequest); err != nil {
			log.Error().Err(err).Msg("error sending error response")
		}
		return
	}

	id := models.NullRPCID
	if !req.ID.IsAbsent() {
		id = *req.ID
	}

	if req.JSONRPC != "2.0" || req.Method == "" {
		log.Warn().Str("jsonrpc", req.JSONRPC).Msg("invalid request")
		if err := sendError(ms, id, JSONRPCErrorInvalidRequest); err != nil {
			log.Error().Err(err).Msg("error sending error response")
		}
		return
	}

	if req.ID.IsAbsent() {
		log.Debug().Str("method", req.Method).Msg("received notification, ignoring")
		return
	}

	env := requests.RequestEnv{
		Context: s.ctx,
		Config:  s.cfg,
		Session: s.session,
		IsLocal: middleware.IsLoopbackAddr(ms.Request.RemoteAddr),
	}

	resp, err := s.handleRequest(env, req)
	if err != nil {
		log.Warn().Err(err).Str("method", req.Method).Msg("request failed")
		if err := sendError(ms, id, errorObject(err)); err != nil {
			log.Error().Err(err).Msg("error sending error response")
		}
		return
	}

	if err := sendResponse(ms, id, resp); err != nil {
		log.Error().Err(err).Msg("error sending response")
	}
}

// BroadcastNotifications forwards every notification to all WebSocket
// clients until ctx ends or the channel closes.
func (s *Server) BroadcastNotifications(ctx context.Context, ns <-chan models.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-ns:
			if !ok {
				return
			}
			data, err := json.Marshal(models.NotificationObject{
				JSONRPC: "2.0",
				Method:  n.Method,
				Params:  n.Params,
			})
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}
			if err := s.hub.Broadcast(data); err != nil {
				log.Debug().Err(err).Msg("broadcasting notification")
			}
		}
	}
}

// Close disconnects every WebSocket client.
func (s *Server) Close() error {
	if err := s.hub.Close(); err != nil && !errors.Is(err, melody.ErrClosed) {
		return fmt.Errorf("failed to close websocket hub: %w", err)
	}
	return nil
}

// Start listens on the configured address and serves the API until ctx
// ends. Notifications come from a broker subscription.
func Start(
	ctx context.Context,
	cfg *config.Instance,
	sess *session.Session,
	b *broker.Broker,
	m *metrics.Metrics,
) error {
	limiter := middleware.NewIPRateLimiter()
	limiter.StartCleanup(ctx)

	srv := NewServer(ctx, cfg, sess, m, limiter)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", cfg.APIListen())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.APIListen(), err)
	}

	sub := b.Subscribe(NotificationBuffer)
	defer b.Unsubscribe(sub.ID)
	go srv.BroadcastNotifications(ctx, sub.C)

	httpSrv := &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listener.Addr().String()).Msg("api server listening")
		errCh <- httpSrv.Serve(listener)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("api server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("stopping api server")
	if err := srv.Close(); err != nil {
		log.Warn().Err(err).Msg("closing websocket clients")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down api server: %w", err)
	}
	return nil
}
