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

package helpers

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/olahol/melody"
	"github.com/stretchr/testify/require"

	"github.com/podlink/podlink/pkg/api/models"
)

const readTimeout = 5 * time.Second

// WebSocketTestServer is a bare melody hub behind httptest, for testing
// clients against scripted replies.
type WebSocketTestServer struct {
	Server *httptest.Server
	Melody *melody.Melody
}

// NewWebSocketTestServer serves handler on every path.
func NewWebSocketTestServer(t *testing.T, handler func(*melody.Session, []byte)) *WebSocketTestServer {
	t.Helper()
	m := melody.New()
	if handler != nil {
		m.HandleMessage(handler)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = m.HandleRequest(w, r)
	}))
	return &WebSocketTestServer{Server: srv, Melody: m}
}

func (s *WebSocketTestServer) Close() {
	_ = s.Melody.Close()
	s.Server.Close()
}

// Port is the TCP port the test server listens on.
func (s *WebSocketTestServer) Port(t *testing.T) int {
	t.Helper()
	addr, ok := s.Server.Listener.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return addr.Port
}

// EchoResult answers every request with result.
func EchoResult(result any) func(*melody.Session, []byte) {
	return func(session *melody.Session, msg []byte) {
		var req struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(msg, &req); err != nil {
			return
		}
		data, _ := json.Marshal(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
		_ = session.Write(data)
	}
}

// JSONRPCResponse is a decoded response or notification frame.
type JSONRPCResponse struct {
	Result json.RawMessage     `json:"result,omitempty"`
	Error  *models.ErrorObject `json:"error,omitempty"`
	ID     json.RawMessage     `json:"id,omitempty"`
	Method string              `json:"method,omitempty"`
	Params json.RawMessage     `json:"params,omitempty"`
}

// WSClient is a JSON-RPC client for tests against an httptest server.
type WSClient struct {
	Conn   *websocket.Conn
	t      *testing.T
	nextID atomic.Int64
}

// DialWS opens a WebSocket to path on server and closes it with the test.
func DialWS(t *testing.T, server *httptest.Server, path string) *WSClient {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &WSClient{Conn: conn, t: t}
}

func (c *WSClient) WriteText(msg string) {
	c.t.Helper()
	require.NoError(c.t, c.Conn.WriteMessage(websocket.TextMessage, []byte(msg)))
}

// ReadText returns the next frame as a string.
func (c *WSClient) ReadText() string {
	c.t.Helper()
	require.NoError(c.t, c.Conn.SetReadDeadline(time.Now().Add(readTimeout)))
	_, data, err := c.Conn.ReadMessage()
	require.NoError(c.t, err)
	return string(data)
}

// Read decodes the next frame.
func (c *WSClient) Read() JSONRPCResponse {
	c.t.Helper()
	var resp JSONRPCResponse
	require.NoError(c.t, json.Unmarshal([]byte(c.ReadText()), &resp))
	return resp
}

// Call sends a request and waits for its response, skipping notifications
// that arrive in between.
func (c *WSClient) Call(method string, params any) JSONRPCResponse {
	c.t.Helper()
	id := c.nextID.Add(1)
	req := map[string]any{"jsonrpc": "2.0", "id": id, "method": method}
	if params != nil {
		req["params"] = params
	}
	data, err := json.Marshal(req)
	require.NoError(c.t, err)
	c.WriteText(string(data))

	want := fmt.Sprint(id)
	for {
		resp := c.Read()
		if resp.Method == "" && string(resp.ID) == want {
			return resp
		}
	}
}

// WaitNotification reads frames until a notification for method arrives.
func (c *WSClient) WaitNotification(method string) JSONRPCResponse {
	c.t.Helper()
	for {
		resp := c.Read()
		if resp.Method == method {
			return resp
		}
	}
}

func AssertJSONRPCSuccess(t *testing.T, resp JSONRPCResponse) {
	t.Helper()
	require.Nil(t, resp.Error, "expected success, got error: %+v", resp.Error)
}

func AssertJSONRPCError(t *testing.T, resp JSONRPCResponse, expectedCode int) {
	t.Helper()
	require.NotNil(t, resp.Error, "expected error response")
	require.Equal(t, expectedCode, resp.Error.Code, "error message: %s", resp.Error.Message)
}
