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

package models

import (
	"bytes"
	"encoding/json"
	"errors"
)

// RPCID is a JSON-RPC 2.0 id. It keeps the raw JSON so ids are echoed back
// exactly as received.
type RPCID struct {
	json.RawMessage
}

var ErrInvalidRPCID = errors.New("JSON-RPC ID cannot be an object or array")

var NullRPCID = RPCID{RawMessage: []byte("null")}

func (id *RPCID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return ErrInvalidRPCID
	}
	id.RawMessage = append([]byte(nil), data...)
	return nil
}

func (id RPCID) MarshalJSON() ([]byte, error) {
	if len(id.RawMessage) == 0 {
		return []byte("null"), nil
	}
	return id.RawMessage, nil
}

// IsAbsent means the request was a notification.
func (id *RPCID) IsAbsent() bool {
	return id == nil || len(id.RawMessage) == 0
}

func (id *RPCID) IsNull() bool {
	return id != nil && bytes.Equal(id.RawMessage, []byte("null"))
}

func (id *RPCID) String() string {
	if id.IsAbsent() {
		return "null"
	}
	return string(id.RawMessage)
}

func NewStringID(s string) RPCID {
	b, _ := json.Marshal(s)
	return RPCID{RawMessage: b}
}
