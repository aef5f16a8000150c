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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRPCID_Unmarshal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    string
		null    bool
		wantErr bool
	}{
		{name: "string", input: `"abc"`, want: `"abc"`},
		{name: "number", input: `42`, want: `42`},
		{name: "null", input: `null`, want: `null`, null: true},
		{name: "object rejected", input: `{"a":1}`, wantErr: true},
		{name: "array rejected", input: ` [1]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var id RPCID
			err := json.Unmarshal([]byte(tt.input), &id)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidRPCID)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, id.String())
			assert.Equal(t, tt.null, id.IsNull())
			assert.False(t, id.IsAbsent())
		})
	}
}

func TestRPCID_AbsentInRequest(t *testing.T) {
	t.Parallel()

	var req RequestObject
	require.NoError(t, json.Unmarshal([]byte(`{"jsonrpc":"2.0","method":"status"}`), &req))
	assert.True(t, req.ID.IsAbsent())
	assert.Equal(t, "null", req.ID.String())
}

func TestRPCID_EchoedInResponse(t *testing.T) {
	t.Parallel()

	resp := ResponseObject{JSONRPC: "2.0", ID: NewStringID("req-1"), Result: true}
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":"req-1","result":true}`, string(b))

	b, err = json.Marshal(ResponseObject{JSONRPC: "2.0"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":null,"result":null}`, string(b))
}
