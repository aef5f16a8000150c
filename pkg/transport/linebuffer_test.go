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

package transport

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestLineBuffer_Feed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		chunks  []string
		want    []string
		pending int
	}{
		{name: "single line", chunks: []string{"hello\n"}, want: []string{"hello"}},
		{name: "split mid line", chunks: []string{"{\"gap_", "height\":1", "2}\n"}, want: []string{`{"gap_height":12}`}},
		{name: "many lines one chunk", chunks: []string{"a\nb\nc\n"}, want: []string{"a", "b", "c"}},
		{name: "crlf trimmed", chunks: []string{"STATE:1,0,0,1\r\n"}, want: []string{"STATE:1,0,0,1"}},
		{name: "blank lines skipped", chunks: []string{"\n \n\r\nx\n"}, want: []string{"x"}},
		{name: "tail buffered", chunks: []string{"one\ntw"}, want: []string{"one"}, pending: 2},
		{name: "newline alone finishes tail", chunks: []string{"abc", "\n"}, want: []string{"abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var lb LineBuffer
			var got []string
			for _, c := range tt.chunks {
				got = append(got, lb.Feed([]byte(c))...)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.pending, lb.Pending())
		})
	}
}

func TestLineBuffer_DropsOversizedTail(t *testing.T) {
	t.Parallel()

	var lb LineBuffer
	assert.Empty(t, lb.Feed([]byte(strings.Repeat("x", MaxLineLength+1))))
	assert.Equal(t, 0, lb.Pending())

	assert.Equal(t, []string{"ok"}, lb.Feed([]byte("ok\n")))
}

func TestLineBuffer_Reset(t *testing.T) {
	t.Parallel()

	var lb LineBuffer
	lb.Feed([]byte("partial"))
	lb.Reset()
	assert.Equal(t, []string{"next"}, lb.Feed([]byte("next\n")))
}

// However the stream is chunked, k terminated lines come out as k calls
// with the same trimmed content.
func TestPropertyLineReassembly(t *testing.T) {
	t.Parallel()
	rapid.Check(t, func(t *rapid.T) {
		lines := rapid.SliceOfN(
			rapid.StringMatching(`[ -~]{1,40}`).Filter(func(s string) bool {
				return strings.TrimSpace(s) != ""
			}),
			0, 30,
		).Draw(t, "lines")

		stream := strings.Join(lines, "\n")
		if len(lines) > 0 {
			stream += "\n"
		}

		var chunks []string
		rest := stream
		for rest != "" {
			n := rapid.IntRange(1, len(rest)).Draw(t, "chunk")
			chunks = append(chunks, rest[:n])
			rest = rest[n:]
		}

		var lb LineBuffer
		var got []string
		for _, c := range chunks {
			got = append(got, lb.Feed([]byte(c))...)
		}

		want := make([]string, 0, len(lines))
		for _, l := range lines {
			want = append(want, strings.TrimSpace(l))
		}
		if len(got) != len(want) {
			t.Fatalf("got %d lines, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("line %d: got %q want %q", i, got[i], want[i])
			}
		}
		if lb.Pending() != 0 {
			t.Fatalf("unexpected pending bytes: %d", lb.Pending())
		}
	})
}
