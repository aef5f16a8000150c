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
	"bytes"
	"strings"

	"github.com/rs/zerolog/log"
)

// MaxLineLength bounds a line that has not seen its newline yet. Longer
// input is dropped.
const MaxLineLength = 64 * 1024

// LineBuffer reassembles newline-delimited records from arbitrarily
// chunked input.
type LineBuffer struct {
	buf []byte
}

// Feed appends chunk and returns the complete lines it finished, trimmed
// and without empty ones. The unterminated tail stays buffered.
func (b *LineBuffer) Feed(chunk []byte) []string {
	var lines []string
	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, '\n')
		if i < 0 {
			b.buf = append(b.buf, chunk...)
			break
		}
		b.buf = append(b.buf, chunk[:i]...)
		chunk = chunk[i+1:]

		line := strings.TrimSpace(string(b.buf))
		b.buf = b.buf[:0]
		if line != "" {
			lines = append(lines, line)
		}
	}

	if len(b.buf) > MaxLineLength {
		log.Warn().Int("bytes", len(b.buf)).Msg("dropping oversized unterminated line")
		b.buf = b.buf[:0]
	}
	return lines
}

// Pending is the number of buffered bytes awaiting a newline.
func (b *LineBuffer) Pending() int {
	return len(b.buf)
}

func (b *LineBuffer) Reset() {
	b.buf = b.buf[:0]
}
