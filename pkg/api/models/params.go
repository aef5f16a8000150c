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

type ConnectParams struct {
	BaudRate *int `json:"baudRate" validate:"omitempty,gt=0,lte=4000000"`
}

type HistoryParams struct {
	Channel *string `json:"channel" validate:"omitempty,channel"`
}

type RelayToggleParams struct {
	Relay int `json:"relay" validate:"required,min=1,max=4"`
}

type LogParams struct {
	Severity *string `json:"severity" validate:"omitempty,oneof=error warning info"`
	Limit    *int    `json:"limit" validate:"omitempty,gt=0"`
}
