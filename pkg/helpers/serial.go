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
	"fmt"
	"runtime"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"
	"go.bug.st/serial/enumerator"
)

type usbBridge struct {
	Name string
	Vid  string
	Pid  string
}

// Bridges found on the pod controller boards, in order of preference.
var knownBridges = []usbBridge{
	{Name: "Espressif USB JTAG/serial", Vid: "303a", Pid: "1001"},
	{Name: "Silicon Labs CP210x", Vid: "10c4", Pid: "ea60"},
	{Name: "WCH CH340", Vid: "1a86", Pid: "7523"},
	{Name: "WCH CH9102", Vid: "1a86", Pid: "55d4"},
	{Name: "FTDI FT232R", Vid: "0403", Pid: "6001"},
}

func bridgeRank(vid, pid string) int {
	vid = strings.ToLower(vid)
	pid = strings.ToLower(pid)
	for i, b := range knownBridges {
		if b.Vid == vid && b.Pid == pid {
			return i
		}
	}
	return len(knownBridges)
}

func plausiblePortName(goos, name string) bool {
	switch goos {
	case "linux":
		return strings.HasPrefix(name, "/dev/ttyUSB") || strings.HasPrefix(name, "/dev/ttyACM")
	case "darwin":
		return strings.HasPrefix(name, "/dev/cu.")
	case "windows":
		return strings.HasPrefix(name, "COM")
	default:
		return true
	}
}

// rankSerialPorts keeps USB ports that look like a pod controller and puts
// known bridge chips first.
func rankSerialPorts(goos string, ports []*enumerator.PortDetails) []string {
	candidates := make([]*enumerator.PortDetails, 0, len(ports))
	for _, p := range ports {
		if p == nil || !p.IsUSB {
			continue
		}
		if !plausiblePortName(goos, p.Name) {
			continue
		}
		candidates = append(candidates, p)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return bridgeRank(candidates[i].VID, candidates[i].PID) <
			bridgeRank(candidates[j].VID, candidates[j].PID)
	})

	devices := make([]string, 0, len(candidates))
	for _, p := range candidates {
		devices = append(devices, p.Name)
	}
	return devices
}

// GetSerialDeviceList returns candidate pod controller ports, best first.
func GetSerialDeviceList() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	devices := rankSerialPorts(runtime.GOOS, ports)
	log.Debug().Strs("devices", devices).Msg("serial device candidates")
	return devices, nil
}
