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

package middleware

import (
	"net"
	"net/http"

	"github.com/rs/zerolog/log"
)

// ParseRemoteIP returns the IP part of an IP:port address, or nil.
func ParseRemoteIP(remoteAddr string) net.IP {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	return net.ParseIP(host)
}

func IsLoopbackAddr(remoteAddr string) bool {
	ip := ParseRemoteIP(remoteAddr)
	return ip != nil && ip.IsLoopback()
}

// IPFilter is an allowlist of addresses and networks. An empty list lets
// everything through.
type IPFilter struct {
	nets  []*net.IPNet
	addrs []net.IP
	open  bool
}

// NewIPFilter parses entries as IPs or CIDRs. A stray port is ignored and
// invalid entries are skipped with a warning.
func NewIPFilter(allowed []string) *IPFilter {
	f := &IPFilter{open: len(allowed) == 0}
	for _, entry := range allowed {
		if host, _, err := net.SplitHostPort(entry); err == nil {
			entry = host
		}
		if _, network, err := net.ParseCIDR(entry); err == nil {
			f.nets = append(f.nets, network)
			continue
		}
		if ip := net.ParseIP(entry); ip != nil {
			f.addrs = append(f.addrs, ip)
			continue
		}
		log.Warn().Str("entry", entry).Msg("invalid IP or CIDR in allowed_ips, skipping")
	}
	return f
}

func (f *IPFilter) IsAllowed(remoteAddr string) bool {
	if f.open {
		return true
	}
	ip := ParseRemoteIP(remoteAddr)
	if ip == nil {
		return false
	}
	for _, a := range f.addrs {
		if ip.Equal(a) {
			return true
		}
	}
	for _, n := range f.nets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// HTTPIPFilterMiddleware rejects requests, including WebSocket upgrades,
// from addresses outside the allowlist.
func HTTPIPFilterMiddleware(filter *IPFilter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !filter.IsAllowed(r.RemoteAddr) {
				log.Debug().
					Str("addr", r.RemoteAddr).
					Str("path", r.URL.Path).
					Msg("request from blocked address")
				http.Error(w, "Forbidden", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
