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

// Package discovery advertises the PodLink API over mDNS so dashboards on
// the pit network can find the ground station without an address.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/grandcat/zeroconf"
	"github.com/rs/zerolog/log"

	"github.com/podlink/podlink/pkg/config"
	"github.com/podlink/podlink/pkg/helpers/syncutil"
)

const ServiceType = "_podlink._tcp"

const (
	retryInterval    = 30 * time.Second
	maxRetryDuration = 5 * time.Minute
)

// Container and VPN interfaces never reach the pit network.
var skippedInterfacePrefixes = []string{
	"docker", "br-", "veth", "virbr", "lxc", "lxd",
	"cni", "flannel", "cali", "tunl", "wg", "tailscale", "zt",
}

func usableInterfaces() ([]net.Interface, error) {
	all, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("list network interfaces: %w", err)
	}
	return filterInterfaces(all), nil
}

// filterInterfaces keeps interfaces that are up, not loopback, multicast
// capable and not virtual.
func filterInterfaces(ifaces []net.Interface) []net.Interface {
	var out []net.Interface
	for _, iface := range ifaces {
		switch {
		case iface.Flags&net.FlagUp == 0,
			iface.Flags&net.FlagLoopback != 0,
			iface.Flags&net.FlagMulticast == 0,
			skippedInterface(iface.Name):
			continue
		}
		out = append(out, iface)
	}
	return out
}

func skippedInterface(name string) bool {
	lower := strings.ToLower(name)
	for _, prefix := range skippedInterfacePrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

// Service advertises the API port. Registration is retried in the
// background while no network is up yet.
type Service struct {
	server       *zeroconf.Server
	cfg          *config.Instance
	cancel       context.CancelFunc
	transport    string
	instanceName string
	stopped      bool
	mu           syncutil.Mutex
}

// New creates the advertiser. transport names the configured pod link and
// is published in the TXT record.
func New(cfg *config.Instance, transport string) *Service {
	return &Service{cfg: cfg, transport: transport}
}

// Start registers the service. It only fails for configuration problems;
// network failures switch to background retries.
func (s *Service) Start() error {
	if !s.cfg.DiscoveryEnabled() {
		log.Info().Msg("mDNS discovery disabled by configuration")
		return nil
	}

	s.instanceName = s.resolveInstanceName()
	if s.register() {
		return nil
	}

	log.Info().
		Dur("retryInterval", retryInterval).
		Msg("mDNS registration failed, retrying in background")

	ctx, cancel := context.WithTimeout(context.Background(), maxRetryDuration)
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()

	go s.retry(ctx)
	return nil
}

func (s *Service) txtRecords() []string {
	return []string{
		"id=" + s.cfg.DeviceID(),
		"version=" + config.AppVersion,
		"transport=" + s.transport,
		"path=/api",
	}
}

func (s *Service) register() bool {
	ifaces, err := usableInterfaces()
	if err != nil {
		log.Debug().Err(err).Msg("failed to list network interfaces")
		return false
	}
	if len(ifaces) == 0 {
		log.Debug().Msg("no usable network interfaces for mDNS")
		return false
	}

	port := s.cfg.APIPort()
	server, err := zeroconf.Register(s.instanceName, ServiceType, "local.", port, s.txtRecords(), ifaces)
	if err != nil {
		log.Debug().Err(err).Msg("mDNS registration attempt failed")
		return false
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		server.Shutdown()
		return false
	}
	s.server = server
	s.mu.Unlock()

	log.Info().
		Str("instance", s.instanceName).
		Int("port", port).
		Str("type", ServiceType).
		Msg("mDNS advertising started")
	return true
}

func (s *Service) retry(ctx context.Context) {
	ticker := time.NewTicker(retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.register() {
				return
			}
		case <-ctx.Done():
			log.Warn().Msg("giving up on mDNS registration, discovery unavailable")
			return
		}
	}
}

// Stop withdraws the advertisement. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.server != nil {
		s.server.Shutdown()
		s.server = nil
		log.Debug().Msg("mDNS advertising stopped")
	}
}

func (s *Service) InstanceName() string {
	return s.instanceName
}

// resolveInstanceName prefers the configured name, then the hostname, then
// a name derived from the device id.
func (s *Service) resolveInstanceName() string {
	if name := s.cfg.DiscoveryInstanceName(); name != "" {
		return name
	}
	hostname, err := os.Hostname()
	if err == nil && hostname != "" {
		return hostname
	}
	log.Warn().Err(err).Msg("no hostname, deriving mDNS name from device id")
	if id := s.cfg.DeviceID(); len(id) >= 8 {
		return config.AppName + "-" + id[:8]
	}
	return config.AppName
}
