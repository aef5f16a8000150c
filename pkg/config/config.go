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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/podlink/podlink/pkg/helpers/syncutil"
	"github.com/rs/zerolog/log"
)

const (
	SchemaVersion = 1
	CfgEnv        = "PODLINK_CFG"
)

type Values struct {
	Transport         Transport `toml:"transport"`
	History           History   `toml:"history"`
	ErrorLog          ErrorLog  `toml:"error_log"`
	Service           Service   `toml:"service,omitempty"`
	ErrorReportingDSN string    `toml:"error_reporting_dsn,omitempty"`
	ConfigSchema      int       `toml:"config_schema"`
	DebugLogging      bool      `toml:"debug_logging"`
	ErrorReporting    bool      `toml:"error_reporting"`
}

type History struct {
	MaxPoints     int `toml:"max_points" validate:"gt=0"`
	WindowSeconds int `toml:"window_seconds" validate:"gt=0"`
}

type ErrorLog struct {
	MaxEntries int `toml:"max_entries" validate:"gt=0"`
}

var BaseDefaults = Values{
	ConfigSchema: SchemaVersion,
	Transport: Transport{
		Kind:             TransportSerial,
		BaudRate:         DefaultBaudRate,
		ConnectTimeoutMs: DefaultConnectTimeoutMs,
		LineQueueSize:    DefaultLineQueueSize,
		ReplayIntervalMs: DefaultReplayIntervalMs,
	},
	History: History{
		MaxPoints:     120,
		WindowSeconds: 120,
	},
	ErrorLog: ErrorLog{
		MaxEntries: 1000,
	},
}

type Instance struct {
	cfgPath  string
	vals     Values
	defaults Values
	mu       syncutil.RWMutex
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// DefaultConfigDir is $XDG_CONFIG_HOME/podlink.
func DefaultConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

//nolint:gocritic // config struct copied for immutability
func NewConfig(configDir string, defaults Values) (*Instance, error) {
	cfgPath := os.Getenv(CfgEnv)
	log.Debug().Msgf("env config path: %s", cfgPath)

	if cfgPath == "" {
		cfgPath = filepath.Join(configDir, CfgFile)
	}

	cfg := Instance{
		cfgPath:  cfgPath,
		vals:     defaults,
		defaults: defaults,
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		log.Info().Msg("saving new default config to disk")

		err := os.MkdirAll(filepath.Dir(cfgPath), 0o750)
		if err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}

		err = cfg.Save()
		if err != nil {
			return nil, err
		}
	}

	err := cfg.Load()
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

// NewInMemory returns a config that is never read from or written to disk.
// Save is a no-op error for it.
//
//nolint:gocritic // config struct copied for immutability
func NewInMemory(vals Values) *Instance {
	return &Instance{vals: vals, defaults: vals}
}

func (c *Instance) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	data, err := os.ReadFile(c.cfgPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// unmarshal on top of the defaults so missing keys keep their values
	newVals := c.defaults
	err = toml.Unmarshal(data, &newVals)
	if err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if newVals.ConfigSchema != SchemaVersion {
		log.Error().Msgf(
			"schema version mismatch: got %d, expecting %d",
			newVals.ConfigSchema,
			SchemaVersion,
		)
		return errors.New("schema version mismatch")
	}

	if err := validate.Struct(&newVals); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	c.vals = newVals
	return nil
}

func (c *Instance) Save() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cfgPath == "" {
		return errors.New("config path not set")
	}

	c.vals.ConfigSchema = SchemaVersion

	if c.vals.Service.DeviceID == "" {
		newID := uuid.New().String()
		c.vals.Service.DeviceID = newID
		log.Info().Msgf("generated new device id: %s", newID)
	}

	data, err := toml.Marshal(&c.vals)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(c.cfgPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func (c *Instance) Path() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfgPath
}

func (c *Instance) DebugLogging() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.DebugLogging
}

func (c *Instance) SetDebugLogging(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vals.DebugLogging = enabled
}

// ErrorReporting returns whether remote error reporting is on and the DSN
// to report to. Reporting needs both.
func (c *Instance) ErrorReporting() (bool, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ErrorReporting && c.vals.ErrorReportingDSN != "", c.vals.ErrorReportingDSN
}

func (c *Instance) HistoryBounds() (maxPoints int, window time.Duration) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.History.MaxPoints, time.Duration(c.vals.History.WindowSeconds) * time.Second
}

func (c *Instance) ErrorLogMaxEntries() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.vals.ErrorLog.MaxEntries
}
