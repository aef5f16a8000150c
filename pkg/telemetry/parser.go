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

package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/podlink/podlink/pkg/eventlog"
)

var (
	ErrParse              = errors.New("JSON parse error")
	ErrExtraction         = errors.New("sensor data extraction error")
	ErrMalformedRelayLine = errors.New("malformed relay state line")
)

const (
	relayMarker       = "STATE:"
	maxExcerptLength  = 100
	tempArrayMinItems = 2
	vectorItems       = 3
)

// Excerpt caps a raw line for log messages without splitting a rune.
func Excerpt(line string) string {
	if len(line) <= maxExcerptLength {
		return line
	}
	end := maxExcerptLength
	for end > 0 && !utf8.RuneStart(line[end]) {
		end--
	}
	return line[:end]
}

// Parser turns controller lines into updates. Failures go to the event log
// and never reach the caller.
type Parser struct {
	log eventlog.Recorder
}

func NewParser(rec eventlog.Recorder) *Parser {
	return &Parser{log: rec}
}

// ParseJSON returns nil without logging when the line is not an object.
func (p *Parser) ParseJSON(line string) map[string]json.RawMessage {
	if !strings.HasPrefix(line, "{") {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(line), &obj); err != nil {
		p.log.RecordKind(
			eventlog.KindParse,
			fmt.Sprintf("%s: %v - Line: %s", ErrParse, err, Excerpt(line)),
			eventlog.SeverityError,
		)
		return nil
	}
	return obj
}

// ParseRelayLine reads a "STATE:a,b,c,d" line. It returns nil and no error
// when the marker is absent, and ErrMalformedRelayLine when the token count
// is not four.
func ParseRelayLine(line string) (*RelayState, error) {
	_, rest, found := strings.Cut(line, relayMarker)
	if !found {
		return nil, nil
	}
	tokens := strings.Split(strings.TrimSpace(rest), ",")
	if len(tokens) != RelayCount {
		return nil, fmt.Errorf("%w: got %d tokens", ErrMalformedRelayLine, len(tokens))
	}
	return &RelayState{
		Relay1: strings.TrimSpace(tokens[0]) == "1",
		Relay2: strings.TrimSpace(tokens[1]) == "1",
		Relay3: strings.TrimSpace(tokens[2]) == "1",
		Relay4: strings.TrimSpace(tokens[3]) == "1",
	}, nil
}

// RelayLine is ParseRelayLine with malformed lines logged as warnings.
func (p *Parser) RelayLine(line string) *RelayState {
	state, err := ParseRelayLine(line)
	if err != nil {
		p.log.RecordKind(
			eventlog.KindParse,
			fmt.Sprintf("Ignored relay state line (%v): %s", err, Excerpt(line)),
			eventlog.SeverityWarning,
		)
		return nil
	}
	return state
}

// Extract builds a partial update from a decoded object. Any shape error
// discards the whole update.
func (p *Parser) Extract(raw map[string]json.RawMessage) SensorUpdate {
	u, err := extract(fields(raw))
	if err != nil {
		p.log.RecordKind(
			eventlog.KindExtraction,
			fmt.Sprintf("Sensor data extraction error: %v", err),
			eventlog.SeverityError,
		)
		return SensorUpdate{}
	}
	return u
}

// ParseLine runs both wire shapes over one line.
func (p *Parser) ParseLine(line string) (SensorUpdate, *RelayState) {
	var update SensorUpdate
	if obj := p.ParseJSON(line); obj != nil {
		update = p.Extract(obj)
	}
	return update, p.RelayLine(line)
}

type fields map[string]json.RawMessage

func (f fields) raw(key string) (json.RawMessage, bool) {
	v, ok := f[key]
	if !ok || string(v) == "null" {
		return nil, false
	}
	return v, true
}

func (f fields) has(key string) bool {
	_, ok := f.raw(key)
	return ok
}

func (f fields) float(key string) (*float64, error) {
	raw, ok := f.raw(key)
	if !ok {
		return nil, nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", ErrExtraction, key, err)
	}
	return &v, nil
}

func (f fields) int(key string) (*int64, error) {
	v, err := f.float(key)
	if v == nil || err != nil {
		return nil, err
	}
	if *v < math.MinInt64 || *v >= math.MaxInt64 {
		return nil, fmt.Errorf("%w: field %q: %g out of integer range", ErrExtraction, key, *v)
	}
	n := int64(*v)
	return &n, nil
}

// floatOr returns the first present key's value.
func (f fields) floatOr(keys ...string) (*float64, error) {
	for _, k := range keys {
		if f.has(k) {
			return f.float(k)
		}
	}
	return nil, nil
}

func (f fields) intOr(keys ...string) (*int64, error) {
	for _, k := range keys {
		if f.has(k) {
			return f.int(k)
		}
	}
	return nil, nil
}

// text accepts strings and numbers.
func (f fields) text(keys ...string) (*string, error) {
	for _, key := range keys {
		raw, ok := f.raw(key)
		if !ok {
			continue
		}
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrExtraction, key, err)
		}
		var s string
		switch t := v.(type) {
		case string:
			s = t
		case float64:
			s = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(t)
		default:
			return nil, fmt.Errorf("%w: field %q: unsupported type %T", ErrExtraction, key, v)
		}
		return &s, nil
	}
	return nil, nil
}

// array decodes a numeric array. A present value that is not an array is
// treated as absent.
func (f fields) array(key string) ([]float64, error) {
	raw, ok := f.raw(key)
	if !ok || !strings.HasPrefix(strings.TrimSpace(string(raw)), "[") {
		return nil, nil
	}
	var v []float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", ErrExtraction, key, err)
	}
	return v, nil
}

// flat reads a legacy x/y/z triple spread over three keys.
func (f fields) flat(keys [vectorItems]string) ([]float64, error) {
	if !f.has(keys[0]) && !f.has(keys[1]) && !f.has(keys[2]) {
		return nil, nil
	}
	out := make([]float64, vectorItems)
	for i, k := range keys {
		v, err := f.float(k)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out[i] = *v
		}
	}
	return out, nil
}

func (f fields) vector(key string, legacy [vectorItems]string) ([]float64, error) {
	v, err := f.array(key)
	if err != nil {
		return nil, err
	}
	if len(v) >= vectorItems {
		return v[:vectorItems], nil
	}
	if f.has(key) {
		return nil, nil
	}
	return f.flat(legacy)
}

func extract(f fields) (SensorUpdate, error) {
	var u SensorUpdate
	var err error

	if u.Temperatures, err = extractTemperatures(f); err != nil {
		return SensorUpdate{}, err
	}

	orient, err := f.vector("orientation", [vectorItems]string{"orientX", "orientY", "orientZ"})
	if err != nil {
		return SensorUpdate{}, err
	}
	if orient != nil {
		u.Orientation = &Vector3{X: orient[0], Y: orient[1], Z: orient[2]}
	}

	accel, err := f.vector("acceleration", [vectorItems]string{"accelX", "accelY", "accelZ"})
	if err != nil {
		return SensorUpdate{}, err
	}
	if accel != nil {
		x, y, z := accel[0], accel[1], accel[2]
		u.Acceleration = &Acceleration{X: x, Y: y, Z: z, Magnitude: magnitude(x, y, z)}
	}

	calib, err := f.vector("calibration", [vectorItems]string{"gyro", "sys", "mag"})
	if err != nil {
		return SensorUpdate{}, err
	}
	if calib != nil {
		u.Calibration = &Calibration{Gyro: int(calib[0]), Sys: int(calib[1]), Magneto: int(calib[2])}
	}

	floats := []struct {
		dst  **float64
		keys []string
	}{
		{&u.GapHeight, []string{"gap_height"}},
		{&u.GapHeight2, []string{"gap_height2"}},
		{&u.Voltage1, []string{"voltage1", "voltage"}},
		{&u.Voltage2, []string{"voltage2"}},
		{&u.Voltage3, []string{"voltage3"}},
		{&u.Pressure, []string{"pressure"}},
	}
	for _, fl := range floats {
		if *fl.dst, err = f.floatOr(fl.keys...); err != nil {
			return SensorUpdate{}, err
		}
	}

	ints := []struct {
		dst  **int64
		keys []string
	}{
		{&u.EmergencyReasonMask, []string{"emergency_reason_mask"}},
		{&u.HeartbeatCount, []string{"heartbeat_count"}},
		{&u.LastHeartbeatMs, []string{"last_heartbeat_ms"}},
		{&u.SafetyHeartbeatCount, []string{"safety_heartbeat_count"}},
		{&u.SafetyHBLastTime, []string{"safety_hb_last_time"}},
		{&u.DeviceTimeMs, []string{"timestamp", "time"}},
	}
	for _, in := range ints {
		if *in.dst, err = f.intOr(in.keys...); err != nil {
			return SensorUpdate{}, err
		}
	}

	if u.CurrentState, err = f.text("current_state", "mode"); err != nil {
		return SensorUpdate{}, err
	}

	if u.Health, err = extractHealth(f); err != nil {
		return SensorUpdate{}, err
	}

	if u.Relays, err = extractRelays(f); err != nil {
		return SensorUpdate{}, err
	}

	return u, nil
}

// extractTemperatures consults one shape only, in priority order: the
// temp_sensors array, then temp1..temp4, then the object_temp scalar.
func extractTemperatures(f fields) (*[TemperatureChannels]float64, error) {
	var temps [TemperatureChannels]float64

	arr, err := f.array("temp_sensors")
	if err != nil {
		return nil, err
	}
	if len(arr) >= tempArrayMinItems {
		copy(temps[:], arr)
		return &temps, nil
	}

	named := [TemperatureChannels]string{"temp1", "temp2", "temp3", "temp4"}
	found := false
	for i, k := range named {
		v, err := f.float(k)
		if err != nil {
			return nil, err
		}
		if v != nil {
			temps[i] = *v
			found = true
		}
	}
	if found {
		return &temps, nil
	}

	single, err := f.float("object_temp")
	if err != nil {
		return nil, err
	}
	if single != nil {
		temps[0] = *single
		return &temps, nil
	}
	return nil, nil
}

var legacyHealthKeys = map[string]string{
	"voltage_health": HealthVoltage1,
	"temp_health":    HealthTemp1,
}

func extractHealth(f fields) (map[string]int, error) {
	var out map[string]int
	set := func(key string, v int64) {
		if out == nil {
			out = make(map[string]int)
		}
		out[key] = int(v)
	}

	for key := range f {
		if !strings.HasSuffix(key, "_health") {
			continue
		}
		if _, legacy := legacyHealthKeys[key]; legacy {
			continue
		}
		v, err := f.int(key)
		if err != nil {
			return nil, err
		}
		if v != nil {
			set(key, *v)
		}
	}

	for legacy, canonical := range legacyHealthKeys {
		if f.has(canonical) {
			continue
		}
		v, err := f.int(legacy)
		if err != nil {
			return nil, err
		}
		if v != nil {
			set(canonical, *v)
		}
	}
	return out, nil
}

func extractRelays(f fields) (*RelayUpdate, error) {
	raw, ok := f.raw("relayStates")
	if !ok {
		return nil, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: field %q: %w", ErrExtraction, "relayStates", err)
	}

	var u RelayUpdate
	targets := [RelayCount]**bool{&u.Relay1, &u.Relay2, &u.Relay3, &u.Relay4}
	found := false
	for i, dst := range targets {
		key := "relay" + strconv.Itoa(i+1)
		v, ok := obj[key]
		if !ok || string(v) == "null" {
			continue
		}
		on, err := relayBool(v)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %w", ErrExtraction, "relayStates."+key, err)
		}
		*dst = &on
		found = true
	}
	if !found {
		return nil, nil
	}
	return &u, nil
}

func relayBool(raw json.RawMessage) (bool, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, err
	}
	switch t := v.(type) {
	case bool:
		return t, nil
	case float64:
		return t == 1, nil
	case string:
		return t == "1", nil
	default:
		return false, fmt.Errorf("unsupported type %T", v)
	}
}
