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

// Package validation checks API request parameters with go-playground
// validator plus PodLink specific tags.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/podlink/podlink/pkg/telemetry"
)

var (
	ErrMissingParams = errors.New("missing params")
	ErrInvalidParams = errors.New("invalid params")
)

type Validator struct {
	validate *validator.Validate
}

func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("channel", validateChannel)
	return &Validator{validate: v}
}

var DefaultValidator = NewValidator()

// Validate returns an *Error listing every failed field.
func (v *Validator) Validate(params any) error {
	if err := v.validate.Struct(params); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return NewError(verrs)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateAndUnmarshal decodes params into dest and validates it.
func ValidateAndUnmarshal[T any](params json.RawMessage, dest *T) error {
	if len(params) == 0 {
		return ErrMissingParams
	}
	if err := json.Unmarshal(params, dest); err != nil {
		return ErrInvalidParams
	}
	return DefaultValidator.Validate(dest)
}

// ValidateOptional is ValidateAndUnmarshal for methods whose params may be
// left out entirely.
func ValidateOptional[T any](params json.RawMessage, dest *T) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	return ValidateAndUnmarshal(params, dest)
}

// validateChannel accepts the names of history channels.
func validateChannel(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	return val == "" || telemetry.ValidChannel(val)
}
