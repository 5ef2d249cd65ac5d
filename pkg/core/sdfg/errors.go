// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package sdfg

import "github.com/pkg/errors"

// Error kinds surfaced by validation, transformations and library node expansion.
// Test for them with errors.Is: the returned errors wrap one of these with the details.
var (
	// ErrValidation is returned when a graph or a library node violates a structural contract.
	ErrValidation = errors.New("validation error")

	// ErrUnsupportedConfiguration is returned when a valid configuration is not supported by a given
	// implementation (rank too high, element type not supported by a backend, inconsistent batch sizes).
	// Another implementation may still be able to handle it.
	ErrUnsupportedConfiguration = errors.New("unsupported configuration")

	// ErrEnvironmentUnavailable is returned when the environment (library, toolchain) required by an
	// implementation is not available.
	ErrEnvironmentUnavailable = errors.New("environment unavailable")
)

// Validationf returns an error wrapping ErrValidation with the formatted message.
func Validationf(format string, args ...any) error {
	return errors.Wrapf(ErrValidation, format, args...)
}

// Unsupportedf returns an error wrapping ErrUnsupportedConfiguration with the formatted message.
func Unsupportedf(format string, args ...any) error {
	return errors.Wrapf(ErrUnsupportedConfiguration, format, args...)
}
