// Copyright 2024 The OracleCDC Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

package types

import "github.com/pkg/errors"

// This file collects the five error kinds from the error-handling
// design (spec.md §7) as typed wrappers around github.com/pkg/errors,
// following the teacher's LeaseBusyError / IsLeaseBusy idiom in
// internal/types/types.go: construct with the matching New*Error
// helper, recover the original kind (and its payload, if any) with the
// matching Is*Error helper and errors.As under the hood. None of these
// ever cross a goroutine boundary uncaught — see internal/util/stopper,
// whose Go() wrapper is the only place a worker's returned error is
// allowed to surface.

// ConfigurationError indicates bad JSON, an unknown field, an
// out-of-range value, missing grants, or an unreadable dictionary. It
// is always fatal and is surfaced before any redo processing begins.
type ConfigurationError struct {
	cause error
}

func (e *ConfigurationError) Error() string { return "configuration: " + e.cause.Error() }
func (e *ConfigurationError) Unwrap() error  { return e.cause }

// NewConfigurationError wraps err as a ConfigurationError.
func NewConfigurationError(err error) error {
	return &ConfigurationError{cause: errors.WithStack(err)}
}

// IsConfigurationError reports whether err is (or wraps) a
// ConfigurationError.
func IsConfigurationError(err error) (*ConfigurationError, bool) {
	var target *ConfigurationError
	return target, errors.As(err, &target)
}

// RuntimeError indicates allocation failure, an unexpected opcode in a
// record vector, a field out of bounds, a schema inconsistency, or an
// OCI-layer error. It aborts the offending worker, which in turn
// signals the rest of the process to shut down (via stopper.Context).
type RuntimeError struct {
	cause error
}

func (e *RuntimeError) Error() string { return "runtime: " + e.cause.Error() }
func (e *RuntimeError) Unwrap() error  { return e.cause }

// NewRuntimeError wraps err as a RuntimeError.
func NewRuntimeError(err error) error {
	return &RuntimeError{cause: errors.WithStack(err)}
}

// IsRuntimeError reports whether err is (or wraps) a RuntimeError.
func IsRuntimeError(err error) (*RuntimeError, bool) {
	var target *RuntimeError
	return target, errors.As(err, &target)
}

// RedoFormatError indicates a bad magic number, a bad endianness flag,
// a version mismatch, a resetlogs/activation mismatch, or an SCN
// mismatch with the redo header. It is fatal for the reader that
// encountered it.
type RedoFormatError struct {
	cause error
}

func (e *RedoFormatError) Error() string { return "redo format: " + e.cause.Error() }
func (e *RedoFormatError) Unwrap() error  { return e.cause }

// NewRedoFormatError wraps err as a RedoFormatError.
func NewRedoFormatError(err error) error {
	return &RedoFormatError{cause: errors.WithStack(err)}
}

// IsRedoFormatError reports whether err is (or wraps) a
// RedoFormatError.
func IsRedoFormatError(err error) (*RedoFormatError, bool) {
	var target *RedoFormatError
	return target, errors.As(err, &target)
}

// NetworkError indicates a sink disconnect or a short read/write. The
// writer returns to its listening state and re-sends its in-flight
// queue on reconnect; it never escalates to a process-wide shutdown on
// its own.
type NetworkError struct {
	cause error
}

func (e *NetworkError) Error() string { return "network: " + e.cause.Error() }
func (e *NetworkError) Unwrap() error  { return e.cause }

// NewNetworkError wraps err as a NetworkError.
func NewNetworkError(err error) error {
	return &NetworkError{cause: errors.WithStack(err)}
}

// IsNetworkError reports whether err is (or wraps) a NetworkError.
func IsNetworkError(err error) (*NetworkError, bool) {
	var target *NetworkError
	return target, errors.As(err, &target)
}

// TransientIOError indicates an empty block read from an online log,
// or a checksum mismatch still within tolerance. It triggers a delayed
// retry and must never propagate out of the reader.
type TransientIOError struct {
	cause error
}

func (e *TransientIOError) Error() string { return "transient io: " + e.cause.Error() }
func (e *TransientIOError) Unwrap() error  { return e.cause }

// NewTransientIOError wraps err as a TransientIOError.
func NewTransientIOError(err error) error {
	return &TransientIOError{cause: errors.WithStack(err)}
}

// IsTransientIOError reports whether err is (or wraps) a
// TransientIOError.
func IsTransientIOError(err error) (*TransientIOError, bool) {
	var target *TransientIOError
	return target, errors.As(err, &target)
}
