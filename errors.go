// errors.go: structured error types for cdrc configuration and preconditions
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package cdrc

import (
	goerrors "errors"

	"github.com/agilira/go-errors"
)

// Error codes for cdrc. Spec 7 splits failures into transient contention and
// observed-expired targets (both returned by value, never as errors) and
// precondition violations. The only precondition violation this module
// defines — registering more participants than configured — is raised as a
// panic at the smr/epoch or smr/hp call site rather than as one of these
// typed errors: those packages are imported by this one to build backends,
// so they cannot construct or return a root-package error type without an
// import cycle.
const (
	// Configuration errors
	ErrCodeInvalidMaxThreads     errors.ErrorCode = "CDRC_INVALID_MAX_THREADS"
	ErrCodeInvalidEpochFrequency errors.ErrorCode = "CDRC_INVALID_EPOCH_FREQUENCY"
	ErrCodeInvalidScanThreshold  errors.ErrorCode = "CDRC_INVALID_SCAN_THRESHOLD"
	ErrCodeUnknownBackend        errors.ErrorCode = "CDRC_UNKNOWN_BACKEND"
)

const (
	msgInvalidMaxThreads = "invalid max threads: must be greater than 0"
	msgUnknownBackend    = "unknown backend kind"
)

// NewErrInvalidMaxThreads creates an error for a non-positive MaxThreads.
func NewErrInvalidMaxThreads(value int) error {
	return errors.NewWithContext(ErrCodeInvalidMaxThreads, msgInvalidMaxThreads, map[string]interface{}{
		"provided_value":   value,
		"minimum_required": 1,
	})
}

// NewErrUnknownBackend creates an error for an unrecognized BackendKind.
func NewErrUnknownBackend(kind BackendKind) error {
	return errors.NewWithField(ErrCodeUnknownBackend, msgUnknownBackend, "backend_kind", int(kind))
}

// GetErrorCode extracts the error code carried by an error returned from
// this package, or "" if err does not carry one.
func GetErrorCode(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}
	var coder errors.ErrorCoder
	if goerrors.As(err, &coder) {
		return coder.ErrorCode()
	}
	return ""
}

// IsConfigError reports whether err is one of the Config.Validate failure
// modes (an invalid field value or an unrecognized backend kind).
func IsConfigError(err error) bool {
	return errors.HasCode(err, ErrCodeInvalidMaxThreads) ||
		errors.HasCode(err, ErrCodeInvalidEpochFrequency) ||
		errors.HasCode(err, ErrCodeInvalidScanThreshold) ||
		errors.HasCode(err, ErrCodeUnknownBackend)
}
