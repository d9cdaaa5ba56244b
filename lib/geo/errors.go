// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"errors"
	"fmt"
)

// ErrorCode classifies geolocation failures. The split that matters
// is fatal versus transient: fatal codes mean this device cannot
// share location at all until the user intervenes, transient codes
// self-recover on the next fix.
type ErrorCode int

const (
	// CodeUnavailable means the platform offers no geolocation
	// capability. Fatal.
	CodeUnavailable ErrorCode = iota + 1

	// CodePermissionDenied means the user refused or revoked the
	// location permission. Fatal.
	CodePermissionDenied

	// CodePositionUnavailable means the device temporarily cannot
	// produce a fix. Transient.
	CodePositionUnavailable

	// CodeTimeout means a fix did not arrive in time. Transient.
	CodeTimeout
)

// String returns the code name used in logs.
func (c ErrorCode) String() string {
	switch c {
	case CodeUnavailable:
		return "Unavailable"
	case CodePermissionDenied:
		return "PermissionDenied"
	case CodePositionUnavailable:
		return "PositionUnavailable"
	case CodeTimeout:
		return "Timeout"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Error is a classified geolocation failure.
//
//	var geoErr *geo.Error
//	if errors.As(err, &geoErr) && geoErr.Fatal() { ... }
type Error struct {
	Code    ErrorCode
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return "geolocation: " + e.Code.String()
	}
	return fmt.Sprintf("geolocation: %s: %s", e.Code, e.Message)
}

// Fatal reports whether the failure terminates location sharing for
// this device. Only Unavailable and PermissionDenied qualify; all
// other codes are expected to self-recover.
func (e *Error) Fatal() bool {
	return e.Code == CodeUnavailable || e.Code == CodePermissionDenied
}

// NewError builds a classified geolocation error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// IsFatal reports whether err is a fatal geolocation error. Errors
// that are not *Error at all are treated as transient: an unknown
// failure must not tear down every live share.
func IsFatal(err error) bool {
	var geoErr *Error
	if errors.As(err, &geoErr) {
		return geoErr.Fatal()
	}
	return false
}
