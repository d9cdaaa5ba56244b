// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

package geo

import (
	"context"
	"strconv"
	"time"
)

// Position is one geolocation sample from the device.
type Position struct {
	// Latitude and Longitude are in decimal degrees.
	Latitude  float64
	Longitude float64

	// Accuracy is the 68% confidence radius in meters. Zero means
	// the device did not report accuracy.
	Accuracy float64

	// Timestamp is when the device produced the fix.
	Timestamp time.Time
}

// URI renders the position as an RFC 5870 geo URI with the uncertainty
// parameter, e.g. "geo:54.001927,-8.253491;u=1". This is the form the
// beacon location content carries on the wire.
func (p Position) URI() string {
	uri := "geo:" + strconv.FormatFloat(p.Latitude, 'f', -1, 64) +
		"," + strconv.FormatFloat(p.Longitude, 'f', -1, 64)
	if p.Accuracy > 0 {
		uri += ";u=" + strconv.FormatFloat(p.Accuracy, 'f', -1, 64)
	}
	return uri
}

// IsZero reports whether the position is the zero value (no fix).
func (p Position) IsZero() bool {
	return p == Position{}
}

// Locator is the device geolocation provider.
//
// Watch registers a continuous position watch. onPosition and onError
// are invoked from the provider's own goroutine as fixes and failures
// arrive. The returned stop function cancels the watch and is safe to
// call more than once. Watch itself returns an error when the device
// has no geolocation capability at all — callers must treat that the
// same as a fatal watch error.
//
// Current requests a single fix.
type Locator interface {
	Watch(onPosition func(Position), onError func(error)) (stop func(), err error)
	Current(ctx context.Context) (Position, error)
}
