// Copyright 2026 The Lodestar Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the location-sharing subsystem configuration.
//
// Configuration comes from a single YAML file named by either the
// LODESTAR_CONFIG environment variable or an explicit path (the
// --config flag of the consuming command). There are no fallback
// locations and no automatic discovery — deterministic, auditable
// configuration with no hidden overrides.
//
// All durations parse Go syntax ("30s", "5m"). Zero fields keep the
// compiled-in defaults from [Default].
package config
