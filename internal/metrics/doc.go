// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

// Package metrics defines the Prometheus instruments exported on /metrics.
//
// Instruments are registered on the default registry through promauto.
// Callers use the Record* helpers rather than touching the vectors, so that
// label sets stay consistent across packages.
package metrics
