// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

// Package models holds the catalog rows shared between the database layer and
// the candidate sources, and the JSON envelope used by the HTTP API.
package models
