// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

// Package logging provides the process-wide zerolog logger for Personafeed.
//
// The logger is configured once at startup from the logging section of the
// application config and is then shared by every component. Components
// derive child loggers that carry a "component" field:
//
//	engineLog := logging.WithComponent("feed-engine")
//	engineLog.Info().Str("user_id", id).Msg("Feed generated")
//
// Request-scoped values (request ID, correlation ID) travel in the
// context and are attached by Ctx:
//
//	logging.Ctx(r.Context()).Warn().Err(err).Msg("Preferences rejected")
//
// The supervisor tree logs through log/slog; NewSlogLogger bridges those
// records into the same zerolog output.
package logging
