// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

// Package config loads Personafeed configuration with koanf.
//
// Sources are layered, later layers winning:
//
//  1. Built-in defaults (defaultConfig)
//  2. Optional YAML file (CONFIG_PATH, or config.yaml in the working directory,
//     or /etc/personafeed/config.yaml)
//  3. Environment variables, mapped explicitly through envTransformFunc
//
// Only mapped environment variables are read; anything else in the process
// environment is ignored.
//
// Example config.yaml:
//
//	server:
//	  port: 8470
//	database:
//	  path: /data/personafeed.duckdb
//	feed:
//	  dismiss_cooldown: 168h
//	  concurrency_policy: join
//	events:
//	  transport: nats
//	  embedded_server: true
package config
