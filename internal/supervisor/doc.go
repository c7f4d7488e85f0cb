// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

/*
Package supervisor runs the long-lived services of personafeed under a
suture v4 supervisor tree.

# Layout

	RootSupervisor ("personafeed")
	├── DataSupervisor ("data-layer")
	│   ├── OutboxRetryLoop
	│   └── JanitorService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── WebSocketHubService
	│   └── InteractionConsumer (when events are enabled)
	├── FeedSupervisor ("feed-layer")
	│   └── RefreshService (when refresh is enabled)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Each layer counts failures on its own, so a consumer that keeps failing
against an unreachable NATS server backs off without taking the API down.

# Usage

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{})
	if err != nil {
	    return err
	}
	tree.AddDataService(retryLoop)
	tree.AddMessagingService(services.NewWebSocketHubService(hub))
	tree.AddAPIService(services.NewHTTPServerService(srv, cfg.Server.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)

Services return ctx.Err() on shutdown. Returning suture.ErrDoNotRestart
stops a service for good.

Lifecycle events (start, failure, backoff, restart) are logged through
sutureslog onto the slog bridge of the zerolog logger.
*/
package supervisor
