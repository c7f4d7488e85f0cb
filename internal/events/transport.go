// Personafeed - Multi-Source Persona Feed Ranking Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/personafeed

package events

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Transport bundles the Watermill publisher and subscriber of one bus, plus
// the embedded server when one was started.
type Transport struct {
	Publisher  message.Publisher
	Subscriber message.Subscriber

	kind   string
	server *EmbeddedServer
	logger zerolog.Logger
}

// NewTransport builds the transport selected by cfg.Transport.
//
//nolint:gocritic // hugeParam: cfg passed by value for immutability
func NewTransport(ctx context.Context, cfg Config, logger zerolog.Logger) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	wmLogger := NewLoggerAdapter(logger.With().Str("component", "watermill").Logger())

	if cfg.Transport == TransportGoChannel {
		ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, wmLogger)
		return &Transport{Publisher: ch, Subscriber: ch, kind: TransportGoChannel, logger: logger}, nil
	}
	return newNATSTransport(ctx, cfg, wmLogger, logger)
}

//nolint:gocritic // hugeParam: cfg passed by value for immutability
func newNATSTransport(ctx context.Context, cfg Config, wmLogger watermill.LoggerAdapter, logger zerolog.Logger) (*Transport, error) {
	t := &Transport{kind: TransportNATS, logger: logger}

	url := cfg.NATSURL
	if cfg.EmbeddedServer {
		srv, err := NewEmbeddedServer(cfg)
		if err != nil {
			return nil, err
		}
		t.server = srv
		url = srv.ClientURL()
		logger.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	if err := ensureStreamAt(ctx, url, cfg); err != nil {
		t.shutdownServer()
		return nil, err
	}

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
		URL:         url,
		NatsOptions: natsOpts,
		Marshaler:   &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			TrackMsgId:    true,
			PublishOptions: []natsgo.PubOpt{
				natsgo.RetryAttempts(3),
				natsgo.RetryWait(100 * time.Millisecond),
			},
		},
	}, wmLogger)
	if err != nil {
		t.shutdownServer()
		return nil, fmt.Errorf("create watermill publisher: %w", err)
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              url,
		QueueGroupPrefix: "personafeed",
		SubscribersCount: 1,
		AckWaitTimeout:   30 * time.Second,
		CloseTimeout:     30 * time.Second,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision: false,
			SubscribeOptions: []natsgo.SubOpt{
				natsgo.BindStream(cfg.StreamName),
				natsgo.MaxDeliver(10),
				natsgo.AckWait(30 * time.Second),
				natsgo.DeliverNew(),
			},
			DurablePrefix: "personafeed",
		},
	}, wmLogger)
	if err != nil {
		_ = pub.Close()
		t.shutdownServer()
		return nil, fmt.Errorf("create watermill subscriber: %w", err)
	}

	t.Publisher = pub
	t.Subscriber = sub
	return t, nil
}

// Kind returns the transport name.
func (t *Transport) Kind() string {
	return t.kind
}

// Close closes the subscriber, the publisher and the embedded server. For
// gochannel the publisher and subscriber are the same object.
func (t *Transport) Close(ctx context.Context) error {
	var errs []error
	if t.Subscriber != nil {
		if err := t.Subscriber.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close subscriber: %w", err))
		}
	}
	if t.Publisher != nil && t.kind != TransportGoChannel {
		if err := t.Publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	if t.server != nil {
		if err := t.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown NATS server: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (t *Transport) shutdownServer() {
	if t.server == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := t.server.Shutdown(ctx); err != nil {
		t.logger.Warn().Err(err).Msg("Embedded NATS server shutdown failed")
	}
}
