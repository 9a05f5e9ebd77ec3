// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
)

const busHandlerName = "docchat-inbound"

// Bus decouples webhook acknowledgement from answering by queuing jobs on a
// watermill topic.
//
// # Description
//
// The in-memory bus uses a Go channel pub/sub and loses queued jobs on
// restart. The Redis bus uses a stream with a consumer group, so several
// replicas share the work and queued jobs survive restarts.
//
// Handlers always ack: a failed job is logged and dropped, never redelivered.
type Bus struct {
	topic      string
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     watermill.LoggerAdapter

	mu     sync.Mutex
	router *message.Router

	// shared is set when publisher and subscriber are the same pub/sub.
	shared bool
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus(topic string) *Bus {
	logger := watermill.NewSlogLogger(slog.Default())
	pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, logger)
	return &Bus{topic: topic, publisher: pubSub, subscriber: pubSub, logger: logger, shared: true}
}

// NewRedisBus creates a bus on a Redis stream shared by consumerGroup.
func NewRedisBus(client redis.UniversalClient, topic, consumerGroup string) (*Bus, error) {
	logger := watermill.NewSlogLogger(slog.Default())
	marshaller := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaller,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create redis stream publisher: %w", err)
	}
	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaller,
		ConsumerGroup: consumerGroup,
	}, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("create redis stream subscriber: %w", err)
	}
	return &Bus{topic: topic, publisher: pub, subscriber: sub, logger: logger}, nil
}

// Dispatch publishes job to the bus topic.
func (b *Bus) Dispatch(_ context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	msg := message.NewMessage(watermill.NewUUID(), payload)
	msg.Metadata.Set("msg_id", job.MessageID)
	if err := b.publisher.Publish(b.topic, msg); err != nil {
		return fmt.Errorf("publish job: %w", err)
	}
	return nil
}

// Run consumes jobs with handle until ctx is done. ready, if non-nil, is
// closed once the router is consuming.
func (b *Bus) Run(ctx context.Context, handle func(context.Context, Job) error, ready chan<- struct{}) error {
	router, err := message.NewRouter(message.RouterConfig{}, b.logger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}
	b.mu.Lock()
	b.router = router
	b.mu.Unlock()

	router.AddNoPublisherHandler(busHandlerName, b.topic, b.subscriber, func(msg *message.Message) error {
		var job Job
		if err := json.Unmarshal(msg.Payload, &job); err != nil {
			slog.Error("Dropping malformed job", "uuid", msg.UUID, "error", err)
			return nil
		}
		if err := handle(msg.Context(), job); err != nil {
			slog.Warn("Job finished with errors", "msg_id", job.MessageID, "error", err)
		}
		return nil
	})

	if ready != nil {
		go func() {
			select {
			case <-router.Running():
				close(ready)
			case <-ctx.Done():
			}
		}()
	}

	slog.Info("Starting inbound event bus", "topic", b.topic)
	return router.Run(ctx)
}

// Close releases the publisher and subscriber.
func (b *Bus) Close() error {
	var firstErr error
	b.mu.Lock()
	router := b.router
	b.mu.Unlock()
	if router != nil {
		if err := router.Close(); err != nil {
			firstErr = err
		}
	}
	if err := b.publisher.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if !b.shared {
		if err := b.subscriber.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Dispatcher = (*Bus)(nil)
