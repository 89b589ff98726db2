package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

func (r *Relay) gcpPublisherFor(topic string) topicPublisher {
	p := r.pubsub.Publisher(topic)
	if p == nil {
		return nil
	}
	return gcpPublisher{p}
}

// gcpPublisher narrows *pubsub.Publisher to the relay's topicPublisher.
type gcpPublisher struct {
	publisher *gcppubsub.Publisher
}

func (p gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{p.publisher.Publish(ctx, msg)}
}

type gcpResult struct {
	result *gcppubsub.PublishResult
}

func (r gcpResult) Get(ctx context.Context) (string, error) {
	if r.result == nil {
		return "", errors.New("publish result is nil")
	}
	return r.result.Get(ctx)
}
