package main

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

var errNilPublishResult = errors.New("pubsub returned no publish result")

// gcpPublisher adapts *pubsub.Publisher to the publisher interface so tests
// can swap in fakes.
type gcpPublisher struct {
	p *gcppubsub.Publisher
}

func newGCPPublisher(p *gcppubsub.Publisher) publisher {
	if p == nil {
		return nil
	}
	return gcpPublisher{p: p}
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return gcpResult{r: g.p.Publish(ctx, msg)}
}

type gcpResult struct {
	r *gcppubsub.PublishResult
}

// Get blocks until the broker acks and returns the server message id.
func (g gcpResult) Get(ctx context.Context) (string, error) {
	if g.r == nil {
		return "", errNilPublishResult
	}
	return g.r.Get(ctx)
}
