// Package pubsub publishes search summaries to Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	pubsub "cloud.google.com/go/pubsub/v2"
	"go.opentelemetry.io/otel"
)

// Publisher wraps a Pub/Sub topic publisher. The topic is fixed when the
// client publisher is created, so the topic argument to Publish is only
// recorded as a message attribute.
type Publisher struct {
	publisher *pubsub.Publisher
	attrs     map[string]string
}

// New creates a Publisher for the provided topic publisher. attrs are copied
// onto every message.
func New(publisher *pubsub.Publisher, attrs map[string]string) *Publisher {
	copied := make(map[string]string, len(attrs))
	for k, v := range attrs {
		copied[k] = v
	}
	return &Publisher{publisher: publisher, attrs: copied}
}

// Publish marshals the payload to JSON and publishes it with trace context
// injected into the attributes.
func (p *Publisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	if p.publisher == nil {
		return "", errors.New("pubsub publisher is not configured")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	msg := &pubsub.Message{Data: data, Attributes: p.attributes(topic)}
	otel.GetTextMapPropagator().Inject(ctx, &pubsubCarrier{attrs: msg.Attributes})

	result := p.publisher.Publish(ctx, msg)
	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish message: %w", err)
	}
	return id, nil
}

func (p *Publisher) attributes(topic string) map[string]string {
	attrs := make(map[string]string, len(p.attrs)+3)
	for k, v := range p.attrs {
		attrs[k] = v
	}
	attrs["content-type"] = "application/json"
	if topic != "" {
		attrs["event"] = topic
	}
	return attrs
}

// Close flushes pending messages and stops the background publisher goroutines.
func (p *Publisher) Close() error {
	if p.publisher != nil {
		p.publisher.Stop()
	}
	return nil
}

// pubsubCarrier implements propagation.TextMapCarrier for Pub/Sub attributes.
type pubsubCarrier struct {
	attrs map[string]string
}

func (c *pubsubCarrier) Get(key string) string {
	return c.attrs[key]
}

func (c *pubsubCarrier) Set(key, value string) {
	c.attrs[key] = value
}

func (c *pubsubCarrier) Keys() []string {
	keys := make([]string, 0, len(c.attrs))
	for k := range c.attrs {
		keys = append(keys, k)
	}
	return keys
}
