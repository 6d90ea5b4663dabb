package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rmuseum/naskban-go/internal/errors"
	"github.com/rmuseum/naskban-go/internal/mqtt"
)

// MQTTConsumer publishes every event as JSON to {prefix}/{kind}, with the
// dots of the kind turned into topic levels.
type MQTTConsumer struct {
	client  mqtt.Client
	prefix  string
	timeout time.Duration
}

// NewMQTTConsumer creates a consumer publishing through client.
func NewMQTTConsumer(client mqtt.Client, topicPrefix string, timeout time.Duration) *MQTTConsumer {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MQTTConsumer{
		client:  client,
		prefix:  strings.TrimSuffix(topicPrefix, "/"),
		timeout: timeout,
	}
}

// Name implements Consumer.
func (c *MQTTConsumer) Name() string { return "mqtt" }

// Topic returns the topic an event of the given kind is published to.
func (c *MQTTConsumer) Topic(kind Kind) string {
	topic := strings.ReplaceAll(string(kind), ".", "/")
	if c.prefix == "" {
		return topic
	}
	return c.prefix + "/" + topic
}

// ProcessEvent implements Consumer.
func (c *MQTTConsumer) ProcessEvent(event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.New(err).
			Component("events").
			Category(errors.CategoryMQTTPublish).
			Context("kind", string(event.Kind)).
			Build()
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.client.Publish(ctx, c.Topic(event.Kind), payload)
}
