package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/finevents/apiserver/config"
)

// Channels the service publishes to.
const (
	ChannelUserRegistered = "auth.user_registered"
	ChannelEventCreated   = "events.created"
	ChannelEventUpdated   = "events.updated"
	ChannelEventDeleted   = "events.deleted"
)

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Close() error
}

// Notification is the JSON envelope written to every channel.
type Notification struct {
	Channel    string    `json:"channel"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	if backend == nil {
		backend = noopBackend{}
	}
	return &MQ{backend: backend}
}

// Open selects the backend named in cfg. "none" or an empty backend
// produces an MQ that accepts and drops every message.
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch cfg.Backend {
	case "", "none":
		return New(noopBackend{}), nil
	case "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		return New(client), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("pubsub: %w", err)
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON wraps data in a Notification and publishes it.
func (m *MQ) PublishJSON(ctx context.Context, channel string, data any) error {
	body, err := json.Marshal(Notification{
		Channel:    channel,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = m.backend.Publish(ctx, channel, body, map[string]string{"content-type": "application/json"})
	return err
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}

type noopBackend struct{}

func (noopBackend) Publish(context.Context, string, []byte, map[string]string) (string, error) {
	return "", nil
}

func (noopBackend) Close() error { return nil }
