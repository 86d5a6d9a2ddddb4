package mq

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/finevents/apiserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	channel string
	data    []byte
	attrs   map[string]string
	err     error
	closed  bool
}

func (b *recordingBackend) Publish(_ context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	b.channel, b.data, b.attrs = channel, data, attrs
	return "msg-1", b.err
}

func (b *recordingBackend) Close() error {
	b.closed = true
	return nil
}

func TestPublishJSONWrapsNotification(t *testing.T) {
	backend := &recordingBackend{}
	m := New(backend)

	err := m.PublishJSON(context.Background(), ChannelUserRegistered, map[string]string{"username": "alice"})
	require.NoError(t, err)

	assert.Equal(t, ChannelUserRegistered, backend.channel)
	assert.Equal(t, "application/json", backend.attrs["content-type"])

	var got struct {
		Channel string            `json:"channel"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(backend.data, &got))
	assert.Equal(t, ChannelUserRegistered, got.Channel)
	assert.Equal(t, "alice", got.Data["username"])

	require.NoError(t, m.Close())
	assert.True(t, backend.closed)
}

func TestPublishJSONPropagatesBackendError(t *testing.T) {
	m := New(&recordingBackend{err: errors.New("broker down")})

	err := m.PublishJSON(context.Background(), ChannelEventCreated, struct{}{})
	assert.EqualError(t, err, "broker down")
}

func TestOpenNoneDropsMessages(t *testing.T) {
	m, err := Open(context.Background(), config.MQConfig{Backend: "none"})
	require.NoError(t, err)

	assert.NoError(t, m.PublishJSON(context.Background(), ChannelEventDeleted, 1))
	assert.NoError(t, m.Close())
}

func TestOpenRejectsUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)
}

func TestOpenRabbitMQRequiresURL(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "rabbitmq"})
	assert.Error(t, err)
}

func TestOpenPubSubRequiresProject(t *testing.T) {
	_, err := Open(context.Background(), config.MQConfig{Backend: "pubsub"})
	assert.Error(t, err)
}
