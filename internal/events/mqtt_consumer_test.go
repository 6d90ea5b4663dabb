package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingClient struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
	err      error
}

func (c *recordingClient) Connect(context.Context) error { return nil }
func (c *recordingClient) IsConnected() bool             { return true }
func (c *recordingClient) Disconnect()                   {}

func (c *recordingClient) Publish(_ context.Context, topic string, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topics = append(c.topics, topic)
	c.payloads = append(c.payloads, payload)
	return c.err
}

func TestMQTTConsumerTopic(t *testing.T) {
	testCases := []struct {
		prefix string
		kind   Kind
		want   string
	}{
		{"naskban", KindQueueClaimed, "naskban/queue/claimed"},
		{"naskban/", KindLinkApproved, "naskban/links/approved"},
		{"", KindJobFinished, "jobs/finished"},
		{"naskban", KindBackupFinished, "naskban/backup/finished"},
	}

	for _, tc := range testCases {
		t.Run(string(tc.kind), func(t *testing.T) {
			c := NewMQTTConsumer(&recordingClient{}, tc.prefix, 0)
			assert.Equal(t, tc.want, c.Topic(tc.kind))
		})
	}
}

func TestMQTTConsumerPublishesJSON(t *testing.T) {
	client := &recordingClient{}
	c := NewMQTTConsumer(client, "naskban", 0)

	err := c.ProcessEvent(New(KindBookAIRevised, map[string]any{"book_id": 7}))
	require.NoError(t, err)

	require.Len(t, client.topics, 1)
	assert.Equal(t, "naskban/book/airevised", client.topics[0])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(client.payloads[0], &decoded))
	assert.Equal(t, "book.airevised", decoded["kind"])
	assert.InDelta(t, 7, decoded["data"].(map[string]any)["book_id"], 0)
}

func TestMQTTConsumerReturnsPublishError(t *testing.T) {
	client := &recordingClient{err: assert.AnError}
	c := NewMQTTConsumer(client, "naskban", 0)

	require.ErrorIs(t, c.ProcessEvent(New(KindQueueReset, nil)), assert.AnError)
}
