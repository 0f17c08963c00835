package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/scdx/internal/publisher"
)

type notice struct {
	Domain  string `json:"domain"`
	Records int64  `json:"records"`
}

func TestPublisherEncodesLikePubSub(t *testing.T) {
	t.Parallel()

	pub := New()
	_, ok := pub.Last()
	require.False(t, ok)

	id, err := pub.Publish(context.Background(), "scdx-runs", notice{Domain: "example.com", Records: 2})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)

	msg, ok := pub.Last()
	require.True(t, ok)
	assert.Equal(t, "scdx-runs", msg.Topic)
	assert.JSONEq(t, `{"domain":"example.com","records":2}`, string(msg.Data))
	assert.Equal(t, publisher.ContentTypeJSON, msg.Attributes["content-type"])

	var got notice
	require.NoError(t, msg.Decode(&got))
	assert.Equal(t, notice{Domain: "example.com", Records: 2}, got)
}

func TestPublisherKeepsOrderAndCopies(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "a", notice{Records: 1})
	require.NoError(t, err)
	id, err := pub.Publish(context.Background(), "b", notice{Records: 2})
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].Topic)
	assert.Equal(t, "b", msgs[1].Topic)

	msgs[0].Topic = "modified"
	assert.Equal(t, "a", pub.Messages()[0].Topic)
}

func TestPublisherRejectsBadInput(t *testing.T) {
	t.Parallel()

	pub := New()
	_, err := pub.Publish(context.Background(), "", notice{})
	require.ErrorContains(t, err, "topic is required")

	_, err = pub.Publish(context.Background(), "a", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
	assert.Empty(t, pub.Messages())
}
