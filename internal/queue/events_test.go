package queue

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSocialEvent_MapRoundTrip(t *testing.T) {
	event := NewRelationshipChangedEvent(1, 99, "following")

	values, err := event.ToMap()
	require.NoError(t, err)
	assert.Equal(t, EventRelationshipChanged, values["type"])

	parsed, err := ParseSocialEvent(values)
	require.NoError(t, err)
	assert.Equal(t, event, parsed)
}

func TestParseSocialEvent_Malformed(t *testing.T) {
	_, err := ParseSocialEvent(map[string]interface{}{"type": "x"})
	assert.Error(t, err)

	_, err = ParseSocialEvent(map[string]interface{}{"data": "{not json"})
	assert.Error(t, err)
}

func TestSocialEvent_String(t *testing.T) {
	s := NewViewRecordedEvent(5, 3).String()
	assert.True(t, strings.HasSuffix(s, "view_recorded entity=5 count=3"), s)

	s = NewRelationshipChangedEvent(1, 2, "not_following").String()
	assert.True(t, strings.HasSuffix(s, "relationship_changed source=1 target=2 state=not_following"), s)
}

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}
	opts.DB = 1

	client := redis.NewClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}

	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestPublishConsume(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()

	pub := NewPublisher(client, 1000)
	con := NewConsumer(client)

	require.NoError(t, con.EnsureGroup(ctx, StreamSocial, ConsumerGroupWatchers, "0"))
	// second call hits BUSYGROUP
	require.NoError(t, con.EnsureGroup(ctx, StreamSocial, ConsumerGroupWatchers, "0"))

	_, err := pub.PublishRelationshipChanged(ctx, 1, 99, "following")
	require.NoError(t, err)
	_, err = pub.PublishViewRecorded(ctx, 5, 1)
	require.NoError(t, err)

	msgs, err := con.Read(ctx, StreamSocial, ConsumerGroupWatchers, "test", 10, 100*time.Millisecond)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, EventRelationshipChanged, msgs[0].Event.Type)
	assert.Equal(t, int64(5), msgs[1].Event.EntityID)

	pending, err := con.Pending(ctx, StreamSocial, ConsumerGroupWatchers)
	require.NoError(t, err)
	assert.Equal(t, int64(2), pending)

	require.NoError(t, con.Ack(ctx, StreamSocial, ConsumerGroupWatchers, msgs[0].ID, msgs[1].ID))

	pending, err = con.Pending(ctx, StreamSocial, ConsumerGroupWatchers)
	require.NoError(t, err)
	assert.Zero(t, pending)
}
