package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupTestCache starts a Redis container and returns a cache bound to it.
func setupTestCache(t *testing.T, ttl time.Duration) *ChartCache {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	c, err := New(ctx, Options{Addr: fmt.Sprintf("%s:%s", host, port.Port()), TTL: ttl})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	return c
}

type payload struct {
	Labels []string  `json:"labels"`
	Values []float64 `json:"values"`
}

func TestChartCache_Key(t *testing.T) {
	c := NewWithClient(redis.NewClient(&redis.Options{}), Options{})
	assert.Equal(t, "sbl:chart:march:equity_curve", c.Key("march", "equity_curve"))

	c = NewWithClient(redis.NewClient(&redis.Options{}), Options{Prefix: "x:"})
	assert.Equal(t, "x:chart:march:win_loss", c.Key("march", "win_loss"))

	c = NewWithClient(redis.NewClient(&redis.Options{}), Options{})
	assert.Equal(t, "sbl:chart:march%3Ax:outcomes", c.Key("march:x", "outcomes"))
	assert.Equal(t, "sbl:chart:m%2A%3F%5B%5D:outcomes", c.Key("m*?[]", "outcomes"))
}

func TestChartCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := setupTestCache(t, time.Minute)

	var got payload
	hit, err := c.Get(ctx, "march", "equity_curve", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	want := payload{Labels: []string{"2024-03-01 12:00"}, Values: []float64{1000, 999.5}}
	require.NoError(t, c.Set(ctx, "march", "equity_curve", want))

	hit, err = c.Get(ctx, "march", "equity_curve", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)

	ttl, err := c.client.TTL(ctx, c.Key("march", "equity_curve")).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute, "unexpected ttl %v", ttl)
}

func TestChartCache_Invalidate(t *testing.T) {
	ctx := context.Background()
	c := setupTestCache(t, 0)

	require.NoError(t, c.Set(ctx, "march", "equity_curve", payload{}))
	require.NoError(t, c.Set(ctx, "march", "win_loss", payload{}))
	require.NoError(t, c.Set(ctx, "april", "win_loss", payload{}))

	n, err := c.Invalidate(ctx, "march")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var got payload
	hit, err := c.Get(ctx, "march", "win_loss", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	hit, err = c.Get(ctx, "april", "win_loss", &got)
	require.NoError(t, err)
	assert.True(t, hit, "other sessions must survive")

	n, err = c.Invalidate(ctx, "march")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestChartCache_Invalidate_SessionNamesAreLiteral(t *testing.T) {
	ctx := context.Background()
	c := setupTestCache(t, 0)

	for _, session := range []string{"march", "march:x", "mar*", "m?rch", "[m]arch"} {
		require.NoError(t, c.Set(ctx, session, "outcomes", payload{}))
	}

	n, err := c.Invalidate(ctx, "march")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = c.Invalidate(ctx, "mar*")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var got payload
	for _, session := range []string{"march:x", "m?rch", "[m]arch"} {
		hit, err := c.Get(ctx, session, "outcomes", &got)
		require.NoError(t, err)
		assert.True(t, hit, "session %q must survive", session)
	}
}
