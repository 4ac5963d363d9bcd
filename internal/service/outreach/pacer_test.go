package outreach_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/playbook/outreach/internal/pkg/clock"
	"github.com/playbook/outreach/internal/service/outreach"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIntervalPacer(t *testing.T) {
	clk := clock.NewManual(start)
	p := outreach.NewIntervalPacer(time.Second, clk)

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Wait(context.Background()))
	}
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, clk.Sleeps())
	assert.Equal(t, start.Add(3*time.Second), clk.Now())
}

func TestIntervalPacer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := outreach.NewIntervalPacer(time.Second, clock.NewManual(start))
	assert.ErrorIs(t, p.Wait(ctx), context.Canceled)
}

func TestRedisPacer_CapsPerSecond(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clk := clock.NewManual(start)
	p := outreach.NewRedisPacer(client, "ses", 2, clk)
	ctx := context.Background()

	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	assert.Empty(t, clk.Sleeps(), "first two sends fit in the second")

	require.NoError(t, p.Wait(ctx))
	assert.Equal(t, []time.Duration{time.Second}, clk.Sleeps())
	assert.Equal(t, start.Add(time.Second), clk.Now())
}

func TestRedisPacer_SharedAcrossPacers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	clk := clock.NewManual(start)
	a := outreach.NewRedisPacer(client, "ses", 1, clk)
	b := outreach.NewRedisPacer(client, "ses", 1, clk)
	other := outreach.NewRedisPacer(client, "sparkpost", 1, clk)
	ctx := context.Background()

	require.NoError(t, a.Wait(ctx))
	require.NoError(t, other.Wait(ctx))
	assert.Empty(t, clk.Sleeps())

	require.NoError(t, b.Wait(ctx))
	assert.Len(t, clk.Sleeps(), 1)
}

func TestChain(t *testing.T) {
	clk := clock.NewManual(start)
	c := outreach.Chain{
		outreach.NewIntervalPacer(time.Second, clk),
		outreach.NewIntervalPacer(500*time.Millisecond, clk),
	}
	require.NoError(t, c.Wait(context.Background()))
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, clk.Sleeps())

	failing := outreach.Chain{&errPacer{failAt: 1}, outreach.NewIntervalPacer(time.Second, clk)}
	assert.Error(t, failing.Wait(context.Background()))
	assert.Len(t, clk.Sleeps(), 2)
}
