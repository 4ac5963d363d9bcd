package outreach

import (
	"context"
	"fmt"
	"time"

	"github.com/playbook/outreach/internal/pkg/clock"
	"github.com/redis/go-redis/v9"
)

// Pacer gates send attempts. The orchestrator calls Wait before every
// attempt.
type Pacer interface {
	Wait(ctx context.Context) error
}

// IntervalPacer waits a fixed delay before each attempt.
type IntervalPacer struct {
	interval time.Duration
	clock    clock.Clock
}

// NewIntervalPacer creates a fixed-interval pacer.
func NewIntervalPacer(interval time.Duration, clk clock.Clock) *IntervalPacer {
	return &IntervalPacer{interval: interval, clock: clk}
}

func (p *IntervalPacer) Wait(ctx context.Context) error {
	return p.clock.Sleep(ctx, p.interval)
}

// Check-and-increment a per-second counter; deny without incrementing when
// full.
const providerGateLua = `
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local limit = tonumber(ARGV[1])
if current + 1 > limit then
    return 0
end
local n = redis.call("INCR", KEYS[1])
if n == 1 then
    redis.call("EXPIRE", KEYS[1], tonumber(ARGV[2]))
end
return 1
`

// RedisPacer caps sends per second for one provider across every process
// sharing the Redis instance.
type RedisPacer struct {
	client   *redis.Client
	script   *redis.Script
	provider string
	perSec   int
	clock    clock.Clock
}

// NewRedisPacer creates a shared gate allowing perSecond sends per second.
func NewRedisPacer(client *redis.Client, provider string, perSecond int, clk clock.Clock) *RedisPacer {
	return &RedisPacer{
		client:   client,
		script:   redis.NewScript(providerGateLua),
		provider: provider,
		perSec:   perSecond,
		clock:    clk,
	}
}

// Wait blocks until the current second has capacity.
func (p *RedisPacer) Wait(ctx context.Context) error {
	for {
		now := p.clock.Now()
		key := fmt.Sprintf("outreach:rate:%s:%d", p.provider, now.Unix())
		ok, err := p.script.Run(ctx, p.client, []string{key}, p.perSec, 2).Int()
		if err != nil {
			return fmt.Errorf("provider rate gate: %w", err)
		}
		if ok == 1 {
			return nil
		}
		next := now.Truncate(time.Second).Add(time.Second)
		if err := p.clock.Sleep(ctx, next.Sub(now)); err != nil {
			return err
		}
	}
}

// Chain runs pacers in order.
type Chain []Pacer

func (c Chain) Wait(ctx context.Context) error {
	for _, p := range c {
		if err := p.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
