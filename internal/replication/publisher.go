// Package replication forwards effect changes to Redis pub/sub so remote
// observers can mirror entity state.
package replication

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/udisondev/statusfx/internal/game/status"
)

const drainTimeout = 2 * time.Second

// ChangeEvent is the wire form of status.Change.
// Remaining is omitted for endless instances.
type ChangeEvent struct {
	Entity     string    `json:"entity"`
	Instance   uint64    `json:"instance"`
	Definition string    `json:"definition"`
	Group      string    `json:"group,omitempty"`
	Action     string    `json:"action"`
	Previous   int       `json:"previous_stacks"`
	Current    int       `json:"current_stacks"`
	Timing     string    `json:"timing"`
	Remaining  *float64  `json:"remaining,omitempty"`
	At         time.Time `json:"at"`
}

// Publisher queues change events and publishes them from Run.
// The queue is bounded: when it is full events are dropped and counted,
// the mutating goroutine never waits on Redis.
type Publisher struct {
	client  redis.Cmdable
	channel string
	queue   chan ChangeEvent
	dropped atomic.Uint64
	now     func() time.Time
}

// NewPublisher creates a publisher for channel with a queue of size queueSize.
func NewPublisher(client redis.Cmdable, channel string, queueSize int) *Publisher {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Publisher{
		client:  client,
		channel: channel,
		queue:   make(chan ChangeEvent, queueSize),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Attach subscribes the publisher to m and returns the unsubscribe func.
func (p *Publisher) Attach(m *status.Manager) func() {
	return m.OnEffectChanged(p.enqueue)
}

// Dropped returns the number of events discarded on a full queue.
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *Publisher) enqueue(c status.Change) {
	ev := p.event(c)
	select {
	case p.queue <- ev:
	default:
		if n := p.dropped.Add(1); n == 1 || n%1000 == 0 {
			slog.Warn("replication queue full, dropping events", "channel", p.channel, "dropped", n)
		}
	}
}

func (p *Publisher) event(c status.Change) ChangeEvent {
	inst := c.Instance
	def := inst.Definition()
	ev := ChangeEvent{
		Entity:     c.Entity,
		Instance:   uint64(inst.ID()),
		Definition: string(def.ID),
		Group:      string(def.Group),
		Action:     c.Action.String(),
		Previous:   c.PreviousStacks,
		Current:    c.CurrentStacks,
		Timing:     inst.Timing().String(),
		At:         p.now(),
	}
	if r := inst.Remaining(); !math.IsInf(r, 0) {
		ev.Remaining = &r
	}
	return ev
}

// Run publishes queued events until ctx is cancelled, then drains what is
// left with a short deadline. Publish errors are logged, not returned.
func (p *Publisher) Run(ctx context.Context) error {
	slog.Info("replication publisher started", "channel", p.channel)
	for {
		select {
		case <-ctx.Done():
			p.drain(context.WithoutCancel(ctx))
			slog.Info("replication publisher stopped", "channel", p.channel, "dropped", p.Dropped())
			return nil
		default:
		}

		select {
		case ev := <-p.queue:
			p.send(ctx, ev)
		case <-ctx.Done():
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	for {
		select {
		case ev := <-p.queue:
			p.send(ctx, ev)
		default:
			return
		}
	}
}

func (p *Publisher) send(ctx context.Context, ev ChangeEvent) {
	if err := p.publish(ctx, ev); err != nil {
		slog.Warn("publishing effect change",
			"entity", ev.Entity,
			"definition", ev.Definition,
			"action", ev.Action,
			"error", err)
	}
}

func (p *Publisher) publish(ctx context.Context, ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding change event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, string(payload)).Err(); err != nil {
		return fmt.Errorf("publishing to %s: %w", p.channel, err)
	}
	return nil
}
