package replication

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/udisondev/statusfx/internal/game/status"
)

const testChannel = "statusfx:test"

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

type PublisherTestSuite struct {
	suite.Suite
	client    *redis.Client
	mock      redismock.ClientMock
	publisher *Publisher
	manager   *status.Manager
}

func (s *PublisherTestSuite) SetupTest() {
	s.client, s.mock = redismock.NewClientMock()
	s.publisher = NewPublisher(s.client, testChannel, 16)
	s.publisher.now = func() time.Time { return fixedNow }
	s.manager = status.NewManager(status.Options{Entity: "hero"})
}

func (s *PublisherTestSuite) TearDownTest() {
	s.manager.Close()
	s.NoError(s.mock.ExpectationsWereMet())
}

func TestPublisherTestSuite(t *testing.T) {
	suite.Run(t, new(PublisherTestSuite))
}

func (s *PublisherTestSuite) payload(ev ChangeEvent) string {
	raw, err := json.Marshal(ev)
	s.Require().NoError(err)
	return string(raw)
}

// runUntilDrained runs the publisher with an already cancelled context so
// Run drains the queue and returns.
func (s *PublisherTestSuite) runUntilDrained() {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.NoError(s.publisher.Run(ctx))
}

func (s *PublisherTestSuite) TestPublishesAddAndRemove() {
	def := &status.Definition{ID: "bleed", Group: "Negative", MaxStacks: status.UnlimitedStacks}
	detach := s.publisher.Attach(s.manager)
	defer detach()

	inst := s.manager.AddTimedEffect(def, 5)
	s.Require().NotNil(inst)
	s.manager.RemoveInstance(inst)

	remaining := 5.0
	s.mock.ExpectPublish(testChannel, s.payload(ChangeEvent{
		Entity: "hero", Instance: uint64(inst.ID()), Definition: "bleed", Group: "Negative",
		Action: "Added", Previous: 0, Current: 1, Timing: "Duration", Remaining: &remaining, At: fixedNow,
	})).SetVal(1)
	s.mock.ExpectPublish(testChannel, s.payload(ChangeEvent{
		Entity: "hero", Instance: uint64(inst.ID()), Definition: "bleed", Group: "Negative",
		Action: "Removed", Previous: 1, Current: 0, Timing: "Duration", Remaining: &remaining, At: fixedNow,
	})).SetVal(1)

	s.runUntilDrained()
}

func (s *PublisherTestSuite) TestEndlessOmitsRemaining() {
	def := &status.Definition{ID: "aura", MaxStacks: status.UnlimitedStacks}
	s.publisher.Attach(s.manager)

	inst := s.manager.AddEffect(def, status.WithStacks(3))
	s.Require().NotNil(inst)

	ev := s.publisher.event(status.Change{Entity: "hero", Instance: inst, Action: status.Added, CurrentStacks: 3})
	s.Nil(ev.Remaining)
	s.NotContains(s.payload(ev), "remaining")

	s.mock.ExpectPublish(testChannel, s.payload(ev)).SetVal(0)
	s.runUntilDrained()
}

func (s *PublisherTestSuite) TestPublishErrorIsNotFatal() {
	def := &status.Definition{ID: "aura", MaxStacks: status.UnlimitedStacks}
	s.publisher.Attach(s.manager)
	first := s.manager.AddEffect(def)
	s.Require().NotNil(first)
	s.manager.RemoveInstance(first)

	added := s.publisher.event(status.Change{Entity: "hero", Instance: first, Action: status.Added, CurrentStacks: 1})
	removed := s.publisher.event(status.Change{Entity: "hero", Instance: first, Action: status.Removed, PreviousStacks: 1})

	s.mock.ExpectPublish(testChannel, s.payload(added)).SetErr(errors.New("connection reset"))
	s.mock.ExpectPublish(testChannel, s.payload(removed)).SetVal(1)

	s.runUntilDrained()
}

func (s *PublisherTestSuite) TestFullQueueDrops() {
	s.publisher = NewPublisher(s.client, testChannel, 1)
	s.publisher.now = func() time.Time { return fixedNow }
	def := &status.Definition{ID: "spark", AllowStacking: true, MaxStacks: status.UnlimitedStacks}
	detach := s.publisher.Attach(s.manager)

	first := s.manager.AddEffect(def)
	s.manager.AddEffect(def)
	s.manager.AddEffect(def)
	detach()

	s.Equal(uint64(2), s.publisher.Dropped())

	s.mock.ExpectPublish(testChannel, s.payload(s.publisher.event(status.Change{
		Entity: "hero", Instance: first, Action: status.Added, CurrentStacks: 1,
	}))).SetVal(1)
	s.runUntilDrained()
}

func (s *PublisherTestSuite) TestDetachStopsEvents() {
	def := &status.Definition{ID: "aura", MaxStacks: status.UnlimitedStacks}
	detach := s.publisher.Attach(s.manager)
	detach()

	s.manager.AddEffect(def)
	s.runUntilDrained()
	s.Zero(s.publisher.Dropped())
}

func TestNewPublisher_ClampsQueue(t *testing.T) {
	client, _ := redismock.NewClientMock()
	p := NewPublisher(client, testChannel, 0)
	if cap(p.queue) != 1 {
		t.Fatalf("queue capacity = %d, want 1", cap(p.queue))
	}
}
