package events_test

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/angeloszaimis/eventguard/internal/events"
	"github.com/angeloszaimis/eventguard/internal/metrics"
	"github.com/angeloszaimis/eventguard/pkg/logger"
)

var _ = Describe("Bus", func() {
	var (
		bus *events.Bus
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		bus = events.NewBus(metrics.NewStore(), logger.Nop())
	})

	Describe("Register", func() {
		It("should return unique ids", func() {
			noop := func(context.Context, any, events.Envelope) error { return nil }
			id1, err := bus.Register(events.UserCreated, noop)
			Expect(err).NotTo(HaveOccurred())
			id2, err := bus.Register(events.UserCreated, noop)
			Expect(err).NotTo(HaveOccurred())

			Expect(id1).NotTo(BeEmpty())
			Expect(id1).NotTo(Equal(id2))
			Expect(bus.Handlers(events.UserCreated)).To(Equal(2))
		})

		It("should reject an empty event type", func() {
			_, err := bus.Register("", func(context.Context, any, events.Envelope) error { return nil })
			Expect(err).To(MatchError(events.ErrInvalidEventType))
		})

		It("should reject a malformed event type", func() {
			_, err := bus.Register("user created", func(context.Context, any, events.Envelope) error { return nil })
			Expect(err).To(MatchError(events.ErrInvalidEventType))
		})

		It("should reject a nil handler", func() {
			_, err := bus.Register(events.UserCreated, nil)
			Expect(err).To(MatchError(events.ErrNilHandler))
		})
	})

	Describe("Publish", func() {
		It("should invoke all handlers once in registration order", func() {
			var order []int
			for i := 0; i < 5; i++ {
				n := i
				_, err := bus.Register("test.event", func(context.Context, any, events.Envelope) error {
					order = append(order, n)
					if n%2 == 1 {
						return errors.New("odd handler fails")
					}
					return nil
				})
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(bus.Publish(ctx, "test.event", map[string]int{"n": 1})).To(Succeed())
			Expect(order).To(Equal([]int{0, 1, 2, 3, 4}))
			Expect(bus.Metrics().HandlerErrors).To(Equal(int64(2)))
		})

		It("should isolate a throwing handler from the others and the caller", func() {
			counter := 0
			_, _ = bus.Register("test.event", func(context.Context, any, events.Envelope) error {
				counter++
				return nil
			})
			_, _ = bus.Register("test.event", func(context.Context, any, events.Envelope) error {
				return errors.New("boom")
			})

			Expect(bus.Publish(ctx, "test.event", struct{}{})).To(Succeed())
			Expect(bus.Publish(ctx, "test.event", struct{}{})).To(Succeed())

			snap := bus.Metrics()
			Expect(counter).To(Equal(2))
			Expect(snap.HandlerErrors).To(Equal(int64(2)))
			Expect(snap.PublishedEvents).To(Equal(int64(2)))
		})

		It("should recover a panicking handler and keep going", func() {
			reached := false
			_, _ = bus.Register(events.ChallengeCompleted, func(context.Context, any, events.Envelope) error {
				panic("handler exploded")
			})
			_, _ = bus.Register(events.ChallengeCompleted, func(context.Context, any, events.Envelope) error {
				reached = true
				return nil
			})

			Expect(func() {
				Expect(bus.Publish(ctx, events.ChallengeCompleted, nil)).To(Succeed())
			}).NotTo(Panic())
			Expect(reached).To(BeTrue())
			Expect(bus.Metrics().HandlerErrors).To(Equal(int64(1)))
		})

		It("should log handler failures with type, id and error", func() {
			core, logs := observer.New(zap.ErrorLevel)
			bus = events.NewBus(metrics.NewStore(), logger.FromZap(zap.New(core)))

			id, _ := bus.Register(events.UserCreated, func(context.Context, any, events.Envelope) error {
				return errors.New("mail server down")
			})
			Expect(bus.Publish(ctx, events.UserCreated, nil)).To(Succeed())

			Expect(logs.Len()).To(Equal(1))
			fields := logs.All()[0].ContextMap()
			Expect(fields).To(HaveKeyWithValue("event_type", "user.created"))
			Expect(fields).To(HaveKeyWithValue("handler_id", id))
			Expect(fields).To(HaveKeyWithValue("error", ContainSubstring("mail server down")))
			Expect(fields).To(HaveKeyWithValue("error", ContainSubstring(id)))
		})

		It("should hand the payload and envelope to handlers", func() {
			mock := clock.NewMock()
			mock.Set(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
			bus = events.NewBus(nil, nil, events.WithClock(mock))

			var got events.Envelope
			var gotPayload any
			_, _ = bus.Register(events.UserCreated, func(_ context.Context, p any, env events.Envelope) error {
				gotPayload = p
				got = env
				return nil
			})

			payload := map[string]string{"user_id": "u-1"}
			Expect(bus.Publish(ctx, events.UserCreated, payload)).To(Succeed())

			Expect(gotPayload).To(Equal(payload))
			Expect(got.Type).To(Equal(events.UserCreated))
			Expect(got.Sequence).To(Equal(uint64(1)))
			Expect(got.ID).NotTo(BeEmpty())
			Expect(got.Timestamp).To(Equal(mock.Now()))
		})

		It("should only call handlers of the published type", func() {
			called := false
			_, _ = bus.Register(events.UserCreated, func(context.Context, any, events.Envelope) error {
				called = true
				return nil
			})

			Expect(bus.Publish(ctx, events.UserUpdated, nil)).To(Succeed())
			Expect(called).To(BeFalse())
		})

		It("should count publishes with no handlers", func() {
			for i := 0; i < 7; i++ {
				Expect(bus.Publish(ctx, events.Catalog()[i%len(events.Catalog())], i)).To(Succeed())
			}
			Expect(bus.Metrics().PublishedEvents).To(Equal(int64(7)))
		})

		It("should track per-type counts", func() {
			_ = bus.Publish(ctx, events.UserCreated, nil)
			_ = bus.Publish(ctx, events.UserCreated, nil)
			_ = bus.Publish(ctx, events.ChallengeStarted, nil)

			perType := bus.Metrics().PerType
			Expect(perType).To(HaveKeyWithValue("user.created", int64(2)))
			Expect(perType).To(HaveKeyWithValue("challenge.started", int64(1)))
		})

		It("should reject an invalid event type before dispatch", func() {
			err := bus.Publish(ctx, "", nil)
			Expect(err).To(MatchError(events.ErrInvalidEventType))
			Expect(bus.Metrics().PublishedEvents).To(BeZero())
			Expect(bus.History()).To(BeEmpty())
		})

		It("should reject a payload that cannot be serialized", func() {
			err := bus.Publish(ctx, events.UserCreated, map[string]any{"ch": make(chan int)})
			Expect(err).To(MatchError(events.ErrUnserializablePayload))
			Expect(bus.Metrics().PublishedEvents).To(BeZero())
		})

		It("should reject a payload that refers to itself", func() {
			type node struct {
				Name string
				Next *node
			}
			n := &node{Name: "loop"}
			n.Next = n

			err := bus.Publish(ctx, events.UserCreated, n)
			Expect(err).To(MatchError(events.ErrUnserializablePayload))
			Expect(bus.Metrics().PublishedEvents).To(BeZero())
			Expect(bus.History()).To(BeEmpty())

			m := map[string]any{}
			m["self"] = m
			Expect(bus.Publish(ctx, events.UserCreated, m)).To(MatchError(events.ErrUnserializablePayload))
		})

		It("should allow handlers to publish follow-up events", func() {
			var followUps int
			_, _ = bus.Register(events.ChallengeCompleted, func(ctx context.Context, p any, _ events.Envelope) error {
				return bus.Publish(ctx, events.FeedbackGenerated, p)
			})
			_, _ = bus.Register(events.FeedbackGenerated, func(context.Context, any, events.Envelope) error {
				followUps++
				return nil
			})

			Expect(bus.Publish(ctx, events.ChallengeCompleted, "c-1")).To(Succeed())
			Expect(followUps).To(Equal(1))

			history := bus.History()
			Expect(history).To(HaveLen(2))
			Expect(history[0].Type).To(Equal(events.ChallengeCompleted))
			Expect(history[1].Type).To(Equal(events.FeedbackGenerated))
		})
	})

	Describe("Unregister", func() {
		It("should remove only the given registration", func() {
			var calls []string
			idA, _ := bus.Register(events.UserCreated, func(context.Context, any, events.Envelope) error {
				calls = append(calls, "a")
				return nil
			})
			_, _ = bus.Register(events.UserCreated, func(context.Context, any, events.Envelope) error {
				calls = append(calls, "b")
				return nil
			})

			Expect(bus.Unregister(idA)).To(BeTrue())
			Expect(bus.Publish(ctx, events.UserCreated, nil)).To(Succeed())
			Expect(calls).To(Equal([]string{"b"}))
		})

		It("should be a no-op for unknown or repeated ids", func() {
			id, _ := bus.Register(events.UserCreated, func(context.Context, any, events.Envelope) error { return nil })

			Expect(bus.Unregister("does-not-exist")).To(BeFalse())
			Expect(bus.Unregister(id)).To(BeTrue())
			Expect(bus.Unregister(id)).To(BeFalse())
			Expect(bus.Handlers(events.UserCreated)).To(BeZero())
		})

		It("should let a handler unregister itself without skipping its siblings", func() {
			var calls []string
			var selfID string
			selfID, _ = bus.Register(events.UserCreated, func(context.Context, any, events.Envelope) error {
				calls = append(calls, "self")
				bus.Unregister(selfID)
				return nil
			})
			_, _ = bus.Register(events.UserCreated, func(context.Context, any, events.Envelope) error {
				calls = append(calls, "sibling")
				return nil
			})

			_ = bus.Publish(ctx, events.UserCreated, nil)
			_ = bus.Publish(ctx, events.UserCreated, nil)
			Expect(calls).To(Equal([]string{"self", "sibling", "sibling"}))
		})
	})

	Describe("History", func() {
		It("should evict the oldest envelopes beyond capacity", func() {
			bus = events.NewBus(nil, nil, events.WithHistoryCapacity(3))
			for i := 1; i <= 5; i++ {
				Expect(bus.Publish(ctx, events.SubmissionCreated, i)).To(Succeed())
			}

			history := bus.History()
			Expect(history).To(HaveLen(3))
			Expect(history[0].Payload).To(Equal(3))
			Expect(history[2].Payload).To(Equal(5))
			Expect(history[2].Sequence).To(Equal(uint64(5)))

			snap := bus.Metrics()
			Expect(snap.HistorySize).To(Equal(3))
			Expect(snap.HistoryCapacity).To(Equal(3))
			Expect(snap.PublishedEvents).To(Equal(int64(5)))
		})
	})

	Describe("Clear", func() {
		It("should reset handlers, metrics and history", func() {
			_, _ = bus.Register(events.UserCreated, func(context.Context, any, events.Envelope) error {
				return errors.New("x")
			})
			_ = bus.Publish(ctx, events.UserCreated, nil)

			bus.Clear()

			snap := bus.Metrics()
			Expect(snap.PublishedEvents).To(BeZero())
			Expect(snap.HandlerErrors).To(BeZero())
			Expect(snap.PerType).To(BeEmpty())
			Expect(bus.History()).To(BeEmpty())
			Expect(bus.Handlers(events.UserCreated)).To(BeZero())

			Expect(bus.Publish(ctx, events.UserCreated, nil)).To(Succeed())
			Expect(bus.Metrics().HandlerErrors).To(BeZero())
			Expect(bus.History()[0].Sequence).To(Equal(uint64(1)))
		})
	})
})
