package metrics_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/eventguard/internal/metrics"
	"github.com/angeloszaimis/eventguard/pkg/logger"
)

var _ = Describe("Collector", func() {
	var (
		collector *metrics.Collector
		ctx       context.Context
		cancel    context.CancelFunc
	)

	BeforeEach(func() {
		ctx, cancel = context.WithCancel(context.Background())
		collector = metrics.NewCollector(100, logger.Nop())
	})

	AfterEach(func() {
		cancel()
	})

	Describe("event processing", func() {
		It("should track transitions and the latest state", func() {
			collector.Start(ctx)

			now := time.Now()
			collector.EventChannel() <- metrics.BreakerEvent{Type: metrics.BreakerFailure, Breaker: "ai.complete", State: "CLOSED", Timestamp: now}
			collector.EventChannel() <- metrics.BreakerEvent{Type: metrics.BreakerOpened, Breaker: "ai.complete", State: "OPEN", Timestamp: now}

			Eventually(func() int64 {
				return collector.Snapshot().Breakers["ai.complete"].Opens
			}).Should(Equal(int64(1)))

			bm := collector.Snapshot().Breakers["ai.complete"]
			Expect(bm.Failures).To(Equal(int64(1)))
			Expect(bm.State).To(Equal("OPEN"))
			Expect(bm.LastTransition).To(BeTemporally("~", now, time.Millisecond))
		})

		It("should keep breakers separate", func() {
			collector.Start(ctx)

			collector.Emit(metrics.BreakerEvent{Type: metrics.BreakerSuccess, Breaker: "ai.complete", State: "CLOSED"})
			collector.Emit(metrics.BreakerEvent{Type: metrics.BreakerRejected, Breaker: "ai.embed", State: "OPEN"})
			collector.Emit(metrics.BreakerEvent{Type: metrics.BreakerFallback, Breaker: "ai.embed", State: "OPEN"})

			Eventually(func() int {
				return len(collector.Snapshot().Breakers)
			}).Should(Equal(2))
			Eventually(func() int64 {
				return collector.Snapshot().Breakers["ai.embed"].Fallbacks
			}).Should(Equal(int64(1)))

			snap := collector.Snapshot()
			Expect(snap.Breakers["ai.complete"].Successes).To(Equal(int64(1)))
			Expect(snap.Breakers["ai.embed"].Rejected).To(Equal(int64(1)))
		})

		It("should drain events on context cancellation", func() {
			for i := 0; i < 5; i++ {
				collector.Emit(metrics.BreakerEvent{Type: metrics.BreakerIgnored, Breaker: "ai.complete"})
			}

			collector.Start(ctx)
			cancel()
			Eventually(collector.Done()).Should(BeClosed())

			Expect(collector.Snapshot().Breakers["ai.complete"].Ignored).To(Equal(int64(5)))
		})
	})

	Describe("Emit", func() {
		It("should drop instead of blocking when the buffer is full", func() {
			c := metrics.NewCollector(1, logger.Nop())
			Expect(c.Emit(metrics.BreakerEvent{Breaker: "a"})).To(BeTrue())
			Expect(c.Emit(metrics.BreakerEvent{Breaker: "a"})).To(BeFalse())
		})
	})

	Describe("Handler", func() {
		It("should serve the snapshot as JSON", func() {
			collector.Start(ctx)
			collector.Emit(metrics.BreakerEvent{Type: metrics.BreakerOpened, Breaker: "ai.moderate", State: "OPEN"})
			Eventually(func() int { return len(collector.Snapshot().Breakers) }).Should(Equal(1))

			rec := httptest.NewRecorder()
			collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/breakers", nil))

			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

			var snap metrics.BreakerSnapshot
			Expect(json.Unmarshal(rec.Body.Bytes(), &snap)).To(Succeed())
			Expect(snap.Breakers["ai.moderate"].State).To(Equal("OPEN"))
		})
	})
})
