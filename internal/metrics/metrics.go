package metrics

import (
	"maps"
	"sync"
	"time"
)

// Store holds the event bus counters. All counters are monotonic until Reset.
type Store struct {
	mutex         sync.RWMutex
	published     int64
	perType       map[string]int64
	handlerErrors int64
	startTime     time.Time
}

// BusSnapshot is an immutable copy of the bus counters.
type BusSnapshot struct {
	PublishedEvents int64            `json:"published_events"`
	PerType         map[string]int64 `json:"per_type"`
	HandlerErrors   int64            `json:"handler_errors"`
	HistorySize     int              `json:"history_size"`
	HistoryCapacity int              `json:"history_capacity"`
	Uptime          time.Duration    `json:"uptime"`
}

func NewStore() *Store {
	return &Store{
		perType:   make(map[string]int64),
		startTime: time.Now(),
	}
}

// RecordPublished counts one published event of the given type.
func (s *Store) RecordPublished(eventType string) {
	s.mutex.Lock()
	s.published++
	s.perType[eventType]++
	s.mutex.Unlock()

	eventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// RecordHandlerError counts one failed handler invocation.
func (s *Store) RecordHandlerError(eventType string) {
	s.mutex.Lock()
	s.handlerErrors++
	s.mutex.Unlock()

	handlerErrorsTotal.WithLabelValues(eventType).Inc()
}

func (s *Store) Snapshot() BusSnapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return BusSnapshot{
		PublishedEvents: s.published,
		PerType:         maps.Clone(s.perType),
		HandlerErrors:   s.handlerErrors,
		Uptime:          time.Since(s.startTime),
	}
}

// Reset zeroes every counter. Prometheus series are left untouched since
// they are scraped as monotonic counters.
func (s *Store) Reset() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.published = 0
	s.perType = make(map[string]int64)
	s.handlerErrors = 0
}
