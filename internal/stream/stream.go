// Package stream fans condominium events out to live subscribers.
package stream

import (
	"context"
	"sync"
	"time"
)

// Event kinds.
const (
	KindAnnouncement = "announcement.created"
)

// Event is one notification scoped to a condominium.
type Event struct {
	Kind          string    `json:"kind"`
	CondominiumID int64     `json:"condominio_id"`
	Data          any       `json:"data"`
	At            time.Time `json:"at"`
}

type subscriber struct {
	condoID int64
	ch      chan Event
}

// Stream delivers events to the subscribers of the matching condominium.
type Stream struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	buffer  int
	dropped int
}

// New returns an empty stream; buffer is the per-subscriber queue size.
func New(buffer int) *Stream {
	if buffer <= 0 {
		buffer = 16
	}
	return &Stream{subs: make(map[int]subscriber), buffer: buffer}
}

// Subscribe registers a subscriber for condoID. The channel is closed when
// ctx ends.
func (s *Stream) Subscribe(ctx context.Context, condoID int64) <-chan Event {
	ch := make(chan Event, s.buffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{condoID: condoID, ch: ch}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish sends evt to every subscriber of its condominium. Slow subscribers
// miss the event instead of blocking the publisher.
func (s *Stream) Publish(evt Event) {
	if evt.At.IsZero() {
		evt.At = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.condoID != evt.CondominiumID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			s.dropped++
		}
	}
}

// Subscribers returns the number of live subscribers.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (s *Stream) Dropped() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dropped
}
