// Package broadcast fans task events out to the subscribers of a project
// channel, in process and across instances.
package broadcast

import (
	"context"
	"runtime/debug"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/lokeshjavvadi/Smart-taskhub-React/domain"
)

// DefaultMailboxSize is the number of undelivered events a subscriber may
// hold before further events are dropped for it.
const DefaultMailboxSize = 64

// Subscriber is a connection receiving events for one or more channels.
// Events are buffered in a bounded mailbox; when the mailbox is full the
// event is dropped for this subscriber only.
type Subscriber struct {
	id      string
	events  chan []byte
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

// NewSubscriber creates a subscriber with a mailbox of the given size.
func NewSubscriber(id string, mailbox int) *Subscriber {
	if mailbox <= 0 {
		mailbox = DefaultMailboxSize
	}
	return &Subscriber{
		id:     id,
		events: make(chan []byte, mailbox),
		done:   make(chan struct{}),
	}
}

func (s *Subscriber) ID() string { return s.id }

// Events yields encoded task events in the order they were accepted.
func (s *Subscriber) Events() <-chan []byte { return s.events }

// Done is closed once the subscriber has been disconnected from the hub.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

// Dropped reports how many events were discarded because the mailbox was full.
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

func (s *Subscriber) offer(payload []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- payload:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

// the events channel is never closed so late deliveries cannot panic
func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Subscriber) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Hub is the in-process registry of channel subscribers.
type Hub struct {
	logger *log.Logger

	mu       sync.RWMutex
	channels map[string]map[*Subscriber]struct{}
	joined   map[*Subscriber]map[string]struct{}
}

func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &Hub{
		logger:   logger,
		channels: make(map[string]map[*Subscriber]struct{}),
		joined:   make(map[*Subscriber]map[string]struct{}),
	}
}

// Subscribe registers s on channel. Subscribing twice is a no-op, as is
// subscribing a disconnected subscriber.
func (h *Hub) Subscribe(channel string, s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if s.closed() {
		return
	}

	subs, ok := h.channels[channel]
	if !ok {
		subs = make(map[*Subscriber]struct{})
		h.channels[channel] = subs
	}
	subs[s] = struct{}{}

	chans, ok := h.joined[s]
	if !ok {
		chans = make(map[string]struct{})
		h.joined[s] = chans
	}
	chans[channel] = struct{}{}
}

// Unsubscribe removes s from channel. Unknown subscribers are ignored.
func (h *Hub) Unsubscribe(channel string, s *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(channel, s)
}

// Disconnect removes s from every channel and closes its Done channel.
func (h *Hub) Disconnect(s *Subscriber) {
	h.mu.Lock()
	for channel := range h.joined[s] {
		h.removeLocked(channel, s)
	}
	delete(h.joined, s)
	s.close()
	h.mu.Unlock()
}

func (h *Hub) removeLocked(channel string, s *Subscriber) {
	if subs, ok := h.channels[channel]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.channels, channel)
		}
	}
	if chans, ok := h.joined[s]; ok {
		delete(chans, channel)
		if len(chans) == 0 {
			delete(h.joined, s)
		}
	}
}

// SubscriberCount returns the number of subscribers currently on channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// Publish encodes ev and delivers it to the channel's local subscribers.
func (h *Hub) Publish(_ context.Context, channel string, ev domain.TaskEvent) {
	payload, err := domain.EncodeTaskEvent(ev)
	if err != nil {
		h.logger.WithError(err).WithField("channel", channel).Error("encode task event")
		return
	}
	h.Deliver(channel, payload)
}

// Deliver hands an already encoded event to every subscriber on channel and
// returns how many accepted it. The subscriber set is snapshotted first so
// concurrent subscribe or disconnect calls never disturb delivery.
func (h *Hub) Deliver(channel string, payload []byte) int {
	h.mu.RLock()
	subs := make([]*Subscriber, 0, len(h.channels[channel]))
	for s := range h.channels[channel] {
		subs = append(subs, s)
	}
	h.mu.RUnlock()

	delivered := 0
	for _, s := range subs {
		if h.safeOffer(s, payload) {
			delivered++
			continue
		}
		h.logger.WithFields(log.Fields{"channel": channel, "subscriber": s.id}).Debug("event dropped for subscriber")
	}
	return delivered
}

func (h *Hub) safeOffer(s *Subscriber, payload []byte) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Errorf("event delivery to %s panicked: %v\n%s", s.id, r, debug.Stack())
			ok = false
		}
	}()
	return s.offer(payload)
}
