// Package event provides the pub/sub surface between the thread engine
// and its observers, built on watermill's gochannel.
//
// Observer callbacks are always invoked off the publishing goroutine:
// the engine publishes while holding its own lock and must never re-enter
// itself through a subscriber. Each subscriber has a single delivery
// goroutine, so one subscriber always observes events in publish order.
package event

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// Type represents the type of event.
type Type string

const (
	StateChanged         Type = "thread.state"
	MessagesAdded        Type = "thread.messages"
	Chunk                Type = "thread.chunk"
	PlanUpdated          Type = "thread.plan"
	ModeChanged          Type = "thread.mode"
	CommandsUpdated      Type = "thread.commands"
	ConfigOptionsChanged Type = "thread.configoptions"
	SessionCreated       Type = "session.created"
	SessionLoaded        Type = "session.loaded"
	SessionExpired       Type = "session.expired"
	Stopped              Type = "thread.stopped"
	Error                Type = "thread.error"
	ToolCallUpdated      Type = "toolcall.updated"
	FileChanged          Type = "file.changed"
	PermissionRequested  Type = "permission.requested"
)

// Event is one published event.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data"`
}

// Subscriber is a function that receives events.
type Subscriber func(event Event)

// subscriberEntry owns the delivery goroutine for one subscriber. Events
// queue in publish order and drain sequentially, so incremental payloads
// (chunk deltas, message batches) never arrive scrambled, while a slow
// subscriber still cannot stall the publisher.
type subscriberEntry struct {
	id uint64
	fn Subscriber

	mu      sync.Mutex
	queue   []Event
	stopped bool
	wake    chan struct{}
}

func newSubscriberEntry(id uint64, fn Subscriber) *subscriberEntry {
	e := &subscriberEntry{id: id, fn: fn, wake: make(chan struct{}, 1)}
	go e.run()
	return e
}

func (e *subscriberEntry) enqueue(ev Event) {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.queue = append(e.queue, ev)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *subscriberEntry) stop() {
	e.mu.Lock()
	e.stopped = true
	e.queue = nil
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *subscriberEntry) run() {
	for range e.wake {
		for {
			e.mu.Lock()
			if e.stopped {
				e.mu.Unlock()
				return
			}
			if len(e.queue) == 0 {
				e.mu.Unlock()
				break
			}
			batch := e.queue
			e.queue = nil
			e.mu.Unlock()

			for _, ev := range batch {
				e.fn(ev)
			}
		}
	}
}

// Bus manages pub/sub for a single engine instance. It keeps watermill's
// gochannel underneath for middleware/routing while dispatching to typed
// subscribers directly so payloads keep their Go types.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[Type][]*subscriberEntry
	global      []*subscriberEntry

	nextID       uint64
	closed       bool
	closedCtx    context.Context
	closedCancel context.CancelFunc
}

// NewBus creates a new event bus.
func NewBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers:  make(map[Type][]*subscriberEntry),
		closedCtx:    ctx,
		closedCancel: cancel,
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers a subscriber for a specific event type.
// Returns an unsubscribe function.
func (b *Bus) Subscribe(t Type, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	entry := newSubscriberEntry(b.newID(), fn)
	b.subscribers[t] = append(b.subscribers[t], entry)

	return func() {
		b.unsubscribe(t, entry.id)
	}
}

// SubscribeAll registers a subscriber for all events.
// Returns an unsubscribe function.
func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	entry := newSubscriberEntry(b.newID(), fn)
	b.global = append(b.global, entry)

	return func() {
		b.unsubscribeGlobal(entry.id)
	}
}

func (b *Bus) unsubscribe(t Type, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[t]
	for i, entry := range subs {
		if entry.id == id {
			entry.stop()
			b.subscribers[t] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			entry.stop()
			b.global = append(b.global[:i], b.global[i+1:]...)
			break
		}
	}
}

func (b *Bus) collect(t Type) []*subscriberEntry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}
	subs := make([]*subscriberEntry, 0, len(b.subscribers[t])+len(b.global))
	subs = append(subs, b.subscribers[t]...)
	subs = append(subs, b.global...)
	return subs
}

// Publish sends an event to all subscribers asynchronously. Delivery to
// each subscriber is serialized through its own queue, so a single
// subscriber sees events in publish order.
func (b *Bus) Publish(event Event) {
	for _, sub := range b.collect(event.Type) {
		sub.enqueue(event)
	}
}

// PublishSync sends an event to all subscribers on the current goroutine.
// Used by tests that need deterministic delivery.
func (b *Bus) PublishSync(event Event) {
	for _, sub := range b.collect(event.Type) {
		sub.fn(event)
	}
}

// Close shuts down the bus and drops all subscribers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.closedCancel()
	for _, subs := range b.subscribers {
		for _, entry := range subs {
			entry.stop()
		}
	}
	for _, entry := range b.global {
		entry.stop()
	}
	b.subscribers = make(map[Type][]*subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}

// PubSub returns the underlying watermill GoChannel for advanced use
// cases such as bridging events onto a distributed backend.
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}
