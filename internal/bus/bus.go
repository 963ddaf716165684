package bus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Publish/Dispatch when every consumer handle
// for that direction has already been dropped.
var ErrClosed = errors.New("bus: channel closed, no consumer")

// queue is an unbounded, FIFO, multi-producer/single-consumer buffer.
// Go channels are not natively unbounded, so the queue is backed by a
// mutex-guarded slice with a condition variable rather than a native
// `chan`; producers never block.
type queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []T
	closed bool
	senders int
}

func newQueue[T any]() *queue[T] {
	q := &queue[T]{senders: 1}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *queue[T]) addSender() {
	q.mu.Lock()
	q.senders++
	q.mu.Unlock()
}

func (q *queue[T]) dropSender() {
	q.mu.Lock()
	q.senders--
	if q.senders <= 0 {
		q.closed = true
		q.cond.Broadcast()
	}
	q.mu.Unlock()
}

func (q *queue[T]) push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return nil
}

// pop blocks until an item is available, the queue is closed and
// drained, or ctx is cancelled. ok is false in the closed-and-drained
// case, and also when ctx is cancelled while the queue is empty, since
// the caller is abandoning the consume regardless.
func (q *queue[T]) pop(ctx context.Context) (item T, ok bool) {
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.cond.Broadcast()
			q.mu.Unlock()
		case <-done:
		}
	}()
	defer close(done)

	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		if ctx.Err() != nil {
			var zero T
			return zero, false
		}
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item = q.items[0]
	q.items = q.items[1:]
	return item, true
}

// MessageBus routes InboundMessage and OutboundMessage traffic between
// channel adapters and the agent loop. Inbound and outbound queues are
// independent, unbounded, and FIFO per producer; many producers may
// publish concurrently via cloneable handles.
//
// Consume is a suspending operation: it returns ok=false once every
// producer handle for that direction has been released (via
// ReleaseInboundProducer / ReleaseOutboundProducer) and the queue is
// drained, or when its ctx is cancelled while the queue is empty.
// There is no backpressure; a full queue never blocks a publisher.
type MessageBus struct {
	inbound  *queue[InboundMessage]
	outbound *queue[OutboundMessage]

	inboundReleased  atomic.Bool
	outboundReleased atomic.Bool
}

// NewMessageBus creates a bus with one live producer per direction.
// The constructing caller is itself counted as a producer; call
// ReleaseInboundProducer/ReleaseOutboundProducer when done publishing,
// or NewInboundProducer/NewOutboundProducer to hand out more handles
// first.
func NewMessageBus() *MessageBus {
	slog.Debug("message bus created")
	return &MessageBus{
		inbound:  newQueue[InboundMessage](),
		outbound: newQueue[OutboundMessage](),
	}
}

// ReleaseInboundProducer drops the implicit inbound producer handle that
// NewMessageBus counted for its constructing caller. Safe to call
// multiple times; only the first call has any effect. Once every
// inbound producer (this one plus any handed out by
// NewInboundProducer) has been released, ConsumeInbound starts
// returning ok=false once the queue drains.
func (b *MessageBus) ReleaseInboundProducer() {
	if b.inboundReleased.Swap(true) {
		return
	}
	b.inbound.dropSender()
}

// ReleaseOutboundProducer is the outbound analogue of
// ReleaseInboundProducer.
func (b *MessageBus) ReleaseOutboundProducer() {
	if b.outboundReleased.Swap(true) {
		return
	}
	b.outbound.dropSender()
}

// PublishInbound publishes an inbound message from a channel adapter.
func (b *MessageBus) PublishInbound(msg InboundMessage) error {
	slog.Debug("publishing inbound message", "channel", msg.Channel, "chat_id", msg.ChatID)
	return b.inbound.push(msg)
}

// ConsumeInbound blocks until an inbound message is available, the
// inbound side is closed and drained, or ctx is cancelled.
func (b *MessageBus) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return b.inbound.pop(ctx)
}

// PublishOutbound dispatches an outbound message from the agent loop.
func (b *MessageBus) PublishOutbound(msg OutboundMessage) error {
	slog.Debug("dispatching outbound message", "channel", msg.Channel, "chat_id", msg.ChatID)
	return b.outbound.push(msg)
}

// SubscribeOutbound blocks until an outbound message is available, the
// outbound side is closed and drained, or ctx is cancelled.
func (b *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return b.outbound.pop(ctx)
}

// InboundProducer is a cloneable handle that may publish inbound
// messages. Release must be called exactly once when the producer is
// done, or ConsumeInbound will never observe closure.
type InboundProducer struct {
	bus      *MessageBus
	released bool
}

// NewInboundProducer hands out a new inbound producer handle.
func (b *MessageBus) NewInboundProducer() *InboundProducer {
	b.inbound.addSender()
	return &InboundProducer{bus: b}
}

// Publish publishes via this producer handle.
func (p *InboundProducer) Publish(msg InboundMessage) error {
	return p.bus.PublishInbound(msg)
}

// Release drops this producer handle. Safe to call multiple times.
func (p *InboundProducer) Release() {
	if p.released {
		return
	}
	p.released = true
	p.bus.inbound.dropSender()
}

// OutboundProducer is the outbound analogue of InboundProducer.
type OutboundProducer struct {
	bus      *MessageBus
	released bool
}

// NewOutboundProducer hands out a new outbound producer handle.
func (b *MessageBus) NewOutboundProducer() *OutboundProducer {
	b.outbound.addSender()
	return &OutboundProducer{bus: b}
}

// Publish publishes via this producer handle.
func (p *OutboundProducer) Publish(msg OutboundMessage) error {
	return p.bus.PublishOutbound(msg)
}

// Release drops this producer handle. Safe to call multiple times.
func (p *OutboundProducer) Release() {
	if p.released {
		return
	}
	p.released = true
	p.bus.outbound.dropSender()
}

var _ MessageRouter = (*busRouterAdapter)(nil)

// busRouterAdapter adapts MessageBus's error-returning API to the
// fire-and-forget MessageRouter interface used by gateway/http code
// that predates the typed-error bus.
type busRouterAdapter struct {
	bus *MessageBus
}

// AsMessageRouter exposes b through the MessageRouter interface for
// callers that only need the older fire-and-forget shape.
func (b *MessageBus) AsMessageRouter() MessageRouter {
	return &busRouterAdapter{bus: b}
}

func (a *busRouterAdapter) PublishInbound(msg InboundMessage) {
	if err := a.bus.PublishInbound(msg); err != nil {
		slog.Warn("publish inbound failed", "error", err)
	}
}

func (a *busRouterAdapter) ConsumeInbound(ctx context.Context) (InboundMessage, bool) {
	return a.bus.ConsumeInbound(ctx)
}

func (a *busRouterAdapter) PublishOutbound(msg OutboundMessage) {
	if err := a.bus.PublishOutbound(msg); err != nil {
		slog.Warn("publish outbound failed", "error", err)
	}
}

func (a *busRouterAdapter) SubscribeOutbound(ctx context.Context) (OutboundMessage, bool) {
	return a.bus.SubscribeOutbound(ctx)
}
