package bus

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"
)

func makeInbound(content string) InboundMessage {
	return InboundMessage{Channel: "test", SenderID: "user1", ChatID: "chat1", Content: content, Timestamp: time.Now()}
}

func makeOutbound(content string) OutboundMessage {
	return OutboundMessage{Channel: "test", ChatID: "chat1", Content: content}
}

func TestPublishAndConsumeInbound(t *testing.T) {
	b := NewMessageBus()
	if err := b.PublishInbound(makeInbound("hello")); err != nil {
		t.Fatal(err)
	}
	msg, ok := b.ConsumeInbound(context.Background())
	if !ok || msg.Content != "hello" || msg.Channel != "test" {
		t.Fatalf("unexpected: %+v ok=%v", msg, ok)
	}
}

func TestDispatchAndConsumeOutbound(t *testing.T) {
	b := NewMessageBus()
	if err := b.PublishOutbound(makeOutbound("reply")); err != nil {
		t.Fatal(err)
	}
	msg, ok := b.SubscribeOutbound(context.Background())
	if !ok || msg.Content != "reply" {
		t.Fatalf("unexpected: %+v ok=%v", msg, ok)
	}
}

func TestMultipleInboundMessagesInOrder(t *testing.T) {
	b := NewMessageBus()
	for i := 0; i < 5; i++ {
		if err := b.PublishInbound(makeInbound(fmt.Sprintf("msg-%d", i))); err != nil {
			t.Fatal(err)
		}
	}
	for i := 0; i < 5; i++ {
		msg, ok := b.ConsumeInbound(context.Background())
		if !ok || msg.Content != fmt.Sprintf("msg-%d", i) {
			t.Fatalf("want msg-%d got %+v", i, msg)
		}
	}
}

func TestInboundSenderAllowsMultiProducer(t *testing.T) {
	b := NewMessageBus()
	p1 := b.NewInboundProducer()
	p2 := b.NewInboundProducer()
	defer p1.Release()
	defer p2.Release()

	if err := p1.Publish(makeInbound("from-tx1")); err != nil {
		t.Fatal(err)
	}
	if err := p2.Publish(makeInbound("from-tx2")); err != nil {
		t.Fatal(err)
	}

	m1, _ := b.ConsumeInbound(context.Background())
	m2, _ := b.ConsumeInbound(context.Background())
	if m1.Content != "from-tx1" || m2.Content != "from-tx2" {
		t.Fatalf("unexpected order: %+v %+v", m1, m2)
	}
}

func TestConsumeReturnsFalseWhenAllSendersDropped(t *testing.T) {
	b := NewMessageBus()
	p := b.NewInboundProducer()
	if err := p.Publish(makeInbound("last")); err != nil {
		t.Fatal(err)
	}

	msg, ok := b.ConsumeInbound(context.Background())
	if !ok || msg.Content != "last" {
		t.Fatalf("expected buffered message, got %+v ok=%v", msg, ok)
	}

	p.Release()
	b.ReleaseInboundProducer() // drop the bus's own implicit constructor handle too

	_, ok = b.ConsumeInbound(context.Background())
	if ok {
		t.Fatal("expected ok=false after all senders dropped")
	}
}

func TestPublishInboundErrorOnClosedChannel(t *testing.T) {
	b := NewMessageBus()
	b.ReleaseInboundProducer()
	if err := b.PublishInbound(makeInbound("orphan")); err == nil {
		t.Fatal("expected error on closed channel")
	}
}

func TestConcurrentPublishAndConsume(t *testing.T) {
	b := NewMessageBus()
	p := b.NewInboundProducer()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = p.Publish(makeInbound(fmt.Sprintf("concurrent-%d", i)))
		}
		p.Release()
		b.ReleaseInboundProducer()
	}()

	received := 0
	for {
		_, ok := b.ConsumeInbound(context.Background())
		if !ok {
			break
		}
		received++
	}
	wg.Wait()
	if received != 100 {
		t.Fatalf("expected 100 messages, got %d", received)
	}
}

func TestConsumeInboundCancelledContext(t *testing.T) {
	b := NewMessageBus()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	_, ok := b.ConsumeInbound(ctx)
	if ok {
		t.Fatal("expected ok=false on context cancellation with no data")
	}
}

func TestInboundAndOutboundAreIndependent(t *testing.T) {
	b := NewMessageBus()
	_ = b.PublishInbound(makeInbound("in"))
	_ = b.PublishOutbound(makeOutbound("out"))

	in, _ := b.ConsumeInbound(context.Background())
	out, _ := b.SubscribeOutbound(context.Background())
	if in.Content != "in" || out.Content != "out" {
		t.Fatalf("unexpected: %+v %+v", in, out)
	}
}
