package events

import (
	"testing"
	"time"
)

func TestPublishFansOut(t *testing.T) {
	b := NewBus()
	a, unsubA := b.Subscribe(EventPriceTick, 1)
	c, unsubC := b.Subscribe(EventPriceTick, 1)
	defer unsubC()

	tick := PriceTick{Symbol: "BTCUSDT", Price: 1, Timestamp: time.Unix(1, 0)}
	b.Publish(EventPriceTick, tick)
	for _, ch := range []<-chan any{a, c} {
		got := (<-ch).(PriceTick)
		if got != tick {
			t.Fatalf("got %+v", got)
		}
	}

	unsubA()
	if _, ok := <-a; ok {
		t.Fatal("unsubscribed channel still open")
	}
	b.Publish(EventPriceTick, tick)
	if got := <-c; got.(PriceTick) != tick {
		t.Fatalf("got %+v", got)
	}
}

func TestPublishDropsForSlowSubscriber(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventPositionChange, 1)
	defer unsub()

	b.Publish(EventPositionChange, 1)
	b.Publish(EventPositionChange, 2) // dropped, buffer is full
	if got := <-ch; got != 1 {
		t.Fatalf("got %v", got)
	}
	select {
	case v := <-ch:
		t.Fatalf("unexpected %v", v)
	default:
	}
}

func TestSubscribeLatestKeepsNewest(t *testing.T) {
	b := NewBus()
	ch, unsub := b.SubscribeLatest(EventPositionChange)

	for i := 1; i <= 100; i++ {
		b.Publish(EventPositionChange, i)
	}
	if got := <-ch; got != 100 {
		t.Fatalf("got %v, want 100", got)
	}
	select {
	case v := <-ch:
		t.Fatalf("unexpected %v", v)
	default:
	}

	unsub()
	unsub()
	if _, ok := <-ch; ok {
		t.Fatal("unsubscribed channel still open")
	}
	b.Publish(EventPositionChange, 101)
}
