package position

import (
	"io"
	"log/slog"
	"testing"
	"time"
)

func testHub() *Hub {
	return NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func recvFix(t *testing.T, sub *Subscriber) Position {
	t.Helper()
	select {
	case p := <-sub.Fixes:
		return p
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for fix")
		return Position{}
	}
}

func TestHub_PublishReachesSubscriber(t *testing.T) {
	h := testHub()
	sub := h.Subscribe("dev-1")
	defer h.Unsubscribe("dev-1", sub)

	want := Position{ID: "p1", DeviceID: "dev-1", Lat: 1, Lng: 2}
	h.Publish(want)

	got := recvFix(t, sub)
	if got.ID != want.ID || got.Lat != want.Lat || got.Lng != want.Lng {
		t.Fatalf("got %+v, want %+v", got, want)
	}
}

func TestHub_PublishIsScopedToDevice(t *testing.T) {
	h := testHub()
	a := h.Subscribe("dev-a")
	b := h.Subscribe("dev-b")
	defer h.Unsubscribe("dev-a", a)
	defer h.Unsubscribe("dev-b", b)

	h.Publish(Position{ID: "p1", DeviceID: "dev-a"})

	if got := recvFix(t, a); got.ID != "p1" {
		t.Fatalf("subscriber a got %q, want p1", got.ID)
	}
	select {
	case p := <-b.Fixes:
		t.Fatalf("subscriber b unexpectedly received %+v", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_FanOut(t *testing.T) {
	h := testHub()
	subs := make([]*Subscriber, 3)
	for i := range subs {
		subs[i] = h.Subscribe("dev-1")
	}
	defer func() {
		for _, s := range subs {
			h.Unsubscribe("dev-1", s)
		}
	}()

	h.Publish(Position{ID: "p1", DeviceID: "dev-1"})
	for i, s := range subs {
		if got := recvFix(t, s); got.ID != "p1" {
			t.Fatalf("subscriber %d got %q, want p1", i, got.ID)
		}
	}
}

func TestHub_UnsubscribeSignalsDone(t *testing.T) {
	h := testHub()
	sub := h.Subscribe("dev-1")
	h.Unsubscribe("dev-1", sub)

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("Done not signaled after Unsubscribe")
	}

	// Publishing after unsubscribe must not panic or deliver.
	h.Publish(Position{ID: "p2", DeviceID: "dev-1"})
	select {
	case p := <-sub.Fixes:
		t.Fatalf("received %+v after unsubscribe", p)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_SlowSubscriberDropped(t *testing.T) {
	h := testHub()
	sub := h.Subscribe("dev-1")

	// Fill the queue without draining, then publish one more.
	for i := 0; i <= defaultSendQueueSize; i++ {
		h.Publish(Position{ID: "p", DeviceID: "dev-1"})
	}

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("slow subscriber was not dropped")
	}
}
