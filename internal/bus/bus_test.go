package bus

import (
	"testing"
	"time"
)

func TestPublishToMatchingPrefix(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("gateway.", 4)
	defer unsub()

	b.Emit(GatewayRefresh, nil)

	select {
	case evt := <-ch:
		if evt.Kind != GatewayRefresh {
			t.Errorf("kind = %q, want %q", evt.Kind, GatewayRefresh)
		}
		if evt.Timestamp.IsZero() {
			t.Error("timestamp not stamped")
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPublishSkipsOtherNamespaces(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("view.", 4)
	defer unsub()

	b.Emit(GatewayMessage, nil)

	select {
	case evt := <-ch:
		t.Fatalf("unexpected event %q on view. subscription", evt.Kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishDoesNotBlockOnFullBuffer(t *testing.T) {
	b := New()
	_, unsub := b.Subscribe("view.", 1)
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			b.Emit(ViewNotice, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on full subscriber")
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe("view.", 4)
	unsub()

	b.Emit(ViewChats, nil)

	select {
	case <-ch:
		t.Fatal("received event after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}
