package sync

import (
	"testing"
	"time"
)

func TestGateFirstCallPasses(t *testing.T) {
	g := NewGate(time.Second)
	if !g.Allow() {
		t.Fatal("first Allow() should pass")
	}
}

func TestGateSwallowsBurst(t *testing.T) {
	g := NewGate(1500 * time.Millisecond)
	now := time.Unix(1000, 0)
	g.now = func() time.Time { return now }

	if !g.Allow() {
		t.Fatal("first Allow() should pass")
	}
	for i := 0; i < 5; i++ {
		now = now.Add(100 * time.Millisecond)
		if g.Allow() {
			t.Fatalf("Allow() inside the window passed at +%dms", (i+1)*100)
		}
	}

	now = now.Add(1500 * time.Millisecond)
	if !g.Allow() {
		t.Fatal("Allow() after the window should pass")
	}
}

func TestGateWindowRestartsOnPass(t *testing.T) {
	g := NewGate(time.Second)
	now := time.Unix(1000, 0)
	g.now = func() time.Time { return now }

	g.Allow()
	now = now.Add(time.Second)
	if !g.Allow() {
		t.Fatal("Allow() at the boundary should pass")
	}
	now = now.Add(999 * time.Millisecond)
	if g.Allow() {
		t.Fatal("window should restart from the last pass, not the first")
	}
}
