package tui

import "testing"

func TestComposerDraftSurvivesSwitch(t *testing.T) {
	c := NewComposer()

	c.SwitchChat("a")
	c.SetText("half-typed message")

	c.SwitchChat("b")
	if got := c.GetText(); got != "" {
		t.Fatalf("fresh chat shows draft %q", got)
	}
	c.SetText("other draft")

	c.SwitchChat("a")
	if got := c.GetText(); got != "half-typed message" {
		t.Errorf("draft lost, got %q", got)
	}
	c.SwitchChat("b")
	if got := c.GetText(); got != "other draft" {
		t.Errorf("second draft lost, got %q", got)
	}
}

func TestComposerSwitchClearsReply(t *testing.T) {
	c := NewComposer()
	c.SwitchChat("a")
	c.SetReply("m1", "original text")
	if !c.Replying() {
		t.Fatal("reply not armed")
	}

	c.SwitchChat("b")
	if c.Replying() {
		t.Error("reply survived chat switch")
	}
}

func TestComposerRestoreAfterFailedSend(t *testing.T) {
	c := NewComposer()
	c.SwitchChat("a")

	c.Restore("a", "did not go through", "q1")
	if got := c.GetText(); got != "did not go through" {
		t.Fatalf("text = %q", got)
	}
	if !c.Replying() {
		t.Error("reply target not restored")
	}

	// Text typed since the failure wins.
	c.SetText("newer text")
	c.Restore("a", "stale failure", "")
	if got := c.GetText(); got != "newer text" {
		t.Errorf("restore clobbered newer text: %q", got)
	}

	// Failure for a background chat lands in its draft slot.
	c.Restore("b", "other chat text", "")
	c.SwitchChat("b")
	if got := c.GetText(); got != "other chat text" {
		t.Errorf("background restore lost: %q", got)
	}
}

func TestComposerEmptyDraftNotKept(t *testing.T) {
	c := NewComposer()
	c.SwitchChat("a")
	c.SetText("x")
	c.SetText("")
	c.SwitchChat("b")
	c.SwitchChat("a")
	if got := c.GetText(); got != "" {
		t.Errorf("empty draft resurrected as %q", got)
	}
}
