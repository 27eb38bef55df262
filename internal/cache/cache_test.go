package cache

import (
	"testing"

	"github.com/crmkit/wachat/internal/chat"
)

func msg(id string, ts int64) *chat.Message {
	return &chat.Message{ID: id, ChatID: "c", Type: chat.TypeText, Timestamp: ts}
}

func TestNormalizeDropsNilAndSystem(t *testing.T) {
	batch := []*chat.Message{
		msg("a", 2),
		nil,
		{ID: "sys", Type: chat.TypeProtocol, Timestamp: 1},
		{ID: "call", Type: chat.TypeCall, Timestamp: 3},
		msg("b", 1),
	}
	got := Normalize(batch)
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2: %+v", len(got), got)
	}
	for _, m := range got {
		if m.Type.IsSystem() {
			t.Errorf("system message %q survived normalization", m.ID)
		}
	}
}

func TestNormalizeSortsAscendingStable(t *testing.T) {
	batch := []*chat.Message{
		msg("late", 30),
		msg("tie1", 10),
		msg("tie2", 10),
		msg("early", 5),
	}
	got := Normalize(batch)
	wantOrder := []string{"early", "tie1", "tie2", "late"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestNormalizeDedupsByID(t *testing.T) {
	batch := []*chat.Message{msg("a", 1), msg("a", 2), msg("b", 3)}
	got := Normalize(batch)
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].ID != "a" || got[0].Timestamp != 1 {
		t.Errorf("first occurrence should win: %+v", got[0])
	}
}

func TestAppendIdempotent(t *testing.T) {
	s := New()
	m := *msg("a", 5)
	if _, inserted := s.Append("c", m); !inserted {
		t.Fatal("first append rejected")
	}
	log, inserted := s.Append("c", m)
	if inserted {
		t.Error("duplicate id inserted twice")
	}
	if len(log) != 1 {
		t.Errorf("log has %d entries, want 1", len(log))
	}
}

func TestAppendKeepsTimestampOrder(t *testing.T) {
	s := New()
	s.Replace("c", []*chat.Message{msg("a", 10), msg("b", 30)})
	log, _ := s.Append("c", *msg("mid", 20))
	wantOrder := []string{"a", "mid", "b"}
	for i, id := range wantOrder {
		if log[i].ID != id {
			t.Fatalf("position %d = %s, want %s", i, log[i].ID, id)
		}
	}
}

func TestAppendRejectsSystemKind(t *testing.T) {
	s := New()
	_, inserted := s.Append("c", chat.Message{ID: "x", Type: chat.TypeE2ENotice})
	if inserted {
		t.Error("system message entered the cache")
	}
}

func TestReplaceSwapsWholeLog(t *testing.T) {
	s := New()
	s.Replace("c", []*chat.Message{msg("old", 1)})
	got := s.Replace("c", []*chat.Message{msg("new1", 2), msg("new2", 3)})
	if len(got) != 2 || got[0].ID != "new1" {
		t.Errorf("replace result = %+v", got)
	}
	log, ok := s.Get("c")
	if !ok || len(log) != 2 {
		t.Errorf("stored log = %+v", log)
	}
}

func TestInitOnlyWhenAbsent(t *testing.T) {
	s := New()
	s.Replace("c", []*chat.Message{msg("a", 1)})
	s.Init("c")
	if log, _ := s.Get("c"); len(log) != 1 {
		t.Error("Init cleared an existing log")
	}
	s.Init("fresh")
	if log, ok := s.Get("fresh"); !ok || len(log) != 0 {
		t.Error("Init did not create an empty log")
	}
}
