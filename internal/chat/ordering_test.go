package chat

import "testing"

func TestCompareTiers(t *testing.T) {
	tests := []struct {
		name string
		a, b Chat
		want int // sign only
	}{
		{"pinned beats unread", Chat{Pinned: true}, Chat{UnreadCount: 50, LastTS: 999}, -1},
		{"unread presence beats timestamp", Chat{UnreadCount: 1}, Chat{LastTS: 999}, -1},
		{"unread magnitude ties", Chat{UnreadCount: 1, LastTS: 5}, Chat{UnreadCount: 50, LastTS: 3}, -1},
		{"newer timestamp first", Chat{LastTS: 10}, Chat{LastTS: 20}, 1},
		{"name ascending tiebreak", Chat{Name: "Anna"}, Chat{Name: "Boris"}, -1},
		{"equal", Chat{Name: "x"}, Chat{Name: "x"}, 0},
	}
	for _, tt := range tests {
		got := Compare(tt.a, tt.b)
		if sign(got) != tt.want {
			t.Errorf("%s: Compare = %d, want sign %d", tt.name, got, tt.want)
		}
		if tt.want != 0 && sign(Compare(tt.b, tt.a)) != -tt.want {
			t.Errorf("%s: comparator not antisymmetric", tt.name)
		}
	}
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	default:
		return 0
	}
}

func TestSortStable(t *testing.T) {
	chats := []Chat{
		{ID: "c", LastTS: 5},
		{ID: "pin", Pinned: true, LastTS: 1},
		{ID: "u", UnreadCount: 2, LastTS: 2},
		{ID: "a", LastTS: 9},
	}
	got := Sort(chats)
	wantOrder := []string{"pin", "u", "a", "c"}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("position %d = %s, want %s (full: %+v)", i, got[i].ID, id, got)
		}
	}
	// Input untouched.
	if chats[0].ID != "c" {
		t.Error("Sort mutated its input")
	}
}

func TestFilterCategories(t *testing.T) {
	chats := []Chat{
		{ID: "g", IsGroup: true},
		{ID: "d1", UnreadCount: 1},
		{ID: "d2"},
	}
	if got := Filter(chats, CategoryUnread, ""); len(got) != 1 || got[0].ID != "d1" {
		t.Errorf("unread filter = %+v", got)
	}
	if got := Filter(chats, CategoryGroups, ""); len(got) != 1 || got[0].ID != "g" {
		t.Errorf("groups filter = %+v", got)
	}
	if got := Filter(chats, CategoryDirect, ""); len(got) != 2 {
		t.Errorf("direct filter = %+v", got)
	}
	if got := Filter(chats, CategoryAll, ""); len(got) != 3 {
		t.Errorf("all filter = %+v", got)
	}
}

func TestFilterQueryIgnoresCaseAndWhitespace(t *testing.T) {
	chats := []Chat{
		{ID: "996700123456@c.us", Name: "Ak Bata"},
		{ID: "x", Name: "other"},
	}
	for _, q := range []string{"AKBATA", "ak bata", " akba "} {
		got := Filter(chats, CategoryAll, q)
		if len(got) != 1 || got[0].ID != "996700123456@c.us" {
			t.Errorf("query %q matched %+v", q, got)
		}
	}
	// Matching against the id also works.
	if got := Filter(chats, CategoryAll, "700123"); len(got) != 1 {
		t.Errorf("id query matched %+v", got)
	}
}

func TestPage(t *testing.T) {
	chats := make([]Chat, 100)
	if got := Page(chats, 1, 40); len(got) != 40 {
		t.Errorf("page 1 = %d rows, want 40", len(got))
	}
	if got := Page(chats, 2, 40); len(got) != 80 {
		t.Errorf("page 2 = %d rows, want 80", len(got))
	}
	if got := Page(chats, 5, 40); len(got) != 100 {
		t.Errorf("page 5 = %d rows, want all 100", len(got))
	}
	if got := Page(chats, 0, 40); len(got) != 40 {
		t.Errorf("page 0 clamps to 1, got %d rows", len(got))
	}
}

func TestParseTypeFallback(t *testing.T) {
	if got := ParseType("Chat"); got != TypeText {
		t.Errorf("ParseType(Chat) = %q", got)
	}
	if got := ParseType("call"); got != TypeCall {
		t.Errorf("ParseType(call) = %q, want call_log alias", got)
	}
	if got := ParseType("something_new"); got != TypeUnknown {
		t.Errorf("ParseType(unknown) = %q, want fallback", got)
	}
}

func TestIsSystem(t *testing.T) {
	system := []MessageType{TypeE2ENotice, TypeProtocol, TypeTemplate, TypeCall}
	for _, mt := range system {
		if !mt.IsSystem() {
			t.Errorf("%q should be system", mt)
		}
	}
	user := []MessageType{TypeText, TypeImage, TypeVoice, TypeRevoked, TypeReaction, TypeUnknown}
	for _, mt := range user {
		if mt.IsSystem() {
			t.Errorf("%q should not be system", mt)
		}
	}
}

func TestIsStatusBroadcast(t *testing.T) {
	if !IsStatusBroadcast("status@broadcast", "") {
		t.Error("status@broadcast id not detected")
	}
	if !IsStatusBroadcast("x", "Status") {
		t.Error("Status name not detected")
	}
	if IsStatusBroadcast("996700123456@c.us", "Aidar") {
		t.Error("regular chat flagged as status feed")
	}
}
