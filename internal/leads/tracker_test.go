package leads

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/crmkit/wachat/internal/chat"
	"go.uber.org/zap"
)

type fakeAPI struct {
	mu        sync.Mutex
	listErr   error
	leads     []Lead
	created   []Lead
	createErr error
	release   chan struct{} // if set, Create blocks until closed
}

func (f *fakeAPI) List(context.Context) ([]Lead, error) {
	return f.leads, f.listErr
}

func (f *fakeAPI) Create(_ context.Context, l Lead) error {
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, l)
	return nil
}

func testTracker(api API) *Tracker {
	return NewTracker(api, DefaultCountryCode, zap.NewNop())
}

func TestLoadPopulatesKeySet(t *testing.T) {
	api := &fakeAPI{leads: []Lead{
		{Phone: "+996700123456"},
		{Phone: "0700999888"},
		{Phone: ""},
	}}
	tr := testTracker(api)
	if err := tr.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	if !tr.HasLead("996700123456") {
		t.Error("canonical phone not tracked")
	}
	if !tr.HasLead("996700999888") {
		t.Error("local-format phone not normalized into set")
	}
	if tr.HasLead("") {
		t.Error("empty key reported as tracked")
	}
}

func TestLoadFailureLeavesSetEmpty(t *testing.T) {
	api := &fakeAPI{listErr: errors.New("boom")}
	tr := testTracker(api)
	if err := tr.Load(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if tr.HasLead("996700123456") {
		t.Error("key set not empty after failed load")
	}
}

func TestCreateLeadSubmitsAndTracks(t *testing.T) {
	api := &fakeAPI{}
	tr := testTracker(api)
	conv := chat.Chat{ID: "0700123456@c.us", Name: "Aigul"}

	if err := tr.CreateLead(context.Background(), conv); err != nil {
		t.Fatal(err)
	}
	if len(api.created) != 1 {
		t.Fatalf("created %d leads, want 1", len(api.created))
	}
	got := api.created[0]
	if got.Phone != "+996700123456" || got.Channel != "whatsapp" || got.Status != "new" {
		t.Errorf("lead payload = %+v", got)
	}
	// Second attempt for the same key is a no-op.
	if err := tr.CreateLead(context.Background(), conv); !errors.Is(err, ErrAlreadyTracked) {
		t.Errorf("second create err = %v, want ErrAlreadyTracked", err)
	}
	if len(api.created) != 1 {
		t.Errorf("created %d leads after repeat, want 1", len(api.created))
	}
}

func TestCreateLeadEmptyKeyAborts(t *testing.T) {
	api := &fakeAPI{}
	tr := testTracker(api)
	err := tr.CreateLead(context.Background(), chat.Chat{ID: "broadcast"})
	if !errors.Is(err, ErrEmptyKey) {
		t.Errorf("err = %v, want ErrEmptyKey", err)
	}
	if len(api.created) != 0 {
		t.Error("creation attempted with empty key")
	}
}

func TestCreateLeadFailureLeavesSetUnchanged(t *testing.T) {
	api := &fakeAPI{createErr: errors.New("503")}
	tr := testTracker(api)
	conv := chat.Chat{ID: "700123456@c.us"}

	if err := tr.CreateLead(context.Background(), conv); err == nil {
		t.Fatal("expected error")
	}
	if tr.HasLead("996700123456") {
		t.Error("failed creation inserted key")
	}
	// A retry goes through to the API again.
	api.createErr = nil
	if err := tr.CreateLead(context.Background(), conv); err != nil {
		t.Fatal(err)
	}
	if !tr.HasLead("996700123456") {
		t.Error("successful retry did not insert key")
	}
}

func TestCreateLeadConcurrentSameKeyCollapses(t *testing.T) {
	api := &fakeAPI{release: make(chan struct{})}
	tr := testTracker(api)
	conv := chat.Chat{ID: "996700123456@c.us"}

	errs := make(chan error, 2)
	go func() { errs <- tr.CreateLead(context.Background(), conv) }()
	go func() { errs <- tr.CreateLead(context.Background(), conv) }()

	// One call blocks inside Create; the other must bounce off the
	// in-flight reservation without reaching the API.
	first := <-errs
	if !errors.Is(first, ErrAlreadyTracked) {
		t.Fatalf("fast path err = %v, want ErrAlreadyTracked", first)
	}
	close(api.release)
	if err := <-errs; err != nil {
		t.Fatalf("in-flight create err = %v", err)
	}
	if len(api.created) != 1 {
		t.Errorf("created %d leads, want exactly 1", len(api.created))
	}
}
