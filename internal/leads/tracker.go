package leads

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/crmkit/wachat/internal/chat"
	"go.uber.org/zap"
)

// ErrEmptyKey means the conversation id holds no usable phone digits.
var ErrEmptyKey = errors.New("conversation id has no phone digits")

// ErrAlreadyTracked means a lead already exists (or is being created right
// now) for the conversation's phone key.
var ErrAlreadyTracked = errors.New("lead already exists for this phone")

// API is the slice of the CRM client the tracker depends on.
type API interface {
	List(ctx context.Context) ([]Lead, error)
	Create(ctx context.Context, lead Lead) error
}

// Tracker keeps the process-lifetime set of phone keys that already have a
// lead record and mediates creation. Keys are reserved while a creation call
// is in flight, so two concurrent attempts for one key collapse to a single
// request; the CRM's own uniqueness check remains the backstop.
type Tracker struct {
	api         API
	countryCode string
	logger      *zap.Logger

	mu       sync.Mutex
	known    map[string]struct{}
	inflight map[string]struct{}
}

// NewTracker creates a tracker with an empty key set.
func NewTracker(api API, countryCode string, logger *zap.Logger) *Tracker {
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	return &Tracker{
		api:         api,
		countryCode: countryCode,
		logger:      logger,
		known:       make(map[string]struct{}),
		inflight:    make(map[string]struct{}),
	}
}

// Load populates the key set from the CRM once at startup. On failure the set
// stays empty and later creations proceed as if no lead exists.
func (t *Tracker) Load(ctx context.Context) error {
	records, err := t.api.List(ctx)
	if err != nil {
		t.logger.Warn("lead list unavailable, dedup set left empty", zap.Error(err))
		return err
	}
	t.mu.Lock()
	for _, r := range records {
		if key := NormalizeKey(r.Phone, t.countryCode); key != "" {
			t.known[key] = struct{}{}
		}
	}
	n := len(t.known)
	t.mu.Unlock()
	t.logger.Info("lead key set loaded", zap.Int("keys", n))
	return nil
}

// Key canonicalizes a raw identifier with the tracker's country code.
func (t *Tracker) Key(raw string) string {
	return NormalizeKey(raw, t.countryCode)
}

// HasLead reports whether a lead record is known for the key. The empty key
// never has a lead.
func (t *Tracker) HasLead(key string) bool {
	if key == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.known[key]
	return ok
}

// CreateLead derives the phone key from the conversation id and submits a
// creation request unless a lead already exists or is in flight. The key is
// added to the set only after the CRM confirms; failure leaves the set
// unchanged and is not retried.
func (t *Tracker) CreateLead(ctx context.Context, c chat.Chat) error {
	key := t.Key(Digits(c.ID))
	if key == "" {
		return fmt.Errorf("%w: %q", ErrEmptyKey, c.ID)
	}

	t.mu.Lock()
	if _, ok := t.known[key]; ok {
		t.mu.Unlock()
		return ErrAlreadyTracked
	}
	if _, ok := t.inflight[key]; ok {
		t.mu.Unlock()
		return ErrAlreadyTracked
	}
	t.inflight[key] = struct{}{}
	t.mu.Unlock()

	err := t.api.Create(ctx, Lead{
		Name:    "whatsapp",
		Phone:   "+" + key,
		Channel: "whatsapp",
		Status:  "new",
	})

	t.mu.Lock()
	delete(t.inflight, key)
	if err == nil {
		t.known[key] = struct{}{}
	}
	t.mu.Unlock()

	if err != nil {
		t.logger.Warn("lead creation failed", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}
