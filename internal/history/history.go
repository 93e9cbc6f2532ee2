package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"linguacode/internal/ids"
	"linguacode/internal/store"
)

// MaxEntries is the per-identity history cap. Appending beyond it drops
// the oldest record.
const MaxEntries = 10

// Kind labels one generation flow outcome.
type Kind string

const (
	KindCode         Kind = "code"
	KindWebsite      Kind = "website"
	KindAppPlan      Kind = "app_plan"
	KindCodeFromPlan Kind = "code_from_plan"
)

// Record is one stored generation outcome. Immutable once appended.
type Record struct {
	ID               string    `json:"id"`
	Kind             Kind      `json:"type"`
	Input            string    `json:"input"`
	TranslatedPrompt string    `json:"translatedPrompt,omitempty"`
	TranslatedPlan   string    `json:"translatedPlan,omitempty"`
	CodeOutput       string    `json:"codeOutput,omitempty"`
	WebsiteHTML      string    `json:"websiteHtml,omitempty"`
	AppPlanOutput    string    `json:"appPlanOutput,omitempty"`
	Explanation      string    `json:"explanation,omitempty"`
	LanguageCode     string    `json:"languageCode"`
	CreatedAt        time.Time `json:"timestamp"`
}

// Ledger keeps a capped, most-recent-first generation log per identity.
// The store's read-modify-write is serialized per identity so concurrent
// appends for the same user never lose an update.
type Ledger struct {
	store store.Store
	now   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures Ledger behavior.
type Option func(*Ledger)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(l *Ledger) {
		if fn != nil {
			l.now = fn
		}
	}
}

func NewLedger(st store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: st,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append stamps the record and prepends it to the identity's history,
// truncating to MaxEntries.
func (l *Ledger) Append(ctx context.Context, email string, rec Record) error {
	if email == "" {
		return errors.New("history: email is required")
	}
	lock := l.lockFor(email)
	lock.Lock()
	defer lock.Unlock()

	records, err := l.load(ctx, email)
	if err != nil {
		return err
	}

	rec.ID = ids.New()
	rec.CreatedAt = l.now().UTC()

	records = append([]Record{rec}, records...)
	if len(records) > MaxEntries {
		records = records[:MaxEntries]
	}
	doc, err := json.Marshal(records)
	if err != nil {
		return err
	}
	return l.store.Put(ctx, store.CollectionHistory, email, doc)
}

// List returns the stored sequence, most recent first. A missing identity
// is a valid, empty state.
func (l *Ledger) List(ctx context.Context, email string) ([]Record, error) {
	return l.load(ctx, email)
}

func (l *Ledger) load(ctx context.Context, email string) ([]Record, error) {
	doc, err := l.store.Get(ctx, store.CollectionHistory, email)
	if errors.Is(err, store.ErrNotFound) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(doc, &records); err != nil {
		return nil, fmt.Errorf("decode history for %s: %w", email, err)
	}
	return records, nil
}

func (l *Ledger) lockFor(email string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[email]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[email] = lock
	}
	return lock
}
