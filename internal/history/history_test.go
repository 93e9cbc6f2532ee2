package history

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"linguacode/internal/store"
)

func newTestLedger(t *testing.T, opts ...Option) *Ledger {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return NewLedger(st, opts...)
}

func TestListEmptyForUnknownIdentity(t *testing.T) {
	l := newTestLedger(t)
	records, err := l.List(context.Background(), "nobody@example.com")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("expected empty history, got %d records", len(records))
	}
}

func TestAppendMostRecentFirst(t *testing.T) {
	clock := time.Unix(1_700_000_000, 0)
	l := newTestLedger(t, WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rec := Record{Kind: KindCode, Input: fmt.Sprintf("input-%d", i), LanguageCode: "hi-IN"}
		if err := l.Append(ctx, "asha@example.com", rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, err := l.List(ctx, "asha@example.com")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	if records[0].Input != "input-2" || records[2].Input != "input-0" {
		t.Fatalf("history not most-recent-first: %v, %v", records[0].Input, records[2].Input)
	}
	for _, rec := range records {
		if rec.ID == "" || rec.CreatedAt.IsZero() {
			t.Fatalf("record not stamped: %+v", rec)
		}
	}
	if !records[0].CreatedAt.After(records[1].CreatedAt) {
		t.Fatal("timestamps must be strictly descending")
	}
}

func TestTruncationDropsOldest(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	for i := 0; i < MaxEntries+1; i++ {
		rec := Record{Kind: KindAppPlan, Input: fmt.Sprintf("input-%d", i), LanguageCode: "ta"}
		if err := l.Append(ctx, "asha@example.com", rec); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	records, err := l.List(ctx, "asha@example.com")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != MaxEntries {
		t.Fatalf("expected %d records, got %d", MaxEntries, len(records))
	}
	// The 11th append dropped input-0, never a middle record.
	if records[0].Input != fmt.Sprintf("input-%d", MaxEntries) {
		t.Fatalf("unexpected head: %s", records[0].Input)
	}
	if records[MaxEntries-1].Input != "input-1" {
		t.Fatalf("unexpected tail: %s", records[MaxEntries-1].Input)
	}
}

func TestRecordFieldPerKind(t *testing.T) {
	code, err := json.Marshal(Record{Kind: KindCode, Input: "sort", TranslatedPrompt: "sort a list", LanguageCode: "ta-IN"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(code), `"translatedPrompt":"sort a list"`) {
		t.Fatalf("code record missing translatedPrompt: %s", code)
	}
	if strings.Contains(string(code), "translatedPlan") {
		t.Fatalf("code record must not carry translatedPlan: %s", code)
	}

	plan, err := json.Marshal(Record{Kind: KindCodeFromPlan, Input: "plan", TranslatedPlan: "english plan", LanguageCode: "ta-IN"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(plan), `"translatedPlan":"english plan"`) {
		t.Fatalf("plan record missing translatedPlan: %s", plan)
	}
	if strings.Contains(string(plan), "translatedPrompt") {
		t.Fatalf("plan record must not carry translatedPrompt: %s", plan)
	}
}

func TestConcurrentAppendsLoseNothing(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	const n = 8
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rec := Record{Kind: KindCode, Input: fmt.Sprintf("concurrent-%d", i), LanguageCode: "hi-IN"}
			if err := l.Append(ctx, "asha@example.com", rec); err != nil {
				t.Errorf("Append: %v", err)
			}
		}(i)
	}
	wg.Wait()

	records, err := l.List(ctx, "asha@example.com")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != n {
		t.Fatalf("lost updates: expected %d records, got %d", n, len(records))
	}
}

func TestHistoriesAreIsolatedPerIdentity(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	if err := l.Append(ctx, "a@example.com", Record{Kind: KindCode, Input: "a", LanguageCode: "hi-IN"}); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.Append(ctx, "b@example.com", Record{Kind: KindWebsite, Input: "b", LanguageCode: "ta"}); err != nil {
		t.Fatalf("Append: %v", err)
	}

	recordsA, _ := l.List(ctx, "a@example.com")
	recordsB, _ := l.List(ctx, "b@example.com")
	if len(recordsA) != 1 || len(recordsB) != 1 {
		t.Fatalf("expected isolated histories, got %d and %d", len(recordsA), len(recordsB))
	}
	if recordsA[0].Kind != KindCode || recordsB[0].Kind != KindWebsite {
		t.Fatal("records crossed identities")
	}
}
