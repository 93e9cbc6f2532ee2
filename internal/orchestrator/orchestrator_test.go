package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"linguacode/internal/history"
	"linguacode/internal/language"
	"linguacode/internal/store"
)

type stubTranslator struct {
	calls int
	fn    func(text, src, dst string) (string, error)
}

func (s *stubTranslator) Translate(_ context.Context, text, src, dst string) (string, error) {
	s.calls++
	return s.fn(text, src, dst)
}

type completionCall struct {
	system    string
	user      string
	maxTokens int
}

type stubCompleter struct {
	calls []completionCall
	fn    func(system, user string, maxTokens int) (string, error)
}

func (s *stubCompleter) Complete(_ context.Context, system, user string, maxTokens int) (string, error) {
	s.calls = append(s.calls, completionCall{system, user, maxTokens})
	return s.fn(system, user, maxTokens)
}

func echoTranslator() *stubTranslator {
	return &stubTranslator{fn: func(text, src, dst string) (string, error) {
		return fmt.Sprintf("[%s->%s] %s", src, dst, text), nil
	}}
}

func fixedCompleter(out string) *stubCompleter {
	return &stubCompleter{fn: func(string, string, int) (string, error) {
		return out, nil
	}}
}

func newTestService(t *testing.T, tr Translator, cm Completer) (*Service, *history.Ledger) {
	t.Helper()
	st, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ledger := history.NewLedger(st)
	svc, err := NewService(tr, cm, ledger, language.ModeRegional)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, ledger
}

func TestProcessEntryGuards(t *testing.T) {
	tr := echoTranslator()
	cm := fixedCompleter("out")
	svc, _ := newTestService(t, tr, cm)
	ctx := context.Background()

	cases := []struct{ input, lang, choice string }{
		{"", "hi-IN", "code"},
		{"  ", "hi-IN", "code"},
		{"sort a list", "", "code"},
		{"sort a list", "hi-IN", ""},
		{"sort a list", "hi-IN", "poem"},
	}
	for _, c := range cases {
		if _, err := svc.Process(ctx, "u@example.com", c.input, c.lang, c.choice); !errors.Is(err, ErrBadRequest) {
			t.Fatalf("Process(%q,%q,%q): expected ErrBadRequest, got %v", c.input, c.lang, c.choice, err)
		}
	}
	if tr.calls != 0 || len(cm.calls) != 0 {
		t.Fatalf("entry guard must reject before any remote call: %d translations, %d completions", tr.calls, len(cm.calls))
	}
}

func TestProcessCodeEndToEnd(t *testing.T) {
	tr := &stubTranslator{fn: func(text, src, dst string) (string, error) {
		if src != "hi-IN" || dst != "en-IN" {
			return "", fmt.Errorf("unexpected pair %s->%s", src, dst)
		}
		return "sort a list", nil
	}}
	cm := &stubCompleter{fn: func(system, user string, maxTokens int) (string, error) {
		if strings.Contains(user, "Explain") {
			return "This code sorts a list.", nil
		}
		return "sorted(xs)", nil
	}}
	svc, ledger := newTestService(t, tr, cm)
	ctx := context.Background()

	res, err := svc.Process(ctx, "asha@example.com", "sort a list", "hi-IN", "code")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.TranslatedPrompt != "sort a list" || res.CodeOutput != "sorted(xs)" || res.Explanation != "This code sorts a list." {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Kind != history.KindCode {
		t.Fatalf("unexpected kind %q", res.Kind)
	}

	// The explanation prompt names the user's language, not the raw code.
	if !strings.Contains(cm.calls[1].system, "Hindi") {
		t.Fatalf("explanation system prompt should name Hindi: %q", cm.calls[1].system)
	}
	if cm.calls[0].maxTokens != 2000 || cm.calls[1].maxTokens != 1000 {
		t.Fatalf("unexpected token budgets: %d, %d", cm.calls[0].maxTokens, cm.calls[1].maxTokens)
	}

	records, err := ledger.List(ctx, "asha@example.com")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 1 || records[0].Kind != history.KindCode || records[0].Input != "sort a list" {
		t.Fatalf("unexpected history: %+v", records)
	}
}

func TestProcessTranslationFailureAborts(t *testing.T) {
	tr := &stubTranslator{fn: func(string, string, string) (string, error) {
		return "", errors.New("provider down")
	}}
	cm := fixedCompleter("never")
	svc, ledger := newTestService(t, tr, cm)
	ctx := context.Background()

	_, err := svc.Process(ctx, "asha@example.com", "sort", "ta-IN", "code")
	var ferr *FlowError
	if !errors.As(err, &ferr) || ferr.Stage != StageTranslate {
		t.Fatalf("expected translate-stage FlowError, got %v", err)
	}
	if len(cm.calls) != 0 {
		t.Fatal("no generation must be attempted after translation failure")
	}
	records, _ := ledger.List(ctx, "asha@example.com")
	if len(records) != 0 {
		t.Fatal("no history write after translation failure")
	}
}

func TestProcessTranslatesEvenForPivotInput(t *testing.T) {
	tr := echoTranslator()
	cm := fixedCompleter("code")
	svc, _ := newTestService(t, tr, cm)

	if _, err := svc.Process(context.Background(), "u@example.com", "sort", "en-US", "code"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if tr.calls == 0 {
		t.Fatal("code/website flow always routes through translation")
	}
}

func TestExplanationFallbackChain(t *testing.T) {
	tr := &stubTranslator{fn: func(text, _, _ string) (string, error) { return text, nil }}
	cm := &stubCompleter{fn: func(system, user string, maxTokens int) (string, error) {
		if strings.Contains(user, "Explain") {
			return "", errors.New("explanation model busy")
		}
		return "code", nil
	}}
	svc, _ := newTestService(t, tr, cm)

	res, err := svc.Process(context.Background(), "u@example.com", "sort", "ta-IN", "code")
	if err != nil {
		t.Fatalf("explanation failure must not fail the request: %v", err)
	}
	if res.CodeOutput != "code" {
		t.Fatalf("unexpected code output %q", res.CodeOutput)
	}
	if res.Explanation != placeholderExplanation {
		t.Fatalf("expected placeholder explanation, got %q", res.Explanation)
	}

	// One generation call, then Tamil and English explanation attempts.
	if len(cm.calls) != 3 {
		t.Fatalf("expected 3 completion calls, got %d", len(cm.calls))
	}
	if !strings.Contains(cm.calls[1].system, "Tamil") || !strings.Contains(cm.calls[2].system, "English") {
		t.Fatalf("fallback order wrong: %q then %q", cm.calls[1].system, cm.calls[2].system)
	}
}

func TestExplanationEnglishRetrySucceeds(t *testing.T) {
	tr := &stubTranslator{fn: func(text, _, _ string) (string, error) { return text, nil }}
	cm := &stubCompleter{fn: func(system, user string, maxTokens int) (string, error) {
		if strings.Contains(user, "Explain") && !strings.Contains(system, "English") {
			return "", errors.New("no tamil today")
		}
		if strings.Contains(user, "Explain") {
			return "english explanation", nil
		}
		return "code", nil
	}}
	svc, _ := newTestService(t, tr, cm)

	res, err := svc.Process(context.Background(), "u@example.com", "sort", "ta-IN", "code")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if res.Explanation != "english explanation" {
		t.Fatalf("expected English fallback explanation, got %q", res.Explanation)
	}
}

func TestProcessWebsite(t *testing.T) {
	tr := &stubTranslator{fn: func(text, src, dst string) (string, error) {
		if src == "en-IN" && dst == "ta-IN" {
			return "tamil: " + text, nil
		}
		return "build me a shop", nil
	}}
	cm := fixedCompleter("unused")
	svc, ledger := newTestService(t, tr, cm)
	ctx := context.Background()

	res, err := svc.Process(ctx, "asha@example.com", "oru kadai", "ta-IN", "website")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.Contains(res.WebsiteHTML, "build me a shop") {
		t.Fatalf("website must embed the translated prompt: %q", res.WebsiteHTML)
	}
	if !strings.HasPrefix(res.Explanation, "tamil: ") {
		t.Fatalf("explanation should be translated back: %q", res.Explanation)
	}
	if len(cm.calls) != 0 {
		t.Fatal("website flow must not call the completion provider")
	}

	records, _ := ledger.List(ctx, "asha@example.com")
	if len(records) != 1 || records[0].Kind != history.KindWebsite || records[0].WebsiteHTML == "" {
		t.Fatalf("unexpected history: %+v", records)
	}
}

func TestProcessWebsiteExplanationFallsBackToEnglish(t *testing.T) {
	tr := &stubTranslator{fn: func(text, src, dst string) (string, error) {
		if dst == "ta-IN" {
			return "", errors.New("no back-translation")
		}
		return "a shop", nil
	}}
	svc, _ := newTestService(t, tr, fixedCompleter("unused"))

	res, err := svc.Process(context.Background(), "u@example.com", "kadai", "ta-IN", "website")
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !strings.HasPrefix(res.Explanation, "This website was generated") {
		t.Fatalf("expected English fallback, got %q", res.Explanation)
	}
}

func TestProcessWebsitePivotSkipsBackTranslation(t *testing.T) {
	tr := echoTranslator()
	svc, _ := newTestService(t, tr, fixedCompleter("unused"))

	if _, err := svc.Process(context.Background(), "u@example.com", "a shop", "en-US", "website"); err != nil {
		t.Fatalf("Process: %v", err)
	}
	// One call to reach the pivot, none to come back.
	if tr.calls != 1 {
		t.Fatalf("expected 1 translation call, got %d", tr.calls)
	}
}

func TestAppPlan(t *testing.T) {
	tr := &stubTranslator{fn: func(string, string, string) (string, error) {
		return "a todo app", nil
	}}
	cm := &stubCompleter{fn: func(system, user string, maxTokens int) (string, error) {
		if !strings.Contains(user, "a todo app") {
			return "", fmt.Errorf("unexpected prompt %q", user)
		}
		return "# Plan", nil
	}}
	svc, ledger := newTestService(t, tr, cm)
	ctx := context.Background()

	res, err := svc.AppPlan(ctx, "asha@example.com", "oru pattiyal", "ta-IN")
	if err != nil {
		t.Fatalf("AppPlan: %v", err)
	}
	if res.TranslatedPrompt != "a todo app" || res.AppPlanOutput != "# Plan" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if cm.calls[0].maxTokens != 2000 {
		t.Fatalf("unexpected token budget %d", cm.calls[0].maxTokens)
	}

	records, _ := ledger.List(ctx, "asha@example.com")
	if len(records) != 1 || records[0].Kind != history.KindAppPlan {
		t.Fatalf("unexpected history: %+v", records)
	}
}

func TestAppPlanSkipsTranslationForPivot(t *testing.T) {
	tr := echoTranslator()
	svc, _ := newTestService(t, tr, fixedCompleter("# Plan"))

	res, err := svc.AppPlan(context.Background(), "u@example.com", "a todo app", "en-US")
	if err != nil {
		t.Fatalf("AppPlan: %v", err)
	}
	if tr.calls != 0 {
		t.Fatal("pivot input must skip translation")
	}
	if res.TranslatedPrompt != "a todo app" {
		t.Fatalf("prompt must pass through untouched: %q", res.TranslatedPrompt)
	}
}

func TestAppPlanGuards(t *testing.T) {
	svc, _ := newTestService(t, echoTranslator(), fixedCompleter("x"))
	ctx := context.Background()
	if _, err := svc.AppPlan(ctx, "u@example.com", "", "ta-IN"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
	if _, err := svc.AppPlan(ctx, "u@example.com", "app", ""); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

func TestCodeFromPlan(t *testing.T) {
	tr := &stubTranslator{fn: func(text, src, dst string) (string, error) {
		if dst == "ta-IN" {
			return "tamil explanation", nil
		}
		return "english plan", nil
	}}
	cm := &stubCompleter{fn: func(system, user string, maxTokens int) (string, error) {
		if !strings.Contains(user, "english plan") {
			return "", fmt.Errorf("unexpected prompt %q", user)
		}
		return "the code", nil
	}}
	svc, ledger := newTestService(t, tr, cm)
	ctx := context.Background()

	res, err := svc.CodeFromPlan(ctx, "asha@example.com", "tamil plan text", "ta-IN")
	if err != nil {
		t.Fatalf("CodeFromPlan: %v", err)
	}
	if res.CodeOutput != "the code" || res.Explanation != "tamil explanation" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if cm.calls[0].maxTokens != 4000 {
		t.Fatalf("unexpected token budget %d", cm.calls[0].maxTokens)
	}

	records, _ := ledger.List(ctx, "asha@example.com")
	if len(records) != 1 || records[0].Kind != history.KindCodeFromPlan {
		t.Fatalf("unexpected history: %+v", records)
	}
	if records[0].TranslatedPlan != "english plan" {
		t.Fatalf("record must carry the translated plan: %+v", records[0])
	}
	if records[0].TranslatedPrompt != "" {
		t.Fatal("plan records use translatedPlan, not translatedPrompt")
	}
}

func TestCodeFromPlanDefaultsToPivot(t *testing.T) {
	tr := echoTranslator()
	svc, _ := newTestService(t, tr, fixedCompleter("code"))

	res, err := svc.CodeFromPlan(context.Background(), "u@example.com", "plan text", "")
	if err != nil {
		t.Fatalf("CodeFromPlan: %v", err)
	}
	if tr.calls != 0 {
		t.Fatal("missing language defaults to pivot and skips translation")
	}
	if res.Explanation != planExplanation {
		t.Fatalf("expected fixed English explanation, got %q", res.Explanation)
	}
}

func TestCodeFromPlanTruncatesOversizedPlan(t *testing.T) {
	var got string
	tr := &stubTranslator{fn: func(text, src, dst string) (string, error) {
		if dst != "ta-IN" {
			got = text
		}
		return text, nil
	}}
	svc, _ := newTestService(t, tr, fixedCompleter("code"))

	// Tamil letters are multi-byte in UTF-8: the limit must count
	// characters, and the cut must never split one.
	long := strings.Repeat("த", planInputLimit+500)
	if _, err := svc.CodeFromPlan(context.Background(), "u@example.com", long, "ta-IN"); err != nil {
		t.Fatalf("CodeFromPlan: %v", err)
	}
	if n := utf8.RuneCountInString(got); n != planInputLimit {
		t.Fatalf("plan must be truncated to %d characters, got %d", planInputLimit, n)
	}
	if !utf8.ValidString(got) {
		t.Fatal("truncated plan is not valid UTF-8")
	}

	ascii := strings.Repeat("x", planInputLimit+500)
	if _, err := svc.CodeFromPlan(context.Background(), "u@example.com", ascii, "ta-IN"); err != nil {
		t.Fatalf("CodeFromPlan: %v", err)
	}
	if len(got) != planInputLimit {
		t.Fatalf("ascii plan must be truncated to %d chars, got %d", planInputLimit, len(got))
	}
}

func TestCodeFromPlanRequiresPlanText(t *testing.T) {
	svc, _ := newTestService(t, echoTranslator(), fixedCompleter("x"))
	if _, err := svc.CodeFromPlan(context.Background(), "u@example.com", "  ", "ta-IN"); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("expected ErrBadRequest, got %v", err)
	}
}

type failingRecorder struct{}

func (failingRecorder) Append(context.Context, string, history.Record) error {
	return errors.New("disk full")
}

func TestHistoryFailureDoesNotFailRequest(t *testing.T) {
	svc, err := NewService(echoTranslator(), fixedCompleter("code"), failingRecorder{}, language.ModeRegional)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if _, err := svc.Process(context.Background(), "u@example.com", "sort", "hi-IN", "code"); err != nil {
		t.Fatalf("ledger failure must be best-effort: %v", err)
	}
}
