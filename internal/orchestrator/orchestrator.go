// Package orchestrator runs the generation flows: translate the user's
// input to the English pivot, call the completion provider, derive an
// explanation, and record the outcome in the history ledger.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"linguacode/internal/history"
	"linguacode/internal/language"
	"linguacode/internal/obs"
)

// ErrBadRequest rejects a flow before any remote call is made.
var ErrBadRequest = errors.New("orchestrator: bad request")

// Stage identifies where a flow failed.
type Stage string

const (
	StageTranslate Stage = "translate"
	StageGenerate  Stage = "generate"
)

// FlowError is a stage-specific failure. Explanation derivation never
// produces one; it always degrades to a fallback instead.
// TranslatedPrompt carries the artifact produced before the failing
// stage, so abort responses can echo it.
type FlowError struct {
	Stage            Stage
	TranslatedPrompt string
	Err              error
}

func (e *FlowError) Error() string {
	return fmt.Sprintf("orchestrator: %s stage: %v", e.Stage, e.Err)
}

func (e *FlowError) Unwrap() error { return e.Err }

// Translator converts text between languages.
type Translator interface {
	Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error)
}

// Completer runs one system+user chat completion.
type Completer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string, maxTokens int) (string, error)
}

// Recorder appends generation records. Satisfied by history.Ledger.
type Recorder interface {
	Append(ctx context.Context, email string, rec history.Record) error
}

const (
	codeSystemPrompt    = "You are a helpful programming assistant. Generate clean, efficient, and well-documented code."
	explainSystemPrompt = "You are a helpful programming assistant. Provide a clear and concise explanation of the code in %s."
	planSystemPrompt    = "You are an AI assistant specialized in creating detailed application blueprints in markdown format. Provide a clear structure including sections like Introduction, Features, Technologies, Architecture, and rough steps for implementation. The plan should be comprehensive and easy to understand."
	buildSystemPrompt   = "You are an AI assistant specialized in generating code based on a provided application plan. Write the code based on the detailed blueprint. Provide clear and concise code."

	codeMaxTokens    = 2000
	explainMaxTokens = 1000
	planMaxTokens    = 2000
	buildMaxTokens   = 4000

	// planInputLimit bounds what the translation provider will accept.
	planInputLimit = 2000

	placeholderExplanation = "Unable to generate explanation due to an error."
	planExplanation        = "Code generated based on the provided app plan."
)

// Service coordinates the four generation flows.
type Service struct {
	translator Translator
	completer  Completer
	records    Recorder
	mode       language.Mode
}

// NewService wires the orchestrator. mode controls language-code
// normalization before provider calls.
func NewService(tr Translator, cm Completer, rec Recorder, mode language.Mode) (*Service, error) {
	if tr == nil || cm == nil || rec == nil {
		return nil, errors.New("orchestrator: translator, completer and recorder are required")
	}
	if mode != language.ModeBase && mode != language.ModeRegional {
		mode = language.ModeRegional
	}
	return &Service{translator: tr, completer: cm, records: rec, mode: mode}, nil
}

// ProcessResult is the outcome of flow A.
type ProcessResult struct {
	Kind             history.Kind
	TranslatedPrompt string
	CodeOutput       string
	WebsiteHTML      string
	Explanation      string
}

// Process handles the code|website flow: translate to pivot, generate,
// derive an explanation, record. Explanation failure never fails the
// request.
func (s *Service) Process(ctx context.Context, email, input, langCode, choice string) (ProcessResult, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.TrimSpace(langCode) == "" {
		return ProcessResult{}, fmt.Errorf("%w: user_input and user_language_code are required", ErrBadRequest)
	}
	if choice != string(history.KindCode) && choice != "website" {
		return ProcessResult{}, fmt.Errorf("%w: choice must be code or website", ErrBadRequest)
	}

	// The source behavior: flow A always routes through translation,
	// even for pivot-language input.
	prompt, err := s.toPivot(ctx, input, langCode)
	if err != nil {
		obs.ObserveGeneration(choice, "translate_failed")
		return ProcessResult{}, &FlowError{Stage: StageTranslate, Err: err}
	}

	var res ProcessResult
	switch choice {
	case string(history.KindCode):
		res, err = s.generateCode(ctx, prompt, langCode)
	case "website":
		res, err = s.generateWebsite(ctx, prompt, langCode)
	}
	if err != nil {
		obs.ObserveGeneration(choice, "generate_failed")
		return ProcessResult{}, &FlowError{Stage: StageGenerate, TranslatedPrompt: prompt, Err: err}
	}
	res.TranslatedPrompt = prompt

	s.record(ctx, email, history.Record{
		Kind:             res.Kind,
		Input:            input,
		TranslatedPrompt: prompt,
		CodeOutput:       res.CodeOutput,
		WebsiteHTML:      res.WebsiteHTML,
		Explanation:      res.Explanation,
		LanguageCode:     langCode,
	})
	obs.ObserveGeneration(choice, "ok")
	return res, nil
}

func (s *Service) generateCode(ctx context.Context, prompt, langCode string) (ProcessResult, error) {
	user := fmt.Sprintf("Write a Python code for: %s. Include comments explaining the code.", prompt)
	code, err := s.completer.Complete(ctx, codeSystemPrompt, user, codeMaxTokens)
	if err != nil {
		return ProcessResult{}, err
	}
	return ProcessResult{
		Kind:        history.KindCode,
		CodeOutput:  code,
		Explanation: s.explainCode(ctx, code, langCode),
	}, nil
}

// explainCode tries the user's display language, then English, then a
// fixed placeholder. It never returns an error.
func (s *Service) explainCode(ctx context.Context, code, langCode string) string {
	user := "Explain the following code:\n" + code
	sys := fmt.Sprintf(explainSystemPrompt, language.DisplayName(langCode))
	explanation, err := s.completer.Complete(ctx, sys, user, explainMaxTokens)
	if err == nil {
		return explanation
	}
	obs.Log("warn", "explanation failed, retrying in English", map[string]any{"error": err.Error()})

	sys = fmt.Sprintf(explainSystemPrompt, "English")
	explanation, err = s.completer.Complete(ctx, sys, user, explainMaxTokens)
	if err == nil {
		return explanation
	}
	obs.Log("warn", "english explanation also failed", map[string]any{"error": err.Error()})
	return placeholderExplanation
}

func (s *Service) generateWebsite(ctx context.Context, prompt, langCode string) (ProcessResult, error) {
	html := fmt.Sprintf(`<html>
  <head>
    <title>Generated Website</title>
    <meta charset='utf-8'>
    <style>
      body { font-family: sans-serif; padding: 2rem; background: #f9f9f9; }
      h1 { color: #2563eb; }
    </style>
  </head>
  <body>
    <h1>Website generated for:</h1>
    <p>%s</p>
  </body>
</html>
`, prompt)

	explanation := fmt.Sprintf("This website was generated based on your description: %s", prompt)
	if !language.IsPivot(langCode) {
		translated, err := s.fromPivot(ctx, explanation, langCode)
		if err != nil {
			obs.Log("warn", "website explanation translation failed, using English", map[string]any{"error": err.Error()})
		} else {
			explanation = translated
		}
	}
	return ProcessResult{
		Kind:        history.KindWebsite,
		WebsiteHTML: html,
		Explanation: explanation,
	}, nil
}

// AppPlanResult is the outcome of flow B.
type AppPlanResult struct {
	TranslatedPrompt string
	AppPlanOutput    string
}

// AppPlan handles the blueprint flow. Translation is skipped for
// pivot-language input; there is no explanation stage.
func (s *Service) AppPlan(ctx context.Context, email, input, langCode string) (AppPlanResult, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.TrimSpace(langCode) == "" {
		return AppPlanResult{}, fmt.Errorf("%w: user_input and user_language_code are required", ErrBadRequest)
	}

	prompt := input
	if !language.IsPivot(langCode) {
		var err error
		prompt, err = s.toPivot(ctx, input, langCode)
		if err != nil {
			obs.ObserveGeneration("app_plan", "translate_failed")
			return AppPlanResult{}, &FlowError{Stage: StageTranslate, Err: err}
		}
	}

	user := fmt.Sprintf("Create an app plan for: %s. Provide the output in markdown format.", prompt)
	plan, err := s.completer.Complete(ctx, planSystemPrompt, user, planMaxTokens)
	if err != nil {
		obs.ObserveGeneration("app_plan", "generate_failed")
		return AppPlanResult{}, &FlowError{Stage: StageGenerate, TranslatedPrompt: prompt, Err: err}
	}

	s.record(ctx, email, history.Record{
		Kind:             history.KindAppPlan,
		Input:            input,
		TranslatedPrompt: prompt,
		AppPlanOutput:    plan,
		LanguageCode:     langCode,
	})
	obs.ObserveGeneration("app_plan", "ok")
	return AppPlanResult{TranslatedPrompt: prompt, AppPlanOutput: plan}, nil
}

// CodeFromPlanResult is the outcome of flow C.
type CodeFromPlanResult struct {
	TranslatedPlan string
	CodeOutput     string
	Explanation    string
}

// CodeFromPlan implements a previously generated blueprint. Oversized
// plans are truncated to what the translation provider accepts.
func (s *Service) CodeFromPlan(ctx context.Context, email, planText, langCode string) (CodeFromPlanResult, error) {
	planText = strings.TrimSpace(planText)
	if planText == "" {
		return CodeFromPlanResult{}, fmt.Errorf("%w: app_plan_text is required", ErrBadRequest)
	}
	if langCode == "" {
		langCode = "en-US"
	}
	// The limit counts characters, not bytes: cutting mid-rune would
	// hand the translator invalid UTF-8.
	if utf8.RuneCountInString(planText) > planInputLimit {
		obs.Log("warn", "app plan exceeds translation limit, truncating", map[string]any{"length": utf8.RuneCountInString(planText)})
		planText = string([]rune(planText)[:planInputLimit])
	}

	plan := planText
	if !language.IsPivot(langCode) {
		var err error
		plan, err = s.toPivot(ctx, planText, langCode)
		if err != nil {
			obs.ObserveGeneration("code_from_plan", "translate_failed")
			return CodeFromPlanResult{}, &FlowError{Stage: StageTranslate, Err: err}
		}
	}

	user := "Generate code based on the following app plan:\n\n" + plan
	code, err := s.completer.Complete(ctx, buildSystemPrompt, user, buildMaxTokens)
	if err != nil {
		obs.ObserveGeneration("code_from_plan", "generate_failed")
		return CodeFromPlanResult{}, &FlowError{Stage: StageGenerate, TranslatedPrompt: plan, Err: err}
	}

	explanation := planExplanation
	if !language.IsPivot(langCode) {
		translated, terr := s.fromPivot(ctx, explanation, langCode)
		if terr != nil {
			obs.Log("warn", "plan explanation translation failed, using English", map[string]any{"error": terr.Error()})
		} else {
			explanation = translated
		}
	}

	s.record(ctx, email, history.Record{
		Kind:           history.KindCodeFromPlan,
		Input:          planText,
		TranslatedPlan: plan,
		CodeOutput:     code,
		Explanation:    explanation,
		LanguageCode:   langCode,
	})
	obs.ObserveGeneration("code_from_plan", "ok")
	return CodeFromPlanResult{TranslatedPlan: plan, CodeOutput: code, Explanation: explanation}, nil
}

func (s *Service) toPivot(ctx context.Context, text, langCode string) (string, error) {
	return s.translator.Translate(ctx,
		text,
		language.Normalize(langCode, s.mode),
		language.Normalize(language.Pivot, s.mode),
	)
}

func (s *Service) fromPivot(ctx context.Context, text, langCode string) (string, error) {
	return s.translator.Translate(ctx,
		text,
		language.Normalize(language.Pivot, s.mode),
		language.Normalize(langCode, s.mode),
	)
}

// record appends best-effort: a ledger failure is logged, never
// surfaced, so generation success is not blocked by history.
func (s *Service) record(ctx context.Context, email string, rec history.Record) {
	if err := s.records.Append(ctx, email, rec); err != nil {
		obs.Log("error", "history append failed", map[string]any{
			"user":  email,
			"kind":  string(rec.Kind),
			"error": err.Error(),
		})
	}
}
