package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"linguacode/internal/obs"
)

const defaultTranslateTimeout = 30 * time.Second

// Translator converts text between languages.
type Translator struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// TranslatorOption configures the Translator.
type TranslatorOption func(*Translator)

// WithTranslateHTTPClient overrides the HTTP client (useful for tests).
func WithTranslateHTTPClient(c *http.Client) TranslatorOption {
	return func(t *Translator) {
		if c != nil {
			t.client = c
		}
	}
}

// WithTranslateTimeout overrides the per-call timeout.
func WithTranslateTimeout(d time.Duration) TranslatorOption {
	return func(t *Translator) {
		if d > 0 {
			t.client.Timeout = d
		}
	}
}

// NewTranslator constructs a translation client. The base URL and API
// key are required configuration.
func NewTranslator(baseURL, apiKey string, opts ...TranslatorOption) (*Translator, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("provider: translate base URL is required")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("provider: translate API key is required")
	}
	t := &Translator{
		client:  &http.Client{Timeout: defaultTranslateTimeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

type translateRequest struct {
	Input              string `json:"input"`
	SourceLanguageCode string `json:"source_language_code"`
	TargetLanguageCode string `json:"target_language_code"`
}

type translateResponse struct {
	TranslatedText string `json:"translated_text"`
	Error          struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Translate converts text from sourceLang to targetLang. Language-code
// normalization is the caller's responsibility.
func (t *Translator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	body, err := json.Marshal(translateRequest{
		Input:              text,
		SourceLanguageCode: sourceLang,
		TargetLanguageCode: targetLang,
	})
	if err != nil {
		return "", fmt.Errorf("encode translate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/translate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build translate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("api-subscription-key", t.apiKey)

	start := time.Now()
	resp, err := t.client.Do(req)
	obs.ObserveProviderCall("translate", time.Since(start))
	if err != nil {
		return "", &Error{Provider: "translate", Message: err.Error()}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", &Error{Provider: "translate", Status: resp.StatusCode, Message: err.Error()}
	}

	var decoded translateResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", &Error{Provider: "translate", Status: resp.StatusCode, Message: "undecodable response body"}
	}
	if resp.StatusCode != http.StatusOK || decoded.TranslatedText == "" {
		msg := decoded.Error.Message
		if msg == "" {
			msg = "missing translated_text in response"
		}
		return "", &Error{Provider: "translate", Status: resp.StatusCode, Message: msg}
	}
	return decoded.TranslatedText, nil
}
