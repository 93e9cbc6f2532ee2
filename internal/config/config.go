// Package config loads service configuration from the environment.
// Secrets and provider credentials are required; startup fails without
// them rather than running with a baked-in default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"linguacode/internal/language"
)

// Config is the fully resolved service configuration.
type Config struct {
	Addr string

	AuthSecret string
	AuthIssuer string

	TranslateURL string
	TranslateKey string

	CompleteURL   string
	CompleteKey   string
	CompleteModel string

	// DataDir backs the file store; PGDSN, when set, selects the
	// Postgres store instead.
	DataDir string
	PGDSN   string

	LanguageMode language.Mode

	// RequireAuth gates the generation and profile routes behind bearer
	// tokens. Off is for local development only.
	RequireAuth bool

	RateRPS   float64
	RateBurst int
}

// FromEnv reads configuration from LINGUA_* environment variables.
// Missing required variables are reported together.
func FromEnv() (Config, error) {
	cfg := Config{
		Addr:          getenv("LINGUA_ADDR", ":5007"),
		AuthSecret:    strings.TrimSpace(os.Getenv("LINGUA_AUTH_SECRET")),
		AuthIssuer:    getenv("LINGUA_AUTH_ISSUER", "linguacode"),
		TranslateURL:  strings.TrimSpace(os.Getenv("LINGUA_TRANSLATE_URL")),
		TranslateKey:  strings.TrimSpace(os.Getenv("LINGUA_TRANSLATE_KEY")),
		CompleteURL:   getenv("LINGUA_COMPLETE_URL", "https://api.groq.com/openai/v1"),
		CompleteKey:   strings.TrimSpace(os.Getenv("LINGUA_COMPLETE_KEY")),
		CompleteModel: getenv("LINGUA_COMPLETE_MODEL", "llama3-70b-8192"),
		DataDir:       getenv("LINGUA_DATA_DIR", "data"),
		PGDSN:         strings.TrimSpace(os.Getenv("LINGUA_PG_DSN")),
	}

	var missing []string
	if cfg.AuthSecret == "" {
		missing = append(missing, "LINGUA_AUTH_SECRET")
	}
	if cfg.TranslateURL == "" {
		missing = append(missing, "LINGUA_TRANSLATE_URL")
	}
	if cfg.TranslateKey == "" {
		missing = append(missing, "LINGUA_TRANSLATE_KEY")
	}
	if cfg.CompleteKey == "" {
		missing = append(missing, "LINGUA_COMPLETE_KEY")
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("config: missing required environment variables: %s", strings.Join(missing, ", "))
	}

	switch mode := getenv("LINGUA_LANGUAGE_MODE", string(language.ModeRegional)); language.Mode(mode) {
	case language.ModeRegional, language.ModeBase:
		cfg.LanguageMode = language.Mode(mode)
	default:
		return Config{}, fmt.Errorf("config: LINGUA_LANGUAGE_MODE must be %q or %q, got %q",
			language.ModeRegional, language.ModeBase, mode)
	}

	switch raw := getenv("LINGUA_REQUIRE_AUTH", "true"); raw {
	case "true":
		cfg.RequireAuth = true
	case "false":
		cfg.RequireAuth = false
	default:
		return Config{}, fmt.Errorf("config: LINGUA_REQUIRE_AUTH must be true or false, got %q", raw)
	}

	var err error
	cfg.RateRPS, err = getFloat("LINGUA_RATE_RPS", 10)
	if err != nil {
		return Config{}, err
	}
	cfg.RateBurst, err = getInt("LINGUA_RATE_BURST", 20)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive number, got %q", key, raw)
	}
	return v, nil
}

func getInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("config: %s must be a positive integer, got %q", key, raw)
	}
	return v, nil
}
