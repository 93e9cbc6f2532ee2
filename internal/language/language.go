// Package language normalizes BCP-47-style language codes for the
// translation and completion providers and resolves display names.
package language

import "strings"

// Mode selects how Normalize treats regional suffixes. The translation
// provider accepts either form, so the choice is configuration.
type Mode string

const (
	// ModeRegional keeps the code as given, e.g. "ta-IN" stays "ta-IN".
	ModeRegional Mode = "regional"
	// ModeBase strips the regional suffix, e.g. "ta-IN" becomes "ta".
	ModeBase Mode = "base"
)

// Pivot is the intermediate language every generation flow routes
// translations through.
const Pivot = "en-IN"

var displayNames = map[string]string{
	"en": "English",
	"ta": "Tamil",
	"hi": "Hindi",
	"te": "Telugu",
	"kn": "Kannada",
	"ml": "Malayalam",
	"bn": "Bengali",
	"mr": "Marathi",
	"gu": "Gujarati",
	"pa": "Punjabi",
}

// Normalize canonicalizes a language code under the given mode. The code
// is trimmed and its base lowered; unknown modes behave as ModeRegional.
func Normalize(code string, mode Mode) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	base, region, found := strings.Cut(code, "-")
	base = strings.ToLower(base)
	if mode == ModeBase || !found {
		return base
	}
	return base + "-" + strings.ToUpper(region)
}

// Base returns the primary subtag, e.g. "ta" for "ta-IN".
func Base(code string) string {
	return Normalize(code, ModeBase)
}

// IsPivot reports whether the code denotes the pivot language. Any
// English variant counts, so "en-US" and "en-IN" agree.
func IsPivot(code string) bool {
	return Base(code) == "en"
}

// DisplayName resolves a human-readable language name for prompt text.
// Unmapped codes fall back to "English".
func DisplayName(code string) string {
	if name, ok := displayNames[Base(code)]; ok {
		return name
	}
	return "English"
}
