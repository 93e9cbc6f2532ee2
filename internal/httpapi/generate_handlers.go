package httpapi

import (
	"errors"
	"net/http"

	"linguacode/internal/history"
	"linguacode/internal/orchestrator"
)

type processRequest struct {
	UserInput        string `json:"user_input"`
	UserLanguageCode string `json:"user_language_code"`
	Choice           string `json:"choice"`
}

type appPlanRequest struct {
	UserInput        string `json:"user_input"`
	UserLanguageCode string `json:"user_language_code"`
}

type codeFromPlanRequest struct {
	AppPlanText      string `json:"app_plan_text"`
	UserLanguageCode string `json:"user_language_code"`
}

func (a *API) handleProcess(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req processRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.flows.Process(r.Context(), currentEmail(r), req.UserInput, req.UserLanguageCode, req.Choice)
	if err != nil {
		a.processAbort(w, r, req.Choice, err)
		return
	}

	a.audit(r.Context(), "generate."+req.Choice, map[string]any{"language": req.UserLanguageCode})

	body := map[string]any{
		"translatedPrompt": res.TranslatedPrompt,
		"explanation":      res.Explanation,
	}
	if res.Kind == history.KindWebsite {
		body["websiteHtml"] = res.WebsiteHTML
	} else {
		body["codeOutput"] = res.CodeOutput
	}
	writeJSON(w, http.StatusOK, body)
}

// processAbort reports a flow A failure, echoing the translated prompt
// when that stage succeeded and nulling every field not reached.
func (a *API) processAbort(w http.ResponseWriter, r *http.Request, choice string, err error) {
	if errors.Is(err, orchestrator.ErrBadRequest) {
		writeError(w, r, http.StatusBadRequest, "Missing required input fields")
		return
	}

	outputField := "codeOutput"
	if choice == "website" {
		outputField = "websiteHtml"
	}
	body := map[string]any{
		"translatedPrompt": nil,
		outputField:        nil,
		"explanation":      nil,
	}

	var ferr *orchestrator.FlowError
	if errors.As(err, &ferr) {
		switch ferr.Stage {
		case orchestrator.StageTranslate:
			body["error"] = "Input translation failed. Please try again."
		case orchestrator.StageGenerate:
			body["error"] = "Code generation failed: " + ferr.Err.Error()
			body["translatedPrompt"] = ferr.TranslatedPrompt
		}
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeError(w, r, http.StatusInternalServerError, "An internal server error occurred")
}

func (a *API) handleAppPlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req appPlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.flows.AppPlan(r.Context(), currentEmail(r), req.UserInput, req.UserLanguageCode)
	if err != nil {
		if errors.Is(err, orchestrator.ErrBadRequest) {
			writeError(w, r, http.StatusBadRequest, "Missing user_input or user_language_code")
			return
		}
		body := map[string]any{
			"translatedPrompt": nil,
			"appPlanOutput":    nil,
		}
		var ferr *orchestrator.FlowError
		if errors.As(err, &ferr) {
			switch ferr.Stage {
			case orchestrator.StageTranslate:
				body["error"] = "Translation failed. Cannot generate app plan."
			case orchestrator.StageGenerate:
				body["error"] = "App plan generation failed: " + ferr.Err.Error()
				body["translatedPrompt"] = ferr.TranslatedPrompt
			}
			writeJSON(w, http.StatusInternalServerError, body)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "An internal error occurred during app plan generation")
		return
	}

	a.audit(r.Context(), "generate.app_plan", map[string]any{"language": req.UserLanguageCode})
	writeJSON(w, http.StatusOK, map[string]any{
		"translatedPrompt": res.TranslatedPrompt,
		"appPlanOutput":    res.AppPlanOutput,
	})
}

func (a *API) handleCodeFromPlan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req codeFromPlanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.flows.CodeFromPlan(r.Context(), currentEmail(r), req.AppPlanText, req.UserLanguageCode)
	if err != nil {
		if errors.Is(err, orchestrator.ErrBadRequest) {
			writeError(w, r, http.StatusBadRequest, "App plan text is required")
			return
		}
		body := map[string]any{
			"translatedPlan": nil,
			"codeOutput":     nil,
			"explanation":    nil,
		}
		var ferr *orchestrator.FlowError
		if errors.As(err, &ferr) {
			switch ferr.Stage {
			case orchestrator.StageTranslate:
				body["error"] = "Translation of app plan failed. Please try again."
			case orchestrator.StageGenerate:
				body["error"] = "Code generation failed: " + ferr.Err.Error()
				body["translatedPlan"] = ferr.TranslatedPrompt
			}
			writeJSON(w, http.StatusInternalServerError, body)
			return
		}
		writeError(w, r, http.StatusInternalServerError, "An internal error occurred")
		return
	}

	a.audit(r.Context(), "generate.code_from_plan", map[string]any{"language": req.UserLanguageCode})
	writeJSON(w, http.StatusOK, map[string]any{
		"codeOutput":  res.CodeOutput,
		"explanation": res.Explanation,
	})
}
