package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/buildquote/leadmatch/internal/model"
	"github.com/buildquote/leadmatch/internal/registry"
	"github.com/buildquote/leadmatch/internal/store"
)

// api holds the HTTP handlers over the wired backends.
type api struct {
	env *env
}

func newAPI(e *env) *api {
	return &api{env: e}
}

func (a *api) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"breakers": a.env.Engine.BreakerStates(),
	})
}

// submitLead runs the matching pipeline synchronously and returns the result.
// Infrastructure trouble degrades the response; only invalid input is a 400.
func (a *api) submitLead(w http.ResponseWriter, r *http.Request) {
	var lead model.LeadRequest
	if err := json.NewDecoder(r.Body).Decode(&lead); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	outcome, err := a.env.Engine.Match(r.Context(), &lead)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"lead":   lead,
		"result": outcome.Result,
		"degraded": func() []model.Degradation {
			if outcome.Degraded() {
				return outcome.Degradations
			}
			return nil
		}(),
	})
}

func (a *api) getLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lead, result, err := a.env.Leads.GetLead(r.Context(), id)
	if eris.Is(err, store.ErrLeadNotFound) {
		writeError(w, http.StatusNotFound, "lead not found")
		return
	}
	if err != nil {
		zap.L().Error("get lead failed", zap.String("lead_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"lead": lead, "result": result})
}

func (a *api) registerProfessional(w http.ResponseWriter, r *http.Request) {
	var p model.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	id, err := a.env.Registry.Register(r.Context(), &p)
	if eris.Is(err, registry.ErrInvalidLocation) {
		writeError(w, http.StatusUnprocessableEntity, "zip code does not resolve to a location")
		return
	}
	if err != nil {
		zap.L().Error("register professional failed", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": id, "profile": p})
}

func (a *api) updateProfessional(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var patch registry.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := a.env.Registry.Update(r.Context(), id, patch)
	switch {
	case eris.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, "professional not found")
	case eris.Is(err, registry.ErrInvalidLocation):
		writeError(w, http.StatusUnprocessableEntity, "zip code does not resolve to a location")
	case err != nil:
		zap.L().Error("update professional failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	default:
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

func (a *api) getProfessional(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := a.env.Registry.Get(r.Context(), id)
	if eris.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, "professional not found")
		return
	}
	if err != nil {
		zap.L().Error("get professional failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *api) professionalLeads(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, err := a.env.Leads.LeadsForProfessional(r.Context(), id)
	if err != nil {
		zap.L().Error("professional leads failed", zap.String("id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"professional_id": id, "leads": entries})
}

func (a *api) customerLeads(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	if email == "" {
		writeError(w, http.StatusBadRequest, "email query parameter is required")
		return
	}
	leads, err := a.env.Leads.LeadsByCustomer(r.Context(), email)
	if err != nil {
		zap.L().Error("customer leads failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"email": email, "leads": leads})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
