package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/impactlane/vouch/internal/linker"
	"github.com/impactlane/vouch/internal/match"
	"github.com/impactlane/vouch/internal/store"
	"github.com/impactlane/vouch/internal/types"
	"github.com/impactlane/vouch/internal/validation"
)

// Handler implements the API handlers
type Handler struct {
	store   store.Store
	matcher *match.Matcher
	links   *linker.Manager
	apiKey  string
	version string
}

// NewHandler creates a new Handler.
func NewHandler(s store.Store, m *match.Matcher, l *linker.Manager, apiKey, version string) *Handler {
	return &Handler{
		store:   s,
		matcher: m,
		links:   l,
		apiKey:  apiKey,
		version: version,
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Health returns the health status
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	evidence, claims, err := h.store.Counts(r.Context())
	if err != nil {
		WriteProblem(w, r, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	respondJSON(w, http.StatusOK, types.HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		EvidenceCount: evidence,
		ClaimCount:    claims,
	})
}

// --- KPIs ---

// CreateKPI handles POST /api/v1/kpis
func (h *Handler) CreateKPI(w http.ResponseWriter, r *http.Request) {
	var kpi types.KPI
	if err := json.NewDecoder(r.Body).Decode(&kpi); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("initiative_id", kpi.InitiativeID))
	c.Add(validation.ValidateRequired("title", kpi.Title))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	created, err := h.store.CreateKPI(r.Context(), kpi)
	if err != nil {
		slog.Error("kpi create failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// ListKPIs handles GET /api/v1/kpis?initiative_id=
func (h *Handler) ListKPIs(w http.ResponseWriter, r *http.Request) {
	initiativeID := r.URL.Query().Get("initiative_id")
	if initiativeID == "" {
		WriteProblem(w, r, http.StatusBadRequest, "initiative_id query parameter is required")
		return
	}

	kpis, err := h.store.ListKPIs(r.Context(), initiativeID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if kpis == nil {
		kpis = []types.KPI{}
	}
	respondJSON(w, http.StatusOK, kpis)
}

// --- Locations ---

// CreateLocation handles POST /api/v1/locations
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var loc types.Location
	if err := json.NewDecoder(r.Body).Decode(&loc); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	var c validation.Collector
	c.Add(validation.ValidateRequired("initiative_id", loc.InitiativeID))
	c.Add(validation.ValidateRequired("name", loc.Name))
	if c.HasErrors() {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", c.Errors())
		return
	}

	created, err := h.store.CreateLocation(r.Context(), loc)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// ListLocations handles GET /api/v1/locations?initiative_id=
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	initiativeID := r.URL.Query().Get("initiative_id")
	if initiativeID == "" {
		WriteProblem(w, r, http.StatusBadRequest, "initiative_id query parameter is required")
		return
	}

	locs, err := h.store.Locations(r.Context(), initiativeID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if locs == nil {
		locs = []types.Location{}
	}
	respondJSON(w, http.StatusOK, locs)
}

// DeleteLocation handles DELETE /api/v1/locations/{id}
func (h *Handler) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteLocation(r.Context(), chi.URLParam(r, "id")); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Claims ---

// CreateClaim handles POST /api/v1/claims
func (h *Handler) CreateClaim(w http.ResponseWriter, r *http.Request) {
	var claim types.Claim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateClaim(claim); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	created, err := h.store.CreateClaim(r.Context(), claim)
	if err != nil {
		slog.Error("claim create failed", "error", err, "kpi_id", claim.KPIID)
		MapStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

// GetClaim handles GET /api/v1/claims/{id}
func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	claim, err := h.store.Claim(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, claim)
}

// UpdateClaim handles PATCH /api/v1/claims/{id}
func (h *Handler) UpdateClaim(w http.ResponseWriter, r *http.Request) {
	var claim types.Claim
	if err := json.NewDecoder(r.Body).Decode(&claim); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}
	claim.ID = chi.URLParam(r, "id")

	if err := validation.ValidateInterval("interval", claim.Interval); err != nil {
		WriteProblemWithErrors(w, r, "Request contains invalid fields",
			[]validation.ValidationError{*err})
		return
	}

	updated, err := h.store.UpdateClaim(r.Context(), claim)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, updated)
}

// DeleteClaim handles DELETE /api/v1/claims/{id}. Evidence links
// referencing the claim are cascade-cleaned.
func (h *Handler) DeleteClaim(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteClaim(r.Context(), chi.URLParam(r, "id")); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListClaimsForKPI handles GET /api/v1/kpis/{id}/claims
func (h *Handler) ListClaimsForKPI(w http.ResponseWriter, r *http.Request) {
	claims, err := h.store.ClaimsForKPI(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if claims == nil {
		claims = []types.Claim{}
	}
	respondJSON(w, http.StatusOK, claims)
}

// MatchClaims handles POST /api/v1/claims/match
func (h *Handler) MatchClaims(w http.ResponseWriter, r *http.Request) {
	var q types.MatchQuery
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateMatchQuery(q); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	result, err := h.matcher.Match(r.Context(), q)
	if err != nil {
		slog.Error("match failed", "error", err)
		MapStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// --- Evidence ---

// EvidenceResponse wraps an evidence item with any link-type failures
// from a partially applied create or update.
type EvidenceResponse struct {
	Evidence *types.Evidence      `json:"evidence"`
	Failures []linker.LinkFailure `json:"failures,omitempty"`
}

// CreateEvidence handles POST /api/v1/evidence. A link-type failure
// does not abort the create: the response reports which link types
// need retry, with 207 signalling partial success.
func (h *Handler) CreateEvidence(w http.ResponseWriter, r *http.Request) {
	var p types.EvidencePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateEvidenceCreate(p); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	ev, partial, err := h.links.Create(r.Context(), p)
	if err != nil {
		slog.Error("evidence create failed", "error", err)
		MapStoreError(w, r, err)
		return
	}

	status := http.StatusCreated
	resp := EvidenceResponse{Evidence: ev}
	if partial.Failed() {
		status = http.StatusMultiStatus
		resp.Failures = partial.Failures
	}
	respondJSON(w, status, resp)
}

// GetEvidence handles GET /api/v1/evidence/{id}
func (h *Handler) GetEvidence(w http.ResponseWriter, r *http.Request) {
	ev, err := h.store.Evidence(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ev)
}

// ListEvidence handles GET /api/v1/evidence?initiative_id=
func (h *Handler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	initiativeID := r.URL.Query().Get("initiative_id")
	if initiativeID == "" {
		WriteProblem(w, r, http.StatusBadRequest, "initiative_id query parameter is required")
		return
	}

	items, err := h.store.ListEvidence(r.Context(), initiativeID)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	if items == nil {
		items = []types.Evidence{}
	}
	respondJSON(w, http.StatusOK, items)
}

// UpdateEvidence handles PATCH /api/v1/evidence/{id}. Link types are
// rewritten only when their field is present in the payload; an absent
// field leaves existing links untouched.
func (h *Handler) UpdateEvidence(w http.ResponseWriter, r *http.Request) {
	var p types.EvidencePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		WriteProblem(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %s", err.Error()))
		return
	}

	if errs := validation.ValidateEvidenceUpdate(p); len(errs) > 0 {
		WriteProblemWithErrors(w, r, "Request contains invalid fields", errs)
		return
	}

	ev, partial, err := h.links.Update(r.Context(), chi.URLParam(r, "id"), p)
	if err != nil {
		MapStoreError(w, r, err)
		return
	}

	status := http.StatusOK
	resp := EvidenceResponse{Evidence: ev}
	if partial.Failed() {
		status = http.StatusMultiStatus
		resp.Failures = partial.Failures
	}
	respondJSON(w, status, resp)
}

// DeleteEvidence handles DELETE /api/v1/evidence/{id}
func (h *Handler) DeleteEvidence(w http.ResponseWriter, r *http.Request) {
	if err := h.links.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		MapStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Usage ---

// Usage handles GET /api/v1/usage/{initiativeID}
func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Usage(r.Context(), chi.URLParam(r, "initiativeID"))
	if err != nil {
		MapStoreError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
