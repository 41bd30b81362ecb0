package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/kmerritt/scorecard/internal/cache"
	"github.com/kmerritt/scorecard/internal/metrics"
	"github.com/kmerritt/scorecard/internal/resolver"
	"github.com/kmerritt/scorecard/internal/types"
)

// RosterHandler manages the agent roster used for name resolution
type RosterHandler struct {
	roster   *cache.Roster
	resolver *resolver.Resolver
	logger   zerolog.Logger
}

// NewRosterHandler creates a new RosterHandler
func NewRosterHandler(roster *cache.Roster, res *resolver.Resolver, logger zerolog.Logger) *RosterHandler {
	return &RosterHandler{
		roster:   roster,
		resolver: res,
		logger:   logger.With().Str("component", "roster").Logger(),
	}
}

// HandleReplace handles POST /internal/agents/roster
func (h *RosterHandler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	var agents []types.Agent
	if err := json.NewDecoder(r.Body).Decode(&agents); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	registered := h.roster.Replace(agents)
	h.logger.Info().Int("registered", registered).Msg("roster received")

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]int{"registered": registered})
}

// HandleList handles GET /api/agents
func (h *RosterHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	agents := h.roster.All()
	if r.URL.Query().Get("status") == string(types.AgentActive) {
		agents = h.roster.Active()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(agents)
}

// ResolveRequest is the POST body for a resolution preview
type ResolveRequest struct {
	Names []string `json:"names"`
}

// HandleResolve handles POST /api/resolve: previews how free-text names
// would match against the current roster without merging anything.
func (h *RosterHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Names) == 0 {
		http.Error(w, "names is required", http.StatusBadRequest)
		return
	}

	results, err := h.resolver.ResolveBatch(r.Context(), req.Names, h.roster.Active())
	if err != nil {
		h.logger.Error().Err(err).Msg("resolve preview failed")
		http.Error(w, "failed to resolve names", http.StatusInternalServerError)
		return
	}

	for _, result := range results {
		metrics.Get().RecordResolution(result.Matched)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}
