package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/disposight/internal/gaps"
	"github.com/sells-group/disposight/internal/justify"
	"github.com/sells-group/disposight/internal/monitoring"
	"github.com/sells-group/disposight/internal/opportunity"
)

// apiServer serves the read-only opportunity API.
type apiServer struct {
	builder   *opportunity.Builder
	justifier *justify.Engine
	collector *monitoring.Collector
}

func (s *apiServer) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/opportunities", s.handleListOpportunities)
		r.Get("/opportunities/{id}", s.handleGetOpportunity)
		r.Get("/gaps", s.handleGaps)
		r.Get("/sources", s.handleSources)
	})

	return r
}

func (s *apiServer) handleListOpportunities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	query := opportunity.Query{
		SignalType: q.Get("signal_type"),
		State:      q.Get("state"),
		Industry:   q.Get("industry"),
		SortBy:     q.Get("sort_by"),
		Limit:      25,
	}

	var err error
	if query.MinDevices, err = intParam(q.Get("min_devices"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "min_devices must be an integer")
		return
	}
	if query.MinDealScore, err = intParam(q.Get("min_deal_score"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "min_deal_score must be an integer")
		return
	}
	if query.Limit, err = intParam(q.Get("limit"), 25); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if query.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be an integer")
		return
	}

	result, err := s.builder.List(r.Context(), query, time.Now().UTC())
	if err != nil {
		zap.L().Error("api: list opportunities", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *apiServer) handleGetOpportunity(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a UUID")
		return
	}

	detail, err := s.builder.Get(r.Context(), id, time.Now().UTC())
	if err != nil {
		zap.L().Error("api: get opportunity", zap.String("company_id", id.String()), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load opportunity")
		return
	}
	if detail == nil {
		writeError(w, http.StatusNotFound, "opportunity not found")
		return
	}

	resp := struct {
		opportunity.Detail
		FullJustification string `json:"full_justification,omitempty"`
	}{Detail: *detail}

	// Full prose is best-effort: score-drifted cache entries regenerate here,
	// and a model failure still returns the compact justification.
	if s.justifier != nil {
		o := detail.Opportunity
		text, _, err := s.justifier.Full(r.Context(), justify.FullInput{
			CompanyID:       o.CompanyID,
			CompanyName:     o.CompanyName,
			SignalTypes:     o.SignalTypes,
			SourceNames:     o.SourceNames,
			TotalDevices:    o.TotalDeviceEstimate,
			RevenueEstimate: o.RevenueEstimate,
			Disposition:     o.DispositionWindow,
			DealScore:       o.DealScore,
			ScoreBandLabel:  o.ScoreBandLabel,
			RiskTrend:       o.RiskTrend,
			AvgSeverity:     o.AvgSeverity,
			AvgConfidence:   o.AvgConfidence,
			SignalCount:     o.SignalCount,
		}, time.Now().UTC())
		if err != nil {
			zap.L().Warn("api: full justification failed",
				zap.String("company_id", id.String()),
				zap.Error(err),
			)
		} else {
			resp.FullJustification = text
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *apiServer) handleGaps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	profile := gaps.Profile{
		States:      splitParam(q.Get("states")),
		Industries:  splitParam(q.Get("industries")),
		SignalTypes: splitParam(q.Get("signal_types")),
	}

	var err error
	if profile.MinDealScore, err = intParam(q.Get("min_deal_score"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "min_deal_score must be an integer")
		return
	}
	limit, err := intParam(q.Get("limit"), 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}

	watched := make(map[uuid.UUID]bool)
	for _, raw := range splitParam(q.Get("exclude")) {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "exclude must be a comma-separated list of UUIDs")
			return
		}
		watched[id] = true
	}

	listed, err := s.builder.List(r.Context(), opportunity.Query{}, time.Now().UTC())
	if err != nil {
		zap.L().Error("api: list for gaps", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list opportunities")
		return
	}

	matches, total := gaps.Detect(
		opportunity.GapCandidates(listed.Opportunities),
		watched, profile, limit, time.Now().UTC(),
	)
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches, "total": total})
}

func (s *apiServer) handleSources(w http.ResponseWriter, r *http.Request) {
	snap, err := s.collector.Collect(r.Context(), time.Now().UTC())
	if err != nil {
		zap.L().Error("api: collect source health", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to collect source health")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func splitParam(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
