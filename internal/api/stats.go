package api

import (
	"net/http"
)

// statsResponse is the JSON response for GET /v1/stats.
type statsResponse struct {
	Total          int            `json:"total"`
	ByStatus       map[string]int `json:"by_status"`
	ByProgram      map[string]int `json:"by_program"`
	AvgDurationMS  float64        `json:"avg_duration_ms"`
	CachedPrograms int            `json:"cached_programs"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetExecutionStats(r.Context())
	if err != nil {
		s.logger.Error("get execution stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:          stats.Total,
		ByStatus:       stats.CountByStatus,
		ByProgram:      stats.CountByProgram,
		AvgDurationMS:  stats.AvgDurationMS,
		CachedPrograms: len(s.handler.Programs()),
	})
}
