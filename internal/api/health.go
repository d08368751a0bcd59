package api

import "net/http"

type healthResponse struct {
	Status   string `json:"status"`
	Programs int    `json:"programs"`
	Kernels  int    `json:"kernels"`
}

// handleHealthz reports liveness along with the size of the program cache
// and kernel registry.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Programs: len(s.handler.Programs()),
		Kernels:  len(s.handler.Kernels()),
	})
}
