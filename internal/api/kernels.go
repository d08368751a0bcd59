package api

import "net/http"

func (s *Server) handleListKernels(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.handler.Kernels())
}
