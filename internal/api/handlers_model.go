package api

import "net/http"

func (s *Server) handleModelStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.models.Status())
}

// handleModelLoad loads the model ahead of the first request.
func (s *Server) handleModelLoad(w http.ResponseWriter, r *http.Request) {
	if _, err := s.models.Get(); err != nil {
		s.writeFailure(w, "", err)
		return
	}
	writeJSON(w, http.StatusOK, s.models.Status())
}

func (s *Server) handleModelUnload(w http.ResponseWriter, r *http.Request) {
	released := s.models.Unload()
	writeJSON(w, http.StatusOK, map[string]any{
		"unloaded": released,
		"model":    s.models.Status(),
	})
}
