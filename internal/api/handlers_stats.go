package api

import (
	"net/http"

	"github.com/dustin/go-humanize"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/model"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "inference stats unavailable", http.StatusServiceUnavailable)
		return
	}

	mem := model.MemoryUsage()
	writeJSON(w, http.StatusOK, map[string]any{
		"inference": s.stats.Snapshot(),
		"model":     s.models.Status(),
		"memory": map[string]any{
			"bytes": mem,
			"human": humanize.IBytes(mem),
		},
		"jobs": map[string]any{
			"tracked":     s.orchestrator.JobCount(),
			"queue_depth": s.orchestrator.QueueDepth(),
		},
	})
}
