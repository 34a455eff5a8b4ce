package api

import (
	"net/http"

	"github.com/okian/playstats/pkg/logger"
	"github.com/okian/playstats/pkg/metrics"
)

// StatsProvider defines the interface for getting service statistics.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// handleStats serves GET /stats. Metric families from the service registry
// are reported under "metrics", one summed value per family.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := make(map[string]interface{})
	for k, v := range s.stats.GetStats() {
		stats[k] = v
	}
	values, err := metrics.Gather()
	if err != nil {
		s.logger.Warn(r.Context(), "gather metrics", logger.Error(err))
	} else {
		stats["metrics"] = values
	}
	writeJSON(w, http.StatusOK, stats)
}
