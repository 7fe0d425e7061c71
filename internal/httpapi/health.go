package httpapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/law-makers/hlsextract/pkg/models"
)

// handleHealth reports browser circuit state and pool occupancy (spec §6
// GET /health), answering 503 while the circuit is open.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.pool.StatusSnapshot()

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := models.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Memory: models.MemoryStats{
			AllocBytes:      mem.Alloc,
			TotalAllocBytes: mem.TotalAlloc,
			SysBytes:        mem.Sys,
			NumGoroutine:    runtime.NumGoroutine(),
		},
		Queue: models.QueueStats{
			Pending: status.Pending,
			Active:  status.Active,
		},
		Browser: models.BrowserStatus{
			CircuitOpen:         status.CircuitOpen,
			ConsecutiveFailures: status.ConsecutiveFailures,
		},
	}

	code := http.StatusOK
	if status.CircuitOpen {
		resp.Status = "degraded"
		resp.Browser.ReopenInSeconds = time.Until(status.ReopenAt).Seconds()
		if resp.Browser.ReopenInSeconds < 0 {
			resp.Browser.ReopenInSeconds = 0
		}
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, resp)
}
