package app

import (
	"net/http"

	"github.com/sgaunet/s3box/pkg/health"
)

// HealthHandler reports the health of the bucket and of the database.
// Components are checked on demand while the monitors are not running.
func (s *App) HealthHandler(w http.ResponseWriter, r *http.Request) {
	for _, m := range s.monitors {
		if m.Info().Status == health.StatusUnknown {
			m.Check(r.Context())
		}
	}
	report := health.NewReport(s.monitors...)
	status := http.StatusOK
	if report.Status != health.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, report)
}
