package daemon

import (
	"net/http"
	"time"

	"git.home.luguber.info/inful/sorrydb-sync/internal/services"
	"git.home.luguber.info/inful/sorrydb-sync/internal/version"
)

// HealthState is the overall daemon health.
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
)

// LastRunStatus summarizes the most recent update run.
type LastRunStatus struct {
	RunID      string    `json:"run_id"`
	Outcome    string    `json:"outcome"`
	Tag        string    `json:"tag,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Error      string    `json:"error,omitempty"`
}

// HealthResponse is the /healthz body.
type HealthResponse struct {
	Status    HealthState            `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	Schedule  string                 `json:"schedule"`
	NextRun   *time.Time             `json:"next_run,omitempty"`
	Runs      int64                  `json:"runs"`
	LastRun   *LastRunStatus         `json:"last_run,omitempty"`
	Services  []services.ServiceInfo `json:"services"`
}

// Health builds the current health response. An unhealthy service makes the
// daemon unhealthy; a failed last run only degrades it.
func (d *Daemon) Health() *HealthResponse {
	now := d.clock.Now()
	resp := &HealthResponse{
		Status:    HealthHealthy,
		Timestamp: now,
		Uptime:    now.Sub(d.startedAt).Round(time.Second).String(),
		Version:   version.Version,
		Schedule:  d.Config().Daemon.Schedule,
		Runs:      d.RunCount(),
		Services:  d.services.GetAllServiceInfo(),
	}
	if next, err := d.NextRun(); err == nil && !next.IsZero() {
		resp.NextRun = &next
	}

	for _, svc := range resp.Services {
		if !svc.Health.IsHealthy() {
			resp.Status = HealthUnhealthy
		}
	}

	rep, err := d.LastRun()
	if rep != nil {
		last := &LastRunStatus{
			RunID:      rep.RunID,
			Outcome:    string(rep.Outcome),
			Tag:        rep.Tag,
			StartedAt:  rep.StartedAt,
			FinishedAt: rep.FinishedAt,
		}
		if err != nil {
			last.Error = err.Error()
		}
		resp.LastRun = last
	}
	if err != nil && resp.Status == HealthHealthy {
		resp.Status = HealthDegraded
	}
	return resp
}

func (d *Daemon) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := d.Health()
	status := http.StatusOK
	if resp.Status == HealthUnhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
