package rag

import (
	"context"
	"time"
)

// ComponentHealth reports one dependency's reachability.
type ComponentHealth struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// HealthStatus is the aggregate health report.
type HealthStatus struct {
	Status     string            `json:"status"`
	Components []ComponentHealth `json:"components"`
	CheckedAt  time.Time         `json:"checkedAt"`
}

// Pinger checks one dependency. Implementations should respect ctx deadlines.
type Pinger func(ctx context.Context) error

// SystemService aggregates dependency health.
type SystemService interface {
	CheckHealth(ctx context.Context) (*HealthStatus, error)
}

type systemService struct {
	names   []string
	pingers []Pinger
}

// NewSystemService builds a health checker over named dependencies. Names
// and pingers are parallel, registered via Register.
func NewSystemService() *systemService {
	return &systemService{}
}

func (s *systemService) Register(name string, ping Pinger) *systemService {
	s.names = append(s.names, name)
	s.pingers = append(s.pingers, ping)
	return s
}

func (s *systemService) CheckHealth(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Status:    "ok",
		CheckedAt: time.Now().UTC(),
	}
	for i, ping := range s.pingers {
		component := ComponentHealth{Name: s.names[i], Status: "ok"}
		checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		if err := ping(checkCtx); err != nil {
			component.Status = "unavailable"
			component.Error = err.Error()
			status.Status = "degraded"
		}
		cancel()
		status.Components = append(status.Components, component)
	}
	return status, nil
}
