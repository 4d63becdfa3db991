// Package services starts and stops the daemon's long-running components in dependency order.
package services

import (
	"context"
	"time"
)

// ManagedService is a component with a start/stop lifecycle.
type ManagedService interface {
	// Name returns the service name for logging and identification.
	Name() string

	// Start initializes and starts the service. It must not block.
	Start(ctx context.Context) error

	// Stop gracefully shuts down the service.
	Stop(ctx context.Context) error

	// Health returns the current health status of the service.
	Health() HealthStatus

	// Dependencies returns the names of services this service depends on.
	Dependencies() []string
}

// HealthStatus represents the health of a managed service.
type HealthStatus struct {
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	CheckAt time.Time `json:"check_at"`
}

// Healthy reports a healthy status checked now.
func Healthy() HealthStatus {
	return HealthStatus{Status: "healthy", CheckAt: time.Now()}
}

// Unhealthy reports an unhealthy status with a reason.
func Unhealthy(message string) HealthStatus {
	return HealthStatus{Status: "unhealthy", Message: message, CheckAt: time.Now()}
}

// IsHealthy reports whether the status is healthy.
func (h HealthStatus) IsHealthy() bool { return h.Status == "healthy" }
