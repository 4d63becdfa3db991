package services

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"git.home.luguber.info/inful/sorrydb-sync/internal/foundation"
	ferrors "git.home.luguber.info/inful/sorrydb-sync/internal/foundation/errors"
	"git.home.luguber.info/inful/sorrydb-sync/internal/logfields"
)

// ServiceStatus represents the current state of a service.
type ServiceStatus string

const (
	StatusNotStarted ServiceStatus = "not_started"
	StatusStarting   ServiceStatus = "starting"
	StatusRunning    ServiceStatus = "running"
	StatusStopping   ServiceStatus = "stopping"
	StatusStopped    ServiceStatus = "stopped"
	StatusFailed     ServiceStatus = "failed"
)

// ServiceInfo contains metadata about a managed service.
type ServiceInfo struct {
	Name         string        `json:"name"`
	Status       ServiceStatus `json:"status"`
	Health       HealthStatus  `json:"health"`
	Dependencies []string      `json:"dependencies"`
	StartedAt    *time.Time    `json:"started_at,omitempty"`
	StoppedAt    *time.Time    `json:"stopped_at,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
}

// ServiceOrchestrator manages the lifecycle of multiple services with dependency resolution.
type ServiceOrchestrator struct {
	services   map[string]ManagedService
	status     map[string]ServiceStatus
	startedAt  map[string]time.Time
	stoppedAt  map[string]time.Time
	lastErrors map[string]error
	mu         sync.RWMutex

	startTimeout time.Duration
	stopTimeout  time.Duration
}

// NewServiceOrchestrator creates a new service orchestrator.
func NewServiceOrchestrator() *ServiceOrchestrator {
	return &ServiceOrchestrator{
		services:     make(map[string]ManagedService),
		status:       make(map[string]ServiceStatus),
		startedAt:    make(map[string]time.Time),
		stoppedAt:    make(map[string]time.Time),
		lastErrors:   make(map[string]error),
		startTimeout: 30 * time.Second,
		stopTimeout:  30 * time.Second,
	}
}

// WithTimeouts configures start and stop timeouts.
func (so *ServiceOrchestrator) WithTimeouts(start, stop time.Duration) *ServiceOrchestrator {
	so.startTimeout = start
	so.stopTimeout = stop
	return so
}

// RegisterService adds a service to the orchestrator.
func (so *ServiceOrchestrator) RegisterService(service ManagedService) foundation.Result[struct{}, error] {
	so.mu.Lock()
	defer so.mu.Unlock()

	name := service.Name()
	if name == "" {
		return foundation.Err[struct{}, error](
			ferrors.ValidationError("service name cannot be empty").Build(),
		)
	}
	if _, exists := so.services[name]; exists {
		return foundation.Err[struct{}, error](
			ferrors.ValidationError(fmt.Sprintf("service %s already registered", name)).Build(),
		)
	}

	so.services[name] = service
	so.status[name] = StatusNotStarted

	slog.Debug("Service registered", slog.String("service", name), slog.Any("dependencies", service.Dependencies()))
	return foundation.Ok[struct{}, error](struct{}{})
}

// StartAll starts all services in dependency order. If one fails, the
// services already started are stopped again.
func (so *ServiceOrchestrator) StartAll(ctx context.Context) error {
	so.mu.Lock()
	defer so.mu.Unlock()

	startOrder, err := so.calculateStartOrder()
	if err != nil {
		return ferrors.InternalError("failed to calculate service start order").
			WithCause(err).
			Build()
	}

	slog.Info("Starting services", slog.Int("count", len(startOrder)), slog.Any("order", startOrder))

	for _, serviceName := range startOrder {
		if err := so.startService(ctx, serviceName); err != nil {
			so.stopStartedServices(ctx, startOrder)
			return err
		}
	}
	return nil
}

// StopAll stops all running services in reverse dependency order.
func (so *ServiceOrchestrator) StopAll(ctx context.Context) error {
	so.mu.Lock()
	defer so.mu.Unlock()

	startOrder, err := so.calculateStartOrder()
	if err != nil {
		return ferrors.InternalError("failed to calculate service stop order").
			WithCause(err).
			Build()
	}
	stopOrder := slices.Clone(startOrder)
	slices.Reverse(stopOrder)

	slog.Info("Stopping services", slog.Int("count", len(stopOrder)), slog.Any("order", stopOrder))

	var lastError error
	for _, serviceName := range stopOrder {
		if err := so.stopService(ctx, serviceName); err != nil {
			lastError = err
			slog.Error("Error stopping service", slog.String("service", serviceName), logfields.Error(err))
		}
	}

	if lastError != nil {
		return ferrors.InternalError("some services failed to stop gracefully").
			WithCause(lastError).
			Build()
	}
	return nil
}

// GetServiceInfo returns information about a specific service.
func (so *ServiceOrchestrator) GetServiceInfo(name string) (ServiceInfo, bool) {
	so.mu.RLock()
	defer so.mu.RUnlock()
	return so.serviceInfo(name)
}

func (so *ServiceOrchestrator) serviceInfo(name string) (ServiceInfo, bool) {
	service, exists := so.services[name]
	if !exists {
		return ServiceInfo{}, false
	}

	info := ServiceInfo{
		Name:         name,
		Status:       so.status[name],
		Dependencies: service.Dependencies(),
		Health:       service.Health(),
	}
	if startTime, ok := so.startedAt[name]; ok {
		info.StartedAt = &startTime
	}
	if stopTime, ok := so.stoppedAt[name]; ok {
		info.StoppedAt = &stopTime
	}
	if err := so.lastErrors[name]; err != nil {
		info.LastError = err.Error()
	}
	return info, true
}

// GetAllServiceInfo returns information about all services, sorted by name.
func (so *ServiceOrchestrator) GetAllServiceInfo() []ServiceInfo {
	so.mu.RLock()
	defer so.mu.RUnlock()

	infos := make([]ServiceInfo, 0, len(so.services))
	for _, name := range so.sortedNames() {
		if info, ok := so.serviceInfo(name); ok {
			infos = append(infos, info)
		}
	}
	return infos
}

func (so *ServiceOrchestrator) sortedNames() []string {
	names := make([]string, 0, len(so.services))
	for name := range so.services {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// calculateStartOrder topologically sorts services; ties are broken by name.
func (so *ServiceOrchestrator) calculateStartOrder() ([]string, error) {
	visited := make(map[string]bool)
	visiting := make(map[string]bool)
	var order []string

	var visit func(string) error
	visit = func(name string) error {
		if visiting[name] {
			return fmt.Errorf("circular dependency detected involving service: %s", name)
		}
		if visited[name] {
			return nil
		}
		visiting[name] = true

		service, exists := so.services[name]
		if !exists {
			return fmt.Errorf("service not found: %s", name)
		}
		for _, dep := range service.Dependencies() {
			if err := visit(dep); err != nil {
				return err
			}
		}

		visiting[name] = false
		visited[name] = true
		order = append(order, name)
		return nil
	}

	for _, name := range so.sortedNames() {
		if err := visit(name); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (so *ServiceOrchestrator) startService(ctx context.Context, name string) error {
	service := so.services[name]
	so.status[name] = StatusStarting

	timeoutCtx, cancel := context.WithTimeout(ctx, so.startTimeout)
	defer cancel()

	startTime := time.Now()
	if err := service.Start(timeoutCtx); err != nil {
		so.status[name] = StatusFailed
		so.lastErrors[name] = err
		return ferrors.DaemonError(fmt.Sprintf("failed to start service %s", name)).
			WithCause(err).
			Build()
	}

	so.status[name] = StatusRunning
	so.startedAt[name] = startTime
	so.lastErrors[name] = nil

	slog.Info("Service started", slog.String("service", name), logfields.Duration(time.Since(startTime)))
	return nil
}

func (so *ServiceOrchestrator) stopService(ctx context.Context, name string) error {
	service := so.services[name]
	if so.status[name] != StatusRunning {
		return nil
	}
	so.status[name] = StatusStopping

	timeoutCtx, cancel := context.WithTimeout(ctx, so.stopTimeout)
	defer cancel()

	stopTime := time.Now()
	if err := service.Stop(timeoutCtx); err != nil {
		so.status[name] = StatusFailed
		so.lastErrors[name] = err
		return err
	}

	so.status[name] = StatusStopped
	so.stoppedAt[name] = stopTime

	slog.Info("Service stopped", slog.String("service", name), logfields.Duration(time.Since(stopTime)))
	return nil
}

// stopStartedServices stops running services in reverse start order after a failed start.
func (so *ServiceOrchestrator) stopStartedServices(ctx context.Context, startOrder []string) {
	for i := len(startOrder) - 1; i >= 0; i-- {
		if err := so.stopService(ctx, startOrder[i]); err != nil {
			slog.Error("Error stopping service during cleanup", slog.String("service", startOrder[i]), logfields.Error(err))
		}
	}
}
