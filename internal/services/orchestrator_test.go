package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type event struct {
	op, name string
}

type journal struct {
	mu     sync.Mutex
	events []event
}

func (j *journal) add(op, name string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, event{op, name})
}

func (j *journal) names(op string) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	var out []string
	for _, e := range j.events {
		if e.op == op {
			out = append(out, e.name)
		}
	}
	return out
}

// mockService is a test implementation of ManagedService.
type mockService struct {
	name         string
	dependencies []string
	failStart    bool
	failStop     bool
	running      bool
	j            *journal
}

func newMockService(j *journal, name string, deps ...string) *mockService {
	return &mockService{name: name, dependencies: deps, j: j}
}

func (m *mockService) Name() string { return m.name }

func (m *mockService) Start(context.Context) error {
	if m.failStart {
		return errors.New("mock start failure")
	}
	m.running = true
	m.j.add("start", m.name)
	return nil
}

func (m *mockService) Stop(context.Context) error {
	if m.failStop {
		return errors.New("mock stop failure")
	}
	m.running = false
	m.j.add("stop", m.name)
	return nil
}

func (m *mockService) Health() HealthStatus {
	if m.running {
		return Healthy()
	}
	return Unhealthy("service not running")
}

func (m *mockService) Dependencies() []string { return m.dependencies }

func TestServiceOrchestrator_Lifecycle(t *testing.T) {
	j := &journal{}
	so := NewServiceOrchestrator()
	svc := newMockService(j, "scheduler")
	require.True(t, so.RegisterService(svc).IsOk())

	ctx := context.Background()
	require.NoError(t, so.StartAll(ctx))

	info, ok := so.GetServiceInfo("scheduler")
	require.True(t, ok)
	require.Equal(t, StatusRunning, info.Status)
	require.True(t, info.Health.IsHealthy())
	require.NotNil(t, info.StartedAt)

	require.NoError(t, so.StopAll(ctx))
	info, _ = so.GetServiceInfo("scheduler")
	require.Equal(t, StatusStopped, info.Status)
	require.False(t, info.Health.IsHealthy())

	_, ok = so.GetServiceInfo("missing")
	require.False(t, ok)
}

func TestServiceOrchestrator_DependencyOrder(t *testing.T) {
	j := &journal{}
	so := NewServiceOrchestrator()
	so.RegisterService(newMockService(j, "config-watcher", "scheduler"))
	so.RegisterService(newMockService(j, "scheduler"))
	so.RegisterService(newMockService(j, "metrics-http"))

	ctx := context.Background()
	require.NoError(t, so.StartAll(ctx))
	require.Equal(t, []string{"scheduler", "config-watcher", "metrics-http"}, j.names("start"))

	require.NoError(t, so.StopAll(ctx))
	require.Equal(t, []string{"metrics-http", "config-watcher", "scheduler"}, j.names("stop"))

	infos := so.GetAllServiceInfo()
	require.Len(t, infos, 3)
	require.Equal(t, "config-watcher", infos[0].Name)
}

func TestServiceOrchestrator_Registration(t *testing.T) {
	j := &journal{}
	so := NewServiceOrchestrator()
	require.True(t, so.RegisterService(newMockService(j, "a")).IsOk())
	require.True(t, so.RegisterService(newMockService(j, "a")).IsErr())
	require.True(t, so.RegisterService(newMockService(j, "")).IsErr())
}

func TestServiceOrchestrator_CircularDependency(t *testing.T) {
	j := &journal{}
	so := NewServiceOrchestrator()
	so.RegisterService(newMockService(j, "a", "b"))
	so.RegisterService(newMockService(j, "b", "a"))

	require.Error(t, so.StartAll(context.Background()))
	require.Empty(t, j.names("start"))
}

func TestServiceOrchestrator_StartFailureStopsStarted(t *testing.T) {
	j := &journal{}
	so := NewServiceOrchestrator()
	so.RegisterService(newMockService(j, "a"))
	broken := newMockService(j, "b", "a")
	broken.failStart = true
	so.RegisterService(broken)

	err := so.StartAll(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{"a"}, j.names("start"))
	require.Equal(t, []string{"a"}, j.names("stop"))

	info, _ := so.GetServiceInfo("b")
	require.Equal(t, StatusFailed, info.Status)
	require.Contains(t, info.LastError, "mock start failure")
}

func TestServiceOrchestrator_StopFailure(t *testing.T) {
	j := &journal{}
	so := NewServiceOrchestrator()
	svc := newMockService(j, "a")
	svc.failStop = true
	so.RegisterService(svc)

	ctx := context.Background()
	require.NoError(t, so.StartAll(ctx))
	require.Error(t, so.StopAll(ctx))
}
