package types

import (
	"time"
)

// HealthState represents the health state of a collaborator (store, embedder).
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// String returns the string representation of HealthState.
func (s HealthState) String() string {
	return string(s)
}

// HealthStatus represents the health status of a collaborator with state,
// message, and timestamp information.
type HealthStatus struct {
	State     HealthState `json:"state"`
	Message   string      `json:"message,omitempty"`
	CheckedAt time.Time   `json:"checked_at"`
}

// Healthy creates a HealthStatus in the healthy state.
func Healthy() HealthStatus {
	return HealthStatus{State: HealthStateHealthy, CheckedAt: time.Now()}
}

// Degraded creates a HealthStatus in the degraded state with a message.
func Degraded(message string) HealthStatus {
	return HealthStatus{State: HealthStateDegraded, Message: message, CheckedAt: time.Now()}
}

// Unhealthy creates a HealthStatus in the unhealthy state with a message.
func Unhealthy(message string) HealthStatus {
	return HealthStatus{State: HealthStateUnhealthy, Message: message, CheckedAt: time.Now()}
}

// IsHealthy reports whether the status is in the healthy state.
func (h HealthStatus) IsHealthy() bool {
	return h.State == HealthStateHealthy
}
