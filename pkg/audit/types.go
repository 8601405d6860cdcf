package audit

import (
	"encoding/json"
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventTypeAuthLogin       EventType = "auth.login"
	EventTypeAuthLogout      EventType = "auth.logout"
	EventTypeAuthLoginFailed EventType = "auth.login_failed"

	// Authorization events. A denied route and an unknown route both send
	// the user to the same access-denied page, but they are distinct event
	// types here: one is a permission gap, the other a bad link or probe.
	EventTypeRouteDenied   EventType = "authz.route_denied"
	EventTypeRouteNotFound EventType = "authz.route_not_found"

	// Role lifecycle events
	EventTypeRoleCreate     EventType = "role.create"
	EventTypeRoleSave       EventType = "role.save"
	EventTypeRoleSaveDenied EventType = "role.save_denied"
	EventTypeRoleLoadDenied EventType = "role.load_denied"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
	EventStatusDenied  EventStatus = "denied"
)

// Event is a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor
	UserID   *int64  `json:"user_id,omitempty"`
	TenantID *string `json:"tenant_id,omitempty"`

	// Subject
	RouteKey string `json:"route_key,omitempty"`
	RoleID   *int64 `json:"role_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Method    string `json:"method,omitempty"`
	Path      string `json:"path,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// ToJSON converts the event to JSON
func (e *Event) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// SearchFilter narrows audit log queries
type SearchFilter struct {
	StartTime  *time.Time
	EndTime    *time.Time
	UserID     *int64
	TenantID   *string
	EventTypes []EventType
	Status     *EventStatus
	Path       string

	Limit  int
	Offset int
}
