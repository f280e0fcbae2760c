package audit

import (
	"context"
	"time"
)

// AuditLog represents an audit log entry
type AuditLog struct {
	ID           string                 `msgpack:"id" json:"id"`
	EventType    string                 `msgpack:"event_type" json:"event_type"`
	ActorID      int64                  `msgpack:"actor_id" json:"actor_id"`
	ActorName    string                 `msgpack:"actor_name" json:"actor_name"`
	ActorRole    string                 `msgpack:"actor_role" json:"actor_role"`
	TargetType   string                 `msgpack:"target_type" json:"target_type"`
	TargetID     int64                  `msgpack:"target_id" json:"target_id"`
	Action       string                 `msgpack:"action" json:"action"`
	BeforeState  map[string]interface{} `msgpack:"before_state" json:"before_state,omitempty"`
	AfterState   map[string]interface{} `msgpack:"after_state" json:"after_state,omitempty"`
	IPAddress    string                 `msgpack:"ip_address" json:"ip_address,omitempty"`
	UserAgent    string                 `msgpack:"user_agent" json:"user_agent,omitempty"`
	RequestID    string                 `msgpack:"request_id" json:"request_id,omitempty"`
	Result       string                 `msgpack:"result" json:"result"` // "success", "failure", "denied"
	ErrorMessage string                 `msgpack:"error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time              `msgpack:"created_at" json:"created_at"`
}

// QueryFilter represents filtering criteria for audit log queries
type QueryFilter struct {
	ActorID    int64
	TargetType string
	TargetID   int64
	EventType  string
	Result     string
	StartTime  time.Time
	EndTime    time.Time
	Limit      int
	Offset     int
}

// Matches reports whether the entry satisfies every set criterion.
func (f QueryFilter) Matches(log *AuditLog) bool {
	if f.ActorID != 0 && log.ActorID != f.ActorID {
		return false
	}
	if f.TargetType != "" && log.TargetType != f.TargetType {
		return false
	}
	if f.TargetID != 0 && log.TargetID != f.TargetID {
		return false
	}
	if f.EventType != "" && log.EventType != f.EventType {
		return false
	}
	if f.Result != "" && log.Result != f.Result {
		return false
	}
	if !f.StartTime.IsZero() && log.CreatedAt.Before(f.StartTime) {
		return false
	}
	if !f.EndTime.IsZero() && log.CreatedAt.After(f.EndTime) {
		return false
	}
	return true
}

// Common event types
const (
	EventTypeBuildingCreated  = "building.created"
	EventTypeBuildingUpdated  = "building.updated"
	EventTypeBuildingDeleted  = "building.deleted"
	EventTypeEntranceCreated  = "entrance.created"
	EventTypeEntranceUpdated  = "entrance.updated"
	EventTypeEntranceDeleted  = "entrance.deleted"
	EventTypeApartmentCreated = "apartment.created"
	EventTypeApartmentUpdated = "apartment.updated"
	EventTypeApartmentDeleted = "apartment.deleted"
	EventTypeUserCreated      = "user.created"
	EventTypeUserUpdated      = "user.updated"
	EventTypeUserDeleted      = "user.deleted"
	EventTypeUserLogin        = "user.login"
	EventTypeUserLogout       = "user.logout"
)

// Result types
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDenied  = "denied"
)

// Recorder accepts audit entries. *Manager implements it.
type Recorder interface {
	Log(ctx context.Context, log *AuditLog) error
}

// Discard drops every entry. Used when auditing is disabled.
var Discard Recorder = discard{}

type discard struct{}

func (discard) Log(context.Context, *AuditLog) error { return nil }

type requestInfoKey struct{}

// RequestInfo carries the transport details stamped onto entries.
type RequestInfo struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// WithRequestInfo stores request details in the context
func WithRequestInfo(ctx context.Context, info RequestInfo) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, info)
}

// RequestInfoFromContext returns the request details, if any
func RequestInfoFromContext(ctx context.Context) (RequestInfo, bool) {
	info, ok := ctx.Value(requestInfoKey{}).(RequestInfo)
	return info, ok
}
