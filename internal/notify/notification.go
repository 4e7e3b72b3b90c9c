package notify

import "time"

// Type classifies a notification for presentation and dismissal defaults.
type Type string

// Notification types understood by the UI shell.
const (
	TypeSuccess Type = "success"
	TypeError   Type = "error"
	TypeWarning Type = "warning"
	TypeInfo    Type = "info"
)

// DefaultDuration is how long an auto-dismissing notification stays visible
// when the caller does not choose a duration.
const DefaultDuration = 5 * time.Second

// Valid reports whether the type is one of the known notification types.
func (t Type) Valid() bool {
	switch t {
	case TypeSuccess, TypeError, TypeWarning, TypeInfo:
		return true
	}
	return false
}

// autoDismissDefault returns the dismissal behaviour implied by the type.
// Transient confirmations clear themselves; problems stay until acknowledged.
func (t Type) autoDismissDefault() bool {
	switch t {
	case TypeSuccess, TypeInfo:
		return true
	default:
		return false
	}
}

// Notification is a single entry in the in-memory notification queue.
type Notification struct {
	ID          string
	Type        Type
	Title       string
	Message     string
	CreatedAt   time.Time
	Read        bool
	AutoDismiss bool
	Duration    time.Duration
}

// Input describes a notification to enqueue. AutoDismiss and Duration are
// optional; when nil they are derived from the type and DefaultDuration.
type Input struct {
	Type        Type
	Title       string
	Message     string
	AutoDismiss *bool
	Duration    *time.Duration
}
