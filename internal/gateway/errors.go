package gateway

import "fmt"

// APIError is a structured rejection from the Linkfield gateway. Message is
// written for end users, so the optimistic coordinator surfaces it verbatim
// in rollback notifications.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Code != "" {
		return fmt.Sprintf("gateway: %s (%s, http %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("gateway: %s (http %d)", e.Message, e.Status)
}

// UserMessage returns the human-readable rejection reason.
func (e *APIError) UserMessage() string {
	if e == nil {
		return ""
	}
	return e.Message
}
