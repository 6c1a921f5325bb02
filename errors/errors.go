package errors

import "fmt"

var (
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrMalformedPayload   = fmt.Errorf("malformed payload")
	ErrDuplicateSession   = fmt.Errorf("session id already registered")
	ErrSessionNotFound    = fmt.Errorf("session not found")
	ErrSubscriptionClosed = fmt.Errorf("subscription closed")
	ErrEngineStopped      = fmt.Errorf("engine stopped")
	ErrInvalidPayload     = fmt.Errorf("invalid event payload")
	ErrEmptyWords         = fmt.Errorf("no banned terms found in dictionaries")
)
