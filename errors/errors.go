package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")
	ErrEmptyWords  = fmt.Errorf("no words have been found")

	ErrRejected           = fmt.Errorf("rejected")
	ErrNotFound           = fmt.Errorf("not found")
	ErrUnknownCommand     = fmt.Errorf("unknown command")
	ErrForbidden          = fmt.Errorf("forbidden")
	ErrQueueFull          = fmt.Errorf("queue full")
	ErrInsufficientPoints = fmt.Errorf("insufficient points")
	ErrExternalFailure    = fmt.Errorf("external failure")
	ErrInternal           = fmt.Errorf("internal invariant violation")
	ErrInvalidArgument    = fmt.Errorf("invalid argument")
	ErrDuplicateCommand   = fmt.Errorf("command already registered")
	ErrInvalidPayload     = fmt.Errorf("invalid payload")
	ErrSessionClosed      = fmt.Errorf("session closed")
	ErrSubscriptionClosed = fmt.Errorf("subscription closed")
	ErrMaxAttempts        = fmt.Errorf("maximum reconnect attempts reached")

	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity requirements")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrUserAlreadyExists  = fmt.Errorf("operator already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
)
