package errors

import "fmt"

var (
	ErrUnauthenticated    = fmt.Errorf("not authenticated")
	ErrForbidden          = fmt.Errorf("operation not allowed")
	ErrNotFound           = fmt.Errorf("not found")
	ErrValidation         = fmt.Errorf("invalid payload")
	ErrEmptyBody          = fmt.Errorf("message body is empty")
	ErrUserAlreadyExists  = fmt.Errorf("email already in use")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
)
