package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrOnlyCensoredFiles = fmt.Errorf("censored directory contains directories")
	ErrEmptyWords        = fmt.Errorf("no words have been found")

	ErrEmptyMessage       = fmt.Errorf("message needs text or an image")
	ErrUnknownReceiver    = fmt.Errorf("receiver does not exist")
	ErrUnauthenticated    = fmt.Errorf("missing or unverifiable identity")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrNotFound           = fmt.Errorf("not found")
	ErrInvalidPayload     = fmt.Errorf("invalid event payload")
	ErrUnsupportedMedia   = fmt.Errorf("only image uploads are accepted")
	ErrMediaTooLarge      = fmt.Errorf("media payload exceeds the size limit")
	ErrServerStopped      = fmt.Errorf("server stopped")
)
