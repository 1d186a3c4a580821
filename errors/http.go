package errors

import (
	stderrors "errors"
	"net/http"
)

// MapToHTTPStatus converts a domain error into the status code served
// to clients. Unknown errors collapse to 500 so internals never leak.
func MapToHTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case stderrors.Is(err, ErrEmptyMessage),
		stderrors.Is(err, ErrInvalidPassword),
		stderrors.Is(err, ErrInvalidPayload):
		return http.StatusBadRequest
	case stderrors.Is(err, ErrUnauthenticated),
		stderrors.Is(err, ErrInvalidCredentials):
		return http.StatusUnauthorized
	case stderrors.Is(err, ErrUserAlreadyExists):
		return http.StatusConflict
	case stderrors.Is(err, ErrNotFound),
		stderrors.Is(err, ErrUnknownReceiver):
		return http.StatusNotFound
	case stderrors.Is(err, ErrUnsupportedMedia):
		return http.StatusUnsupportedMediaType
	case stderrors.Is(err, ErrMediaTooLarge):
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}
