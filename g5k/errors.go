package g5k

import "fmt"

// AuthenticationError is returned when the service rejects the credentials.
// It is never retried.
type AuthenticationError struct {
	Path string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication rejected by the API for '%s'", e.Path)
}

// NotFoundError is returned when the referenced site, job or resource does
// not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("resource '%s' does not exist", e.Path)
}

// RequestError is any other non-2xx response, carrying the response body as
// returned by the service.
type RequestError struct {
	Path       string
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request to '%s' failed with status %d: %s", e.Path, e.StatusCode, e.Body)
}
