package remote

import (
	"errors"
	"fmt"
)

// Cause classifies why a remote call failed.
type Cause string

const (
	// CauseNetwork means the request never produced a response.
	CauseNetwork Cause = "network"

	// CauseHTTP means the backend answered with a non-2xx status.
	CauseHTTP Cause = "http"

	// CauseParse means the response body could not be decoded.
	CauseParse Cause = "parse"
)

// FetchError is the single failure type returned by Collection methods.
// 4xx and 5xx are not distinguished beyond the recorded status.
type FetchError struct {
	Cause  Cause
	Method string
	URL    string
	Status int // set for CauseHTTP
	Err    error
}

func (e *FetchError) Error() string {
	switch e.Cause {
	case CauseHTTP:
		return fmt.Sprintf("%s %s: http status %d", e.Method, e.URL, e.Status)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Cause, e.Err)
		}
		return fmt.Sprintf("%s %s: %s failure", e.Method, e.URL, e.Cause)
	}
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsCause reports whether err is a FetchError with the given cause.
// Uses errors.As to handle wrapped errors.
func IsCause(err error, c Cause) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Cause == c
	}
	return false
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Status
	}
	return 0
}
