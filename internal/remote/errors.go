// Elevation Loom - Offline-first Elevation Training Logger
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/elevation-loom

package remote

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrRemote matches every *RemoteError through errors.Is.
	ErrRemote = errors.New("remote store error")

	// ErrUnauthorized is wrapped by RemoteErrors carrying a 401.
	ErrUnauthorized = errors.New("remote store rejected credentials")

	// ErrRateLimited is returned when 429 retries are exhausted.
	ErrRateLimited = errors.New("remote store rate limit exceeded")

	// ErrNoIdentity is returned by Push when no token source is configured.
	ErrNoIdentity = errors.New("no identity available for remote request")
)

// RemoteError is a failed remote call. StatusCode is 0 for transport
// failures, in which case Err carries the cause.
type RemoteError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Message != "":
		return fmt.Sprintf("remote %s: %d %s: %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("remote %s: %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("remote %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("remote %s failed", e.Op)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Is reports ErrRemote as a match, and ErrUnauthorized for 401s.
func (e *RemoteError) Is(target error) bool {
	switch target {
	case ErrRemote:
		return true
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// Temporary reports whether retrying the same request later may succeed.
// Client errors other than 401, 408 and 429 will fail the same way again.
func (e *RemoteError) Temporary() bool {
	if e.StatusCode == 0 {
		return true
	}
	switch e.StatusCode {
	case http.StatusUnauthorized, http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return e.StatusCode >= 500
}

// IsTemporary reports whether err is a retryable remote failure. Errors
// that are not *RemoteError (context cancellation, breaker rejections)
// are treated as temporary.
func IsTemporary(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Temporary()
	}
	return err != nil
}
