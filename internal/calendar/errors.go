package calendar

import (
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

var (
	// ErrAuthExpired means the access token was rejected. The user has to
	// authorise again; retrying will not help.
	ErrAuthExpired = errors.New("calendar authorization expired")

	// ErrNotFound means the event or calendar does not exist (404 or 410).
	ErrNotFound = errors.New("calendar resource not found")

	// ErrTransient covers every other remote failure: network errors,
	// timeouts, rate limits and 5xx responses.
	ErrTransient = errors.New("calendar temporarily unavailable")
)

// classify tags err with one of the sentinel errors above while keeping the
// original error in the chain.
func classify(err error) error {
	if err == nil {
		return nil
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %w", ErrAuthExpired, err)
		case http.StatusNotFound, http.StatusGone:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		}
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %w", ErrAuthExpired, err)
	}

	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// IsNotFound reports whether err means the remote resource is already gone.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthExpired reports whether err means the user must authorise again.
func IsAuthExpired(err error) bool {
	return errors.Is(err, ErrAuthExpired)
}
