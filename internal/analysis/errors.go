package analysis

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig is returned when a run has neither a website URL nor a location.
	ErrConfig = errors.New("a website URL or a manual location is required")
	// ErrUpstream covers failures of the business context call.
	ErrUpstream = errors.New("business context inference failed")
	// ErrStream covers failures opening or reading the classification stream.
	ErrStream = errors.New("classification stream failed")
	// ErrFileRead is returned when the uploaded search term file cannot be read as text.
	ErrFileRead = errors.New("search term file could not be read")
	// ErrNoTerms is returned when the uploaded file holds no search terms.
	ErrNoTerms = errors.New("no search terms detected in csv")
)

func wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Kind maps an error onto the short label transports report alongside the message.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfig), errors.Is(err, ErrNoTerms):
		return "config"
	case errors.Is(err, ErrFileRead):
		return "file_read"
	case errors.Is(err, ErrUpstream):
		return "upstream"
	case errors.Is(err, ErrStream):
		return "stream"
	default:
		return ""
	}
}
