package scrape

import (
	"errors"
	"fmt"
)

// TransientFetchError marks fetch failures worth retrying: timeouts,
// connection resets and 5xx responses. Exhausting the retry budget fails
// the single crawl attempt without touching the source's compliance
// status.
type TransientFetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *TransientFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient fetch error for %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("transient fetch error for %s: %v", e.URL, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err is retryable.
func IsTransient(err error) bool {
	var te *TransientFetchError
	return errors.As(err, &te)
}

// PermanentFetchError marks fetch failures that retrying cannot fix, such
// as 4xx responses or unsupported content types.
type PermanentFetchError struct {
	URL        string
	StatusCode int
	Reason     string
}

func (e *PermanentFetchError) Error() string {
	return fmt.Sprintf("fetch failed for %s: %s", e.URL, e.Reason)
}
