package feeds

import (
	"context"
	"errors"
	"fmt"

	"allergystats/pkg/platform/sentinel"
)

// ErrorCategory is the normalized failure taxonomy for feed reads.
type ErrorCategory string

const (
	// ErrorTimeout: the source did not answer within the deadline.
	ErrorTimeout ErrorCategory = "timeout"
	// ErrorOutage: the source could not be reached.
	ErrorOutage ErrorCategory = "outage"
	// ErrorBadData: the source answered with a body that does not decode or
	// fails record validation.
	ErrorBadData ErrorCategory = "bad_data"
	// ErrorBadStatus: the source answered with a non-2xx status.
	ErrorBadStatus ErrorCategory = "bad_status"
)

// FeedError wraps a failed feed read. It matches sentinel.ErrUnavailable
// through errors.Is so callers need not know the category.
type FeedError struct {
	Category ErrorCategory
	Feed     string
	Message  string
	Err      error
}

func (e *FeedError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed %s [%s]: %s: %v", e.Feed, e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("feed %s [%s]: %s", e.Feed, e.Category, e.Message)
}

func (e *FeedError) Unwrap() []error {
	if e.Err == nil {
		return []error{sentinel.ErrUnavailable}
	}
	return []error{sentinel.ErrUnavailable, e.Err}
}

// NewFeedError builds a FeedError.
func NewFeedError(category ErrorCategory, feed, message string, err error) *FeedError {
	return &FeedError{Category: category, Feed: feed, Message: message, Err: err}
}

// Classify turns a transport error into a FeedError, recognising deadline
// expiry as a timeout and everything else as an outage. Errors that already
// are FeedErrors pass through.
func Classify(feed string, err error) error {
	if err == nil {
		return nil
	}
	var fe *FeedError
	if errors.As(err, &fe) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
		return NewFeedError(ErrorTimeout, feed, "request timed out", err)
	}
	return NewFeedError(ErrorOutage, feed, "source unreachable", err)
}

// CategoryOf extracts the category of a feed error. Unknown errors report
// as an outage.
func CategoryOf(err error) ErrorCategory {
	var fe *FeedError
	if errors.As(err, &fe) {
		return fe.Category
	}
	return ErrorOutage
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
