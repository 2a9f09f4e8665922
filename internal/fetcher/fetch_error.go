package fetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind tells the crawl whether a failure is worth trying again later.
type ErrorKind string

const (
	KindTransient ErrorKind = "transient"
	KindPermanent ErrorKind = "permanent"
	// KindAmbiguous covers responses that arrived fine but carried nothing
	// usable, such as a page that rendered no text.
	KindAmbiguous ErrorKind = "ambiguous"
)

// ErrorType classifies fetch failures. It is stored on the page so the next
// crawl can tell a repeat failure from a fresh one.
type ErrorType string

const (
	ErrTypeTimeout                ErrorType = "timeout"
	ErrTypeNetwork                ErrorType = "network"
	ErrTypeServerError            ErrorType = "server_error"
	ErrTypeRateLimited            ErrorType = "rate_limited"
	ErrTypeNotFound               ErrorType = "not_found"
	ErrTypeForbidden              ErrorType = "forbidden"
	ErrTypeClientError            ErrorType = "client_error"
	ErrTypeUnsupportedContentType ErrorType = "unsupported_content_type"
	ErrTypeEmptyContent           ErrorType = "empty_content"
	ErrTypeTooLarge               ErrorType = "too_large"
)

// FetchError is a classified page fetch failure.
type FetchError struct {
	Kind       ErrorKind
	Type       ErrorType
	StatusCode int
	URL        string
	Cause      error
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: HTTP %d for %s", e.Type, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("fetch %s: %v for %s", e.Type, e.Cause, e.URL)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// ClassifyHTTPStatus builds a FetchError for a non-2xx response.
func ClassifyHTTPStatus(statusCode int, url string) *FetchError {
	cause := fmt.Errorf("HTTP %d", statusCode)
	fe := &FetchError{StatusCode: statusCode, URL: url, Cause: cause}

	switch {
	case statusCode == http.StatusNotFound, statusCode == http.StatusGone:
		fe.Kind, fe.Type = KindPermanent, ErrTypeNotFound
	case statusCode == http.StatusForbidden:
		fe.Kind, fe.Type = KindPermanent, ErrTypeForbidden
	case statusCode == http.StatusTooManyRequests:
		fe.Kind, fe.Type = KindTransient, ErrTypeRateLimited
	case statusCode >= http.StatusInternalServerError:
		fe.Kind, fe.Type = KindTransient, ErrTypeServerError
	default:
		fe.Kind, fe.Type = KindPermanent, ErrTypeClientError
	}

	return fe
}

// ClassifyNetworkError builds a FetchError for a transport-level failure.
func ClassifyNetworkError(cause error, url string) *FetchError {
	errType := ErrTypeNetwork

	var netErr net.Error
	if errors.Is(cause, context.DeadlineExceeded) || (errors.As(cause, &netErr) && netErr.Timeout()) {
		errType = ErrTypeTimeout
	}

	return &FetchError{Kind: KindTransient, Type: errType, URL: url, Cause: cause}
}

// TypeOf returns the ErrorType of err, or "" if err is not a FetchError.
func TypeOf(err error) ErrorType {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Type
	}
	return ""
}

// IsNotFound reports whether err means the page no longer exists.
func IsNotFound(err error) bool {
	return TypeOf(err) == ErrTypeNotFound
}
