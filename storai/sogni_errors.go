package storai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
)

// ErrorKind is a closed set of image-provider failure categories. All
// downstream logic matches on the kind rather than re-inspecting raw
// error shapes.
type ErrorKind string

const (
	KindInsufficientFunds ErrorKind = "INSUFFICIENT_FUNDS"
	KindProjectNotFound   ErrorKind = "PROJECT_NOT_FOUND"
	KindConnectionLimit   ErrorKind = "CONNECTION_LIMIT"
	KindNetwork           ErrorKind = "NETWORK_ERROR"
	KindUnknown           ErrorKind = "UNKNOWN_ERROR"
)

// Provider error codes, per the Sogni API.
const (
	codeInsufficientFunds = 4024
	codeProjectNotFound   = 102
	codeConnectionLimit   = 4028
)

// apiError is a raw non-success response from the image provider.
type apiError struct {
	Status  int    `json:"-"`
	Code    int    `json:"errorCode"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("sogni api error (status %d, code %d): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("sogni api error (code %d): %s", e.Code, e.Message)
}

// ProviderError tags an image-provider failure with its category and a
// remediation hint.
type ProviderError struct {
	Kind    ErrorKind
	Message string
	Hint    string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

var (
	fundsPattern     = regexp.MustCompile(`(?i)insufficient funds`)
	notFoundPattern  = regexp.MustCompile(`(?i)project not found`)
	connLimitPattern = regexp.MustCompile(`(?i)too many accounts`)
	networkPattern   = regexp.MustCompile(`(?i)timeout|network|connection`)
)

// ClassifyError maps a raw provider failure onto the closed ErrorKind
// set. It is called once at the provider-call boundary.
func ClassifyError(err error) *ProviderError {
	var status, code int
	msg := err.Error()

	var api *apiError
	if errors.As(err, &api) {
		status = api.Status
		code = api.Code
		if api.Message != "" {
			msg = api.Message
		}
	}

	switch {
	case code == codeInsufficientFunds || fundsPattern.MatchString(msg):
		return &ProviderError{
			Kind:    KindInsufficientFunds,
			Message: "Sogni account has insufficient credits",
			Hint:    "Try reducing steps/guidance or add credits to your Sogni account",
			Err:     err,
		}
	case status == 404 || code == codeProjectNotFound || notFoundPattern.MatchString(msg):
		return &ProviderError{
			Kind:    KindProjectNotFound,
			Message: "Project creation failed (likely due to insufficient funds)",
			Hint:    "This usually happens when the debit fails. Check your Sogni account balance",
			Err:     err,
		}
	case code == codeConnectionLimit || connLimitPattern.MatchString(msg):
		return &ProviderError{
			Kind:    KindConnectionLimit,
			Message: "Too many concurrent connections for this Sogni account",
			Hint:    "Wait a moment and try again, or use a different account",
			Err:     err,
		}
	case isNetworkError(err) || networkPattern.MatchString(msg):
		return &ProviderError{
			Kind:    KindNetwork,
			Message: "Network connection to Sogni failed",
			Hint:    "Check your internet connection and try again",
			Err:     err,
		}
	default:
		return &ProviderError{
			Kind:    KindUnknown,
			Message: msg,
			Hint:    "Check Sogni service status and your account settings",
			Err:     err,
		}
	}
}

func isNetworkError(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) ||
		errors.Is(err, context.DeadlineExceeded)
}
