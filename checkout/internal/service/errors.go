package service

import (
	"fmt"
	"net/http"
)

type ErrorKind string

const (
	KindTransportUnavailable     ErrorKind = "transport_unavailable"
	KindUpstreamApplicationError ErrorKind = "upstream_application_error"
	KindConfigurationError       ErrorKind = "configuration_error"
)

const (
	DetailPaymentFailed        = "Payment failed"
	DetailMessagingUnavailable = "Messaging service unavailable"
	DetailInvalidConfiguration = "Invalid Configuration"
)

// DispatchError carries the HTTP status and the detail the caller is allowed
// to see. Err keeps the cause for logs; for upstream application errors it
// never reaches Detail.
type DispatchError struct {
	Kind   ErrorKind
	Status int
	Detail string
	Err    error
}

func (e *DispatchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

func paymentUnreachable(err error) *DispatchError {
	return &DispatchError{
		Kind:   KindTransportUnavailable,
		Status: http.StatusServiceUnavailable,
		Detail: fmt.Sprintf("Payment service unreachable: %v", err),
		Err:    err,
	}
}

func messagingUnavailable(err error) *DispatchError {
	return &DispatchError{
		Kind:   KindTransportUnavailable,
		Status: http.StatusServiceUnavailable,
		Detail: DetailMessagingUnavailable,
		Err:    err,
	}
}

func paymentFailed(status int, err error) *DispatchError {
	return &DispatchError{
		Kind:   KindUpstreamApplicationError,
		Status: status,
		Detail: DetailPaymentFailed,
		Err:    err,
	}
}

func invalidConfiguration(mode string) *DispatchError {
	return &DispatchError{
		Kind:   KindConfigurationError,
		Status: http.StatusInternalServerError,
		Detail: DetailInvalidConfiguration,
		Err:    fmt.Errorf("unknown dispatch mode %q", mode),
	}
}
