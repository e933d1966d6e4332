package method

import (
	"fmt"

	"github.com/vietddude/methodwatch/internal/core/domain"
)

// ErrorKind is the closed set of classified call failures, ordered by
// classification priority.
type ErrorKind int

const (
	// KindTransport: the network layer could not complete the exchange.
	KindTransport ErrorKind = iota
	// KindProtocol: HTTP 400, the server rejected the request shape.
	KindProtocol
	// KindUnauthorized: HTTP 401, the caller lacks a valid session.
	KindUnauthorized
	// KindServer: any other non-2xx status.
	KindServer
)

// String returns the stable label used in metrics and observations.
func (k ErrorKind) String() string {
	switch k {
	case KindTransport:
		return domain.KindTransport
	case KindProtocol:
		return domain.KindProtocol
	case KindUnauthorized:
		return domain.KindUnauthorized
	case KindServer:
		return domain.KindServer
	default:
		return domain.KindError
	}
}

// CallError is a classified invocation failure. The kind set is closed;
// a 2xx body that fails to decode is reported as *DecodeError instead.
type CallError struct {
	Kind   ErrorKind
	Status int   // 0 when no response was obtained
	Cause  error // set when Kind is KindTransport
}

func (e *CallError) Error() string {
	if e.Kind == KindTransport {
		return fmt.Sprintf("method call: transport failure: %v", e.Cause)
	}
	return fmt.Sprintf("method call: %s (http %d)", e.Kind, e.Status)
}

func (e *CallError) Unwrap() error {
	return e.Cause
}

// DecodeError reports a 2xx response whose body did not decode as the
// expected payload type. It stays outside the closed ErrorKind set: the
// server accepted the call, the payload contract is what broke.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("method call: decode payload: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}
