package method

import (
	"encoding/json"
	"net/http"
)

// Classify maps a raw transport outcome onto a typed result. It is pure,
// total and synchronous: every outcome yields exactly one result, first
// match wins.
//
// Ordering is deliberate: transport-level absence of a response is
// distinguished from a returned-but-erroneous response, and among returned
// responses the client-shape error (400) is distinguished from the auth
// error (401), with everything else collapsed to a generic server failure.
// Callers that need finer status granularity must keep the Outcome.
func Classify[T any](out Outcome) Result[T] {
	if cause := out.NetworkErr(); cause != nil {
		return Err[T](&CallError{Kind: KindTransport, Cause: cause})
	}

	status := out.Status()
	switch {
	case status >= 200 && status < 300:
		var val T
		if err := json.Unmarshal(out.Body(), &val); err != nil {
			return Err[T](&DecodeError{Cause: err})
		}
		return OK(val)
	case status == http.StatusBadRequest:
		return Err[T](&CallError{Kind: KindProtocol, Status: status})
	case status == http.StatusUnauthorized:
		return Err[T](&CallError{Kind: KindUnauthorized, Status: status})
	default:
		return Err[T](&CallError{Kind: KindServer, Status: status})
	}
}
