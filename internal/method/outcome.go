package method

// Outcome is the raw result of one transport exchange. It is tagged
// explicitly at the invocation layer so the classifier never inspects the
// runtime shape of an error: either the exchange never completed (a network
// failure carrying its cause), or the server returned a response.
type Outcome struct {
	netErr error
	status int
	body   []byte
}

// NetworkFailure wraps a transport-level failure where no response was
// obtained.
func NetworkFailure(cause error) Outcome {
	return Outcome{netErr: cause}
}

// Response wraps a returned HTTP response.
func Response(status int, body []byte) Outcome {
	return Outcome{status: status, body: body}
}

// NetworkErr returns the transport failure cause, or nil when a response
// was obtained.
func (o Outcome) NetworkErr() error {
	return o.netErr
}

// Status returns the HTTP status code. Only meaningful when NetworkErr
// is nil.
func (o Outcome) Status() int {
	return o.status
}

// Body returns the raw response body. Only meaningful when NetworkErr
// is nil.
func (o Outcome) Body() []byte {
	return o.body
}
