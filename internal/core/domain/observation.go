package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Result kind labels, shared by metrics, sinks and persisted observations.
const (
	KindOK           = "ok"
	KindTransport    = "transport"
	KindProtocol     = "protocol"
	KindUnauthorized = "unauthorized"
	KindServer       = "server"
	KindDecode       = "decode"
	KindError        = "error"
)

// Observation records one settled invocation of a watched method as seen by
// the poller.
type Observation struct {
	ID         uuid.UUID       `json:"id"`
	Method     string          `json:"method"`
	Kind       string          `json:"kind"`
	Status     int             `json:"status,omitempty"`
	Latency    time.Duration   `json:"latency"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Err        string          `json:"err,omitempty"`
	ObservedAt time.Time       `json:"observed_at"`
}

// Healthy reports whether the observation carries a successful result.
func (o *Observation) Healthy() bool {
	return o.Kind == KindOK
}
