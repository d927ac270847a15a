// Copyright 2020 The NATS Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ws

import (
	"fmt"

	"github.com/nats-io/nats.go"
)

// NatsRelay implements AuditPublisher by republishing every dispatched
// text/binary event to a NATS subject derived from SubjectPrefix and the
// connection ID, the way the teacher's server mirrors client traffic
// onto its own internal account subjects for observability. Publish is
// fire-and-forget: a slow or down NATS connection must never back-pressure
// the websocket read pump, so it uses nc.Publish rather than a
// request/reply round-trip.
type NatsRelay struct {
	// NC is a connected *nats.Conn. NatsRelay does not own its lifecycle.
	NC *nats.Conn
	// SubjectPrefix starts the published subject
	// "<prefix>.<connID>.<subject>", e.g. "ws.audit".
	SubjectPrefix string
}

// Publish implements AuditPublisher.
func (r *NatsRelay) Publish(subject string, connID string, payload []byte) error {
	if r.NC == nil {
		return fmt.Errorf("relay: no NATS connection configured")
	}
	full := fmt.Sprintf("%s.%s", r.SubjectPrefix, connID)
	if subject != "" {
		full = fmt.Sprintf("%s.%s", full, subject)
	}
	return r.NC.Publish(full, payload)
}
