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
	"encoding/base64"

	"github.com/minio/highwayhash"
	"github.com/nats-io/nuid"
)

// fingerprintKey is a fixed, non-secret 32-byte key. highwayhash isn't
// being used for anything security sensitive here, only to fold a
// (remote address, nonce) pair into a short, stable-width tag for log
// lines, so a fixed key is fine: we're deduplicating log noise, not
// authenticating anything.
var fingerprintKey = make([]byte, 32)

// newConnID returns a per-connection trace identifier: a nuid-generated
// unique ID followed by a highwayhash fingerprint of the peer address and
// handshake nonce, so two connections from the same remote address are
// distinguishable in logs without repeating the raw address on every
// line.
func newConnID(remoteAddr, nonce string) string {
	sum := highwayhash.Sum64([]byte(remoteAddr+"|"+nonce), fingerprintKey)
	tag := base64.RawURLEncoding.EncodeToString([]byte{
		byte(sum), byte(sum >> 8), byte(sum >> 16), byte(sum >> 24),
	})
	return nuid.Next() + "-" + tag
}
