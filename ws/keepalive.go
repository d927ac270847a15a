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
	"strconv"
	"time"

	"github.com/pion/randutil"
)

var jitterDigits = []byte("0123456789")

// jitterGenerator produces the keepalive timer's jitter. It deliberately
// does not use crypto/rand: spreading PING timers across many
// connections so they don't all fire in lockstep is a scheduling
// concern, not a security one, so the faster math-rand-seeded generator
// from pion/randutil (built for exactly this kind of non-cryptographic,
// high-frequency randomness in ICE candidate generation) fits better
// than paying for crypto/rand on every keepalive tick.
var jitterGenerator = randutil.NewMathRandomGenerator()

// nextKeepaliveInterval returns base minus a random amount in
// [0, jitter), floored at 1ms so the timer never fires immediately or
// in the past.
func nextKeepaliveInterval(base, jitter time.Duration) time.Duration {
	jitterMillis := int(jitter / time.Millisecond)
	if jitterMillis <= 0 || base <= jitter {
		return base
	}
	s := jitterGenerator.GenerateString(4, string(jitterDigits))
	n, err := strconv.Atoi(s)
	if err != nil {
		return base
	}
	offset := time.Duration(n%jitterMillis) * time.Millisecond
	result := base - offset
	if result <= 0 {
		return time.Millisecond
	}
	return result
}
