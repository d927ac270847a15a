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

import "testing"

func TestRecvBufferAppendAdvance(t *testing.T) {
	var b recvBuffer
	b.append([]byte("hello"))
	b.append([]byte(" world"))
	require_Equal(t, string(b.unparsed()), "hello world")

	b.advance(6)
	require_Equal(t, string(b.unparsed()), "world")
	require_Len(t, b.len(), 5)
}

func TestRecvBufferAdvanceToEmptyResetsOffset(t *testing.T) {
	var b recvBuffer
	b.append([]byte("hello"))
	b.advance(5)
	require_Len(t, b.len(), 0)
	require_Len(t, len(b.buf), 0)
	require_Len(t, b.off, 0)
}

func TestRecvBufferCompactsPastThreshold(t *testing.T) {
	var b recvBuffer
	b.append(make([]byte, compactThreshold))
	b.append([]byte("tail"))
	b.advance(compactThreshold)

	require_Equal(t, string(b.unparsed()), "tail")
	require_Len(t, b.off, 0)
	require_Len(t, len(b.buf), 4)
}

func TestRecvBufferPushFront(t *testing.T) {
	var b recvBuffer
	b.append([]byte("world"))
	b.pushFront([]byte("hello "))
	require_Equal(t, string(b.unparsed()), "hello world")
}
