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

//go:build !windows

package ws

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// isResetError classifies a transport error as "the peer vanished
// underneath us": EOF, ECONNRESET, or EPIPE (write-after-close). Using
// the syscall errno directly avoids matching on formatted error text,
// which is fragile across libc/kernel versions.
func isResetError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
		return true
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno == unix.ECONNRESET || errno == unix.EPIPE
	}
	return false
}
