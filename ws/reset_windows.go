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

//go:build windows

package ws

import (
	"errors"
	"io"
	"os"

	"golang.org/x/sys/windows"
)

// isResetError mirrors reset_unix.go's classification using the
// Windows-specific errno values for a reset connection or a broken pipe.
func isResetError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
		return true
	}
	var errno windows.Errno
	if errors.As(err, &errno) {
		return errno == windows.WSAECONNRESET || errno == windows.ERROR_BROKEN_PIPE
	}
	return false
}
