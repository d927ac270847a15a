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

// noopLogger discards everything. Used when Config.LoggerFactory is nil,
// so the rest of the package never has to nil-check a logger before
// calling it.
type noopLogger struct{}

func (noopLogger) Trace(string)                  {}
func (noopLogger) Tracef(string, ...interface{}) {}
func (noopLogger) Debug(string)                  {}
func (noopLogger) Debugf(string, ...interface{}) {}
func (noopLogger) Info(string)                   {}
func (noopLogger) Infof(string, ...interface{})  {}
func (noopLogger) Warn(string)                   {}
func (noopLogger) Warnf(string, ...interface{})  {}
func (noopLogger) Error(string)                  {}
func (noopLogger) Errorf(string, ...interface{}) {}
