// Copyright 2026 Harald Albrecht.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mapper

import (
	"errors"
	"io"
)

// Option configures a [Client] when passed to [New].
type Option func(*Client) error

// WithStdout redirects the stdout of the mapper service instances belonging
// to this client.
func WithStdout(w io.Writer) Option {
	return func(c *Client) error {
		if w == nil {
			return errors.New("WithStdout: nil writer")
		}
		c.stdout = w
		return nil
	}
}

// WithStderr redirects the stderr of the mapper service instances belonging
// to this client, including the diagnostic output of the mapping tools.
func WithStderr(w io.Writer) Option {
	return func(c *Client) error {
		if w == nil {
			return errors.New("WithStderr: nil writer")
		}
		c.stderr = w
		return nil
	}
}
