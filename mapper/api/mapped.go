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

package api

import (
	"github.com/thediveo/mapspace"
	"golang.org/x/sys/unix"
)

// MappedRequest asks the service to spawn a new service instance into a new
// user namespace with the requested UID and GID ranges mapped into it. Both
// map requests must be specified; there is no half-mapped namespace on offer.
type MappedRequest struct {
	UID mapspace.MapRequest
	GID mapspace.MapRequest
}

// MappedResponse returns the connected unix domain socket to talk to the new
// mapped service instance, together with a reference to the freshly mapped
// user namespace the instance lives in.
//
// Please note that the receiver takes ownership of the returned file
// descriptors and thus is responsible to close them when not needing them
// anymore. Closing the connection fd will also terminate the connected mapped
// service instance.
type MappedResponse struct {
	Conn int // fd of client unix domain socket
	MappedSpace
}

// MappedSpace identifies a freshly mapped user namespace: a referencing open
// file descriptor, plus the PID of the mapped service process attached to it.
// The receiver of a MappedSpace value takes ownership of the fd and is thus
// responsible to properly close it when not needing it anymore.
type MappedSpace struct {
	User int // the user namespace referencing fd.
	PID  int // PID of the mapped service process.
}

var _ Request = (*MappedRequest)(nil)

func (m MappedRequest) request() {}

var (
	_ Response   = (*MappedResponse)(nil)
	_ FdsEncoder = (*MappedResponse)(nil)
	_ FdsDecoder = (*MappedResponse)(nil)
)

func (m MappedResponse) response() {}

// EncodeFds returns the file descriptors contained in the response message,
// replacing the original message fields with zero values so the fields don't
// get transferred by gob. The PID travels in-band, it is not an fd.
func (m *MappedResponse) EncodeFds() []int {
	return auxiliaryFds(nil).
		borrow(&m.Conn).
		borrow(&m.User)
}

// DecodeFds distributes the passed file descriptors that were received as
// auxiliary data with a response message back into their corresponding message
// fields. DecodeFds closes any passed file descriptors it cannot make any sense
// of.
func (m *MappedResponse) DecodeFds(fds []int) {
	m.Conn = fds[0]
	for _, fd := range fds[1:] {
		switch typ, _ := unix.IoctlRetInt(fd, mapspace.NS_GET_NSTYPE); typ {
		case unix.CLONE_NEWUSER:
			m.User = fd
		default:
			_ = unix.Close(fd)
		}
	}
}
