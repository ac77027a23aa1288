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

package uds

import (
	"errors"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Conn is a (stream) unix domain socket connection able to piggyback open
// file descriptors onto messages, wrapping [*net.UnixConn]. Create directly
// connected pairs with [NewPair]; send and receive messages with fds
// attached using [Conn.SendWithFds] and [Conn.ReceiveWithFds].
type Conn struct {
	*net.UnixConn
}

// NewPair returns two directly peer-to-peer connected stream unix domain
// sockets, capable of transferring open file descriptors between the
// processes ending up with the two sides.
func NewPair() (local, remote *Conn, err error) {
	fdpair, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, nil, err
	}
	local, err = NewUnixConn(fdpair[0], "local")
	if err != nil {
		// NewUnixConn already disposed of fdpair[0], whatever happened; the
		// other socket is still ours to clean up.
		_ = unix.Close(fdpair[1])
		return nil, nil, err
	}
	remote, err = NewUnixConn(fdpair[1], "remote")
	if err != nil {
		_ = local.Close()
		return nil, nil, err
	}
	return local, remote, nil
}

// SendWithFds sends the passed message data together with the passed open
// file descriptors, the latter as a single SCM_RIGHTS control message.
func (c *Conn) SendWithFds(b []byte, fds ...int) (noob int, err error) {
	// unix.UnixRights packages header and fd payload into one complete
	// control message.
	oob := unix.UnixRights(fds...)
	_, noob, err = c.WriteMsgUnix(b, oob, nil)
	return noob, err
}

// ReceiveWithFds receives a message into the passed buffer, returning the
// amount of message data received as well as any file descriptors that
// arrived attached as an SCM_RIGHTS control message. Receiving no fds at all
// is fine, such as with error responses; control messages other than fd
// transfers are skipped.
func (c *Conn) ReceiveWithFds(b []byte, maxfds int) (n int, fds []int, err error) {
	// An fd travels as an int32 inside the control message payload;
	// unix.CmsgSpace accounts for the header overhead on top.
	oob := make([]byte, unix.CmsgSpace(maxfds*4))
	n, noob, _, _, err := c.ReadMsgUnix(b, oob)
	if err != nil {
		return 0, nil, err
	}
	cms, err := unix.ParseSocketControlMessage(oob[:noob])
	if err != nil {
		return 0, nil, err
	}
	for _, cm := range cms {
		if cm.Header.Level != unix.SOL_SOCKET || cm.Header.Type != unix.SCM_RIGHTS {
			continue
		}
		fds, err := unix.ParseUnixRights(&cm)
		if err != nil {
			return 0, nil, err
		}
		return n, fds, nil
	}
	return n, nil, nil
}

// NewUnixConn wraps the passed unix domain socket fd into a *Conn with
// message-plus-control-data send and receive methods (see sendmsg(2) for
// the underlying mechanics).
//
// NewUnixConn always takes ownership of the passed file descriptor, even in
// case of error: the caller must neither use nor close it afterwards.
func NewUnixConn(udsfd int, nickname string) (*Conn, error) {
	f := os.NewFile(uintptr(udsfd), nickname)
	if f == nil {
		return nil, errors.New("not a file descriptor")
	}
	defer func() { _ = f.Close() }()
	netconn, err := net.FilePacketConn(f)
	if err != nil {
		return nil, err
	}
	unixconn, ok := netconn.(*net.UnixConn)
	if !ok {
		_ = netconn.Close()
		return nil, errors.New("not a unix domain socket")
	}
	return &Conn{UnixConn: unixconn}, nil
}
