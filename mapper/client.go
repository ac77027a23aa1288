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
	"context"
	"io"
	"sync"
	"time"

	gi "github.com/onsi/ginkgo/v2"
	g "github.com/onsi/gomega"
	"github.com/onsi/gomega/gexec"
	"github.com/thediveo/mapspace"
	"github.com/thediveo/mapspace/mapper/api"
	"github.com/thediveo/mapspace/mapper/gobmsg"
	"github.com/thediveo/mapspace/mapper/service"
	"github.com/thediveo/mapspace/uds"
	"golang.org/x/sys/unix"
)

// Client connects to exactly one mapper service instance, which might be
// in-process or a separate process.
//
// # Important
//
// Client cannot(!) be used concurrently.
type Client struct {
	conn   *uds.Conn
	enc    *gobmsg.Encoder
	dec    *gobmsg.Decoder
	stdout io.Writer
	stderr io.Writer
}

var (
	mapperbinarymu      sync.Mutex
	mapperServiceBinary string
)

func mapperServicePath() string {
	mapperbinarymu.Lock()
	defer mapperbinarymu.Unlock()

	if mapperServiceBinary != "" {
		return mapperServiceBinary
	}

	gi.By("building the mapper service binary")
	var err error
	mapperServiceBinary, err = gexec.BuildWithEnvironment(
		"github.com/thediveo/mapspace/mapper/service/cmd",
		[]string{"CGO_ENABLED=0"},
		"-tags=usergo,netgo")
	g.Expect(err).NotTo(g.HaveOccurred(), "cannot build mapper service binary")
	return mapperServiceBinary
}

// New returns a new client connected to a new mapper service instance. This
// service instance will terminate either when the passed context gets
// cancelled or when the Close method of the returned client object is called.
//
// Make sure to call [gexec.CleanupBuildArtifacts] in your AfterSuite.
func New(ctx context.Context, opts ...Option) *Client {
	gi.GinkgoHelper()

	c := &Client{}
	for _, opt := range opts {
		g.Expect(opt(c)).To(g.Succeed(), "cannot apply option")
	}

	servicebinpath := mapperServicePath()

	local, remote, err := uds.NewPair()
	g.Expect(err).NotTo(g.HaveOccurred(), "cannot create connected unix domain socket pair")

	go func() {
		service.Serve(ctx, remote, &service.Mapmaker{
			Exe:    servicebinpath,
			Stdout: c.stdout,
			Stderr: c.stderr,
		})
		_ = remote.Close()
	}()

	c.conn = local
	c.enc = gobmsg.NewEncoder()
	c.dec = gobmsg.NewDecoder()
	return c
}

// Close the connection to the mapper service instance. This will cause the
// previously connected mapper service instance to automatically terminate.
//
// Please note that all Client instances are independent, so closing one will
// not afflict any other Client instance.
func (c *Client) Close() {
	_ = c.conn.Close()
}

// Mapped returns a new client connected to a service instance living inside
// a new user namespace with the passed UID and GID range mappings fully
// established, together with a [api.MappedSpace] referencing that namespace.
// For the “initial” client returned by [New] the parent user namespace is
// that of the test process. For clients returned from Mapped calls the
// parent user namespace is that of the particular service process.
//
// Mapped also schedules a DeferCleanup to automatically close the open file
// descriptor of the namespace returned when the current node ends, where
// Mapped was called. Callers thus must not close the returned file
// descriptor themselves. Callers are free to [unix.Dup] the
// namespace-referencing file descriptor to break out of this fd lifecycle.
func (c *Client) Mapped(uid, gid mapspace.MapRequest) (*Client, api.MappedSpace) {
	gi.GinkgoHelper()

	resp := do[*api.MappedResponse](c, api.MappedRequest{
		UID: uid,
		GID: gid,
	}, "mapped")
	mappedconn, err := uds.NewUnixConn(resp.Conn, "mapped")
	g.Expect(err).NotTo(g.HaveOccurred(), "mapped service connection failure")
	newclient := &Client{
		conn:   mappedconn,
		enc:    gobmsg.NewEncoder(),
		dec:    gobmsg.NewDecoder(),
		stdout: c.stdout,
		stderr: c.stderr,
	}

	gi.DeferCleanup(func(userfd int) {
		if userfd > 0 {
			_ = unix.Close(userfd)
		}
	}, resp.User)

	return newclient, resp.MappedSpace
}

// Mappings returns the UID and GID mapping entries of the process with the
// passed PID, as seen by the connected service instance; a zero PID reports
// the service instance's own mappings.
func (c *Client) Mappings(pid int) api.MappingsResponse {
	gi.GinkgoHelper()

	resp := do[*api.MappingsResponse](c, api.MappingsRequest{PID: pid}, "mappings")
	return *resp
}

// do the passed API request, returning a non-failure API response; or
// otherwise failing the current test.
func (c *Client) do(req api.Request, name string) api.Response {
	gi.GinkgoHelper()

	msg, err := c.enc.Encode(&req)
	g.Expect(err).NotTo(g.HaveOccurred(), "cannot encode %s request", name)
	g.Expect(c.conn.SendWithFds(msg)).Error().NotTo(g.HaveOccurred(),
		"cannot send %s request", name)

	g.Expect(c.conn.SetReadDeadline(time.Now().Add(30*time.Second))).To(g.Succeed(),
		"cannot receive %s response", name)
	n, fds, err := c.conn.ReceiveWithFds(c.dec.Buffer(), 2)
	g.Expect(err).NotTo(g.HaveOccurred(), "cannot receive %s response", name)

	var resp api.Response
	g.Expect(c.dec.Decode(n, &resp)).To(g.Succeed(),
		"cannot decode %s response", name)
	g.Expect(resp).NotTo(api.HaveFailed(), "%s service failed", name)
	if r, ok := resp.(api.FdsDecoder); ok {
		r.DecodeFds(fds)
	} else {
		g.Expect(fds).To(g.BeEmpty(),
			"%s service received fds when it shouldn't; response: %T", name, resp)
	}
	return resp
}

// do the passed API request on the specified client, returning a response of
// type R, or otherwise failing the current test.
func do[R any](c *Client, req api.Request, name string) R {
	gi.GinkgoHelper()

	resp := c.do(req, name)
	r, ok := resp.(R)
	g.Expect(ok).To(g.BeTrue(), "not a %s response", name)
	return r
}
