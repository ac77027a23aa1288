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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/fdooze"
	. "github.com/thediveo/success"
)

var _ = Describe("mapped responses", func() {

	BeforeEach(func() {
		goodfds := Filedescriptors()
		DeferCleanup(func() {
			Expect(Filedescriptors()).NotTo(HaveLeakedFds(goodfds))
		})
	})

	When("responding to a mapped request", func() {

		It("transfers mapped response fds out-of-band, keeping the PID in-band", func() {
			fd1 := Successful(unix.Open(".", unix.O_RDONLY, 0))
			defer func() { _ = unix.Close(fd1) }()
			usernsfd := Successful(mapspace.UserNamespaceOf(0))
			defer func() { _ = unix.Close(usernsfd) }()

			resp := &MappedResponse{
				Conn: fd1,
				MappedSpace: MappedSpace{
					User: usernsfd,
					PID:  42,
				},
			}
			fds := resp.EncodeFds()
			Expect(fds).To(HaveLen(2))
			Expect(resp.Conn).To(BeZero())
			Expect(resp.User).To(BeZero())
			Expect(resp.PID).To(Equal(42))

			resp.DecodeFds(fds)
			Expect(resp.Conn).To(Equal(fd1))
			Expect(Successful(mapspace.NamespaceType(resp.User))).To(Equal(unix.CLONE_NEWUSER))
		})

		It("drops fds it cannot make sense of", func() {
			fd1 := Successful(unix.Open(".", unix.O_RDONLY, 0))
			defer func() { _ = unix.Close(fd1) }()
			fd2 := Successful(unix.Open(".", unix.O_RDONLY, 0))
			defer func() { _ = unix.Close(fd2) }()

			var resp MappedResponse
			resp.DecodeFds([]int{fd1, fd2})
			Expect(resp.Conn).To(Equal(fd1))
			Expect(resp.MappedSpace).To(BeZero())
		})

	})

	It("detects failed service responses", func() {
		Expect(Response(&ErrorResponse{Reason: "borked"})).To(HaveFailed())
		Expect(Response(&MappedResponse{})).NotTo(HaveFailed())
	})

})
