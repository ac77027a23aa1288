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

package service

import (
	"log/slog"
	"os"
	"time"

	"github.com/thediveo/mapspace"
	"github.com/thediveo/mapspace/mapper/api"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/fdooze"
)

var _ = Describe("making mapped spaces", func() {

	BeforeEach(func() {
		goodfds := Filedescriptors()
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).Within(2 * time.Second).ProbeEvery(100 * time.Millisecond).
				ShouldNot(HaveLeaked(goodgos))
			Expect(Filedescriptors()).NotTo(HaveLeakedFds(goodfds))
		})

		oldDefault := slog.Default()
		slog.SetDefault(slog.New(slog.NewTextHandler(GinkgoWriter, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})))
		DeferCleanup(func() { slog.SetDefault(oldDefault) })
	})

	Context("Mapped service", func() {

		It("rejects empty ID ranges", func() {
			mm := &Mapmaker{}
			Expect(mm.Mapped(&api.MappedRequest{})).To(api.HaveFailed())
			Expect(mm.Mapped(&api.MappedRequest{
				UID: mapspace.MapRequest{Length: 1},
			})).To(api.HaveFailed())
		})

		It("fails when unable to start a new mapped service", func() {
			mm := &Mapmaker{Exe: "/not-existing", Stderr: GinkgoWriter}
			Expect(mm.Mapped(&api.MappedRequest{
				UID: mapspace.MapRequest{OutsideRoot: uint32(os.Getuid()), OutsideSubStart: 100000, Length: 65536},
				GID: mapspace.MapRequest{OutsideRoot: uint32(os.Getgid()), OutsideSubStart: 100000, Length: 65536},
			})).To(api.HaveFailed())
		})

	})

	Context("Mappings service", func() {

		It("rejects invalid PIDs", func() {
			mm := &Mapmaker{}
			Expect(mm.Mappings(&api.MappingsRequest{PID: -1})).To(api.HaveFailed())
		})

		It("reports this process's own mappings", func() {
			mm := &Mapmaker{}
			resp := mm.Mappings(&api.MappingsRequest{})
			Expect(resp).NotTo(api.HaveFailed())
			mappings := resp.(*api.MappingsResponse)
			Expect(mappings.UIDs).NotTo(BeEmpty())
			Expect(mappings.GIDs).NotTo(BeEmpty())
		})

	})

})
