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

package mapspace

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/thediveo/success"
)

var _ = Describe("subordinate ID registries", func() {

	writeTemp := func(contents string) string {
		GinkgoHelper()
		path := filepath.Join(GinkgoT().TempDir(), "subid")
		Expect(os.WriteFile(path, []byte(contents), 0o644)).To(Succeed())
		return path
	}

	It("returns the first range registered for an owner", func() {
		path := writeTemp(`# comment lines and blanks don't count

alice:100000:65536
bob:165536:65536
alice:300000:1000
`)
		start, length := Successful2R(SubIDRange(path, "alice"))
		Expect(start).To(Equal(uint32(100000)))
		Expect(length).To(Equal(uint32(65536)))

		start, length = Successful2R(SubIDRange(path, "bob"))
		Expect(start).To(Equal(uint32(165536)))
		Expect(length).To(Equal(uint32(65536)))
	})

	It("accepts numeric owner IDs as fallback spelling", func() {
		path := writeTemp("1000:100000:65536\n")
		start, length := Successful2R(subIDRangeForUser(path, "alice", "1000"))
		Expect(start).To(Equal(uint32(100000)))
		Expect(length).To(Equal(uint32(65536)))
	})

	It("reports unregistered owners", func() {
		path := writeTemp("alice:100000:65536\n")
		Expect(SubIDRange(path, "mallory")).Error().To(MatchError(
			ContainSubstring("no subordinate ID range registered")))
	})

	It("reports malformed ranges", func() {
		Expect(SubIDRange(writeTemp("alice:borked:65536\n"), "alice")).Error().
			To(MatchError(ContainSubstring("malformed range start")))
		Expect(SubIDRange(writeTemp("alice:100000:borked\n"), "alice")).Error().
			To(MatchError(ContainSubstring("malformed range length")))
		Expect(SubIDRange("/not-existing-subid", "alice")).Error().To(HaveOccurred())
	})

})
