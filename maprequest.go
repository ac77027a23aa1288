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
	"strconv"
)

// MapRequest describes the standard two-entry ID mapping for a new user
// namespace, for either user or group IDs: inside-namespace ID 0 (“root”)
// maps to exactly one ID outside the namespace, and the inside IDs from 1 on
// map to a contiguous range of subordinate IDs outside.
//
// A typical rootless configuration maps OutsideRoot to the invoking user's
// own ID and takes OutsideSubStart and Length from that user's /etc/subuid
// and /etc/subgid entries; see [OwnMapRequests].
type MapRequest struct {
	OutsideRoot     uint32 // ID outside the namespace that becomes ID 0 inside
	OutsideSubStart uint32 // first outside ID of the subordinate range, mapped from inside ID 1 on
	Length          uint32 // number of IDs in the subordinate range
}

// ToolArgs returns the argument vector for one of the setuid mapping tools
// (newuidmap/newgidmap, without the leading program name itself), mapping the
// IDs of this request into the user namespace of the process with the passed
// PID. The tools parse their arguments strictly positionally as repeated
// (inside ID, outside ID, count) triples, so the vector must be reproduced
// verbatim:
//
//	<pid> 0 <outside-root> 1  1 <outside-sub-start> <length>
func (m MapRequest) ToolArgs(pid int) []string {
	return []string{
		strconv.Itoa(pid),
		"0", strconv.FormatUint(uint64(m.OutsideRoot), 10), "1",
		"1", strconv.FormatUint(uint64(m.OutsideSubStart), 10), strconv.FormatUint(uint64(m.Length), 10),
	}
}
