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
)

// MappingsRequest asks the service to report the UID and GID mappings of the
// process with the passed PID, as seen from the service's side. A zero PID
// refers to the service process itself, which is the usual way to inspect a
// mapped service instance's own namespace mappings.
type MappingsRequest struct {
	PID int
}

// MappingsResponse reports the UID and GID mapping entries in effect,
// straight from the kernel's bookkeeping. No file descriptors travel with
// this response.
type MappingsResponse struct {
	UIDs []mapspace.MapEntry
	GIDs []mapspace.MapEntry
}

var _ Request = (*MappingsRequest)(nil)

func (m MappingsRequest) request() {}

var _ Response = (*MappingsResponse)(nil)

func (m MappingsResponse) response() {}
