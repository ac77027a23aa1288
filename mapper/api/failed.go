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
	"github.com/onsi/gomega/gcustom"
	"github.com/onsi/gomega/types"
)

// HaveFailed succeeds if the actual service response is an [ErrorResponse].
func HaveFailed() types.GomegaMatcher {
	return gcustom.MakeMatcher(func(resp Response) (bool, error) {
		_, ok := resp.(*ErrorResponse)
		return ok, nil
	}).WithTemplate("Expected:\n{{.FormattedActual}}\n{{.To}} be an error response")
}
