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

// mapspace-delegate is the standalone mapping delegate binary, for embedding
// programs that cannot (or do not want to) re-execute their own executable
// as the delegate. Point mapspace.WithDelegate or mapspace.Cmd.DelegateExe
// at a build of this binary.
//
// It inherits the read end of the close-notification pipe as fd 3 and takes
// the complete GID and UID mapping tool invocations, separated by “--”, as
// its arguments; mapspace builds this argument vector, it is not meant for
// manual assembly.
package main
