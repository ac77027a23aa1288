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
	"syscall"
)

// Kind identifies which of the two ID mappings an error relates to.
type Kind string

// The two kinds of ID mappings written into a user namespace.
const (
	UIDs Kind = "uid"
	GIDs Kind = "gid"
)

// ChannelError reports failure to create the close-notification pipe. It
// always occurs before any process has been spawned and before any namespace
// state has changed, so it is fully recoverable for the caller.
type ChannelError struct{ Err error }

func (e *ChannelError) Error() string {
	return "cannot create close-notification pipe: " + e.Err.Error()
}

func (e *ChannelError) Unwrap() error { return e.Err }

// SpawnError reports failure to spawn the mapping delegate, or — relayed
// through the delegate's exit status — failure of the delegate to spawn the
// GID mapping tool process. No namespace state has changed when the delegate
// itself could not be spawned.
type SpawnError struct{ Err error }

func (e *SpawnError) Error() string {
	return "cannot spawn mapping delegate: " + e.Err.Error()
}

func (e *SpawnError) Unwrap() error { return e.Err }

// NamespaceError reports that detaching into a new user namespace failed;
// the caller's namespace membership is unchanged. The delegate has been
// signalled and reaped nevertheless.
//
// The most prominent cause in Go programs is the kernel's refusal to unshare
// a user namespace for multi-threaded processes (EINVAL); see [Cmd] for the
// way around.
type NamespaceError struct{ Err error }

func (e *NamespaceError) Error() string {
	return "cannot detach into a new user namespace: " + e.Err.Error()
}

func (e *NamespaceError) Unwrap() error { return e.Err }

// MappingError reports that one of the two mapping tools either terminated
// unsuccessfully or could not be launched at all. At this point the new user
// namespace exists but is not (fully) mapped; there is no way to roll a
// process back out of a user namespace, so callers can only abandon the
// affected process.
//
// Kind tags the offending mapping; Status is the raw wait status of the
// delegate as observed by the orchestrator. Note that mappings are not
// transactional: a UID mapping failure leaves an already established GID
// mapping in place.
type MappingError struct {
	Kind   Kind
	Status syscall.WaitStatus
}

func (e *MappingError) Error() string {
	s := string(e.Kind) + " mapping failed: "
	switch {
	case e.Status.Signaled():
		return s + "signal: " + e.Status.Signal().String()
	case e.Status.ExitStatus() == exitExecFailed:
		return s + "mapping tool could not be launched"
	default:
		return s + "exit status " + strconv.Itoa(e.Status.ExitStatus())
	}
}
