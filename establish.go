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
	"cmp"
	"errors"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"syscall"

	"golang.org/x/sys/unix"
)

// Default mapping tool names; they get resolved through PATH before the
// delegate is spawned.
const (
	DefaultUIDMapTool = "newuidmap"
	DefaultGIDMapTool = "newgidmap"
)

// Option configures the orchestration of the mapping handshake.
type Option func(*options)

type options struct {
	delegateExe string
	uidTool     string
	gidTool     string
	stderr      io.Writer
}

// WithDelegate sets the executable to spawn as the mapping delegate, instead
// of re-executing /proc/self/exe. Use this with a build of the
// cmd/mapspace-delegate binary when the embedding program cannot call [Init]
// early in its main.
func WithDelegate(path string) Option {
	return func(o *options) { o.delegateExe = path }
}

// WithUIDMapTool sets the UID mapping tool to launch instead of newuidmap.
func WithUIDMapTool(path string) Option {
	return func(o *options) { o.uidTool = path }
}

// WithGIDMapTool sets the GID mapping tool to launch instead of newgidmap.
func WithGIDMapTool(path string) Option {
	return func(o *options) { o.gidTool = path }
}

// WithStderr redirects the delegate's diagnostic output; it defaults to this
// process's stderr.
func WithStderr(w io.Writer) Option {
	return func(o *options) { o.stderr = w }
}

func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	o.delegateExe = cmp.Or(o.delegateExe, "/proc/self/exe")
	o.uidTool = lookup(cmp.Or(o.uidTool, DefaultUIDMapTool))
	o.gidTool = lookup(cmp.Or(o.gidTool, DefaultGIDMapTool))
	if o.stderr == nil {
		o.stderr = os.Stderr
	}
	return o
}

// lookup resolves a mapping tool name through PATH, before any process gets
// spawned. An unresolvable name is passed on as-is: launching it will then
// fail inside the proper role, surfacing as the documented MappingError with
// the launch diagnostic on stderr, instead of short-circuiting here.
func lookup(tool string) string {
	if filepath.IsAbs(tool) {
		return tool
	}
	if path, err := exec.LookPath(tool); err == nil {
		return path
	}
	return tool
}

// EstablishSelf detaches the calling process into a new user namespace and
// maps the passed UID and GID ranges into it, orchestrating the setuid
// mapping tools through the delegate handshake. On success the caller is ID
// 0 inside its new, fully mapped user namespace; this cannot be undone for
// the lifetime of the process.
//
// The unshare step requires the calling process to be single-threaded;
// otherwise the kernel refuses with EINVAL, reported as [NamespaceError]
// (with the delegate properly signalled and reaped). Ordinary Go programs
// are never single-threaded and should spawn into a mapped namespace using
// [Cmd] instead.
func EstablishSelf(uidMap, gidMap MapRequest, opts ...Option) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	return establish(os.Getpid(), uidMap, gidMap,
		func() error { return unix.Unshare(unix.CLONE_NEWUSER) },
		applyOptions(opts))
}

// establish runs the orchestrator role of the handshake against the process
// with the passed PID: spawn the delegate with everything it will ever need
// already in its argument vector, perform the namespace creation step, close
// the pipe's write end only afterwards, and reap the delegate exactly once
// on every path.
//
// unshare performs the namespace creation step between spawning and
// signalling; a nil unshare means the target's namespace already exists
// (created by the clone primitive that spawned the target).
func establish(pid int, uidMap, gidMap MapRequest, unshare func() error, o *options) error {
	argv := delegateArgv(pid, o.gidTool, gidMap, o.uidTool, uidMap)

	rd, wr, err := os.Pipe()
	if err != nil {
		return &ChannelError{Err: err}
	}

	delegate := exec.Command(o.delegateExe)
	delegate.Args = argv
	delegate.Stderr = o.stderr
	delegate.ExtraFiles = []*os.File{rd} // becomes the delegate's fd 3
	if err := delegate.Start(); err != nil {
		_ = rd.Close()
		_ = wr.Close()
		return &SpawnError{Err: err}
	}
	_ = rd.Close() // the delegate holds its own duplicate now

	var nserr error
	if unshare != nil {
		nserr = unshare()
	}
	// Closing the write end is the one and only signal, and it must also
	// happen on the failed-unshare path: the delegate would otherwise block
	// forever and could never be reaped.
	_ = wr.Close()

	waiterr := delegate.Wait()
	if nserr != nil {
		return &NamespaceError{Err: nserr}
	}
	return delegateOutcome(waiterr)
}

// delegateOutcome translates the delegate's terminal status into the typed
// error taxonomy. Only integer exit statuses ever cross the process
// boundary.
func delegateOutcome(waiterr error) error {
	if waiterr == nil {
		return nil
	}
	var exiterr *exec.ExitError
	if !errors.As(waiterr, &exiterr) {
		return &SpawnError{Err: waiterr}
	}
	status, ok := exiterr.Sys().(syscall.WaitStatus)
	if !ok {
		return &SpawnError{Err: waiterr}
	}
	if status.Exited() {
		switch status.ExitStatus() {
		case exitGIDFailed:
			return &MappingError{Kind: GIDs, Status: status}
		case exitSpawnFailed:
			return &SpawnError{Err: errors.New("delegate could not spawn the GID mapping tool process")}
		}
	}
	// Whatever else the delegate reports — including a signal or the exec
	// replacement failure — happened while wearing the UID mapping tool's
	// hat, as its image replacement only fails or succeeds completely.
	return &MappingError{Kind: UIDs, Status: status}
}
