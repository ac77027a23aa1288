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
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"syscall"
)

// DelegateName is the process name (argv[0]) under which the mapping
// delegate gets spawned; [Init] recognizes it when the current executable is
// re-executed as its own delegate.
const DelegateName = "mapspace-delegate"

// The delegate inherits the read end of the close-notification pipe as this
// fd, the first one after stdin/stdout/stderr.
const syncFd = 3

// Delegate exit statuses, distinguishable from the 0 and 1 that the mapping
// tools themselves use. On the success path the delegate's image has been
// replaced by the UID mapping tool, so a successful run always reports the
// tool's own 0.
const (
	exitUsage       = 64  // malformed argument vector (sysexits EX_USAGE)
	exitGIDFailed   = 101 // GID mapping tool failed or could not be launched
	exitSpawnFailed = 102 // GID mapping tool process could not be spawned
	exitExecFailed  = 126 // UID mapping tool could not replace the delegate's image
)

// delegateArgv builds the delegate's complete argument vector, up front and
// in the spawning process: first the full GID mapping tool invocation, then —
// separated by “--” — the full UID mapping tool invocation. The delegate
// only ever slices this vector; it never constructs argument data of its
// own.
func delegateArgv(pid int, gidTool string, gidMap MapRequest, uidTool string, uidMap MapRequest) []string {
	argv := make([]string, 0, 18)
	argv = append(argv, DelegateName, gidTool)
	argv = append(argv, gidMap.ToolArgs(pid)...)
	argv = append(argv, "--", uidTool)
	argv = append(argv, uidMap.ToolArgs(pid)...)
	return argv
}

// splitToolArgv splits a delegate argument vector (without the leading
// process name) back into the GID and UID mapping tool invocations.
func splitToolArgv(args []string) (gidArgv, uidArgv []string, ok bool) {
	sep := slices.Index(args, "--")
	if sep < 0 {
		return nil, nil, false
	}
	gidArgv, uidArgv = args[:sep], args[sep+1:]
	if len(gidArgv) < 2 || len(uidArgv) < 2 {
		return nil, nil, false
	}
	return gidArgv, uidArgv, true
}

// Init checks whether this process has been spawned as a mapping delegate
// and, if so, carries out the delegate role and never returns: the process
// either gets its image replaced by the UID mapping tool or terminates with
// a failure status. Programs relying on the default /proc/self/exe delegate
// re-exec must call Init first thing in their main; for all other processes
// Init is a cheap no-op.
func Init() {
	if filepath.Base(os.Args[0]) != DelegateName {
		return
	}
	os.Exit(runDelegate(os.Args[1:], os.NewFile(syncFd, "sync")))
}

// RunDelegate carries out the delegate role for an already set-up delegate
// process, reading the close-notification pipe from fd 3 and taking the
// mapping tool invocations from the passed arguments (os.Args[1:] in the
// standalone cmd/mapspace-delegate binary). It returns the process exit
// status to terminate with, except on success, where the process image has
// been replaced and RunDelegate never returns.
func RunDelegate(args []string) int {
	return runDelegate(args, os.NewFile(syncFd, "sync"))
}

// runDelegate is the delegate role: wait for the orchestrator to close the
// notification pipe, map the group IDs through a spawned tool process, and
// then replace this process's image with the UID mapping tool. It only
// returns on failure, with the process exit status to use.
func runDelegate(args []string, sync *os.File) int {
	gidArgv, uidArgv, ok := splitToolArgv(args)
	if !ok || sync == nil {
		fmt.Fprintln(os.Stderr, DelegateName+": malformed argument vector")
		return exitUsage
	}

	// Block until the orchestrator's write end closes; receiving a stray
	// byte means exactly the same. The pipe never transports payload.
	var b [1]byte
	_, _ = sync.Read(b[:])
	_ = sync.Close()

	// The spawned process is the GID mapping tool; there is no intermediate
	// child that would branch after being created.
	gidmap := exec.Command(gidArgv[0], gidArgv[1:]...)
	gidmap.Stdout = os.Stdout
	gidmap.Stderr = os.Stderr
	if err := gidmap.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: cannot launch %s: %v\n", DelegateName, gidArgv[0], err)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrPermission) {
			return exitGIDFailed
		}
		return exitSpawnFailed
	}
	if err := gidmap.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s: %v\n", DelegateName, gidArgv[0], err)
		return exitGIDFailed
	}

	uidTool := uidArgv[0]
	if !filepath.IsAbs(uidTool) {
		if path, err := exec.LookPath(uidTool); err == nil {
			uidTool = path
		}
	}
	err := syscall.Exec(uidTool, uidArgv, os.Environ())
	// Exec only ever returns in failure.
	fmt.Fprintf(os.Stderr, "%s: cannot launch %s: %v\n", DelegateName, uidArgv[0], err)
	return exitExecFailed
}
