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
	"os"
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/unix"
)

// ContinueFdEnvVar names the environment variable through which a process
// spawned by [Cmd] learns the fd number of its continuation pipe; see
// [AwaitMapped].
const ContinueFdEnvVar = "MAPSPACE_CONTINUE_FD"

// Cmd spawns a process into a new user namespace and maps the requested UID
// and GID ranges into that namespace before letting the process proceed.
// This is the route for multi-threaded (that is: all) Go programs, where the
// unshare step of [EstablishSelf] is off-limits by kernel decree: the new
// user namespace is instead created by the clone primitive while spawning,
// so it is guaranteed to exist when Start returns control, and the delegate
// handshake then runs against the spawned child.
//
// The spawned process must gate itself on [AwaitMapped] before doing
// anything that relies on its IDs; until both mappings are written it runs
// with the overflow IDs only.
type Cmd struct {
	*exec.Cmd

	UID MapRequest // the UID mapping to establish
	GID MapRequest // the GID mapping to establish

	// Overrides for the delegate executable and the mapping tools; zero
	// values mean /proc/self/exe, newuidmap and newgidmap.
	DelegateExe string
	UIDMapTool  string
	GIDMapTool  string
}

// Command returns a [Cmd] spawning the named program with the given
// arguments, in the manner of [exec.Command]. Populate the UID and GID map
// requests before starting it.
func Command(name string, arg ...string) *Cmd {
	return &Cmd{Cmd: exec.Command(name, arg...)}
}

// Self returns a [Cmd] respawning the current executable with the given
// arguments. The respawned process must call [AwaitMapped] (and, when using
// the default delegate, [Init]) early in its main.
func Self(arg ...string) *Cmd {
	return &Cmd{Cmd: exec.Command("/proc/self/exe", arg...)}
}

// Start spawns the process inside a new user namespace, runs the mapping
// handshake against it, and finally signals it to continue. When Start
// returns successfully, both ID ranges are mapped and the child is on its
// way; the caller still owns the child and must reap it through Wait. When
// Start fails after the child was already spawned, the child has been killed
// and reaped; no zombie is left behind on any path.
func (c *Cmd) Start() error {
	crd, cwr, err := os.Pipe()
	if err != nil {
		return &ChannelError{Err: err}
	}

	// The continuation gate works exactly like the handshake pipe: no
	// payload, closing the write end means “go”.
	if c.Env == nil {
		c.Env = os.Environ()
	}
	c.Env = append(c.Env, ContinueFdEnvVar+"="+strconv.Itoa(3+len(c.ExtraFiles)))
	c.ExtraFiles = append(c.ExtraFiles, crd)
	if c.SysProcAttr == nil {
		c.SysProcAttr = &syscall.SysProcAttr{}
	}
	c.SysProcAttr.Cloneflags |= unix.CLONE_NEWUSER

	if err := c.Cmd.Start(); err != nil {
		_ = crd.Close()
		_ = cwr.Close()
		return &SpawnError{Err: err}
	}
	_ = crd.Close() // the child holds its own duplicate now

	err = establish(c.Cmd.Process.Pid, c.UID, c.GID, nil,
		applyOptions([]Option{
			WithDelegate(c.DelegateExe),
			WithUIDMapTool(c.UIDMapTool),
			WithGIDMapTool(c.GIDMapTool),
			WithStderr(c.Cmd.Stderr),
		}))
	if err != nil {
		// The child is stuck in an unmapped namespace; abandoning it is the
		// only clean option left.
		_ = c.Cmd.Process.Kill()
		_ = c.Cmd.Wait()
		_ = cwr.Close()
		return err
	}
	_ = cwr.Close()
	return nil
}

// Run starts the process in its new mapped user namespace and waits for it
// to complete.
func (c *Cmd) Run() error {
	if err := c.Start(); err != nil {
		return err
	}
	return c.Wait()
}

// Respawned reports whether this process has been spawned by a [Cmd] and
// thus needs to pass [AwaitMapped] before its user namespace is fully
// usable.
func Respawned() bool {
	_, ok := os.LookupEnv(ContinueFdEnvVar)
	return ok
}

// AwaitMapped blocks until the spawning process has finished establishing
// this process's ID mappings, then returns nil. In processes that were not
// spawned by a [Cmd], AwaitMapped returns nil immediately. Call it early in
// main, before anything depends on the process's user or group IDs.
func AwaitMapped() error {
	fdtext, ok := os.LookupEnv(ContinueFdEnvVar)
	if !ok {
		return nil
	}
	_ = os.Unsetenv(ContinueFdEnvVar) // keep potential own respawns unconfused
	fd, err := strconv.Atoi(fdtext)
	if err != nil || fd < 3 {
		return errors.New("malformed " + ContinueFdEnvVar + " value " + strconv.Quote(fdtext))
	}
	gate := os.NewFile(uintptr(fd), "continue")
	var b [1]byte
	_, _ = gate.Read(b[:]) // block until closed; a stray byte signals equally
	return gate.Close()
}
