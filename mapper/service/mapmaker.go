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
	"cmp"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/thediveo/mapspace"
	"github.com/thediveo/mapspace/mapper/api"
	"github.com/thediveo/mapspace/uds"
	"golang.org/x/sys/unix"
)

// Mapmaker services mapper API requests by spawning further service
// instances into new, fully mapped user namespaces.
type Mapmaker struct {
	Exe         string // service executable to spawn; zero means /proc/self/exe.
	DelegateExe string // delegate override; zero means the service executable itself.
	UIDMapTool  string
	GIDMapTool  string
	Stdout      io.Writer
	Stderr      io.Writer
	log         *slog.Logger
}

func (m *Mapmaker) Slog() *slog.Logger {
	if m.log != nil {
		return m.log
	}
	m.log = slog.New(slog.NewTextHandler(
		cmp.Or(m.Stderr, io.Writer(os.Stderr)),
		&slog.HandlerOptions{Level: slog.LevelInfo}))
	return m.log
}

var _ Mapper = (*Mapmaker)(nil)

// Mapped spawns a new service instance into a new user namespace, establishes
// the requested UID and GID mappings in it, and returns an open file
// descriptor referencing the mapped namespace; additionally, it returns a
// file descriptor for a unix domain socket that is connected to the new
// service instance.
func (m *Mapmaker) Mapped(req *api.MappedRequest) api.Response {
	if req.UID.Length == 0 || req.GID.Length == 0 {
		return &api.ErrorResponse{Reason: "no ID ranges requested"}
	}

	// We start by creating a pair of connected unix domain sockets: one we'll
	// pass to the service we'll soon start, the other we'll pass back in our
	// response. This then allows the requester to directly talk to the newly
	// started mapped service.
	local, remote, err := uds.NewPair()
	defer func() {
		_ = local.Close()
		_ = remote.Close()
	}()
	if err != nil {
		m.Slog().Error("cannot create unix domain socket pair",
			slog.Int("PID", os.Getpid()),
			slog.String("err", err.Error()))
		return &api.ErrorResponse{Reason: "failed to create unix domain socket pair, reason: " + err.Error()}
	}

	// In order to pass one of the connected unix domain sockets to the
	// about-to-be-started mapped service, we first need to get an *os.File
	// (which while being a duplicate of the socket has a lifecycle of its
	// own).
	remotef, err := remote.File()
	if err != nil {
		m.Slog().Error("cannot fetch service *os.File",
			slog.Int("PID", os.Getpid()),
			slog.String("err", err.Error()))
		return &api.ErrorResponse{Reason: "failed to fetch service *os.File, reason: " + err.Error()}
	}
	defer func() { _ = remotef.Close() }()

	// We can finally start ourselves again as a new child process inside a
	// new user namespace; Start does not return before both ID mappings have
	// been written and the child released through its continuation gate.
	exe := cmp.Or(m.Exe, "/proc/self/exe")
	mapped := mapspace.Command(exe)
	mapped.Stdout = cmp.Or(m.Stdout, io.Writer(os.Stdout))
	mapped.Stderr = cmp.Or(m.Stderr, io.Writer(os.Stderr))
	mapped.ExtraFiles = []*os.File{remotef}
	mapped.UID = req.UID
	mapped.GID = req.GID
	// The mapped child is an instance of this very service executable, so it
	// also serves as the delegate when no dedicated delegate was configured:
	// its main calls mapspace.Init early on.
	mapped.DelegateExe = cmp.Or(m.DelegateExe, exe)
	mapped.UIDMapTool = m.UIDMapTool
	mapped.GIDMapTool = m.GIDMapTool
	m.Slog().Info("starting new mapped service instance")
	if err := mapped.Start(); err != nil {
		m.Slog().Error("cannot start mapped service",
			slog.Int("PID", os.Getpid()),
			slog.String("err", err.Error()))
		return &api.ErrorResponse{Reason: "failed to start mapped service, reason: " + err.Error()}
	}
	go func() {
		childpid := mapped.Process.Pid
		m.Slog().Info("waiting in background for mapped service to close",
			slog.Int("pid", childpid))
		_, _ = mapped.Process.Wait()
		m.Slog().Info("mapped service closed", slog.Int("pid", childpid))
	}()

	// Good! We finally can prepare our response; but for this we need to get
	// our hands on the file descriptor for the other connected unix domain
	// socket...
	localf, err := local.File()
	if err != nil {
		m.Slog().Error("cannot fetch client *os.File",
			slog.Int("PID", os.Getpid()),
			slog.String("err", err.Error()))
		return &api.ErrorResponse{Reason: "failed to fetch client *os.File, reason: " + err.Error()}
	}
	defer func() { _ = localf.Close() }()

	connfd, err := unix.Dup(int(localf.Fd()))
	if err != nil {
		m.Slog().Error("cannot fetch client fd",
			slog.Int("PID", os.Getpid()),
			slog.String("err", err.Error()))
		return &api.ErrorResponse{Reason: "failed to fetch client fd, reason: " + err.Error()}
	}

	userfd, err := mapspace.UserNamespaceOf(mapped.Process.Pid)
	if err != nil {
		_ = unix.Close(connfd)
		m.Slog().Error("cannot fetch new user namespace",
			slog.Int("PID", os.Getpid()),
			slog.String("err", err.Error()))
		return &api.ErrorResponse{Reason: "failed to reference new user namespace, reason: " + err.Error()}
	}

	return &api.MappedResponse{
		Conn: connfd,
		MappedSpace: api.MappedSpace{
			User: userfd,
			PID:  mapped.Process.Pid,
		},
	}
}

// Mappings reports the UID and GID mapping entries of the process with the
// requested PID (zero meaning this service process itself), as maintained by
// the kernel for the process's user namespace.
func (m *Mapmaker) Mappings(req *api.MappingsRequest) api.Response {
	if req.PID < 0 {
		return &api.ErrorResponse{Reason: "invalid PID " + strconv.Itoa(req.PID)}
	}
	uids, gids, err := mapspace.ReadIDMappings(req.PID)
	if err != nil {
		m.Slog().Error("cannot read ID mappings",
			slog.Int("PID", os.Getpid()),
			slog.String("err", err.Error()))
		return &api.ErrorResponse{Reason: "failed to read ID mappings, reason: " + err.Error()}
	}
	return &api.MappingsResponse{
		UIDs: uids,
		GIDs: gids,
	}
}
