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
	"fmt"
	"strconv"

	"github.com/thediveo/ioctl"
	"golang.org/x/sys/unix"
)

// Linux kernel [ioctl(2)] command group for [namespace relationship queries].
//
// [ioctl(2)]: https://man7.org/linux/man-pages/man2/ioctl.2.html
// [namespace relationship queries]: https://elixir.bootlin.com/linux/v6.2.11/source/include/uapi/linux/nsfs.h
const _NSIO = 0xb7

var (
	// NS_GET_NSTYPE returns the CLONE_NEW* type constant of the namespace
	// referenced by a file descriptor.
	NS_GET_NSTYPE = ioctl.IO(_NSIO, 0x3)
	// NS_GET_OWNER_UID returns the owner UID of the user namespace
	// referenced by a file descriptor.
	NS_GET_OWNER_UID = ioctl.IO(_NSIO, 0x4)
)

// UserNamespaceOf returns a file descriptor referencing the user namespace
// of the process with the passed PID (with 0 meaning this process itself).
// The caller owns the returned fd and must close it.
func UserNamespaceOf(pid int) (int, error) {
	proc := "self"
	if pid > 0 {
		proc = strconv.Itoa(pid)
	}
	nsfd, err := unix.Open("/proc/"+proc+"/ns/user", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return 0, fmt.Errorf("cannot reference user namespace of process %s: %w", proc, err)
	}
	return nsfd, nil
}

// NamespaceType returns the CLONE_NEW* type constant of the namespace
// referenced by the passed file descriptor, such as [unix.CLONE_NEWUSER].
func NamespaceType(nsfd int) (int, error) {
	return unix.IoctlRetInt(nsfd, NS_GET_NSTYPE)
}

// OwnerUID returns the owner UID of the user namespace referenced by the
// passed file descriptor. For a namespace established by this package the
// owner is the UID of the process that detached into it, as seen from the
// outside; this is not to be confused with the ID that the namespace's
// mapping designates as its inside root.
func OwnerUID(nsfd int) (int, error) {
	return unix.IoctlGetInt(nsfd, NS_GET_OWNER_UID)
}

// SameUserNamespace reports whether the two processes with the passed PIDs
// (0 again meaning this process) are attached to the same user namespace,
// comparing the identities (device and inode numbers) of their namespace
// references.
func SameUserNamespace(pidA, pidB int) (bool, error) {
	fdA, err := UserNamespaceOf(pidA)
	if err != nil {
		return false, err
	}
	defer func() { _ = unix.Close(fdA) }()
	fdB, err := UserNamespaceOf(pidB)
	if err != nil {
		return false, err
	}
	defer func() { _ = unix.Close(fdB) }()

	var statA, statB unix.Stat_t
	if err := unix.Fstat(fdA, &statA); err != nil {
		return false, fmt.Errorf("cannot stat user namespace reference: %w", err)
	}
	if err := unix.Fstat(fdB, &statB); err != nil {
		return false, fmt.Errorf("cannot stat user namespace reference: %w", err)
	}
	return statA.Dev == statB.Dev && statA.Ino == statB.Ino, nil
}
