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
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// MapEntry is one entry of a user namespace's kernel-maintained ID mapping
// table, as reported by the /proc/<pid>/uid_map and gid_map files.
type MapEntry struct {
	Inside  uint32 // first ID inside the namespace
	Outside uint32 // first ID outside the namespace
	Length  uint32 // number of consecutively mapped IDs
}

// ReadIDMappings returns the UID and GID mappings of the user namespace that
// the process with the passed PID (0: this process) is attached to, as the
// kernel reports them. An empty mapping means the namespace has not (yet)
// any IDs mapped into it.
func ReadIDMappings(pid int) (uids, gids []MapEntry, err error) {
	proc := "self"
	if pid > 0 {
		proc = strconv.Itoa(pid)
	}
	uids, err = readIDMapFile("/proc/" + proc + "/uid_map")
	if err != nil {
		return nil, nil, err
	}
	gids, err = readIDMapFile("/proc/" + proc + "/gid_map")
	if err != nil {
		return nil, nil, err
	}
	return uids, gids, nil
}

// readIDMapFile parses one of the kernel's ID mapping files, containing
// (inside, outside, length) triples, one per line.
func readIDMapFile(path string) ([]MapEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read ID mappings: %w", err)
	}
	defer func() { _ = f.Close() }()

	var entries []MapEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) != 3 {
			return nil, fmt.Errorf("malformed ID mapping line %q in %s", scanner.Text(), path)
		}
		var triple [3]uint32
		for i, field := range fields {
			id, err := strconv.ParseUint(field, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("malformed ID %q in %s: %w", field, path, err)
			}
			triple[i] = uint32(id)
		}
		entries = append(entries, MapEntry{Inside: triple[0], Outside: triple[1], Length: triple[2]})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read ID mappings from %s: %w", path, err)
	}
	return entries, nil
}

// InInitialUserNamespace reports whether this process is (most probably)
// attached to the initial user namespace: the kernel rejects mappings
// containing ID 4294967295 (²³²-1), so only the initial namespace's
// identity mapping can span the full ID range.
func InInitialUserNamespace() bool {
	uids, _, err := ReadIDMappings(0)
	if err != nil {
		return false
	}
	for _, entry := range uids {
		if entry.Length == 4294967295 {
			return true
		}
	}
	return false
}
