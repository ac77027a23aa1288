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
	"os/user"
	"strconv"
	"strings"
)

// The subordinate ID registries consulted by the setuid mapping tools; see
// subuid(5) and subgid(5).
const (
	SubUIDPath = "/etc/subuid"
	SubGIDPath = "/etc/subgid"
)

// SubIDRange returns the first subordinate ID range registered in the
// passed subuid(5)-format file for the given owner, which may be a user
// (group) name or a decimal ID.
func SubIDRange(path string, owner string) (start, length uint32, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("cannot read subordinate ID registry: %w", err)
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ":")
		if len(fields) != 3 || fields[0] != owner {
			continue
		}
		first, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed range start in %s line %q: %w", path, line, err)
		}
		count, err := strconv.ParseUint(fields[2], 10, 32)
		if err != nil {
			return 0, 0, fmt.Errorf("malformed range length in %s line %q: %w", path, line, err)
		}
		return uint32(first), uint32(count), nil
	}
	if err := scanner.Err(); err != nil {
		return 0, 0, fmt.Errorf("cannot read subordinate ID registry %s: %w", path, err)
	}
	return 0, 0, fmt.Errorf("no subordinate ID range registered for %q in %s", owner, path)
}

// OwnMapRequests returns the map requests for the invoking user's standard
// rootless configuration: the user's own UID and GID become root inside,
// and the user's first registered subordinate ID ranges from /etc/subuid
// and /etc/subgid make up the rest of the ID space.
func OwnMapRequests() (uidMap, gidMap MapRequest, err error) {
	me, err := user.Current()
	if err != nil {
		return MapRequest{}, MapRequest{}, fmt.Errorf("cannot determine invoking user: %w", err)
	}

	ustart, ulen, err := subIDRangeForUser(SubUIDPath, me.Username, me.Uid)
	if err != nil {
		return MapRequest{}, MapRequest{}, err
	}
	gstart, glen, err := subIDRangeForUser(SubGIDPath, me.Username, me.Gid)
	if err != nil {
		return MapRequest{}, MapRequest{}, err
	}

	uid64, _ := strconv.ParseUint(me.Uid, 10, 32)
	gid64, _ := strconv.ParseUint(me.Gid, 10, 32)
	return MapRequest{OutsideRoot: uint32(uid64), OutsideSubStart: ustart, Length: ulen},
		MapRequest{OutsideRoot: uint32(gid64), OutsideSubStart: gstart, Length: glen},
		nil
}

// subIDRangeForUser looks the owner up by name first and falls back to the
// numeric ID, as the registries accept both spellings.
func subIDRangeForUser(path, name, id string) (start, length uint32, err error) {
	start, length, err = SubIDRange(path, name)
	if err == nil || name == id {
		return start, length, err
	}
	if start, length, iderr := SubIDRange(path, id); iderr == nil {
		return start, length, nil
	}
	return 0, 0, err
}
