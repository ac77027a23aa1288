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

package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/thediveo/mapspace"
	"github.com/thediveo/mapspace/mapper/service"
	"github.com/thediveo/mapspace/uds"

	"github.com/thediveo/mapspace/mapper"
)

var _ = mapper.New // ... so that [mapper.Client] gets a proper hyperlink.

func main() {
	// When re-executed in the delegate role, never come back here.
	mapspace.Init()

	slog.Info("mapspace/mapper/service/cmd started",
		slog.Int("pid", os.Getpid()))
	defer slog.Info("mapspace/mapper/service/cmd terminated",
		slog.Int("pid", os.Getpid()))

	// When spawned into a new user namespace, wait for our ID mappings to be
	// in place before serving anything.
	if err := mapspace.AwaitMapped(); err != nil {
		slog.Error("cannot await ID mappings", slog.String("err", err.Error()))
		os.Exit(1)
	}

	conn, err := uds.NewUnixConn(3, "service")
	if err != nil {
		slog.Error("invalid fd 3", slog.String("err", err.Error()))
		os.Exit(1)
	}
	service.Serve(context.Background(), conn, &service.Mapmaker{})
}
