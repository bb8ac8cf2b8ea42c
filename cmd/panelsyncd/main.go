/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// panelsyncd runs the progress sync service on its own, for deployments that
// do not want the full reader binary on the server.
package main

import (
	"fmt"
	"log/slog"
	"os"

	applog "gopanelreader/internal/log"
	"gopanelreader/internal/syncsrv"
	"gopanelreader/internal/version"
)

func main() {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("panelsyncd")
	l.Info("panelsyncd starting", slog.String("version", version.String()))
	if err := syncsrv.Start(); err != nil {
		l.Error("sync service exited", slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}
