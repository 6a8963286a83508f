// Copyright 2024 The OracleCDC Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Command oraclecdc tails Oracle redo logs and ships committed change
// records to the sinks named in its configuration file. See
// internal/config for the file format and internal/runtime for how
// the process is assembled.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bersler/oraclecdc/internal/config"
	"github.com/bersler/oraclecdc/internal/runtime"
)

func main() {
	var (
		cfgPath     = flag.String("config", config.FileName, "path to the configuration file")
		verbose     = flag.Bool("v", false, "enable debug-level logging")
		gracePeriod = flag.Duration("grace-period", 30*time.Second, "time to wait for in-flight work to drain on shutdown")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, cleanup, err := runtime.Start(ctx, *cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("oraclecdc: failed to start")
	}
	defer cleanup()

	if len(rt.Config.Trace) > 0 || len(rt.Config.Trace2) > 0 {
		logrus.SetLevel(logrus.TraceLevel)
	}

	<-ctx.Done()
	logrus.Info("oraclecdc: shutdown signal received, draining")
	rt.Ctx.Stop(*gracePeriod)

	if err := rt.Wait(); err != nil {
		logrus.WithError(err).Error("oraclecdc: stopped with error")
		os.Exit(1)
	}
	logrus.Info("oraclecdc: stopped cleanly")
}
