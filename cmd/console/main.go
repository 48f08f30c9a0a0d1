// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"
	"os"

	"github.com/relabs-tech/inertial_fusion/internal/app"
	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

func main() {
	configPath := flag.String("config", "", "path to configuration file (defaults are used when empty)")
	debug := flag.Bool("debug", false, "log degenerate filter ticks to stderr")
	flag.Parse()

	log.Println("starting inertial-fusion (mock console)")

	if *configPath != "" {
		if err := config.InitGlobal(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}
	if *debug {
		orientation.SetDebugLogger(os.Stderr)
	}

	if err := app.RunMockConsole(); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
