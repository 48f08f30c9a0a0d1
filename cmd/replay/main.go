// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"
	"log"

	"github.com/relabs-tech/inertial_fusion/internal/app"
	"github.com/relabs-tech/inertial_fusion/internal/config"
)

func main() {
	configPath := flag.String("config", "./inertial_config.txt", "path to configuration file")
	in := flag.String("in", "", "JSON-lines recording to replay (defaults to REPLAY_FILE)")
	out := flag.String("out", "-", "CSV output path, - for stdout")
	plotPath := flag.String("plot", "", "optional PNG plot of roll/pitch/yaw")
	positionPath := flag.String("position", "", "optional CSV of the accelerometer position track")
	staticThreshold := flag.Float64("static-threshold", 0, "rest detection band around 1 g (0 = default)")
	staticTime := flag.Float64("static-time", 0, "seconds near 1 g before the sensor counts as at rest (0 = default)")
	flag.Parse()

	log.Println("starting inertial-fusion replay (offline batch)")

	// Load configuration
	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg := config.Get()

	input := *in
	if input == "" {
		input = cfg.ReplayFile
	}
	if input == "" {
		log.Fatalf("no recording given: use -in or REPLAY_FILE")
	}

	err := app.RunReplay(app.ReplayOptions{
		Input:       input,
		CSVOutput:   *out,
		PlotOutput:  *plotPath,
		Calibration: cfg.CalibrationFile,
		Fusion:      cfg.Fusion(),
		UseMag:      cfg.FilterUseMag,

		PositionOutput:  *positionPath,
		StaticThreshold: *staticThreshold,
		StaticTime:      *staticTime,
	})
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
