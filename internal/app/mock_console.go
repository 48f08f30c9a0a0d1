// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

// RunMockConsole fuses the mock source locally and prints the pose, no
// broker needed.
func RunMockConsole() error {
	cfg := config.Get()
	if cfg == nil {
		cfg = config.Default()
	}

	est, err := orientation.NewEstimator(cfg.Fusion(), cfg.FilterUseMag)
	if err != nil {
		return err
	}

	period := time.Duration(cfg.IMUSampleInterval) * time.Millisecond
	loop := fusionLoop{
		source:    imu.NewMockSource(period, cfg.MockYawRate, cfg.FilterUseMag),
		estimator: est,
		pace:      period,
		sink: func(_ imu.Sample, e orientation.Estimate) error {
			printPose(os.Stdout, fmt.Sprintf("[%s]", e.Algorithm), e.Pose)
			return nil
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	_, err = loop.run(ctx)
	return err
}
