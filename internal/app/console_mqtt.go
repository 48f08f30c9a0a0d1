// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

// RunConsoleMQTT prints fused estimates, fused poses and the samples that
// produced them as they arrive on the broker.
func RunConsoleMQTT() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	client, err := connectMQTT("console", cfg.MQTTBroker, cfg.MQTTClientIDConsole)
	if err != nil {
		return err
	}

	out := os.Stdout
	if err := subscribeJSON(client, "console", cfg.TopicQuaternion, func(e orientation.Estimate) {
		printEstimate(out, e)
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, "console", cfg.TopicPoseFused, func(p orientation.Pose) {
		printPose(out, "[FUSE]", p)
	}); err != nil {
		return err
	}
	if err := subscribeJSON(client, "console", cfg.TopicIMUSample, func(s imu.Sample) {
		printSample(out, s)
	}); err != nil {
		return err
	}

	// Wait for Ctrl+C
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	log.Println("console: shutting down")
	client.Disconnect(250)
	return nil
}

func printEstimate(w io.Writer, e orientation.Estimate) {
	q := e.Quaternion
	fmt.Fprintf(w,
		"[QUAT] %-8s tick=%-8d q=(%+.4f %+.4f %+.4f %+.4f)\n",
		e.Algorithm, e.Ticks, q.W, q.X, q.Y, q.Z,
	)
}

func printPose(w io.Writer, tag string, p orientation.Pose) {
	fmt.Fprintf(w,
		"%s ROLL=%6.2f  PITCH=%6.2f  YAW=%6.2f\n",
		tag, p.Roll, p.Pitch, p.Yaw,
	)
}

func printSample(w io.Writer, s imu.Sample) {
	fmt.Fprintf(w,
		"[IMU ] gx=%+7.3f gy=%+7.3f gz=%+7.3f  ax=%+6.3f ay=%+6.3f az=%+6.3f  mx=%+7.2f my=%+7.2f mz=%+7.2f\n",
		s.Gyro.X, s.Gyro.Y, s.Gyro.Z,
		s.Accel.X, s.Accel.Y, s.Accel.Z,
		s.Mag.X, s.Mag.Y, s.Mag.Z,
	)
}
