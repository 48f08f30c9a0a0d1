// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

// RunFusionProducer reads samples from the configured source, runs them
// through the orientation filter and publishes every estimate to MQTT.
func RunFusionProducer() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	est, err := orientation.NewEstimator(cfg.Fusion(), cfg.FilterUseMag)
	if err != nil {
		return err
	}

	client, err := connectMQTT("fusion producer", cfg.MQTTBroker, cfg.MQTTClientIDProducer)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	src, err := openSampleSource(cfg, client)
	if err != nil {
		return err
	}
	defer src.Close()
	log.Printf("fusion producer: source=%s algorithm=%s freq=%.1fHz mag=%t",
		cfg.SampleSource, cfg.FilterAlgorithm, cfg.FilterSampleFreq, cfg.FilterUseMag)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		// Unblocks sources waiting on a device or subscription.
		src.Close()
	}()

	var pace time.Duration
	if src.paced {
		pace = time.Duration(cfg.IMUSampleInterval) * time.Millisecond
	}

	publish := func(s imu.Sample, e orientation.Estimate) error {
		if err := publishJSON(client, cfg.TopicIMUSample, s); err != nil {
			return err
		}
		if err := publishJSON(client, cfg.TopicQuaternion, e); err != nil {
			return err
		}
		return publishJSON(client, cfg.TopicPoseFused, e.Pose)
	}

	loop := fusionLoop{
		source:      src,
		estimator:   est,
		pace:        pace,
		logInterval: time.Duration(cfg.ConsoleLogInterval) * time.Millisecond,
		sink:        publish,
	}
	n, err := loop.run(ctx)
	log.Printf("fusion producer: stopped after %d samples", n)
	return err
}

// fusionLoop pulls samples from source, fuses them and hands each estimate
// to sink.
type fusionLoop struct {
	source      imu.Source
	estimator   *orientation.Estimator
	pace        time.Duration // 0 reads as fast as the source delivers
	logInterval time.Duration
	sink        func(imu.Sample, orientation.Estimate) error
}

// run returns nil when ctx is cancelled or the source is exhausted.
func (l *fusionLoop) run(ctx context.Context) (int, error) {
	var tick <-chan time.Time
	if l.pace > 0 {
		ticker := time.NewTicker(l.pace)
		defer ticker.Stop()
		tick = ticker.C
	}

	var lastLog time.Time
	n := 0
	for {
		if ctx.Err() != nil {
			return n, nil
		}
		if tick != nil {
			select {
			case <-ctx.Done():
				return n, nil
			case <-tick:
			}
		}

		s, err := l.source.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return n, nil
			}
			return n, fmt.Errorf("sample source: %w", err)
		}

		e := l.estimator.Update(s)
		n++

		if l.sink != nil {
			if err := l.sink(s, e); err != nil {
				log.Printf("fusion producer: %v", err)
			}
		}

		if l.logInterval > 0 && time.Since(lastLog) >= l.logInterval {
			lastLog = time.Now()
			log.Printf("fusion producer: tick %d pose R=%.2f P=%.2f Y=%.2f q=(%.4f, %.4f, %.4f, %.4f)",
				e.Ticks, e.Pose.Roll, e.Pose.Pitch, e.Pose.Yaw,
				e.Quaternion.W, e.Quaternion.X, e.Quaternion.Y, e.Quaternion.Z)
		}
	}
}
