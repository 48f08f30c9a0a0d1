// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/sensors"
)

// sampleSource is an imu.Source plus what the producer needs to drive it.
type sampleSource struct {
	imu.Source
	// paced sources produce samples on demand and are read on a ticker;
	// the rest block until their next sample arrives.
	paced     bool
	close     func() error
	closeOnce sync.Once
	closeErr  error
}

// openSampleSource builds the source selected by cfg.SampleSource. client is
// only used for the mqtt source.
func openSampleSource(cfg *config.Config, client mqtt.Client) (*sampleSource, error) {
	var src *sampleSource
	switch cfg.SampleSource {
	case config.SourceMock:
		period := time.Duration(cfg.IMUSampleInterval) * time.Millisecond
		src = &sampleSource{
			Source: imu.NewMockSource(period, cfg.MockYawRate, cfg.FilterUseMag),
			paced:  true,
		}
	case config.SourceSerial:
		s, err := sensors.OpenSerialSource(cfg.SerialPort, cfg.SerialBaudRate)
		if err != nil {
			return nil, err
		}
		src = &sampleSource{Source: s, close: s.Close}
	case config.SourceReplay:
		s, err := imu.OpenReplay(cfg.ReplayFile)
		if err != nil {
			return nil, err
		}
		src = &sampleSource{Source: s, paced: true, close: s.Close}
	case config.SourceMQTT:
		scale, err := imu.ScaleForRanges(cfg.IMUAccelRange, cfg.IMUGyroRange)
		if err != nil {
			return nil, err
		}
		s := newRawSubscription(scale)
		if err := subscribeJSON(client, "fusion producer", cfg.TopicIMURaw, s.handle); err != nil {
			return nil, err
		}
		src = &sampleSource{Source: s, close: s.Close}
	default:
		return nil, fmt.Errorf("unknown sample source %q", cfg.SampleSource)
	}

	if cfg.CalibrationFile != "" {
		cal, err := imu.LoadCalibration(cfg.CalibrationFile)
		if err != nil {
			if src.close != nil {
				src.close()
			}
			return nil, err
		}
		log.Printf("fusion producer: applying calibration from %s", cfg.CalibrationFile)
		src.Source = imu.CalibratedSource{Source: src.Source, Calibration: cal}
	}
	return src, nil
}

// Close releases the underlying device or file. It is safe to call more
// than once.
func (s *sampleSource) Close() error {
	s.closeOnce.Do(func() {
		if s.close != nil {
			s.closeErr = s.close()
		}
	})
	return s.closeErr
}

// rawSubscription turns raw IMU messages from MQTT into samples. Messages
// arriving while the consumer is busy are dropped so the filter never lags
// behind the sensor.
type rawSubscription struct {
	scale   imu.Scale
	samples chan imu.Sample
	done    chan struct{}
	now     func() time.Time
}

func newRawSubscription(scale imu.Scale) *rawSubscription {
	return &rawSubscription{
		scale:   scale,
		samples: make(chan imu.Sample, 64),
		done:    make(chan struct{}),
		now:     time.Now,
	}
}

func (r *rawSubscription) handle(raw imu.IMURaw) {
	select {
	case r.samples <- raw.ToSample(r.scale, r.now()):
	default:
		log.Printf("fusion producer: dropping raw sample from %q, consumer busy", raw.Source)
	}
}

func (r *rawSubscription) Next() (imu.Sample, error) {
	select {
	case s := <-r.samples:
		return s, nil
	case <-r.done:
		return imu.Sample{}, io.EOF
	}
}

func (r *rawSubscription) Close() error {
	close(r.done)
	return nil
}
