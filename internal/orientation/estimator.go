// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"fmt"
	"sync"
	"time"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
)

// Estimate is the filter output after one sample.
type Estimate struct {
	Time       time.Time         `json:"time"`
	Algorithm  fusion.Algorithm  `json:"algorithm"`
	Quaternion fusion.Quaternion `json:"quaternion"`
	Pose       Pose              `json:"pose"`
	Ticks      uint64            `json:"ticks"`
}

// Estimator owns one fusion filter and serialises access to it so samples,
// resets and retuning can come from different goroutines.
type Estimator struct {
	mu     sync.Mutex
	cfg    fusion.Config
	filter fusion.Filter
	useMag bool
	last   time.Time
}

// NewEstimator builds the filter described by cfg. With useMag false every
// sample is fused with the 6-axis update even when it carries a field.
func NewEstimator(cfg fusion.Config, useMag bool) (*Estimator, error) {
	f, err := fusion.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("orientation: %w", err)
	}
	return &Estimator{cfg: cfg, filter: f, useMag: useMag}, nil
}

// Update fuses s and returns the new estimate.
func (e *Estimator) Update(s imu.Sample) Estimate {
	e.mu.Lock()
	defer e.mu.Unlock()

	o := s.Observation()
	if !e.useMag {
		o.HasMag = false
	}
	if o.Accel.IsZero() {
		debugf("tick %d: zero accelerometer, gyro-only update", e.filter.Ticks()+1)
	} else if o.HasMag && o.Mag.IsZero() {
		debugf("tick %d: zero magnetometer, 6-axis update", e.filter.Ticks()+1)
	}
	fusion.Step(e.filter, o)
	e.last = s.Time
	return e.estimate()
}

// Current returns the latest estimate without fusing anything.
func (e *Estimator) Current() Estimate {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.estimate()
}

// Reset returns the filter to identity and clears any accumulated state.
func (e *Estimator) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter.Reset()
	e.last = time.Time{}
	debugf("filter reset")
}

// Reconfigure swaps in a filter built from cfg, continuing from the current
// orientation. Integral state does not carry across.
func (e *Estimator) Reconfigure(cfg fusion.Config) error {
	f, err := fusion.New(cfg)
	if err != nil {
		return fmt.Errorf("orientation: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	f.SetQuaternion(e.filter.Quaternion())
	e.filter = f
	e.cfg = cfg
	debugf("reconfigured: %+v", cfg)
	return nil
}

// SetUseMag switches between 6-axis and 9-axis fusion for later samples.
func (e *Estimator) SetUseMag(useMag bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.useMag = useMag
}

func (e *Estimator) UseMag() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.useMag
}

func (e *Estimator) Config() fusion.Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// SetQuaternion seeds the filter orientation.
func (e *Estimator) SetQuaternion(q fusion.Quaternion) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.filter.SetQuaternion(q)
}

func (e *Estimator) estimate() Estimate {
	q := e.filter.Quaternion()
	return Estimate{
		Time:       e.last,
		Algorithm:  e.filter.Algorithm(),
		Quaternion: q,
		Pose:       PoseFromQuaternion(q),
		Ticks:      e.filter.Ticks(),
	}
}

// Batch runs a fresh filter over a whole recording and returns the estimate
// after every sample.
func Batch(cfg fusion.Config, useMag bool, samples []imu.Sample) ([]Estimate, error) {
	e, err := NewEstimator(cfg, useMag)
	if err != nil {
		return nil, err
	}
	out := make([]Estimate, 0, len(samples))
	for _, s := range samples {
		out = append(out, e.Update(s))
	}
	return out, nil
}
