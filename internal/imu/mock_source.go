// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"math"
	"time"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
)

// MockField is the earth-frame magnetic field the mock source reports,
// in µT, with a 53° inclination.
var MockField = fusion.Vec(30, 0, -40)

// MockSource generates the readings of a level sensor turning about the
// vertical axis at a constant rate. Time advances by a fixed period per
// sample so the stream is reproducible.
type MockSource struct {
	start   time.Time
	period  time.Duration
	yawRate float64 // rad/s
	withMag bool
	n       int
}

// NewMockSource creates a mock sample source. yawRateDeg is in deg/s.
func NewMockSource(period time.Duration, yawRateDeg float64, withMag bool) *MockSource {
	return &MockSource{
		start:   time.Now(),
		period:  period,
		yawRate: yawRateDeg * math.Pi / 180,
		withMag: withMag,
	}
}

// Truth returns the orientation the mock sensor has at sample n.
func (m *MockSource) Truth(n int) fusion.Quaternion {
	t := float64(n) * m.period.Seconds()
	return fusion.FromAxisAngle(fusion.Vec(0, 0, 1), m.yawRate*t)
}

// Next returns the sample for the current step and advances the clock.
// Readings describe the pose at the start of the step, which is where a
// filter fed from identity expects them.
func (m *MockSource) Next() (Sample, error) {
	truth := m.Truth(m.n).Conj()
	s := Sample{
		Time:  m.start.Add(time.Duration(m.n) * m.period),
		Gyro:  fusion.Vec(0, 0, m.yawRate),
		Accel: truth.Rotate(fusion.Vec(0, 0, 1)),
	}
	if m.withMag {
		s.Mag = truth.Rotate(MockField)
		s.HasMag = true
	}
	m.n++
	return s, nil
}
