// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"time"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
)

// Sample is one reading in physical units: gyro in rad/s, accel in any
// consistent unit (g by convention) and mag in any consistent unit (µT).
type Sample struct {
	Time   time.Time     `json:"time"`
	Gyro   fusion.Vector `json:"gyro"`
	Accel  fusion.Vector `json:"accel"`
	Mag    fusion.Vector `json:"mag"`
	HasMag bool          `json:"has_mag"`
}

// Observation strips the timestamp off s.
func (s Sample) Observation() fusion.Observation {
	return fusion.Observation{Gyro: s.Gyro, Accel: s.Accel, Mag: s.Mag, HasMag: s.HasMag}
}

// Source is anything that produces samples over time. Finite sources return
// io.EOF once exhausted.
type Source interface {
	Next() (Sample, error)
}
