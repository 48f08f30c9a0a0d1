// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"fmt"
	"math"
	"time"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
)

// IMURaw represents a single raw IMU+mag sample as published by an
// on-board producer.
type IMURaw struct {
	Source string `json:"source"` // "left" or "right"

	Ax int16 `json:"ax"` // accel
	Ay int16 `json:"ay"`
	Az int16 `json:"az"`

	Gx int16 `json:"gx"` // gyro
	Gy int16 `json:"gy"`
	Gz int16 `json:"gz"`

	Mx int16 `json:"mx"` // magnetometer
	My int16 `json:"my"`
	Mz int16 `json:"mz"`
}

// MagMicroTeslaPerLSB is the AK8963 resolution in 16-bit output mode.
const MagMicroTeslaPerLSB = 0.15

// Scale converts raw counts to physical units.
type Scale struct {
	AccelLSBPerG   float64
	GyroLSBPerDegS float64
	MagUTPerLSB    float64
}

// ScaleForRanges returns the MPU9250 sensitivities for the given range codes.
// Accelerometer: 0=±2g, 1=±4g, 2=±8g, 3=±16g
// Gyroscope: 0=±250°/s, 1=±500°/s, 2=±1000°/s, 3=±2000°/s
func ScaleForRanges(accelRange, gyroRange byte) (Scale, error) {
	if accelRange > 3 {
		return Scale{}, fmt.Errorf("accel range code %d out of range 0-3", accelRange)
	}
	if gyroRange > 3 {
		return Scale{}, fmt.Errorf("gyro range code %d out of range 0-3", gyroRange)
	}
	return Scale{
		AccelLSBPerG:   16384 / float64(uint(1)<<accelRange),
		GyroLSBPerDegS: 131 / float64(uint(1)<<gyroRange),
		MagUTPerLSB:    MagMicroTeslaPerLSB,
	}, nil
}

// ToSample converts raw counts into a Sample stamped with t. Gyro rates come
// out in rad/s, acceleration in g and the field in µT. A magnetometer
// reading of all zeros is treated as absent.
func (r IMURaw) ToSample(s Scale, t time.Time) Sample {
	degToRad := math.Pi / 180
	sample := Sample{
		Time: t,
		Gyro: fusion.Vec(
			float64(r.Gx)/s.GyroLSBPerDegS*degToRad,
			float64(r.Gy)/s.GyroLSBPerDegS*degToRad,
			float64(r.Gz)/s.GyroLSBPerDegS*degToRad,
		),
		Accel: fusion.Vec(
			float64(r.Ax)/s.AccelLSBPerG,
			float64(r.Ay)/s.AccelLSBPerG,
			float64(r.Az)/s.AccelLSBPerG,
		),
	}
	if r.Mx != 0 || r.My != 0 || r.Mz != 0 {
		sample.Mag = fusion.Vec(
			float64(r.Mx)*s.MagUTPerLSB,
			float64(r.My)*s.MagUTPerLSB,
			float64(r.Mz)*s.MagUTPerLSB,
		)
		sample.HasMag = true
	}
	return sample
}
