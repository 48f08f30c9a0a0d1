// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
)

// Calibration holds per-sensor corrections. Gyro bias is in deg/s, accel
// bias in g and mag offset in µT. Corrected = (reading - bias) * scale.
type Calibration struct {
	Version int    `json:"version"`
	IMU     string `json:"imu"`

	GyroBiasX float64 `json:"gyro_bias_x"`
	GyroBiasY float64 `json:"gyro_bias_y"`
	GyroBiasZ float64 `json:"gyro_bias_z"`

	AccelBiasX  float64 `json:"accel_bias_x"`
	AccelBiasY  float64 `json:"accel_bias_y"`
	AccelBiasZ  float64 `json:"accel_bias_z"`
	AccelScaleX float64 `json:"accel_scale_x"`
	AccelScaleY float64 `json:"accel_scale_y"`
	AccelScaleZ float64 `json:"accel_scale_z"`

	MagOffsetX float64 `json:"mag_offset_x"`
	MagOffsetY float64 `json:"mag_offset_y"`
	MagOffsetZ float64 `json:"mag_offset_z"`
	MagScaleX  float64 `json:"mag_scale_x"`
	MagScaleY  float64 `json:"mag_scale_y"`
	MagScaleZ  float64 `json:"mag_scale_z"`
}

// IdentityCalibration leaves samples unchanged.
func IdentityCalibration() Calibration {
	return Calibration{
		Version:     1,
		AccelScaleX: 1, AccelScaleY: 1, AccelScaleZ: 1,
		MagScaleX: 1, MagScaleY: 1, MagScaleZ: 1,
	}
}

// LoadCalibration reads a calibration file. Scales missing from the file
// default to 1.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Calibration{}, fmt.Errorf("failed to read calibration file: %w", err)
	}
	c := IdentityCalibration()
	if err := json.Unmarshal(data, &c); err != nil {
		return Calibration{}, fmt.Errorf("failed to parse calibration file: %w", err)
	}
	return c, nil
}

// Apply returns s with the corrections applied.
func (c Calibration) Apply(s Sample) Sample {
	degToRad := math.Pi / 180
	s.Gyro = s.Gyro.Sub(fusion.Vec(c.GyroBiasX, c.GyroBiasY, c.GyroBiasZ).Scale(degToRad))
	s.Accel = fusion.Vec(
		(s.Accel.X-c.AccelBiasX)*c.AccelScaleX,
		(s.Accel.Y-c.AccelBiasY)*c.AccelScaleY,
		(s.Accel.Z-c.AccelBiasZ)*c.AccelScaleZ,
	)
	if s.HasMag {
		s.Mag = fusion.Vec(
			(s.Mag.X-c.MagOffsetX)*c.MagScaleX,
			(s.Mag.Y-c.MagOffsetY)*c.MagScaleY,
			(s.Mag.Z-c.MagOffsetZ)*c.MagScaleZ,
		)
	}
	return s
}

// CalibratedSource applies a calibration to every sample of an underlying
// source.
type CalibratedSource struct {
	Source
	Calibration Calibration
}

func (c CalibratedSource) Next() (Sample, error) {
	s, err := c.Source.Next()
	if err != nil {
		return s, err
	}
	return c.Calibration.Apply(s), nil
}
