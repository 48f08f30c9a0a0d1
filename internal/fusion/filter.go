// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package fusion estimates orientation from gyroscope, accelerometer and
// magnetometer samples.
//
// Two filter families are provided: Madgwick (gradient-descent correction)
// and Mahony (complementary proportional-integral correction). Each has a
// 6-axis UpdateIMU and a 9-axis UpdateAHRS. Every filter owns its state, so
// any number of them may run side by side; a single instance must not be
// updated from more than one goroutine at a time.
//
// Updates never return errors. Zero accelerometer or magnetometer readings
// disable the matching correction for that tick, and NaN or Inf inputs
// propagate into the output.
package fusion

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownAlgorithm  = errors.New("unknown filter algorithm")
	ErrInvalidSampleFreq = errors.New("sample frequency must be positive")
	ErrNegativeGain      = errors.New("filter gains must not be negative")
)

// Algorithm names a filter family.
type Algorithm string

const (
	AlgorithmMadgwick Algorithm = "madgwick"
	AlgorithmMahony   Algorithm = "mahony"
)

// ParseAlgorithm accepts the config/wire spelling of an algorithm name.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(s) {
	case AlgorithmMadgwick, AlgorithmMahony:
		return Algorithm(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownAlgorithm, s)
}

// Filter is the per-instance contract shared by both families.
type Filter interface {
	// UpdateIMU fuses one gyroscope + accelerometer sample.
	UpdateIMU(gyro, accel Vector) Quaternion
	// UpdateAHRS fuses one gyroscope + accelerometer + magnetometer sample.
	UpdateAHRS(gyro, accel, mag Vector) Quaternion

	Quaternion() Quaternion
	SetQuaternion(q Quaternion)
	SamplePeriod() float64
	SetSampleFreq(hz float64) error
	Ticks() uint64
	Reset()
	Algorithm() Algorithm
}

// New builds the filter selected by cfg.
func New(cfg Config) (Filter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Algorithm {
	case AlgorithmMadgwick:
		return NewMadgwick(cfg.SampleFreq, cfg.Beta)
	case AlgorithmMahony:
		return NewMahony(cfg.SampleFreq, cfg.Kp, cfg.Ki)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, cfg.Algorithm)
}

// Observation is one row of a recorded stream. Rows without a
// magnetometer reading are fused with the 6-axis update.
type Observation struct {
	Gyro   Vector `json:"gyro"`
	Accel  Vector `json:"accel"`
	Mag    Vector `json:"mag"`
	HasMag bool   `json:"has_mag"`
}

// Run feeds every observation through f in order and returns the
// orientation after each one.
func Run(f Filter, observations []Observation) []Quaternion {
	states := make([]Quaternion, 0, len(observations))
	for _, o := range observations {
		states = append(states, Step(f, o))
	}
	return states
}

// Step fuses a single observation, picking the 6- or 9-axis update.
func Step(f Filter, o Observation) Quaternion {
	if o.HasMag {
		return f.UpdateAHRS(o.Gyro, o.Accel, o.Mag)
	}
	return f.UpdateIMU(o.Gyro, o.Accel)
}

// normalizeOrIdentity keeps a filter's stored orientation finite when the
// integrated quaternion collapses to zero.
func normalizeOrIdentity(q Quaternion) Quaternion {
	n, ok := q.Normalized()
	if !ok {
		return Identity()
	}
	return n
}
