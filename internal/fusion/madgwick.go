// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"fmt"
	"math"
)

// Madgwick is the gradient-descent orientation filter.
//
// Each tick the gyroscope rate is integrated and pulled back along the
// normalised gradient of the error between the measured gravity (and
// magnetic field) direction and the one predicted by the current estimate.
// Beta sets how hard that pull is.
type Madgwick struct {
	q     Quaternion
	beta  float64
	dt    float64 // sample period (s)
	ticks uint64
}

// NewMadgwick returns a filter at the identity orientation.
func NewMadgwick(sampleFreq, beta float64) (*Madgwick, error) {
	m := &Madgwick{q: Identity()}
	if err := m.SetSampleFreq(sampleFreq); err != nil {
		return nil, err
	}
	if err := m.SetBeta(beta); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Madgwick) Algorithm() Algorithm { return AlgorithmMadgwick }

func (m *Madgwick) Quaternion() Quaternion { return m.q }

// SetQuaternion replaces the current estimate. The input is normalised; a
// zero quaternion resets to identity.
func (m *Madgwick) SetQuaternion(q Quaternion) { m.q = normalizeOrIdentity(q) }

func (m *Madgwick) SamplePeriod() float64 { return m.dt }

func (m *Madgwick) SetSampleFreq(hz float64) error {
	if !(hz > 0) {
		return fmt.Errorf("madgwick: %w: got %v", ErrInvalidSampleFreq, hz)
	}
	m.dt = 1 / hz
	return nil
}

func (m *Madgwick) Beta() float64 { return m.beta }

func (m *Madgwick) SetBeta(beta float64) error {
	if beta < 0 {
		return fmt.Errorf("madgwick: %w: beta=%v", ErrNegativeGain, beta)
	}
	m.beta = beta
	return nil
}

func (m *Madgwick) Ticks() uint64 { return m.ticks }

// Reset returns the estimate to identity. Gains and sample period are kept.
func (m *Madgwick) Reset() {
	m.q = Identity()
	m.ticks = 0
}

func (m *Madgwick) UpdateIMU(gyro, accel Vector) Quaternion {
	m.q = madgwickIMU(m.q, gyro, accel, m.beta, m.dt)
	m.ticks++
	return m.q
}

// UpdateAHRS falls back to UpdateIMU when the magnetometer reads exactly zero.
func (m *Madgwick) UpdateAHRS(gyro, accel, mag Vector) Quaternion {
	m.q = madgwickAHRS(m.q, gyro, accel, mag, m.beta, m.dt)
	m.ticks++
	return m.q
}

func madgwickIMU(q Quaternion, gyro, accel Vector, beta, dt float64) Quaternion {
	qDot := Rate(q, gyro)
	if a, ok := accel.Normalized(); ok {
		qDot = descend(qDot, madgwickIMUGradient(q, a), beta)
	}
	return normalizeOrIdentity(Integrate(q, qDot, dt))
}

func madgwickAHRS(q Quaternion, gyro, accel, mag Vector, beta, dt float64) Quaternion {
	if mag.IsZero() {
		return madgwickIMU(q, gyro, accel, beta, dt)
	}
	qDot := Rate(q, gyro)
	if a, ok := accel.Normalized(); ok {
		mn, _ := mag.Normalized()
		qDot = descend(qDot, madgwickAHRSGradient(q, a, mn), beta)
	}
	return normalizeOrIdentity(Integrate(q, qDot, dt))
}

// descend subtracts beta times the normalised gradient from qDot. A zero
// gradient means the estimate already matches the measurement.
func descend(qDot, gradient Quaternion, beta float64) Quaternion {
	step, ok := gradient.Normalized()
	if !ok {
		return qDot
	}
	return qDot.Sub(step.Scale(beta))
}

// madgwickIMUGradient is Jᵀf for the gravity objective, with a unit accel.
func madgwickIMUGradient(q Quaternion, a Vector) Quaternion {
	q0, q1, q2, q3 := q.W, q.X, q.Y, q.Z

	_2q0 := 2 * q0
	_2q1 := 2 * q1
	_2q2 := 2 * q2
	_2q3 := 2 * q3
	_4q0 := 4 * q0
	_4q1 := 4 * q1
	_4q2 := 4 * q2
	_8q1 := 8 * q1
	_8q2 := 8 * q2
	q0q0 := q0 * q0
	q1q1 := q1 * q1
	q2q2 := q2 * q2
	q3q3 := q3 * q3

	return Quaternion{
		W: _4q0*q2q2 + _2q2*a.X + _4q0*q1q1 - _2q1*a.Y,
		X: _4q1*q3q3 - _2q3*a.X + 4*q0q0*q1 - _2q0*a.Y - _4q1 + _8q1*q1q1 + _8q1*q2q2 + _4q1*a.Z,
		Y: 4*q0q0*q2 + _2q0*a.X + _4q2*q3q3 - _2q3*a.Y - _4q2 + _8q2*q1q1 + _8q2*q2q2 + _4q2*a.Z,
		Z: 4*q1q1*q3 - _2q1*a.X + 4*q2q2*q3 - _2q2*a.Y,
	}
}

// madgwickAHRSGradient is Jᵀf for the combined gravity and magnetic field
// objective. The earth field b = (bx, 0, bz) is re-derived from the current
// estimate and the measured field so only inclination is trusted.
func madgwickAHRSGradient(q Quaternion, a, m Vector) Quaternion {
	q0, q1, q2, q3 := q.W, q.X, q.Y, q.Z

	_2q0mx := 2 * q0 * m.X
	_2q0my := 2 * q0 * m.Y
	_2q0mz := 2 * q0 * m.Z
	_2q1mx := 2 * q1 * m.X
	_2q0 := 2 * q0
	_2q1 := 2 * q1
	_2q2 := 2 * q2
	_2q3 := 2 * q3
	_2q0q2 := 2 * q0 * q2
	_2q2q3 := 2 * q2 * q3
	q0q0 := q0 * q0
	q0q1 := q0 * q1
	q0q2 := q0 * q2
	q0q3 := q0 * q3
	q1q1 := q1 * q1
	q1q2 := q1 * q2
	q1q3 := q1 * q3
	q2q2 := q2 * q2
	q2q3 := q2 * q3
	q3q3 := q3 * q3

	// Measured field rotated into the earth frame. b keeps its horizontal
	// magnitude and vertical component; the objective is written in 2b.
	hx := m.X*q0q0 - _2q0my*q3 + _2q0mz*q2 + m.X*q1q1 + _2q1*m.Y*q2 + _2q1*m.Z*q3 - m.X*q2q2 - m.X*q3q3
	hy := _2q0mx*q3 + m.Y*q0q0 - _2q0mz*q1 + _2q1mx*q2 - m.Y*q1q1 + m.Y*q2q2 + _2q2*m.Z*q3 - m.Y*q3q3
	hz := -_2q0mx*q2 + _2q0my*q1 + m.Z*q0q0 + _2q1mx*q3 - m.Z*q1q1 + _2q2*m.Y*q3 - m.Z*q2q2 + m.Z*q3q3
	_2bx := 2 * math.Sqrt(hx*hx+hy*hy)
	_2bz := 2 * hz
	_4bx := 2 * _2bx
	_4bz := 2 * _2bz

	// Objective terms: predicted minus measured.
	fax := 2*q1q3 - _2q0q2 - a.X
	fay := 2*q0q1 + _2q2q3 - a.Y
	faz := 1 - 2*q1q1 - 2*q2q2 - a.Z
	fmx := _2bx*(0.5-q2q2-q3q3) + _2bz*(q1q3-q0q2) - m.X
	fmy := _2bx*(q1q2-q0q3) + _2bz*(q0q1+q2q3) - m.Y
	fmz := _2bx*(q0q2+q1q3) + _2bz*(0.5-q1q1-q2q2) - m.Z

	return Quaternion{
		W: -_2q2*fax + _2q1*fay - _2bz*q2*fmx + (-_2bx*q3+_2bz*q1)*fmy + _2bx*q2*fmz,
		X: _2q3*fax + _2q0*fay - 4*q1*faz + _2bz*q3*fmx + (_2bx*q2+_2bz*q0)*fmy + (_2bx*q3-_4bz*q1)*fmz,
		Y: -_2q0*fax + _2q3*fay - 4*q2*faz + (-_4bx*q2-_2bz*q0)*fmx + (_2bx*q1+_2bz*q3)*fmy + (_2bx*q0-_4bz*q2)*fmz,
		Z: _2q1*fax + _2q2*fay + (-_4bx*q3+_2bz*q1)*fmx + (-_2bx*q0+_2bz*q2)*fmy + _2bx*q1*fmz,
	}
}
