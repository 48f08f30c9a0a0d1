// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"fmt"
	"math"
)

// Mahony is the explicit complementary filter: the cross product between
// measured and predicted reference directions feeds back into the gyroscope
// rate through a proportional term and an integral term that soaks up
// gyroscope bias.
type Mahony struct {
	q        Quaternion
	kp, ki   float64
	dt       float64 // sample period (s)
	integral Vector  // accumulated Ki·e·dt (rad/s)
	ticks    uint64
}

// NewMahony returns a filter at the identity orientation with a zero
// integral term.
func NewMahony(sampleFreq, kp, ki float64) (*Mahony, error) {
	m := &Mahony{q: Identity()}
	if err := m.SetSampleFreq(sampleFreq); err != nil {
		return nil, err
	}
	if err := m.SetGains(kp, ki); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Mahony) Algorithm() Algorithm { return AlgorithmMahony }

func (m *Mahony) Quaternion() Quaternion { return m.q }

func (m *Mahony) SetQuaternion(q Quaternion) { m.q = normalizeOrIdentity(q) }

func (m *Mahony) SamplePeriod() float64 { return m.dt }

func (m *Mahony) SetSampleFreq(hz float64) error {
	if !(hz > 0) {
		return fmt.Errorf("mahony: %w: got %v", ErrInvalidSampleFreq, hz)
	}
	m.dt = 1 / hz
	return nil
}

// Gains returns the proportional and integral gains.
func (m *Mahony) Gains() (kp, ki float64) { return m.kp, m.ki }

// SetGains retunes the filter. The integral term is left as it is.
func (m *Mahony) SetGains(kp, ki float64) error {
	if kp < 0 || ki < 0 {
		return fmt.Errorf("mahony: %w: kp=%v ki=%v", ErrNegativeGain, kp, ki)
	}
	m.kp, m.ki = kp, ki
	return nil
}

// IntegralError returns the accumulated integral feedback.
func (m *Mahony) IntegralError() Vector { return m.integral }

func (m *Mahony) Ticks() uint64 { return m.ticks }

// Reset returns the estimate to identity and clears the integral term.
func (m *Mahony) Reset() {
	m.q = Identity()
	m.integral = Vector{}
	m.ticks = 0
}

func (m *Mahony) UpdateIMU(gyro, accel Vector) Quaternion {
	return m.update(gyro, accel, Vector{})
}

// UpdateAHRS drops the magnetometer term when it reads exactly zero.
func (m *Mahony) UpdateAHRS(gyro, accel, mag Vector) Quaternion {
	return m.update(gyro, accel, mag)
}

func (m *Mahony) update(gyro, accel, mag Vector) Quaternion {
	omega := m.correctedRate(gyro, accel, mag)
	m.q = normalizeOrIdentity(Integrate(m.q, Rate(m.q, omega), m.dt))
	m.ticks++
	return m.q
}

// correctedRate applies the PI feedback to gyro and advances the integral
// term. Without a usable accelerometer reading the raw rate is returned and
// the integral is left untouched.
func (m *Mahony) correctedRate(gyro, accel, mag Vector) Vector {
	e, ok := mahonyError(m.q, accel, mag)
	if !ok {
		return gyro
	}
	if m.ki > 0 {
		m.integral = m.integral.Add(e.Scale(m.ki * m.dt))
	} else {
		m.integral = Vector{}
	}
	return gyro.Add(e.Scale(m.kp)).Add(m.integral)
}

// mahonyError is the summed cross product between measured and estimated
// reference directions, in body frame.
func mahonyError(q Quaternion, accel, mag Vector) (Vector, bool) {
	a, ok := accel.Normalized()
	if !ok {
		return Vector{}, false
	}
	e := a.Cross(gravityDirection(q))
	if m, ok := mag.Normalized(); ok {
		e = e.Add(m.Cross(fieldDirection(q, m)))
	}
	return e, true
}

// gravityDirection is the world z axis seen from body frame.
func gravityDirection(q Quaternion) Vector {
	q0, q1, q2, q3 := q.W, q.X, q.Y, q.Z
	return Vector{
		X: 2 * (q1*q3 - q0*q2),
		Y: 2 * (q0*q1 + q2*q3),
		Z: q0*q0 - q1*q1 - q2*q2 + q3*q3,
	}
}

// fieldDirection predicts the body-frame magnetic field. The earth field
// is rebuilt from the unit measurement m as b = (|hxy|, 0, hz) so only its
// inclination is trusted.
func fieldDirection(q Quaternion, m Vector) Vector {
	q0, q1, q2, q3 := q.W, q.X, q.Y, q.Z
	q0q1 := q0 * q1
	q0q2 := q0 * q2
	q0q3 := q0 * q3
	q1q1 := q1 * q1
	q1q2 := q1 * q2
	q1q3 := q1 * q3
	q2q2 := q2 * q2
	q2q3 := q2 * q3
	q3q3 := q3 * q3

	hx := 2 * (m.X*(0.5-q2q2-q3q3) + m.Y*(q1q2-q0q3) + m.Z*(q1q3+q0q2))
	hy := 2 * (m.X*(q1q2+q0q3) + m.Y*(0.5-q1q1-q3q3) + m.Z*(q2q3-q0q1))
	bx := math.Sqrt(hx*hx + hy*hy)
	bz := 2 * (m.X*(q1q3-q0q2) + m.Y*(q2q3+q0q1) + m.Z*(0.5-q1q1-q2q2))

	return Vector{
		X: 2 * (bx*(0.5-q2q2-q3q3) + bz*(q1q3-q0q2)),
		Y: 2 * (bx*(q1q2-q0q3) + bz*(q0q1+q2q3)),
		Z: 2 * (bx*(q0q2+q1q3) + bz*(0.5-q1q1-q2q2)),
	}
}
