// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

// Single-precision call boundary. These functions hold no state: the
// quaternion (and for Mahony the integral term) passed in is treated as the
// filter state for that one call, and the updated values are returned.
// freq is the sample frequency in Hz and must be positive. Madgwick runs
// with DefaultBeta; Mahony takes its gains explicitly so the integral term
// can be carried between calls.

func MadgwickAHRSUpdate(gx, gy, gz, ax, ay, az, mx, my, mz, freq float32, q [4]float32) [4]float32 {
	next := madgwickAHRS(quat32(q), vec32(gx, gy, gz), vec32(ax, ay, az), vec32(mx, my, mz), DefaultBeta, 1/float64(freq))
	return next.array32()
}

func MadgwickIMUUpdate(gx, gy, gz, ax, ay, az, freq float32, q [4]float32) [4]float32 {
	next := madgwickIMU(quat32(q), vec32(gx, gy, gz), vec32(ax, ay, az), DefaultBeta, 1/float64(freq))
	return next.array32()
}

func MahonyAHRSUpdate(gx, gy, gz, ax, ay, az, mx, my, mz, freq, kp, ki float32, q [4]float32, integral [3]float32) ([4]float32, [3]float32) {
	m := mahonyAt(freq, kp, ki, q, integral)
	next := m.UpdateAHRS(vec32(gx, gy, gz), vec32(ax, ay, az), vec32(mx, my, mz))
	return next.array32(), m.integral.array32()
}

func MahonyIMUUpdate(gx, gy, gz, ax, ay, az, freq, kp, ki float32, q [4]float32, integral [3]float32) ([4]float32, [3]float32) {
	m := mahonyAt(freq, kp, ki, q, integral)
	next := m.UpdateIMU(vec32(gx, gy, gz), vec32(ax, ay, az))
	return next.array32(), m.integral.array32()
}

func mahonyAt(freq, kp, ki float32, q [4]float32, integral [3]float32) *Mahony {
	return &Mahony{
		q:        quat32(q),
		kp:       float64(kp),
		ki:       float64(ki),
		dt:       1 / float64(freq),
		integral: vec32(integral[0], integral[1], integral[2]),
	}
}

func vec32(x, y, z float32) Vector {
	return Vector{X: float64(x), Y: float64(y), Z: float64(z)}
}

func quat32(q [4]float32) Quaternion {
	return Quaternion{W: float64(q[0]), X: float64(q[1]), Y: float64(q[2]), Z: float64(q[3])}
}

func (q Quaternion) array32() [4]float32 {
	return [4]float32{float32(q.W), float32(q.X), float32(q.Y), float32(q.Z)}
}

func (v Vector) array32() [3]float32 {
	return [3]float32{float32(v.X), float32(v.Y), float32(v.Z)}
}
