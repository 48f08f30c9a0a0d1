// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"math"

	"gonum.org/v1/gonum/num/quat"
)

// Quaternion is an orientation in (w, x, y, z) order. Filters keep it at
// unit length after every update.
type Quaternion struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Identity returns the zero rotation (1, 0, 0, 0).
func Identity() Quaternion { return Quaternion{W: 1} }

// I, J and K return the unit basis quaternions.
func I() Quaternion { return Quaternion{X: 1} }
func J() Quaternion { return Quaternion{Y: 1} }
func K() Quaternion { return Quaternion{Z: 1} }

// FromArray builds a quaternion from a (w, x, y, z) array.
func FromArray(a [4]float64) Quaternion {
	return Quaternion{W: a[0], X: a[1], Y: a[2], Z: a[3]}
}

// Array returns the components in (w, x, y, z) order.
func (q Quaternion) Array() [4]float64 {
	return [4]float64{q.W, q.X, q.Y, q.Z}
}

// FromAxisAngle returns the rotation of angle radians about axis. A zero
// axis yields the identity.
func FromAxisAngle(axis Vector, angle float64) Quaternion {
	u, ok := axis.Normalized()
	if !ok {
		return Identity()
	}
	s, c := math.Sincos(angle / 2)
	return Quaternion{W: c, X: u.X * s, Y: u.Y * s, Z: u.Z * s}
}

func (q Quaternion) number() quat.Number {
	return quat.Number{Real: q.W, Imag: q.X, Jmag: q.Y, Kmag: q.Z}
}

func fromNumber(n quat.Number) Quaternion {
	return Quaternion{W: n.Real, X: n.Imag, Y: n.Jmag, Z: n.Kmag}
}

func (q Quaternion) Add(p Quaternion) Quaternion {
	return fromNumber(quat.Add(q.number(), p.number()))
}

func (q Quaternion) Sub(p Quaternion) Quaternion {
	return fromNumber(quat.Sub(q.number(), p.number()))
}

// Mul returns the Hamilton product q ⊗ p.
func (q Quaternion) Mul(p Quaternion) Quaternion {
	return fromNumber(quat.Mul(q.number(), p.number()))
}

func (q Quaternion) Scale(s float64) Quaternion {
	return fromNumber(quat.Scale(s, q.number()))
}

func (q Quaternion) Conj() Quaternion {
	return fromNumber(quat.Conj(q.number()))
}

func (q Quaternion) Norm() float64 {
	return quat.Abs(q.number())
}

// Normalized returns q at unit length. A zero quaternion has no direction,
// so it is returned unchanged with ok == false.
func (q Quaternion) Normalized() (p Quaternion, ok bool) {
	n := q.Norm()
	if n == 0 {
		return q, false
	}
	return q.Scale(1 / n), true
}

// Rotate applies q to v as q ⊗ (0, v) ⊗ q*. q is assumed to be unit length.
func (q Quaternion) Rotate(v Vector) Vector {
	p := q.Mul(Quaternion{X: v.X, Y: v.Y, Z: v.Z}).Mul(q.Conj())
	return Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// Euler returns the ZYX Euler angles of q in radians. Pitch is clamped to
// [-pi/2, pi/2] near gimbal lock.
func (q Quaternion) Euler() (roll, pitch, yaw float64) {
	roll = math.Atan2(2*(q.W*q.X+q.Y*q.Z), 1-2*(q.X*q.X+q.Y*q.Y))

	sp := 2 * (q.W*q.Y - q.Z*q.X)
	if sp >= 1 {
		sp = 1
	} else if sp <= -1 {
		sp = -1
	}
	pitch = math.Asin(sp)

	yaw = math.Atan2(2*(q.W*q.Z+q.X*q.Y), 1-2*(q.Y*q.Y+q.Z*q.Z))
	return roll, pitch, yaw
}

// Rate returns the quaternion derivative 0.5 · q ⊗ (0, ω) for an angular
// rate ω in rad/s.
func Rate(q Quaternion, omega Vector) Quaternion {
	return q.Mul(Quaternion{X: omega.X, Y: omega.Y, Z: omega.Z}).Scale(0.5)
}

// Integrate advances q by one first-order Euler step: q + qDot·dt.
func Integrate(q, qDot Quaternion, dt float64) Quaternion {
	return q.Add(qDot.Scale(dt))
}
