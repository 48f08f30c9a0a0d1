// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import "gonum.org/v1/gonum/spatial/r3"

// Vector is a 3-axis sensor reading or direction in body or world frame.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec builds a Vector from its components.
func Vec(x, y, z float64) Vector {
	return Vector{X: x, Y: y, Z: z}
}

func (v Vector) vec() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

func fromVec(p r3.Vec) Vector {
	return Vector{X: p.X, Y: p.Y, Z: p.Z}
}

// IsZero reports whether all three components are exactly zero.
func (v Vector) IsZero() bool {
	return v.X == 0 && v.Y == 0 && v.Z == 0
}

func (v Vector) Norm() float64 {
	return r3.Norm(v.vec())
}

func (v Vector) Dot(u Vector) float64 {
	return r3.Dot(v.vec(), u.vec())
}

// Cross returns v × u.
func (v Vector) Cross(u Vector) Vector {
	return fromVec(r3.Cross(v.vec(), u.vec()))
}

func (v Vector) Add(u Vector) Vector {
	return fromVec(r3.Add(v.vec(), u.vec()))
}

func (v Vector) Sub(u Vector) Vector {
	return fromVec(r3.Sub(v.vec(), u.vec()))
}

func (v Vector) Scale(s float64) Vector {
	return fromVec(r3.Scale(s, v.vec()))
}

// Normalized returns v scaled to unit length. A zero-length vector is
// returned unchanged with ok == false; r3.Unit would return NaNs.
func (v Vector) Normalized() (u Vector, ok bool) {
	if r3.Norm(v.vec()) == 0 {
		return v, false
	}
	return fromVec(r3.Unit(v.vec())), true
}
