// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package kalman

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
)

const (
	DefaultStaticThreshold = 0.1  // g
	DefaultStaticTime      = 0.25 // s

	standardGravity = 9.81 // m/s² per g

	// State layout: linear acceleration, velocity, position.
	accelAt    = 0
	velocityAt = 3
	positionAt = 6
	stateLen   = 9
)

// Phase classifies the sensor motion at one sample.
type Phase int

const (
	Moving   Phase = iota // |a| away from 1 g
	Settling              // near 1 g, not long enough to count as static
	Static                // at rest: velocity pinned to zero, position held
)

func (p Phase) String() string {
	switch p {
	case Moving:
		return "moving"
	case Settling:
		return "settling"
	case Static:
		return "static"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// PositionState is the tracker output after one sample. Acceleration,
// velocity and position are in m/s², m/s and m in the sensor frame.
type PositionState struct {
	Accel    fusion.Vector `json:"accel"`
	Velocity fusion.Vector `json:"velocity"`
	Position fusion.Vector `json:"position"`
	Gravity  fusion.Vector `json:"gravity"` // g, as removed from the reading
	Phase    Phase         `json:"phase"`
}

// PositionTracker double-integrates accelerometer readings through a
// constant-acceleration Kalman filter. Whenever the reading stays within
// threshold of 1 g for longer than the static time the sensor is taken to
// be at rest: gravity is re-estimated as the mean reading over the rest
// period, velocity is zeroed and position is held.
type PositionTracker struct {
	kf        *Filter
	threshold float64
	minCount  float64

	counter     float64
	restSum     fusion.Vector
	restN       int
	gravity     fusion.Vector
	haveGravity bool
	held        []float64
}

// NewPositionTracker builds a tracker for samples arriving at freq Hz. The
// tracker starts out at rest.
func NewPositionTracker(freq, threshold, staticTime float64) (*PositionTracker, error) {
	if freq <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return nil, fmt.Errorf("%w: %v", fusion.ErrInvalidSampleFreq, freq)
	}
	if threshold <= 0 || staticTime < 0 {
		return nil, fmt.Errorf("kalman: threshold %v must be positive and static time %v non-negative", threshold, staticTime)
	}

	dt := 1 / freq
	a := identity(stateLen)
	for i := 0; i < 3; i++ {
		a.Set(velocityAt+i, accelAt+i, dt)
		a.Set(positionAt+i, velocityAt+i, dt)
	}
	h := mat.NewDense(3, stateLen, nil)
	for i := 0; i < 3; i++ {
		h.Set(i, accelAt+i, 1)
	}
	r := identity(3)
	r.Scale(20, r)

	kf, err := New(a, identity(stateLen), h, r)
	if err != nil {
		return nil, err
	}
	return &PositionTracker{
		kf:        kf,
		threshold: threshold,
		minCount:  freq * staticTime,
		counter:   freq,
		held:      make([]float64, 3),
	}, nil
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

func (t *PositionTracker) static() bool {
	return t.counter > t.minCount
}

// Update fuses one accelerometer reading in g.
func (t *PositionTracker) Update(accel fusion.Vector) (PositionState, error) {
	if !t.haveGravity {
		t.gravity = accel
		t.haveGravity = true
	}

	phase := t.classify(accel)

	t.kf.Predict()
	t.pin()
	y := accel.Sub(t.gravity).Scale(standardGravity)
	if err := t.kf.Update([]float64{y.X, y.Y, y.Z}); err != nil {
		return PositionState{}, err
	}
	t.pin()

	x := t.kf.State()
	return PositionState{
		Accel:    fusion.Vec(x[accelAt], x[accelAt+1], x[accelAt+2]),
		Velocity: fusion.Vec(x[velocityAt], x[velocityAt+1], x[velocityAt+2]),
		Position: fusion.Vec(x[positionAt], x[positionAt+1], x[positionAt+2]),
		Gravity:  t.gravity,
		Phase:    phase,
	}, nil
}

// classify advances the rest detector and, while at rest, refreshes the
// gravity estimate and the held position.
func (t *PositionTracker) classify(accel fusion.Vector) Phase {
	nearOne := math.Abs(1-accel.Norm()) < t.threshold
	switch {
	case nearOne && t.static():
	case nearOne:
		t.counter++
		if !t.static() {
			return Settling
		}
		t.restSum, t.restN = fusion.Vector{}, 0
	default:
		t.counter = 0
		t.restSum, t.restN = fusion.Vector{}, 0
		return Moving
	}

	t.restSum = t.restSum.Add(accel)
	t.restN++
	n := float64(t.restN)
	t.gravity = fusion.Vec(t.restSum.X/n, t.restSum.Y/n, t.restSum.Z/n)
	t.kf.setRange(velocityAt, []float64{0, 0, 0})
	x := t.kf.State()
	copy(t.held, x[positionAt:positionAt+3])
	return Static
}

func (t *PositionTracker) pin() {
	if !t.static() {
		return
	}
	t.kf.setRange(velocityAt, []float64{0, 0, 0})
	t.kf.setRange(positionAt, t.held)
}

// Track runs a fresh tracker over a recording.
func Track(freq, threshold, staticTime float64, samples []imu.Sample) ([]PositionState, error) {
	t, err := NewPositionTracker(freq, threshold, staticTime)
	if err != nil {
		return nil, err
	}
	out := make([]PositionState, 0, len(samples))
	for i, s := range samples {
		st, err := t.Update(s.Accel)
		if err != nil {
			return out, fmt.Errorf("sample %d: %w", i, err)
		}
		out = append(out, st)
	}
	return out, nil
}
