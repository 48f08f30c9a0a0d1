// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package kalman holds a plain linear Kalman filter and a position tracker
// built on it that pins velocity while the sensor is at rest.
package kalman

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var ErrDimension = errors.New("kalman: dimension mismatch")

// Filter is a linear Kalman filter written straight from the predict and
// update equations. It is not safe for concurrent use.
type Filter struct {
	a *mat.Dense // transition
	q *mat.Dense // transition covariance
	h *mat.Dense // observation
	r *mat.Dense // observation covariance

	x *mat.VecDense
	p *mat.Dense
}

// New builds a filter with a zero initial state and covariance. A and Q must
// be n×n, H m×n and R m×m.
func New(transition, transitionCov, observation, observationCov mat.Matrix) (*Filter, error) {
	n, c := transition.Dims()
	if n != c {
		return nil, fmt.Errorf("%w: transition is %dx%d", ErrDimension, n, c)
	}
	if r, c := transitionCov.Dims(); r != n || c != n {
		return nil, fmt.Errorf("%w: transition covariance is %dx%d, want %dx%d", ErrDimension, r, c, n, n)
	}
	m, c := observation.Dims()
	if c != n {
		return nil, fmt.Errorf("%w: observation is %dx%d, want %dx%d", ErrDimension, m, c, m, n)
	}
	if r, c := observationCov.Dims(); r != m || c != m {
		return nil, fmt.Errorf("%w: observation covariance is %dx%d, want %dx%d", ErrDimension, r, c, m, m)
	}

	return &Filter{
		a: mat.DenseCopyOf(transition),
		q: mat.DenseCopyOf(transitionCov),
		h: mat.DenseCopyOf(observation),
		r: mat.DenseCopyOf(observationCov),
		x: mat.NewVecDense(n, nil),
		p: mat.NewDense(n, n, nil),
	}, nil
}

// SetState replaces the state mean and covariance.
func (f *Filter) SetState(x []float64, p mat.Matrix) error {
	n := f.x.Len()
	if len(x) != n {
		return fmt.Errorf("%w: state has %d entries, want %d", ErrDimension, len(x), n)
	}
	if r, c := p.Dims(); r != n || c != n {
		return fmt.Errorf("%w: covariance is %dx%d, want %dx%d", ErrDimension, r, c, n, n)
	}
	f.x = mat.NewVecDense(n, append([]float64(nil), x...))
	f.p = mat.DenseCopyOf(p)
	return nil
}

// State returns a copy of the state mean.
func (f *Filter) State() []float64 {
	return mat.Col(nil, 0, f.x)
}

// Covariance returns a copy of the state covariance.
func (f *Filter) Covariance() *mat.Dense {
	return mat.DenseCopyOf(f.p)
}

// Predict advances the state: x = A·x, P = A·P·Aᵀ + Q.
func (f *Filter) Predict() {
	var x mat.VecDense
	x.MulVec(f.a, f.x)

	var ap, apa, p mat.Dense
	ap.Mul(f.a, f.p)
	apa.Mul(&ap, f.a.T())
	p.Add(&apa, f.q)

	f.x, f.p = &x, &p
}

// Update corrects the state with observation y.
func (f *Filter) Update(y []float64) error {
	m, _ := f.h.Dims()
	if len(y) != m {
		return fmt.Errorf("%w: observation has %d entries, want %d", ErrDimension, len(y), m)
	}

	// Innovation covariance S = H·P·Hᵀ + R.
	var hp, hph, s mat.Dense
	hp.Mul(f.h, f.p)
	hph.Mul(&hp, f.h.T())
	s.Add(&hph, f.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return fmt.Errorf("kalman: innovation covariance: %w", err)
	}

	// Gain K = P·Hᵀ·S⁻¹.
	var pht, k mat.Dense
	pht.Mul(f.p, f.h.T())
	k.Mul(&pht, &sInv)

	var predicted, innovation, correction, x mat.VecDense
	predicted.MulVec(f.h, f.x)
	innovation.SubVec(mat.NewVecDense(m, append([]float64(nil), y...)), &predicted)
	correction.MulVec(&k, &innovation)
	x.AddVec(f.x, &correction)

	// P = P - K·S·Kᵀ.
	var ks, ksk, p mat.Dense
	ks.Mul(&k, &s)
	ksk.Mul(&ks, k.T())
	p.Sub(f.p, &ksk)

	f.x, f.p = &x, &p
	return nil
}

// Step runs Predict then Update and returns the new state mean.
func (f *Filter) Step(y []float64) ([]float64, error) {
	f.Predict()
	if err := f.Update(y); err != nil {
		return nil, err
	}
	return f.State(), nil
}

// Run steps through every observation and returns the state history.
func (f *Filter) Run(observations [][]float64) ([][]float64, error) {
	states := make([][]float64, 0, len(observations))
	for i, y := range observations {
		x, err := f.Step(y)
		if err != nil {
			return states, fmt.Errorf("observation %d: %w", i, err)
		}
		states = append(states, x)
	}
	return states, nil
}

// setRange overwrites x[from:from+len(v)].
func (f *Filter) setRange(from int, v []float64) {
	for i, x := range v {
		f.x.SetVec(from+i, x)
	}
}
