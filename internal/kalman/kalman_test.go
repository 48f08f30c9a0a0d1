// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package kalman

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
)

func scalar(v float64) *mat.Dense { return mat.NewDense(1, 1, []float64{v}) }

func TestScalarUpdateMatchesClosedForm(t *testing.T) {
	f, err := New(scalar(1), scalar(0), scalar(1), scalar(4))
	require.NoError(t, err)
	require.NoError(t, f.SetState([]float64{0}, scalar(1)))

	x, err := f.Step([]float64{10})
	require.NoError(t, err)
	// K = P/(P+R) = 1/5.
	assert.InDelta(t, 2.0, x[0], 1e-12)
	assert.InDelta(t, 0.8, f.Covariance().At(0, 0), 1e-12)
}

func TestRunConvergesOnConstantSignal(t *testing.T) {
	f, err := New(scalar(1), scalar(1e-4), scalar(1), scalar(1))
	require.NoError(t, err)
	require.NoError(t, f.SetState([]float64{0}, scalar(100)))

	obs := make([][]float64, 500)
	for i := range obs {
		obs[i] = []float64{3}
	}
	states, err := f.Run(obs)
	require.NoError(t, err)
	require.Len(t, states, len(obs))
	assert.InDelta(t, 3.0, states[len(states)-1][0], 1e-4)
	assert.Less(t, f.Covariance().At(0, 0), 0.1)
}

func TestConstantVelocityModel(t *testing.T) {
	dt := 0.1
	a := mat.NewDense(2, 2, []float64{1, dt, 0, 1})
	q := mat.NewDense(2, 2, []float64{1e-6, 0, 0, 1e-6})
	h := mat.NewDense(1, 2, []float64{1, 0})
	f, err := New(a, q, h, scalar(0.01))
	require.NoError(t, err)
	require.NoError(t, f.SetState([]float64{0, 0}, mat.NewDense(2, 2, []float64{10, 0, 0, 10})))

	for i := 1; i <= 200; i++ {
		_, err := f.Step([]float64{2 * dt * float64(i)})
		require.NoError(t, err)
	}
	x := f.State()
	assert.InDelta(t, 40.0, x[0], 0.05)
	assert.InDelta(t, 2.0, x[1], 0.05)
}

func TestDimensionChecks(t *testing.T) {
	_, err := New(mat.NewDense(2, 3, nil), scalar(1), scalar(1), scalar(1))
	assert.ErrorIs(t, err, ErrDimension)
	_, err = New(scalar(1), identity(2), scalar(1), scalar(1))
	assert.ErrorIs(t, err, ErrDimension)
	_, err = New(scalar(1), scalar(1), mat.NewDense(1, 2, nil), scalar(1))
	assert.ErrorIs(t, err, ErrDimension)
	_, err = New(scalar(1), scalar(1), scalar(1), identity(2))
	assert.ErrorIs(t, err, ErrDimension)

	f, err := New(scalar(1), scalar(1), scalar(1), scalar(1))
	require.NoError(t, err)
	assert.ErrorIs(t, f.Update([]float64{1, 2}), ErrDimension)
	assert.ErrorIs(t, f.SetState([]float64{1, 2}, scalar(1)), ErrDimension)
	assert.ErrorIs(t, f.SetState([]float64{1}, identity(2)), ErrDimension)
}

func TestSingularInnovationCovariance(t *testing.T) {
	f, err := New(scalar(1), scalar(0), scalar(1), scalar(0))
	require.NoError(t, err)
	_, err = f.Step([]float64{1})
	assert.Error(t, err)

	_, err = f.Run([][]float64{{1}})
	assert.ErrorContains(t, err, "observation 0")
}

func TestStateIsCopied(t *testing.T) {
	f, err := New(scalar(1), scalar(1), scalar(1), scalar(1))
	require.NoError(t, err)
	x := []float64{5}
	require.NoError(t, f.SetState(x, scalar(1)))
	x[0] = 7
	got := f.State()
	assert.Equal(t, []float64{5}, got)
	got[0] = 9
	assert.Equal(t, []float64{5}, f.State())
}

func samplesOf(accels ...fusion.Vector) []imu.Sample {
	out := make([]imu.Sample, len(accels))
	for i, a := range accels {
		out[i] = imu.Sample{Accel: a}
	}
	return out
}

func repeat(v fusion.Vector, n int) []fusion.Vector {
	out := make([]fusion.Vector, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestTrackerAtRestStaysPut(t *testing.T) {
	states, err := Track(100, DefaultStaticThreshold, DefaultStaticTime,
		samplesOf(repeat(fusion.Vec(0, 0, 1), 50)...))
	require.NoError(t, err)
	for _, st := range states {
		assert.Equal(t, Static, st.Phase)
		assert.True(t, st.Velocity.IsZero())
		assert.True(t, st.Position.IsZero())
		assert.Equal(t, fusion.Vec(0, 0, 1), st.Gravity)
	}
}

func TestTrackerMovesThenSettles(t *testing.T) {
	rest := fusion.Vec(0, 0, 1)
	var accels []fusion.Vector
	accels = append(accels, repeat(rest, 10)...)
	accels = append(accels, repeat(fusion.Vec(0.5, 0, 1), 20)...)
	accels = append(accels, repeat(rest, 60)...)

	states, err := Track(100, DefaultStaticThreshold, DefaultStaticTime, samplesOf(accels...))
	require.NoError(t, err)
	require.Len(t, states, len(accels))

	assert.Equal(t, Static, states[9].Phase)
	assert.Equal(t, Moving, states[10].Phase)
	assert.Equal(t, Moving, states[29].Phase)
	assert.Greater(t, states[29].Velocity.X, 0.0)
	assert.Equal(t, rest, states[29].Gravity)

	// 0.25 s at 100 Hz: the 26th reading near 1 g is the first at rest.
	assert.Equal(t, Settling, states[30].Phase)
	assert.Equal(t, Settling, states[54].Phase)
	assert.Equal(t, Static, states[55].Phase)

	last := states[len(states)-1]
	assert.True(t, last.Velocity.IsZero())
	assert.Greater(t, last.Position.X, 0.0)
	assert.Equal(t, states[55].Position, last.Position)
	assert.InDelta(t, 0.0, last.Position.Y, 1e-12)
}

func TestTrackerRejectsBadSettings(t *testing.T) {
	_, err := NewPositionTracker(0, 0.1, 0.25)
	assert.ErrorIs(t, err, fusion.ErrInvalidSampleFreq)
	_, err = NewPositionTracker(100, 0, 0.25)
	assert.Error(t, err)
	_, err = Track(100, 0.1, -1, nil)
	assert.Error(t, err)
}

func TestPhaseString(t *testing.T) {
	assert.Equal(t, "moving", Moving.String())
	assert.Equal(t, "settling", Settling.String())
	assert.Equal(t, "static", Static.String())
	assert.Equal(t, "Phase(7)", Phase(7).String())
}
