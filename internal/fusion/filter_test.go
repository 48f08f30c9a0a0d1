// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testFreq = 100.0

// variant is one filter family driven through either its 6- or 9-axis update.
type variant struct {
	name   string
	newF   func(t *testing.T) Filter
	update func(f Filter, gyro, accel, mag Vector) Quaternion
}

func updateIMU(f Filter, gyro, accel, _ Vector) Quaternion { return f.UpdateIMU(gyro, accel) }
func updateAHRS(f Filter, gyro, accel, mag Vector) Quaternion {
	return f.UpdateAHRS(gyro, accel, mag)
}

func newMadgwick(t *testing.T) Filter {
	f, err := NewMadgwick(testFreq, 0.1)
	require.NoError(t, err)
	return f
}

func newMahony(t *testing.T) Filter {
	f, err := NewMahony(testFreq, 1.0, 0.1)
	require.NoError(t, err)
	return f
}

var variants = []variant{
	{"madgwick/imu", newMadgwick, updateIMU},
	{"madgwick/ahrs", newMadgwick, updateAHRS},
	{"mahony/imu", newMahony, updateIMU},
	{"mahony/ahrs", newMahony, updateAHRS},
}

func randomVector(r *rand.Rand, scale float64) Vector {
	return Vec((r.Float64()*2-1)*scale, (r.Float64()*2-1)*scale, (r.Float64()*2-1)*scale)
}

func TestUnitNormInvariant(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			f := v.newF(t)
			r := rand.New(rand.NewSource(42))
			for i := 0; i < 5000; i++ {
				gyro := randomVector(r, 4)
				accel := randomVector(r, 20)
				mag := randomVector(r, 60)
				q := v.update(f, gyro, accel, mag)
				require.InDelta(t, 1.0, q.Norm(), 1e-5, "tick %d", i)
			}
			assert.Equal(t, uint64(5000), f.Ticks())
		})
	}
}

func TestIdentityStability(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			f := v.newF(t)
			for i := 0; i < 100; i++ {
				v.update(f, Vector{}, Vec(0, 0, 1), Vec(1, 0, 0))
			}
			assertQuatEqual(t, Identity(), f.Quaternion(), 1e-9)
		})
	}
}

func TestZeroAccelFallsBackToGyroIntegration(t *testing.T) {
	start := FromAxisAngle(Vec(1, 2, 3), 0.8)
	gyro := Vec(0.3, -0.1, 0.7)

	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			f := v.newF(t)
			f.SetQuaternion(start)
			prior := f.Quaternion()

			got := v.update(f, gyro, Vector{}, Vec(0.2, 0.1, -0.4))

			want, ok := Integrate(prior, Rate(prior, gyro), f.SamplePeriod()).Normalized()
			require.True(t, ok)
			assertQuatEqual(t, want, got, 1e-12)
		})
	}
}

func TestZeroAccelLeavesIntegralUntouched(t *testing.T) {
	m, err := NewMahony(testFreq, 1, 0.5)
	require.NoError(t, err)
	m.SetQuaternion(FromAxisAngle(Vec(1, 0, 0), 0.3))

	m.UpdateIMU(Vector{}, Vec(0, 0, 1))
	before := m.IntegralError()
	require.False(t, before.IsZero())

	m.UpdateIMU(Vec(0.1, 0, 0), Vector{})
	assert.Equal(t, before, m.IntegralError())
}

func TestZeroMagMatchesIMUUpdate(t *testing.T) {
	for _, newF := range []func(*testing.T) Filter{newMadgwick, newMahony} {
		ahrs, imu := newF(t), newF(t)
		start := FromAxisAngle(Vec(0, 1, 1), 0.5)
		ahrs.SetQuaternion(start)
		imu.SetQuaternion(start)

		for i := 0; i < 50; i++ {
			gyro := Vec(0.01*float64(i), 0.2, -0.1)
			accel := Vec(0.1, 0.2, 9.8)
			assert.Equal(t, imu.UpdateIMU(gyro, accel), ahrs.UpdateAHRS(gyro, accel, Vector{}))
		}
	}
}

func TestGyroOnlyRotationAboutZ(t *testing.T) {
	const (
		omega = 0.5 // rad/s
		ticks = 200
	)
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			f := v.newF(t)
			for i := 0; i < ticks; i++ {
				v.update(f, Vec(0, 0, omega), Vec(0, 0, 1), Vector{})
			}
			want := omega * ticks * f.SamplePeriod()
			roll, pitch, yaw := f.Quaternion().Euler()
			assert.InDelta(t, want, yaw, 1e-4)
			assert.InDelta(t, 0.0, roll, 1e-9)
			assert.InDelta(t, 0.0, pitch, 1e-9)
		})
	}
}

func TestGyroRotationErrorShrinksWithPeriod(t *testing.T) {
	const (
		omega    = 2.0
		duration = 1.0
	)
	yawError := func(freq float64) float64 {
		f, err := NewMadgwick(freq, 0)
		require.NoError(t, err)
		n := int(duration * freq)
		for i := 0; i < n; i++ {
			f.UpdateIMU(Vec(0, 0, omega), Vec(0, 0, 1))
		}
		_, _, yaw := f.Quaternion().Euler()
		return math.Abs(yaw - omega*duration)
	}

	coarse, fine := yawError(10), yawError(1000)
	assert.Less(t, fine, coarse)
}

func TestTiltCorrectionConverges(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			f := v.newF(t)
			f.SetQuaternion(FromAxisAngle(Vec(1, 1, 0), 0.4))
			for i := 0; i < 3000; i++ {
				v.update(f, Vector{}, Vec(0, 0, 1), Vector{})
			}
			roll, pitch, _ := f.Quaternion().Euler()
			assert.InDelta(t, 0.0, roll, 0.01)
			assert.InDelta(t, 0.0, pitch, 0.01)
		})
	}
}

// newMahonyP runs Mahony as a pure P controller; with Ki>0 the heading loop
// overshoots and is still ringing after a few thousand ticks.
func newMahonyP(t *testing.T) Filter {
	f, err := NewMahony(testFreq, 1.0, 0)
	require.NoError(t, err)
	return f
}

func TestHeadingCorrectionConverges(t *testing.T) {
	for _, newF := range []func(*testing.T) Filter{newMadgwick, newMahonyP} {
		f := newF(t)
		t.Run(string(f.Algorithm()), func(t *testing.T) {
			f.SetQuaternion(FromAxisAngle(Vec(0, 0, 1), 0.5))
			for i := 0; i < 3000; i++ {
				f.UpdateAHRS(Vector{}, Vec(0, 0, 1), Vec(0.6, 0, -0.8))
			}
			_, _, yaw := f.Quaternion().Euler()
			assert.InDelta(t, 0.0, yaw, 0.01)
		})
	}
}

func TestHeadingCorrectionWithIntegralSettles(t *testing.T) {
	f := newMahony(t)
	f.SetQuaternion(FromAxisAngle(Vec(0, 0, 1), 0.5))
	for i := 0; i < 10000; i++ {
		f.UpdateAHRS(Vector{}, Vec(0, 0, 1), Vec(0.6, 0, -0.8))
	}
	_, _, yaw := f.Quaternion().Euler()
	assert.InDelta(t, 0.0, yaw, 0.01)
}

func TestMahonyIntegralPersistence(t *testing.T) {
	tilted := FromAxisAngle(Vec(1, 0, 0), 0.3)
	accel := Vec(0, 0, 1)

	t.Run("ki>0", func(t *testing.T) {
		m, err := NewMahony(testFreq, 1, 0.5)
		require.NoError(t, err)
		m.SetQuaternion(tilted)

		first := m.correctedRate(Vector{}, accel, Vector{})
		second := m.correctedRate(Vector{}, accel, Vector{})
		assert.Greater(t, second.Norm(), first.Norm())
		assert.False(t, m.IntegralError().IsZero())
	})

	t.Run("ki=0", func(t *testing.T) {
		m, err := NewMahony(testFreq, 1, 0)
		require.NoError(t, err)
		m.SetQuaternion(tilted)

		first := m.correctedRate(Vector{}, accel, Vector{})
		second := m.correctedRate(Vector{}, accel, Vector{})
		assert.Equal(t, first, second)
		assert.True(t, m.IntegralError().IsZero())
	})
}

func TestMahonyResetClearsIntegral(t *testing.T) {
	m, err := NewMahony(testFreq, 1, 0.5)
	require.NoError(t, err)
	m.SetQuaternion(FromAxisAngle(Vec(0, 1, 0), 0.3))
	for i := 0; i < 10; i++ {
		m.UpdateIMU(Vector{}, Vec(0, 0, 1))
	}
	require.False(t, m.IntegralError().IsZero())

	m.Reset()
	assert.True(t, m.IntegralError().IsZero())
	assert.Equal(t, Identity(), m.Quaternion())
	assert.Equal(t, uint64(0), m.Ticks())
	kp, ki := m.Gains()
	assert.Equal(t, 1.0, kp)
	assert.Equal(t, 0.5, ki)
}

func TestDeterminism(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			a, b := v.newF(t), v.newF(t)
			r := rand.New(rand.NewSource(7))
			for i := 0; i < 500; i++ {
				gyro, accel, mag := randomVector(r, 2), randomVector(r, 10), randomVector(r, 50)
				require.Equal(t, v.update(a, gyro, accel, mag), v.update(b, gyro, accel, mag))
			}
		})
	}
}

func TestSetQuaternionNormalizes(t *testing.T) {
	f := newMadgwick(t)
	f.SetQuaternion(Quaternion{W: 2})
	assert.Equal(t, Identity(), f.Quaternion())

	f.SetQuaternion(Quaternion{})
	assert.Equal(t, Identity(), f.Quaternion())
}

func TestNewValidatesConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"madgwick defaults", DefaultConfig(AlgorithmMadgwick), nil},
		{"mahony defaults", DefaultConfig(AlgorithmMahony), nil},
		{"unknown", Config{Algorithm: "kalman", SampleFreq: 100}, ErrUnknownAlgorithm},
		{"zero freq", Config{Algorithm: AlgorithmMadgwick}, ErrInvalidSampleFreq},
		{"nan freq", Config{Algorithm: AlgorithmMadgwick, SampleFreq: math.NaN()}, ErrInvalidSampleFreq},
		{"negative beta", Config{Algorithm: AlgorithmMadgwick, SampleFreq: 100, Beta: -1}, ErrNegativeGain},
		{"negative ki", Config{Algorithm: AlgorithmMahony, SampleFreq: 100, Ki: -0.1}, ErrNegativeGain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				assert.Nil(t, f)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cfg.Algorithm, f.Algorithm())
			assert.InDelta(t, 1/tt.cfg.SampleFreq, f.SamplePeriod(), 1e-15)
			assert.Equal(t, Identity(), f.Quaternion())
		})
	}
}

func TestSettersRejectInvalidValues(t *testing.T) {
	m, err := NewMadgwick(testFreq, 0.1)
	require.NoError(t, err)
	assert.ErrorIs(t, m.SetBeta(-0.1), ErrNegativeGain)
	assert.Equal(t, 0.1, m.Beta())
	assert.ErrorIs(t, m.SetSampleFreq(0), ErrInvalidSampleFreq)
	assert.InDelta(t, 0.01, m.SamplePeriod(), 1e-15)

	h, err := NewMahony(testFreq, 1, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, h.SetGains(-1, 0), ErrNegativeGain)
	assert.ErrorIs(t, h.SetSampleFreq(-5), ErrInvalidSampleFreq)
}

func TestParseAlgorithm(t *testing.T) {
	a, err := ParseAlgorithm("mahony")
	require.NoError(t, err)
	assert.Equal(t, AlgorithmMahony, a)

	_, err = ParseAlgorithm("MADGWICK")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestRunMatchesStepwiseUpdates(t *testing.T) {
	obs := []Observation{
		{Gyro: Vec(0.1, 0, 0), Accel: Vec(0, 0, 1)},
		{Gyro: Vec(0, 0.2, 0), Accel: Vec(0, 0.1, 1), Mag: Vec(0.5, 0, -0.8), HasMag: true},
		{Gyro: Vec(0, 0, 0.3), Accel: Vector{}},
		{Gyro: Vec(0.1, 0.1, 0.1), Accel: Vec(0.1, 0, 1), Mag: Vector{}, HasMag: true},
	}

	f := newMahony(t)
	states := Run(f, obs)
	require.Len(t, states, len(obs))

	g := newMahony(t)
	want := []Quaternion{
		g.UpdateIMU(obs[0].Gyro, obs[0].Accel),
		g.UpdateAHRS(obs[1].Gyro, obs[1].Accel, obs[1].Mag),
		g.UpdateIMU(obs[2].Gyro, obs[2].Accel),
		g.UpdateAHRS(obs[3].Gyro, obs[3].Accel, obs[3].Mag),
	}
	if diff := cmp.Diff(want, states, cmpopts.EquateApprox(0, 1e-15)); diff != "" {
		t.Errorf("Run() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, f.Quaternion(), states[len(states)-1])
}

// publishedMahonyIMU is one step of the reference MahonyAHRSupdateIMU with
// twoKp = 2*0.5 and twoKi = 0, written in its half-vector form.
func publishedMahonyIMU(q Quaternion, g, a Vector, freq float64) Quaternion {
	twoKp := 2 * 0.5
	a, _ = a.Normalized()
	halfvx := q.X*q.Z - q.W*q.Y
	halfvy := q.W*q.X + q.Y*q.Z
	halfvz := q.W*q.W - 0.5 + q.Z*q.Z
	halfex := a.Y*halfvz - a.Z*halfvy
	halfey := a.Z*halfvx - a.X*halfvz
	halfez := a.X*halfvy - a.Y*halfvx
	gx := (g.X + twoKp*halfex) * 0.5 / freq
	gy := (g.Y + twoKp*halfey) * 0.5 / freq
	gz := (g.Z + twoKp*halfez) * 0.5 / freq
	out := Quaternion{
		W: q.W + (-q.X*gx - q.Y*gy - q.Z*gz),
		X: q.X + (q.W*gx + q.Y*gz - q.Z*gy),
		Y: q.Y + (q.W*gy - q.X*gz + q.Z*gx),
		Z: q.Z + (q.W*gz + q.X*gy - q.Y*gx),
	}
	out, _ = out.Normalized()
	return out
}

func TestMahonyDefaultGainMatchesPublished(t *testing.T) {
	cfg := DefaultConfig(AlgorithmMahony)
	cfg.SampleFreq = testFreq
	f, err := New(cfg)
	require.NoError(t, err)

	start := FromAxisAngle(Vec(1, 0.5, 0), 0.4)
	f.SetQuaternion(start)
	g, a := Vec(0.05, -0.02, 0.1), Vec(0.1, -0.2, 0.95)

	want := start
	for i := 0; i < 50; i++ {
		want = publishedMahonyIMU(want, g, a, testFreq)
		f.UpdateIMU(g, a)
	}
	assertQuatEqual(t, want, f.Quaternion(), 1e-9)
}
