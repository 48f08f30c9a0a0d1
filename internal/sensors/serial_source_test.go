// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSampleLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantMag bool
		wantErr bool
	}{
		{name: "six axis", line: "0,0,180,0,0,1"},
		{name: "nine axis", line: "0, 0, 180, 0, 0, 1, 20, 0, -40", wantMag: true},
		{name: "zero field", line: "0,0,180,0,0,1,0,0,0"},
		{name: "too few", line: "1,2,3", wantErr: true},
		{name: "seven fields", line: "1,2,3,4,5,6,7", wantErr: true},
		{name: "not a number", line: "0,0,x,0,0,1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := ParseSampleLine(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, math.Pi, s.Gyro.Z, 1e-12)
			assert.Equal(t, 1.0, s.Accel.Z)
			assert.Equal(t, tt.wantMag, s.HasMag)
		})
	}
}

func TestLineSourceSkipsBadLines(t *testing.T) {
	stamp := time.Unix(42, 0)
	src := NewLineSource(strings.NewReader("garbage\n\n0,0,0,0,0,1\n0,0,0,0,1,0,5,0,0"))
	src.now = func() time.Time { return stamp }

	first, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, stamp, first.Time)
	assert.Equal(t, 1.0, first.Accel.Z)

	// Final line has no trailing newline.
	second, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 1.0, second.Accel.Y)
	assert.True(t, second.HasMag)

	_, err = src.Next()
	assert.Equal(t, io.EOF, err)
	assert.NoError(t, src.Close())
}
