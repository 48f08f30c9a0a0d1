// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"math"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
)

// Pose is the canonical representation of orientation for your app, in
// degrees.
type Pose struct {
	Roll  float64 `json:"roll"`
	Pitch float64 `json:"pitch"`
	Yaw   float64 `json:"yaw"`
}

const radToDeg = 180.0 / math.Pi

// ComputePoseFromAccel computes roll and pitch from accelerometer data only.
// Yaw is unobservable from gravity and is set to 0.
//
// Uses simple tilt formulas:
//
//	roll  = atan2(ay, az)
//	pitch = atan2(-ax, sqrt(ay² + az²))
func ComputePoseFromAccel(ax, ay, az float64) Pose {
	rollRad := math.Atan2(ay, az)
	pitchRad := math.Atan2(-ax, math.Sqrt(ay*ay+az*az))

	return Pose{
		Roll:  rollRad * radToDeg,
		Pitch: pitchRad * radToDeg,
		Yaw:   0,
	}
}

// PoseFromQuaternion converts a fused orientation into roll/pitch/yaw
// degrees. Yaw is wrapped to [0, 360).
func PoseFromQuaternion(q fusion.Quaternion) Pose {
	roll, pitch, yaw := q.Euler()
	yawDeg := math.Mod(yaw*radToDeg, 360)
	if yawDeg < 0 {
		yawDeg += 360
	}
	return Pose{
		Roll:  roll * radToDeg,
		Pitch: pitch * radToDeg,
		Yaw:   yawDeg,
	}
}
