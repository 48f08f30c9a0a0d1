// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package fusion

import "fmt"

// Defaults from the published Madgwick and Mahony filters.
const (
	DefaultSampleFreq = 512.0 // Hz
	DefaultBeta       = 0.1   // 2 * proportional gain
	DefaultKp         = 0.5   // MahonyAHRS twoKpDef / 2
	DefaultKi         = 0.0
)

// Config selects and tunes a filter. Beta applies to Madgwick, Kp and Ki to
// Mahony; the unused gains are ignored.
type Config struct {
	Algorithm  Algorithm `json:"algorithm"`
	SampleFreq float64   `json:"sample_freq"`
	Beta       float64   `json:"beta"`
	Kp         float64   `json:"kp"`
	Ki         float64   `json:"ki"`
}

// DefaultConfig returns the default gains for algo.
func DefaultConfig(algo Algorithm) Config {
	return Config{
		Algorithm:  algo,
		SampleFreq: DefaultSampleFreq,
		Beta:       DefaultBeta,
		Kp:         DefaultKp,
		Ki:         DefaultKi,
	}
}

// Validate checks the algorithm name, sample frequency and gains.
func (c Config) Validate() error {
	if _, err := ParseAlgorithm(string(c.Algorithm)); err != nil {
		return err
	}
	if !(c.SampleFreq > 0) {
		return fmt.Errorf("%w: got %v", ErrInvalidSampleFreq, c.SampleFreq)
	}
	if c.Beta < 0 || c.Kp < 0 || c.Ki < 0 {
		return fmt.Errorf("%w: beta=%v kp=%v ki=%v", ErrNegativeGain, c.Beta, c.Kp, c.Ki)
	}
	return nil
}
