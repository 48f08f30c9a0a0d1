// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package imu

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReplaySource reads samples from a JSON-lines recording, one Sample per
// line. Blank lines and lines starting with '#' are skipped.
type ReplaySource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	line    int
}

// NewReplaySource wraps r. The caller keeps ownership of r.
func NewReplaySource(r io.Reader) *ReplaySource {
	return &ReplaySource{scanner: bufio.NewScanner(r)}
}

// OpenReplay opens a recording on disk.
func OpenReplay(path string) (*ReplaySource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open replay file: %w", err)
	}
	src := NewReplaySource(f)
	src.closer = f
	return src, nil
}

// Next returns the next recorded sample, or io.EOF at the end of the file.
func (s *ReplaySource) Next() (Sample, error) {
	for s.scanner.Scan() {
		s.line++
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var sample Sample
		if err := json.Unmarshal([]byte(line), &sample); err != nil {
			return Sample{}, fmt.Errorf("replay line %d: %w", s.line, err)
		}
		return sample, nil
	}
	if err := s.scanner.Err(); err != nil {
		return Sample{}, fmt.Errorf("error reading replay file: %w", err)
	}
	return Sample{}, io.EOF
}

func (s *ReplaySource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ReadAll drains src into memory.
func ReadAll(src Source) ([]Sample, error) {
	var samples []Sample
	for {
		s, err := src.Next()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return samples, err
		}
		samples = append(samples, s)
	}
}

// WriteSamples writes samples in the format ReplaySource reads.
func WriteSamples(w io.Writer, samples []Sample) error {
	enc := json.NewEncoder(w)
	for _, s := range samples {
		if err := enc.Encode(s); err != nil {
			return fmt.Errorf("replay encode: %w", err)
		}
	}
	return nil
}
