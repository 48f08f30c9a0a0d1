// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package sensors

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"strings"
	"time"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
)

// LineSource reads comma separated samples from a byte stream, one per line:
//
//	gx,gy,gz,ax,ay,az[,mx,my,mz]
//
// Gyro rates are in deg/s, acceleration in g and the field in µT.
// Malformed lines are logged and skipped.
type LineSource struct {
	reader *bufio.Reader
	closer io.Closer
	now    func() time.Time
}

// NewLineSource reads samples from r.
func NewLineSource(r io.Reader) *LineSource {
	return &LineSource{reader: bufio.NewReader(r), now: time.Now}
}

// OpenSerialSource opens a serial port and returns a sample source reading
// from it.
func OpenSerialSource(portName string, baudRate int) (*LineSource, error) {
	opts := serial.OpenOptions{
		PortName:              portName,
		BaudRate:              uint(baudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	}

	port, err := serial.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", portName, err)
	}
	log.Printf("sensors: serial port opened on %s at %d baud", portName, baudRate)

	src := NewLineSource(port)
	src.closer = port
	return src, nil
}

// Next blocks until a well-formed line arrives. It returns io.EOF when the
// stream ends.
func (s *LineSource) Next() (imu.Sample, error) {
	for {
		line, err := s.reader.ReadString('\n')
		line = strings.TrimSpace(line)
		if line != "" {
			sample, perr := ParseSampleLine(line)
			if perr == nil {
				sample.Time = s.now()
				return sample, nil
			}
			log.Printf("sensors: skipping line %q: %v", line, perr)
		}
		if err != nil {
			return imu.Sample{}, err
		}
	}
}

func (s *LineSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// ParseSampleLine parses one CSV sample. The returned sample has no time set.
func ParseSampleLine(line string) (imu.Sample, error) {
	fields := strings.Split(line, ",")
	if len(fields) != 6 && len(fields) != 9 {
		return imu.Sample{}, fmt.Errorf("expected 6 or 9 fields, got %d", len(fields))
	}

	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return imu.Sample{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	degToRad := math.Pi / 180
	sample := imu.Sample{
		Gyro:  fusion.Vec(values[0], values[1], values[2]).Scale(degToRad),
		Accel: fusion.Vec(values[3], values[4], values[5]),
	}
	if len(values) == 9 {
		sample.Mag = fusion.Vec(values[6], values[7], values[8])
		sample.HasMag = !sample.Mag.IsZero()
	}
	return sample, nil
}
