// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/kalman"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

// ReplayOptions describes one offline run over a recording.
type ReplayOptions struct {
	Input       string // JSON-lines recording
	CSVOutput   string // "-" or empty writes to stdout
	PlotOutput  string // optional PNG of roll/pitch/yaw
	Calibration string // optional calibration file
	Fusion      fusion.Config
	UseMag      bool

	// PositionOutput, when set, receives a CSV of the rest-aware position
	// track integrated from the accelerometer.
	PositionOutput  string
	StaticThreshold float64 // g; 0 uses kalman.DefaultStaticThreshold
	StaticTime      float64 // s; 0 uses kalman.DefaultStaticTime
}

// RunReplay filters a whole recording and writes the estimate history.
func RunReplay(opts ReplayOptions) error {
	src, err := imu.OpenReplay(opts.Input)
	if err != nil {
		return err
	}
	defer src.Close()

	var source imu.Source = src
	if opts.Calibration != "" {
		cal, err := imu.LoadCalibration(opts.Calibration)
		if err != nil {
			return err
		}
		source = imu.CalibratedSource{Source: src, Calibration: cal}
	}

	samples, err := imu.ReadAll(source)
	if err != nil {
		return err
	}
	if len(samples) == 0 {
		return fmt.Errorf("replay: %s holds no samples", opts.Input)
	}
	log.Printf("replay: loaded %d samples from %s", len(samples), opts.Input)

	estimates, err := orientation.Batch(opts.Fusion, opts.UseMag, samples)
	if err != nil {
		return err
	}

	var out io.Writer = os.Stdout
	if opts.CSVOutput != "" && opts.CSVOutput != "-" {
		f, err := os.Create(opts.CSVOutput)
		if err != nil {
			return fmt.Errorf("replay: create csv: %w", err)
		}
		defer f.Close()
		out = f
	}
	if err := writeEstimatesCSV(out, estimates); err != nil {
		return err
	}

	if opts.PlotOutput != "" {
		if err := plotEstimates(opts.PlotOutput, estimates, opts.Fusion); err != nil {
			return err
		}
		log.Printf("replay: plot written to %s", opts.PlotOutput)
	}

	if opts.PositionOutput != "" {
		if err := writePositionTrack(opts, samples); err != nil {
			return err
		}
	}

	last := estimates[len(estimates)-1]
	log.Printf("replay: final pose R=%.2f P=%.2f Y=%.2f after %d ticks",
		last.Pose.Roll, last.Pose.Pitch, last.Pose.Yaw, last.Ticks)
	return nil
}

var csvHeader = []string{"time", "tick", "qw", "qx", "qy", "qz", "roll", "pitch", "yaw"}

func writeEstimatesCSV(w io.Writer, estimates []orientation.Estimate) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("replay: write csv: %w", err)
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for _, e := range estimates {
		stamp := ""
		if !e.Time.IsZero() {
			stamp = e.Time.UTC().Format(time.RFC3339Nano)
		}
		q := e.Quaternion
		record := []string{
			stamp,
			strconv.FormatUint(e.Ticks, 10),
			f(q.W), f(q.X), f(q.Y), f(q.Z),
			f(e.Pose.Roll), f(e.Pose.Pitch), f(e.Pose.Yaw),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("replay: write csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("replay: write csv: %w", err)
	}
	return nil
}

func writePositionTrack(opts ReplayOptions, samples []imu.Sample) error {
	threshold, staticTime := opts.StaticThreshold, opts.StaticTime
	if threshold == 0 {
		threshold = kalman.DefaultStaticThreshold
	}
	if staticTime == 0 {
		staticTime = kalman.DefaultStaticTime
	}
	track, err := kalman.Track(opts.Fusion.SampleFreq, threshold, staticTime, samples)
	if err != nil {
		return fmt.Errorf("replay: position track: %w", err)
	}

	f, err := os.Create(opts.PositionOutput)
	if err != nil {
		return fmt.Errorf("replay: create position csv: %w", err)
	}
	defer f.Close()
	if err := writePositionCSV(f, track); err != nil {
		return err
	}
	last := track[len(track)-1]
	log.Printf("replay: position track written to %s, final position (%.3f, %.3f, %.3f) m",
		opts.PositionOutput, last.Position.X, last.Position.Y, last.Position.Z)
	return f.Close()
}

var positionHeader = []string{"tick", "phase", "vx", "vy", "vz", "px", "py", "pz"}

func writePositionCSV(w io.Writer, track []kalman.PositionState) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(positionHeader); err != nil {
		return fmt.Errorf("replay: write position csv: %w", err)
	}

	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 6, 64) }
	for i, st := range track {
		record := []string{
			strconv.Itoa(i + 1),
			st.Phase.String(),
			f(st.Velocity.X), f(st.Velocity.Y), f(st.Velocity.Z),
			f(st.Position.X), f(st.Position.Y), f(st.Position.Z),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("replay: write position csv: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("replay: write position csv: %w", err)
	}
	return nil
}

// plotEstimates draws roll, pitch and yaw against time. Recordings without
// timestamps are laid out at the filter sample period.
func plotEstimates(path string, estimates []orientation.Estimate, cfg fusion.Config) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s orientation estimate", cfg.Algorithm)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Angle (deg)"

	start := estimates[0].Time
	seconds := func(i int) float64 {
		if start.IsZero() || estimates[i].Time.IsZero() {
			return float64(i) / cfg.SampleFreq
		}
		return estimates[i].Time.Sub(start).Seconds()
	}

	series := []struct {
		name  string
		value func(orientation.Pose) float64
	}{
		{"roll", func(p orientation.Pose) float64 { return p.Roll }},
		{"pitch", func(p orientation.Pose) float64 { return p.Pitch }},
		{"yaw", func(p orientation.Pose) float64 { return p.Yaw }},
	}
	for i, s := range series {
		pts := make(plotter.XYs, len(estimates))
		for j, e := range estimates {
			pts[j] = plotter.XY{X: seconds(j), Y: s.value(e.Pose)}
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("replay: %s line: %w", s.name, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.name, line)
	}
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("replay: save plot: %w", err)
	}
	return nil
}
