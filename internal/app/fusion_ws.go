// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/relabs-tech/inertial_fusion/internal/fusion"
	"github.com/relabs-tech/inertial_fusion/internal/imu"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

// FusionWSMessage is a client request on /ws/fusion.
//
//	configure         retune the session filter (config, use_mag), keeping
//	                  its orientation
//	set_quaternion    seed the session orientation (orientation)
//	update            fuse one sample with the session filter
//	update_stateless  fuse one sample against the quaternion and integral
//	                  carried in the message; session state is untouched
//	                  and Madgwick only accepts the default beta
//	reset             return the session filter to identity
//	state             report the current estimate and filter config
type FusionWSMessage struct {
	Action      string             `json:"action"`
	Config      *fusion.Config     `json:"config,omitempty"`
	UseMag      *bool              `json:"use_mag,omitempty"`
	Sample      *imu.Sample        `json:"sample,omitempty"`
	Orientation *fusion.Quaternion `json:"orientation,omitempty"`
	Quaternion  [4]float32         `json:"quaternion"`
	Integral    [3]float32         `json:"integral"`
}

// FusionWSResponse is sent back for every request.
type FusionWSResponse struct {
	Type       string                `json:"type"` // estimate, stateless, status, error
	Estimate   *orientation.Estimate `json:"estimate,omitempty"`
	Config     *fusion.Config        `json:"config,omitempty"`
	Quaternion *[4]float32           `json:"quaternion,omitempty"`
	Integral   *[3]float32           `json:"integral,omitempty"`
	Message    string                `json:"message,omitempty"`
}

// FusionHandler serves one independent filter per websocket connection.
type FusionHandler struct {
	Defaults fusion.Config
	UseMag   bool
}

// FusionSession holds the filter owned by one websocket connection.
type FusionSession struct {
	Conn      *websocket.Conn
	estimator *orientation.Estimator
}

func (h FusionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	est, err := orientation.NewEstimator(h.Defaults, h.UseMag)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("fusion ws: websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	session := &FusionSession{Conn: conn, estimator: est}
	if err := session.sendStatus(fmt.Sprintf("connected: %s filter at %.1f Hz", h.Defaults.Algorithm, h.Defaults.SampleFreq)); err != nil {
		return
	}

	// Message loop
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("fusion ws: websocket error: %v", err)
			}
			break
		}
		if err := session.handle(data); err != nil {
			break
		}
	}
}

// handle dispatches one client message. The returned error is a failed
// write; the connection is unusable after it.
func (s *FusionSession) handle(data []byte) error {
	var msg FusionWSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return s.sendError(fmt.Sprintf("invalid message: %v", err))
	}

	switch msg.Action {
	case "configure":
		return s.handleConfigure(msg)
	case "set_quaternion":
		return s.handleSetQuaternion(msg)
	case "update":
		return s.handleUpdate(msg)
	case "update_stateless":
		return s.handleUpdateStateless(msg)
	case "reset":
		s.estimator.Reset()
		return s.sendEstimate(s.estimator.Current())
	case "state":
		return s.sendState()
	case "":
		return s.sendError("missing action field")
	default:
		return s.sendError(fmt.Sprintf("unknown action: %s", msg.Action))
	}
}

func (s *FusionSession) handleConfigure(msg FusionWSMessage) error {
	if msg.Config == nil && msg.UseMag == nil {
		return s.sendError("configure needs config or use_mag")
	}
	if msg.Config != nil {
		if err := s.estimator.Reconfigure(*msg.Config); err != nil {
			return s.sendError(err.Error())
		}
	}
	if msg.UseMag != nil {
		s.estimator.SetUseMag(*msg.UseMag)
	}
	return s.sendState()
}

func (s *FusionSession) handleSetQuaternion(msg FusionWSMessage) error {
	if msg.Orientation == nil {
		return s.sendError("set_quaternion needs an orientation")
	}
	q, ok := msg.Orientation.Normalized()
	if !ok {
		return s.sendError("set_quaternion: zero quaternion")
	}
	s.estimator.SetQuaternion(q)
	return s.sendEstimate(s.estimator.Current())
}

func (s *FusionSession) handleUpdate(msg FusionWSMessage) error {
	if msg.Sample == nil {
		return s.sendError("update needs a sample")
	}
	return s.sendEstimate(s.estimator.Update(*msg.Sample))
}

func (s *FusionSession) handleUpdateStateless(msg FusionWSMessage) error {
	if msg.Sample == nil || msg.Config == nil {
		return s.sendError("update_stateless needs config and sample")
	}
	cfg := *msg.Config
	if err := cfg.Validate(); err != nil {
		return s.sendError(err.Error())
	}
	if cfg.Algorithm == fusion.AlgorithmMadgwick && cfg.Beta != fusion.DefaultBeta {
		return s.sendError(fmt.Sprintf("update_stateless: madgwick runs with beta=%v, got %v",
			fusion.DefaultBeta, cfg.Beta))
	}

	q, integral := statelessUpdate(cfg, *msg.Sample, msg.Quaternion, msg.Integral)
	resp := FusionWSResponse{Type: "stateless", Quaternion: &q}
	if cfg.Algorithm == fusion.AlgorithmMahony {
		resp.Integral = &integral
	}
	return s.write(resp)
}

// statelessUpdate runs one tick through the single-precision entry points.
func statelessUpdate(cfg fusion.Config, smp imu.Sample, q [4]float32, integral [3]float32) ([4]float32, [3]float32) {
	g := [3]float32{float32(smp.Gyro.X), float32(smp.Gyro.Y), float32(smp.Gyro.Z)}
	a := [3]float32{float32(smp.Accel.X), float32(smp.Accel.Y), float32(smp.Accel.Z)}
	m := [3]float32{float32(smp.Mag.X), float32(smp.Mag.Y), float32(smp.Mag.Z)}
	freq := float32(cfg.SampleFreq)

	switch {
	case cfg.Algorithm == fusion.AlgorithmMahony && smp.HasMag:
		return fusion.MahonyAHRSUpdate(g[0], g[1], g[2], a[0], a[1], a[2], m[0], m[1], m[2],
			freq, float32(cfg.Kp), float32(cfg.Ki), q, integral)
	case cfg.Algorithm == fusion.AlgorithmMahony:
		return fusion.MahonyIMUUpdate(g[0], g[1], g[2], a[0], a[1], a[2],
			freq, float32(cfg.Kp), float32(cfg.Ki), q, integral)
	case smp.HasMag:
		return fusion.MadgwickAHRSUpdate(g[0], g[1], g[2], a[0], a[1], a[2], m[0], m[1], m[2], freq, q), integral
	default:
		return fusion.MadgwickIMUUpdate(g[0], g[1], g[2], a[0], a[1], a[2], freq, q), integral
	}
}

func (s *FusionSession) sendEstimate(e orientation.Estimate) error {
	return s.write(FusionWSResponse{Type: "estimate", Estimate: &e})
}

func (s *FusionSession) sendState() error {
	e := s.estimator.Current()
	cfg := s.estimator.Config()
	return s.write(FusionWSResponse{Type: "estimate", Estimate: &e, Config: &cfg})
}

func (s *FusionSession) sendStatus(message string) error {
	return s.write(FusionWSResponse{Type: "status", Message: message})
}

func (s *FusionSession) sendError(message string) error {
	return s.write(FusionWSResponse{Type: "error", Message: message})
}

func (s *FusionSession) write(resp FusionWSResponse) error {
	if err := s.Conn.WriteJSON(resp); err != nil {
		log.Printf("fusion ws: write %s failed: %v", resp.Type, err)
		return err
	}
	return nil
}
