// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/relabs-tech/inertial_fusion/internal/config"
	"github.com/relabs-tech/inertial_fusion/internal/fusion"
	"github.com/relabs-tech/inertial_fusion/internal/orientation"
)

// latestEstimate holds the most recent estimate seen on the broker.
type latestEstimate struct {
	mu   sync.RWMutex
	last orientation.Estimate
	have bool
}

func (l *latestEstimate) set(e orientation.Estimate) {
	l.mu.Lock()
	l.last = e
	l.have = true
	l.mu.Unlock()
}

func (l *latestEstimate) get() (orientation.Estimate, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.last, l.have
}

func RunWeb() error {
	cfg := config.Get()
	if cfg == nil {
		return fmt.Errorf("config not initialized")
	}

	// 1) Connect to MQTT broker
	client, err := connectMQTT("web", cfg.MQTTBroker, cfg.MQTTClientIDWeb)
	if err != nil {
		return err
	}
	defer client.Disconnect(250)

	// 2) Track the latest fused estimate
	latest := &latestEstimate{}
	if err := subscribeJSON(client, "web", cfg.TopicQuaternion, latest.set); err != nil {
		return err
	}

	mux := newWebMux(latest, cfg.Fusion(), cfg.FilterUseMag)

	// Static files from ./web as the root
	mux.Handle("/", http.FileServer(http.Dir("web")))

	addr := fmt.Sprintf(":%d", cfg.WebServerPort)
	log.Printf("web: server listening on %s", addr)
	return http.ListenAndServe(addr, mux)
}

// newWebMux wires the JSON API and the interactive fusion websocket.
func newWebMux(latest *latestEstimate, defaults fusion.Config, useMag bool) *http.ServeMux {
	mux := http.NewServeMux()

	// JSON API endpoint: latest estimate from the producer
	mux.HandleFunc("/api/orientation", func(w http.ResponseWriter, r *http.Request) {
		e, ok := latest.get()
		if !ok {
			http.Error(w, "no data yet", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if err := json.NewEncoder(w).Encode(e); err != nil {
			log.Printf("web: json encode error: %v", err)
		}
	})

	// Per-connection filters driven by the browser
	mux.Handle("/ws/fusion", FusionHandler{Defaults: defaults, UseMag: useMag})

	return mux
}
