// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package orientation

import (
	"io"
	"log"
	"sync"
)

var (
	debugMu     sync.RWMutex
	debugLogger *log.Logger
)

// SetDebugLogger enables per-tick diagnostics written to w. A nil writer
// turns them off again.
func SetDebugLogger(w io.Writer) {
	debugMu.Lock()
	defer debugMu.Unlock()
	if w == nil {
		debugLogger = nil
		return
	}
	debugLogger = log.New(w, "orientation: ", log.LstdFlags|log.Lmicroseconds)
}

func debugf(format string, args ...any) {
	debugMu.RLock()
	defer debugMu.RUnlock()
	if debugLogger != nil {
		debugLogger.Printf(format, args...)
	}
}
