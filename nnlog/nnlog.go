// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nnlog is a thin wrapper over the standard log package. The
// pack never reaches for a structured/leveled logging library (gosl's
// internal.go logs errors with plain log.Println), so the engine does
// the same, just tagging the handful of levels it actually needs.
package nnlog

import "log"

// Warnf logs a recoverable condition -- used by persist on
// PersistenceMissing (spec §7: recovered to default, warning only).
func Warnf(format string, args ...any) {
	log.Printf("warning: "+format, args...)
}

// Debugf logs a diagnostic message, gated by Verbose.
func Debugf(format string, args ...any) {
	if Verbose {
		log.Printf("debug: "+format, args...)
	}
}

// Verbose enables Debugf output; off by default.
var Verbose = false
