// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package nntimer provides a simple wall-clock duration timer based on
// standard time. Accumulates total and average over multiple Start / Stop
// intervals. Used by engine to track per-phase tick cost (propagation,
// cross-partition, dispatch, native modules) without pulling in a metrics
// dependency the rest of the pack never uses.
package nntimer

import "time"

// Time manages the timer accumulated time and count.
type Time struct {

	// the most recent starting time
	St time.Time

	// the total accumulated time
	Total time.Duration

	// the number of start/stops
	N int
}

// Reset resets the overall accumulated Total and N counters and start time to zero.
func (t *Time) Reset() {
	t.St = time.Time{}
	t.Total = 0
	t.N = 0
}

// Start starts the timer.
func (t *Time) Start() {
	t.St = time.Now()
}

// ResetStart resets then starts the timer.
func (t *Time) ResetStart() {
	t.Reset()
	t.Start()
}

// Stop stops the timer and accumulates the latest start - stop interval, and also returns it.
func (t *Time) Stop() time.Duration {
	if t.St.IsZero() {
		return 0
	}
	iv := time.Now().Sub(t.St)
	t.Total += iv
	t.N++
	return iv
}

// Avg returns the average start / stop interval.
func (t *Time) Avg() time.Duration {
	if t.N == 0 {
		return 0
	}
	return t.Total / time.Duration(t.N)
}

// AvgSecs returns the average start / stop interval as a float64 of seconds.
func (t *Time) AvgSecs() float64 {
	if t.N == 0 {
		return 0
	}
	return float64(t.Total) / (float64(t.N) * float64(time.Second))
}

// TotalSecs returns the total start / stop intervals as a float64 of seconds.
func (t *Time) TotalSecs() float64 {
	return float64(t.Total) / float64(time.Second)
}

// Times is a named set of timers, one per tick phase.
type Times map[string]*Time

// Start starts (creating if necessary) the named timer.
func (ts Times) Start(name string) {
	t, ok := ts[name]
	if !ok {
		t = &Time{}
		ts[name] = t
	}
	t.Start()
}

// Stop stops the named timer; no-op if it was never started.
func (ts Times) Stop(name string) {
	if t, ok := ts[name]; ok {
		t.Stop()
	}
}

// Report returns a snapshot of total seconds accumulated per named phase.
func (ts Times) Report() map[string]float64 {
	rep := make(map[string]float64, len(ts))
	for k, t := range ts {
		rep[k] = t.TotalSecs()
	}
	return rep
}
