// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package engine implements C8, the scheduler: the two-phase tick
// ordering across every partition and native module (spec §4.8), plus
// the net step API's modulator table (spec §6, SPEC_FULL §3).
package engine

import (
	"sync"

	"github.com/emer/nodenet/elemstore"
	"github.com/emer/nodenet/nnerr"
	"github.com/emer/nodenet/nntimer"
	"github.com/emer/nodenet/partition"
)

// ModulatorTable holds the engine-wide named scalar values native
// modules read and write in step 5 of the tick (get_modulator /
// set_modulator, spec §6).
type ModulatorTable struct {
	mu   sync.RWMutex
	vals map[string]float32
}

// NewModulatorTable returns an empty modulator table.
func NewModulatorTable() *ModulatorTable {
	return &ModulatorTable{vals: map[string]float32{}}
}

// Get returns the named modulator's value, 0 if never set.
func (m *ModulatorTable) Get(name string) float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.vals[name]
}

// Set assigns the named modulator's value.
func (m *ModulatorTable) Set(name string, v float32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vals[name] = v
}

// Context owns every partition in a node-net run and drives the tick
// (spec §4.8, §5: "single cooperative scheduler per node-net run").
type Context struct {
	Partitions  map[int32]*partition.Partition
	Modulators  *ModulatorTable
	CurrentStep int64

	// Times accumulates per-phase wall-clock cost across calls to Step
	// (propagate, cross-partition, dispatch, native modules); empty until
	// the first call to Step.
	Times nntimer.Times
}

// NewContext returns an empty scheduling context.
func NewContext() *Context {
	return &Context{
		Partitions: map[int32]*partition.Partition{},
		Modulators: NewModulatorTable(),
		Times:      nntimer.Times{},
	}
}

// AddPartition registers p under its own id.
func (c *Context) AddPartition(p *partition.Partition) {
	c.Partitions[p.ID] = p
}

// GetModulator and SetModulator back the net step API (spec §6).
func (c *Context) GetModulator(name string) float32        { return c.Modulators.Get(name) }
func (c *Context) SetModulator(name string, v float32)      { c.Modulators.Set(name, v) }
func (c *Context) GetCurrentStep() int64                    { return c.CurrentStep }

// Step runs one full tick across every partition (spec §4.8):
//  1. recompile markers (a no-op placeholder here -- this engine has no
//     shader/kernel compile step; the flag is still cleared so
//     has_new_usages reflects "handled").
//  2. propagate, fanned out with sync.WaitGroup (partitions share no
//     mutable state during this phase, spec §5).
//  3. cross-partition contribution, behind the same barrier's far side so
//     every source partition's step-2 propagation has completed first.
//  4. rebuild + dispatch, fanned out the same way.
//  5. native module calls, run sequentially partition by partition (in
//     map iteration order) since they may mutate the shared modulator table.
//  6. increment current_step.
func (c *Context) Step() error {
	for _, p := range c.Partitions {
		p.HasNewUsages = false // no recompile step exists; mark the flag handled
	}

	c.Times.Start("propagate")
	c.fanOut(func(p *partition.Partition) { p.Propagate() })
	c.Times.Stop("propagate")

	c.Times.Start("cross_partition")
	for _, p := range c.Partitions {
		if err := p.ApplyInbound(c.storeOf); err != nil {
			return err
		}
	}
	c.Times.Stop("cross_partition")

	tick := c.CurrentStep + 1
	c.Times.Start("dispatch")
	c.fanOut(func(p *partition.Partition) { p.RebuildAndDispatch(tick) })
	c.Times.Stop("dispatch")

	c.Times.Start("native_modules")
	for _, p := range c.Partitions {
		if err := p.CallNatives(tick); err != nil {
			return err
		}
	}
	c.Times.Stop("native_modules")

	c.CurrentStep = tick
	return nil
}

func (c *Context) storeOf(partitionID int32) (*elemstore.Store, error) {
	p, ok := c.Partitions[partitionID]
	if !ok {
		return nil, nnerr.New(nnerr.InvalidID, "engine: source partition %d not registered", partitionID)
	}
	return p.Store, nil
}

func (c *Context) fanOut(fn func(*partition.Partition)) {
	var wg sync.WaitGroup
	for _, p := range c.Partitions {
		wg.Add(1)
		go func(p *partition.Partition) {
			defer wg.Done()
			fn(p)
		}(p)
	}
	wg.Wait()
}
