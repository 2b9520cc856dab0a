// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package activator

import (
	"testing"

	"github.com/emer/nodenet/elemstore"
	"github.com/emer/nodenet/nntype"
	"github.com/emer/nodenet/wmat"
)

// TestDirectionalActivatorScenario is spec §8 scenario 4: two Pipes in
// one nodespace, a "sub" activator set for that nodespace with a=0
// zeroes both Pipes' sub-gate g_factor; raising its activation to 1
// restores normal gating.
func TestDirectionalActivatorScenario(t *testing.T) {
	s := elemstore.NewStore(4, 24, 2)

	activatorID, activatorOffset, err := s.AllocateNode(1)
	if err != nil {
		t.Fatalf("AllocateNode activator: %v", err)
	}
	s.CommitAllocation(activatorID, activatorOffset, int32(nntype.Activator), 1, 1)
	s.NodespaceSubActivators[1] = activatorOffset

	var pipeOffsets []int32
	for i := 0; i < 2; i++ {
		nodeID, offset, err := s.AllocateNode(7)
		if err != nil {
			t.Fatalf("AllocateNode pipe %d: %v", i, err)
		}
		s.CommitAllocation(nodeID, offset, int32(nntype.Pipe), 7, 1)
		AssignPipeNode(s, offset, 1)
		pipeOffsets = append(pipeOffsets, offset)
	}

	subRole := int(nntype.Sub)
	for _, off := range pipeOffsets {
		if s.AllocatedElementsToActvtrs[off+int32(subRole)] != activatorOffset {
			t.Fatalf("pipe at %d: sub element not mapped to activator slot", off)
		}
	}

	s.A[activatorOffset] = 0
	ComputeGFactor(s)
	for _, off := range pipeOffsets {
		if g := s.GFactor[off+int32(subRole)]; g != 0 {
			t.Errorf("g_factor = %v with activator=0, want 0 (sub gated off)", g)
		}
	}

	s.A[activatorOffset] = 1
	ComputeGFactor(s)
	for _, off := range pipeOffsets {
		if g := s.GFactor[off+int32(subRole)]; g != 1 {
			t.Errorf("g_factor = %v with activator=1, want 1 (sub gated on)", g)
		}
	}
}

// TestComputeGFactorRestoresSentinel is spec §8 invariant I4: a[0] must
// be 1 at dispatcher time regardless of what ran before.
func TestComputeGFactorRestoresSentinel(t *testing.T) {
	s := elemstore.NewStore(1, 4, 1)
	s.A[0] = 0 // simulate some prior corruption/propagation touching it
	ComputeGFactor(s)
	if s.A[0] != 1.0 {
		t.Fatalf("A[0] = %v after ComputeGFactor, want 1.0", s.A[0])
	}
}

// TestRebuildLinkedFlagsMatchesMatrixRows is spec §8 invariant I2: a
// Pipe's por_linked flags equal any(W[por_slot,:] != 0), propagated to
// all seven elements.
func TestRebuildLinkedFlagsMatchesMatrixRows(t *testing.T) {
	s := elemstore.NewStore(2, 16, 1)
	mat := wmat.NewDense(16)
	nodeID, offset, _ := s.AllocateNode(7)
	s.CommitAllocation(nodeID, offset, int32(nntype.Pipe), 7, 0)
	mat.SetWeight(offset+int32(nntype.Por), 3, 0.5)

	RebuildLinkedFlags(s, mat)

	for r := 0; r < 7; r++ {
		e := offset + int32(r)
		if s.PorLinked[e].IsFalse() {
			t.Errorf("element %d por_linked = false, want true", e)
		}
		if s.RetLinked[e].IsTrue() {
			t.Errorf("element %d ret_linked = true, want false", e)
		}
	}
}
