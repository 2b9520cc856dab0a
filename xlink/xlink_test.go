// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xlink

import (
	"testing"

	"github.com/emer/nodenet/elemstore"
	"github.com/emer/nodenet/nnerr"
)

// TestAddLinkGrowsAndPreservesWeights is spec invariant I8: set-union
// growth of a block's from/to axes must not disturb already-set weights.
func TestAddLinkGrowsAndPreservesWeights(t *testing.T) {
	m := NewManager()
	if err := m.AddLink(2, 5, 10, 0.5); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	// insert a from-element smaller than 5 and a to-element smaller than
	// 10: both axes grow and the first weight must land at its new,
	// re-sorted position (1,1) rather than being clobbered.
	if err := m.AddLink(2, 1, 3, 0.25); err != nil {
		t.Fatalf("AddLink: %v", err)
	}
	b := m.Blocks[2]
	if got := b.W[1][1]; got != 0.5 {
		t.Fatalf("W[1][1] = %v, want 0.5 preserved across growth", got)
	}
	if got := b.W[0][0]; got != 0.25 {
		t.Fatalf("W[0][0] = %v, want 0.25", got)
	}
}

// TestAddLinkOverwritesExisting checks that re-adding the same (from,to)
// pair updates the weight in place without growing the block.
func TestAddLinkOverwritesExisting(t *testing.T) {
	m := NewManager()
	m.AddLink(1, 2, 4, 1.0)
	m.AddLink(1, 2, 4, 2.0)
	b := m.Blocks[1]
	if len(b.FromElems) != 1 || len(b.ToElems) != 1 {
		t.Fatalf("block grew on weight-only update: from=%v to=%v", b.FromElems, b.ToElems)
	}
	if got := b.W[0][0]; got != 2.0 {
		t.Fatalf("W[0][0] = %v, want 2.0 (overwritten)", got)
	}
}

// TestPropagateAccumulatesIntoAIn is spec §4.7: a_in[to] += W . src.a[from]
// for every block, reading the source store's A as given (the scheduler
// owns the ordering guarantee, not this package).
func TestPropagateAccumulatesIntoAIn(t *testing.T) {
	m := NewManager()
	m.AddLink(7, 2, 3, 2.0)
	m.AddLink(7, 4, 3, 0.5)

	dst := elemstore.NewStore(1, 8, 1)
	src := elemstore.NewStore(1, 8, 1)
	src.A[2] = 1.0
	src.A[4] = 4.0

	srcOf := func(partition int32) (*elemstore.Store, error) {
		if partition == 7 {
			return src, nil
		}
		return nil, nil
	}
	if err := m.Propagate(dst, srcOf); err != nil {
		t.Fatalf("Propagate: %v", err)
	}
	want := float32(2.0*1.0 + 0.5*4.0)
	if dst.AIn[3] != want {
		t.Fatalf("dst.AIn[3] = %v, want %v", dst.AIn[3], want)
	}
}

// TestPropagateSourceUnavailable checks the error path wraps as a
// CrossPartitionOrderViolation (spec §7 error taxonomy).
func TestPropagateSourceUnavailable(t *testing.T) {
	m := NewManager()
	m.AddLink(9, 0, 0, 1.0)
	dst := elemstore.NewStore(1, 4, 1)
	srcOf := func(partition int32) (*elemstore.Store, error) {
		return nil, elemstoreMissing
	}
	err := m.Propagate(dst, srcOf)
	if err == nil {
		t.Fatal("Propagate with unavailable source returned nil error")
	}
	if !nnerr.Is(err, nnerr.CrossPartitionOrderViolation) {
		t.Fatalf("Propagate error = %v, want CrossPartitionOrderViolation", err)
	}
}

var elemstoreMissing = &missingPartitionError{}

type missingPartitionError struct{}

func (*missingPartitionError) Error() string { return "partition not found" }
