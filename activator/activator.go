// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package activator implements C5, directional activators: per-nodespace
// activator slots that gate classes of Pipe and LSTM elements (spec
// §4.5).
package activator

import (
	"github.com/emer/nodenet/elemstore"
	"github.com/emer/nodenet/nbool"
	"github.com/emer/nodenet/nntype"
	"github.com/emer/nodenet/wmat"
)

// DirectionalSlot returns the nodespace's activator element offset for
// the given Pipe gate role (0 for Gen, which is never activator-gated).
func DirectionalSlot(store *elemstore.Store, nsID int32, role nntype.PipeSlot) int32 {
	switch role {
	case nntype.Por:
		return store.NodespacePorActivators[nsID]
	case nntype.Ret:
		return store.NodespaceRetActivators[nsID]
	case nntype.Sub:
		return store.NodespaceSubActivators[nsID]
	case nntype.Sur:
		return store.NodespaceSurActivators[nsID]
	case nntype.Cat:
		return store.NodespaceCatActivators[nsID]
	case nntype.Exp:
		return store.NodespaceExpActivators[nsID]
	default:
		return 0
	}
}

// SamplingSlot returns the nodespace's sampling-activator element offset.
func SamplingSlot(store *elemstore.Store, nsID int32) int32 {
	return store.NodespaceSamplingActivators[nsID]
}

// AssignPipeNode maps a Pipe node's six non-gen elements to their
// nodespace's matching directional activator slot (spec §4.5); gen is
// never activator-gated and is left mapped to the always-on sentinel.
func AssignPipeNode(store *elemstore.Store, offset, nsID int32) {
	for r := 0; r < 7; r++ {
		e := offset + int32(r)
		if r == int(nntype.Gen) {
			store.AllocatedElementsToActvtrs[e] = 0
			continue
		}
		store.AllocatedElementsToActvtrs[e] = DirectionalSlot(store, nsID, nntype.PipeSlot(r))
	}
}

// AssignLSTMNode maps all five of an LSTM node's elements to their
// nodespace's sampling-activator slot, which the Sample predicate
// (dispatch.Sample) reads via g_factor.
func AssignLSTMNode(store *elemstore.Store, offset, nsID int32) {
	samp := SamplingSlot(store, nsID)
	for r := 0; r < 5; r++ {
		store.AllocatedElementsToActvtrs[offset+int32(r)] = samp
	}
}

// ComputeGFactor computes g_factor[e] = a[allocated_elements_to_activators[e]]
// for every element, first re-establishing invariant I4 (a[0] == 1) so
// elements mapped to the sentinel slot pass through unchanged (spec §4.5,
// §9 design notes).
func ComputeGFactor(store *elemstore.Store) {
	store.A[0] = 1.0
	for e := 0; e < store.NoE; e++ {
		act := store.AllocatedElementsToActvtrs[e]
		store.GFactor[e] = store.A[act]
	}
}

// RebuildLinkedFlags recomputes por_linked/ret_linked for every live Pipe
// node (spec invariant I2: true iff any column of that node's por/ret row
// of W is non-zero), propagating the single value to all seven of the
// node's elements (invariant 5).
func RebuildLinkedFlags(store *elemstore.Store, mat wmat.Matrix) {
	for nodeID := 0; nodeID < store.NoN; nodeID++ {
		if store.AllocatedNodes[nodeID] != int32(nntype.Pipe) {
			continue
		}
		offset := store.AllocatedNodeOffsets[nodeID]
		porRow := offset + int32(nntype.Por)
		retRow := offset + int32(nntype.Ret)
		porLinked := nbool.FromBool(mat.RowHasNonZero(porRow))
		retLinked := nbool.FromBool(mat.RowHasNonZero(retRow))
		for r := 0; r < 7; r++ {
			e := offset + int32(r)
			store.PorLinked[e] = porLinked
			store.RetLinked[e] = retLinked
		}
	}
}
