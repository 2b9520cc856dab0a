// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package partition

import (
	"testing"

	"github.com/emer/nodenet/nntype"
)

// TestRegisterFeedbackLoop is spec §8 scenario 1: a Register node linked
// to itself with weight 1 holds its activation across ticks once seeded
// (a <- a_in + W.a, so a self-loop of weight 1 is a pure hold).
func TestRegisterFeedbackLoop(t *testing.T) {
	p := New(1, 4, 8, 2, false)
	ns, err := p.CreateNodespace(-1)
	if err != nil {
		t.Fatalf("CreateNodespace: %v", err)
	}
	nodeID, offset, err := p.CreateNode(int32(nntype.Register), ns, "r1")
	if err != nil {
		t.Fatalf("CreateNode: %v", err)
	}
	if err := p.CreateLink(offset, offset, 1.0); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	p.Store.A[offset] = 0.75

	for tick := int64(1); tick <= 3; tick++ {
		p.Propagate()
		p.RebuildAndDispatch(tick)
		if got := p.Store.A[offset]; got != 0.75 {
			t.Fatalf("tick %d: A[%d] = %v, want 0.75 held", tick, offset, got)
		}
	}
	_ = nodeID
}

// TestCreateLinkMarksPorRetDirty checks that linking into a Pipe's por
// slot sets PorRetDirty (spec invariant 5's recompute trigger).
func TestCreateLinkMarksPorRetDirty(t *testing.T) {
	p := New(1, 4, 16, 1, false)
	ns, _ := p.CreateNodespace(-1)
	_, srcOffset, _ := p.CreateNode(int32(nntype.Register), ns, "src")
	_, pipeOffset, _ := p.CreateNode(int32(nntype.Pipe), ns, "pipe")
	p.PorRetDirty = false

	porElem := pipeOffset + int32(nntype.Por)
	if err := p.CreateLink(srcOffset, porElem, 0.5); err != nil {
		t.Fatalf("CreateLink: %v", err)
	}
	if !p.PorRetDirty {
		t.Fatal("PorRetDirty = false after linking into a por slot, want true")
	}
}

// TestDeleteNodeZeroesMatrixRow checks that deleting a node clears its
// row/column of W (spec §3 delete_node contract).
func TestDeleteNodeZeroesMatrixRow(t *testing.T) {
	p := New(1, 4, 8, 1, false)
	ns, _ := p.CreateNodespace(-1)
	nodeID, offset, _ := p.CreateNode(int32(nntype.Register), ns, "r")
	p.CreateLink(offset, offset, 0.9)
	if err := p.DeleteNode(nodeID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if got := p.Mat.GetWeight(offset, offset); got != 0 {
		t.Fatalf("GetWeight after delete = %v, want 0", got)
	}
}

// TestDeleteNodespaceRecursive is spec §3: deleting a nodespace deletes
// its member nodes and child nodespaces.
func TestDeleteNodespaceRecursive(t *testing.T) {
	p := New(1, 4, 8, 4, false)
	root, _ := p.CreateNodespace(-1)
	child, _ := p.CreateNodespace(root)
	nodeID, _, _ := p.CreateNode(int32(nntype.Register), child, "r")

	if err := p.DeleteNodespace(root); err != nil {
		t.Fatalf("DeleteNodespace: %v", err)
	}
	if p.Store.AllocatedNodes[nodeID] != -1 {
		t.Fatal("node in deleted child nodespace still live")
	}
	if p.nodespaceLive(child) {
		t.Fatal("child nodespace still live after parent deletion")
	}
}

// TestGroupsRoundTrip is spec §4.6's bulk tensor interface.
func TestGroupsRoundTrip(t *testing.T) {
	p := New(1, 4, 32, 1, false)
	ns, _ := p.CreateNodespace(-1)
	id1, _, _ := p.CreateNode(int32(nntype.Register), ns, "a")
	id2, _, _ := p.CreateNode(int32(nntype.Register), ns, "b")

	if err := p.GroupNodesByIDs(ns, []int32{id1, id2}, "g1", ""); err != nil {
		t.Fatalf("GroupNodesByIDs: %v", err)
	}
	if err := p.SetActivations(ns, "g1", []float32{1.5, 2.5}); err != nil {
		t.Fatalf("SetActivations: %v", err)
	}
	got, err := p.GetActivations(ns, "g1")
	if err != nil {
		t.Fatalf("GetActivations: %v", err)
	}
	if got[0] != 1.5 || got[1] != 2.5 {
		t.Fatalf("GetActivations = %v, want [1.5 2.5]", got)
	}
}

// TestGroupNodesByIDsRejectsDuplicates checks the dedup validation path.
func TestGroupNodesByIDsRejectsDuplicates(t *testing.T) {
	p := New(1, 4, 32, 1, false)
	ns, _ := p.CreateNodespace(-1)
	id1, _, _ := p.CreateNode(int32(nntype.Register), ns, "a")
	if err := p.GroupNodesByIDs(ns, []int32{id1, id1}, "g", ""); err == nil {
		t.Fatal("GroupNodesByIDs with duplicate ids did not error")
	}
}

// TestGetNodeDataFiltersAndCollectsLinks exercises the snapshot API (spec
// §6 get_node_data) including follow-up node collection.
func TestGetNodeDataFiltersAndCollectsLinks(t *testing.T) {
	p := New(1, 4, 16, 1, false)
	ns, _ := p.CreateNodespace(-1)
	src, srcOffset, _ := p.CreateNode(int32(nntype.Register), ns, "src")
	dst, dstOffset, _ := p.CreateNode(int32(nntype.Register), ns, "dst")
	p.CreateLink(srcOffset, dstOffset, 2.0)

	nodes, followups := p.GetNodeData(nil, []int32{dst}, true, true)
	if len(nodes) != 1 || nodes[0].ID != dst {
		t.Fatalf("GetNodeData returned %v, want single node %d", nodes, dst)
	}
	if len(nodes[0].Links) != 1 || nodes[0].Links[0].FromElem != srcOffset {
		t.Fatalf("GetNodeData links = %v, want one link from %d", nodes[0].Links, srcOffset)
	}
	found := false
	for _, f := range followups {
		if f == src {
			found = true
		}
	}
	if !found {
		t.Fatalf("followup ids = %v, want to include source node %d", followups, src)
	}
}

// TestHasNodespaceChangesTracksTick checks the change-tracking API used
// by HasNodespaceChanges/GetNodespaceChanges (spec §6).
func TestHasNodespaceChangesTracksTick(t *testing.T) {
	p := New(1, 4, 8, 1, false)
	ns, _ := p.CreateNodespace(-1)
	nodeID, offset, _ := p.CreateNode(int32(nntype.Register), ns, "r")
	p.CurrentStep = 5
	if err := p.SetNodeGateParameter(offset, ParamTheta, 0.3); err != nil {
		t.Fatalf("SetNodeGateParameter: %v", err)
	}
	if !p.HasNodespaceChanges(ns, 4) {
		t.Fatal("HasNodespaceChanges(ns, 4) = false, want true after a tick-5 change")
	}
	changed := p.GetNodespaceChanges(ns, 4)
	if len(changed) != 1 || changed[0] != nodeID {
		t.Fatalf("GetNodespaceChanges = %v, want [%d]", changed, nodeID)
	}
}

// TestDeleteNodeMarksRealParentNodespaceChanged checks that deleting a
// node stamps its actual parent nodespace, not nodespace 0 -- FreeNodeElements
// clears AllocatedNodeParents[nodeID] to 0, so the change must be recorded
// against the node's parent before that happens.
func TestDeleteNodeMarksRealParentNodespaceChanged(t *testing.T) {
	p := New(1, 4, 8, 2, false)
	root, _ := p.CreateNodespace(-1)
	ns, _ := p.CreateNodespace(root)
	nodeID, _, _ := p.CreateNode(int32(nntype.Register), ns, "r")
	p.CurrentStep = 7

	if err := p.DeleteNode(nodeID); err != nil {
		t.Fatalf("DeleteNode: %v", err)
	}
	if !p.HasNodespaceChanges(ns, 6) {
		t.Fatal("HasNodespaceChanges(ns, 6) = false after deleting a node from ns, want true")
	}
	if p.Store.NodespacesContentsLastChanged[0] == 7 {
		t.Fatal("DeleteNode stamped nodespace 0 instead of the node's real parent nodespace")
	}
}
