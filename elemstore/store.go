// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package elemstore implements C1, the element store: contiguous
// per-element vectors indexed by element id, the node->element offset
// map, and dynamic growth of both. This is the per-partition data layout
// spec §3/§4.1 describes; everything else in the engine indexes into
// the slices held here.
package elemstore

import (
	"github.com/emer/nodenet/nbool"
	"github.com/emer/nodenet/nnerr"
	"github.com/emer/nodenet/nntype"
	"github.com/goki/ki/ints"
)

// FreeNode is the sentinel value in AllocatedNodes/AllocatedElementsToNodes
// for an unoccupied slot.
const FreeNode int32 = -1

// Store holds every per-element and per-node column for one partition.
// All slices are sized by NoN, NoE or NoNS and grow only by appending --
// existing indices remain valid across growth (spec invariant, §4.1).
type Store struct {
	NoN, NoE, NoNS int

	// --- per-node ---
	AllocatedNodes       []int32 // node type id, or FreeNode
	AllocatedNodeOffsets []int32 // offset of first element, or FreeNode
	AllocatedNodeParents []int32 // owning nodespace id
	NodesLastChanged     []int64 // tick of last mutation, -1 if never

	// --- per-nodespace ---
	AllocatedNodespaces           []int32 // parent nodespace id (root is self-parent)
	NodespacesContentsLastChanged []int64

	NodespacePorActivators      []int32
	NodespaceRetActivators      []int32
	NodespaceSubActivators      []int32
	NodespaceSurActivators      []int32
	NodespaceCatActivators      []int32
	NodespaceExpActivators      []int32
	NodespaceSamplingActivators []int32

	// --- per-element ---
	AllocatedElementsToNodes   []int32 // owning node id, or FreeNode
	AllocatedElementsToActvtrs []int32 // activator element offset, or 0 (slot 0 = passthrough, invariant I4)

	A             []float32
	APrev         []float32
	AIn           []float32
	GTheta        []float32
	GThreshold    []float32
	GAmplification []float32
	GMin          []float32
	GMax          []float32
	GFactor       []float32
	GFunction     []nntype.GateFunc
	NFunction     []nntype.NodeFunc
	GExpect       []float32
	GCountdown    []int16
	GWait         []int16
	PorLinked     []nbool.Bool
	RetLinked     []nbool.Bool

	// --- supplemental (SPEC_FULL §3) ---
	NodeLabels      []string
	NodespaceLabels []string
	SensorIndices   []int32 // sorted element offsets of live Sensor nodes
	ActuatorIndices []int32 // sorted element offsets of live Actuator nodes

	LastAllocatedNode   int32
	LastAllocatedOffset int32
}

// NewStore allocates a store with the given initial capacities. Element 0
// is reserved as the invariant-I4 sentinel (a[0] = 1.0) and is never
// handed out by AllocateNode.
func NewStore(noN, noE, noNS int) *Store {
	s := &Store{
		NoN: noN, NoE: noE, NoNS: noNS,
		LastAllocatedNode:   -1,
		LastAllocatedOffset: 0, // element 0 reserved; first real alloc starts scanning from here
	}
	s.AllocatedNodes = fill32(noN, FreeNode)
	s.AllocatedNodeOffsets = fill32(noN, FreeNode)
	s.AllocatedNodeParents = fill32(noN, 0)
	s.NodesLastChanged = fillI64(noN, -1)

	s.AllocatedNodespaces = make([]int32, noNS)
	s.NodespacesContentsLastChanged = fillI64(noNS, -1)
	s.NodespacePorActivators = make([]int32, noNS)
	s.NodespaceRetActivators = make([]int32, noNS)
	s.NodespaceSubActivators = make([]int32, noNS)
	s.NodespaceSurActivators = make([]int32, noNS)
	s.NodespaceCatActivators = make([]int32, noNS)
	s.NodespaceExpActivators = make([]int32, noNS)
	s.NodespaceSamplingActivators = make([]int32, noNS)
	s.NodespaceLabels = make([]string, noNS)

	s.AllocatedElementsToNodes = fill32(noE, FreeNode)
	s.AllocatedElementsToActvtrs = make([]int32, noE)
	s.A = make([]float32, noE)
	s.APrev = make([]float32, noE)
	s.AIn = make([]float32, noE)
	s.GTheta = make([]float32, noE)
	s.GThreshold = make([]float32, noE)
	s.GAmplification = onesF32(noE)
	s.GMin = fillF32(noE, -1e30)
	s.GMax = fillF32(noE, 1e30)
	s.GFactor = onesF32(noE)
	s.GFunction = make([]nntype.GateFunc, noE)
	s.NFunction = make([]nntype.NodeFunc, noE)
	s.GExpect = make([]float32, noE)
	s.GCountdown = make([]int16, noE)
	s.GWait = make([]int16, noE)
	s.PorLinked = make([]nbool.Bool, noE)
	s.RetLinked = make([]nbool.Bool, noE)
	s.NodeLabels = make([]string, noN)
	s.A[0] = 1.0 // invariant I4: element 0 is the always-on sentinel
	return s
}

func fill32(n int, v int32) []int32 {
	a := make([]int32, n)
	for i := range a {
		a[i] = v
	}
	return a
}

func fillI64(n int, v int64) []int64 {
	a := make([]int64, n)
	for i := range a {
		a[i] = v
	}
	return a
}

func fillF32(n int, v float32) []float32 {
	a := make([]float32, n)
	for i := range a {
		a[i] = v
	}
	return a
}

func onesF32(n int) []float32 { return fillF32(n, 1.0) }

// AllocateNode finds a free node id and a contiguous run of elemCount free
// element offsets, growing either vector if necessary (spec §4.1). Element
// offset 0 is never handed out (reserved sentinel, invariant I4).
func (s *Store) AllocateNode(elemCount int) (nodeID int32, offset int32, err error) {
	nodeID, err = s.findFreeNode()
	if err != nil {
		return 0, 0, err
	}
	offset, err = s.findFreeRun(elemCount)
	if err != nil {
		return 0, 0, err
	}
	return nodeID, offset, nil
}

// findFreeNode implements the node-id allocation policy of §4.1: linear
// scan from last+1, wrap once, then grow by NoN/2.
func (s *Store) findFreeNode() (int32, error) {
	noN := int32(s.NoN)
	if noN == 0 {
		s.GrowNodes(1)
		noN = int32(s.NoN)
	}
	start := s.LastAllocatedNode + 1
	for i := start; i < noN; i++ {
		if s.AllocatedNodes[i] == FreeNode {
			return i, nil
		}
	}
	for i := int32(0); i < start && i < noN; i++ {
		if s.AllocatedNodes[i] == FreeNode {
			return i, nil
		}
	}
	grow := ints.MaxInt(1, s.NoN/2)
	oldNoN := s.NoN
	s.GrowNodes(grow)
	return int32(oldNoN), nil
}

// findFreeRun implements the element-offset allocation policy of §4.1:
// linear first-fit from last+1, wrap once, then grow by
// max(required+1, NoE/2).
func (s *Store) findFreeRun(n int) (int32, error) {
	if n == 0 {
		return 0, nil
	}
	noE := s.NoE
	try := func(start int) int {
		run := 0
		for i := start; i < noE; i++ {
			if i == 0 || s.AllocatedElementsToNodes[i] != FreeNode {
				run = 0
				continue
			}
			run++
			if run == n {
				return i - n + 1
			}
		}
		return -1
	}
	start := int(s.LastAllocatedOffset) + 1
	if off := try(start); off >= 0 {
		return int32(off), nil
	}
	if off := try(1); off >= 0 && off < start {
		return int32(off), nil
	}
	grow := ints.MaxInt(n+1, s.NoE/2)
	oldNoE := s.NoE
	s.GrowElements(grow)
	// after growth, the newly appended region is guaranteed free and
	// contiguous, and large enough since grow >= n+1.
	off := try(oldNoE)
	if off < 0 {
		return 0, nnerr.New(nnerr.CapacityExceeded, "findFreeRun: growth of %d did not yield %d contiguous elements", grow, n)
	}
	return int32(off), nil
}

// CommitAllocation records node -> element-range ownership after the
// caller (partition) has decided to use the ids returned by AllocateNode.
// It is split from AllocateNode so the partition can first validate the
// node type / register it in its own tables, then commit atomically.
func (s *Store) CommitAllocation(nodeID, offset int32, nodeType int32, elemCount int, parent int32) {
	s.AllocatedNodes[nodeID] = nodeType
	s.AllocatedNodeOffsets[nodeID] = offset
	s.AllocatedNodeParents[nodeID] = parent
	for k := 0; k < elemCount; k++ {
		s.AllocatedElementsToNodes[offset+int32(k)] = nodeID
	}
	s.LastAllocatedNode = nodeID
	s.LastAllocatedOffset = offset + int32(elemCount) - 1
}

// FreeNodeElements zeros a node's element range and unmaps it, per the
// delete_node contract (spec §3 lifecycles): elements are zeroed, map
// entries cleared, and last_allocated_node is set to the freed id as a
// reuse hint. Clearing the weight matrix rows/cols is the caller's (C2's)
// responsibility since this package has no matrix reference.
func (s *Store) FreeNodeElements(nodeID int32) (offset int32, count int, err error) {
	if nodeID < 0 || int(nodeID) >= s.NoN || s.AllocatedNodes[nodeID] == FreeNode {
		return 0, 0, nnerr.New(nnerr.InvalidID, "FreeNodeElements: node %d not live", nodeID)
	}
	offset = s.AllocatedNodeOffsets[nodeID]
	typ := s.AllocatedNodes[nodeID]
	count = nntype.ElementsPerType(nntype.NodeType(typ))
	if count < 0 {
		// native module: caller passed count via metadata we don't hold;
		// fall back to scanning the contiguous run owned by this node.
		count = s.countOwned(nodeID, offset)
	}
	for k := 0; k < count; k++ {
		i := offset + int32(k)
		s.AllocatedElementsToNodes[i] = FreeNode
		s.A[i] = 0
		s.APrev[i] = 0
		s.AIn[i] = 0
		s.GTheta[i] = 0
		s.GThreshold[i] = 0
		s.GAmplification[i] = 1
		s.GMin[i] = -1e30
		s.GMax[i] = 1e30
		s.GFactor[i] = 1
		s.GFunction[i] = nntype.Identity
		s.NFunction[i] = nntype.None
		s.GExpect[i] = 0
		s.GCountdown[i] = 0
		s.GWait[i] = 0
		s.PorLinked[i] = nbool.False
		s.RetLinked[i] = nbool.False
		s.AllocatedElementsToActvtrs[i] = 0
	}
	s.AllocatedNodes[nodeID] = FreeNode
	s.AllocatedNodeOffsets[nodeID] = FreeNode
	s.AllocatedNodeParents[nodeID] = 0
	if len(s.NodeLabels) > int(nodeID) {
		s.NodeLabels[nodeID] = ""
	}
	s.LastAllocatedNode = nodeID
	return offset, count, nil
}

func (s *Store) countOwned(nodeID, offset int32) int {
	n := 0
	for i := int(offset); i < s.NoE && s.AllocatedElementsToNodes[i] == nodeID; i++ {
		n++
	}
	return n
}

// GrowNodes appends delta free node slots, preserving every existing index.
func (s *Store) GrowNodes(delta int) {
	if delta <= 0 {
		return
	}
	s.AllocatedNodes = append(s.AllocatedNodes, fill32(delta, FreeNode)...)
	s.AllocatedNodeOffsets = append(s.AllocatedNodeOffsets, fill32(delta, FreeNode)...)
	s.AllocatedNodeParents = append(s.AllocatedNodeParents, fill32(delta, 0)...)
	s.NodesLastChanged = append(s.NodesLastChanged, fillI64(delta, -1)...)
	s.NodeLabels = append(s.NodeLabels, make([]string, delta)...)
	s.NoN += delta
}

// GrowElements appends delta free element slots, preserving every
// existing index. The weight matrix is grown separately by the caller
// (partition), which owns both the store and the matrix and must keep
// their sizes in lock-step.
func (s *Store) GrowElements(delta int) {
	if delta <= 0 {
		return
	}
	s.AllocatedElementsToNodes = append(s.AllocatedElementsToNodes, fill32(delta, FreeNode)...)
	s.AllocatedElementsToActvtrs = append(s.AllocatedElementsToActvtrs, make([]int32, delta)...)
	s.A = append(s.A, make([]float32, delta)...)
	s.APrev = append(s.APrev, make([]float32, delta)...)
	s.AIn = append(s.AIn, make([]float32, delta)...)
	s.GTheta = append(s.GTheta, make([]float32, delta)...)
	s.GThreshold = append(s.GThreshold, make([]float32, delta)...)
	s.GAmplification = append(s.GAmplification, onesF32(delta)...)
	s.GMin = append(s.GMin, fillF32(delta, -1e30)...)
	s.GMax = append(s.GMax, fillF32(delta, 1e30)...)
	s.GFactor = append(s.GFactor, onesF32(delta)...)
	s.GFunction = append(s.GFunction, make([]nntype.GateFunc, delta)...)
	s.NFunction = append(s.NFunction, make([]nntype.NodeFunc, delta)...)
	s.GExpect = append(s.GExpect, make([]float32, delta)...)
	s.GCountdown = append(s.GCountdown, make([]int16, delta)...)
	s.GWait = append(s.GWait, make([]int16, delta)...)
	s.PorLinked = append(s.PorLinked, make([]nbool.Bool, delta)...)
	s.RetLinked = append(s.RetLinked, make([]nbool.Bool, delta)...)
	s.NoE += delta
}

// GrowNodespaces appends delta free nodespace slots.
func (s *Store) GrowNodespaces(delta int) {
	if delta <= 0 {
		return
	}
	s.AllocatedNodespaces = append(s.AllocatedNodespaces, make([]int32, delta)...)
	s.NodespacesContentsLastChanged = append(s.NodespacesContentsLastChanged, fillI64(delta, -1)...)
	s.NodespacePorActivators = append(s.NodespacePorActivators, make([]int32, delta)...)
	s.NodespaceRetActivators = append(s.NodespaceRetActivators, make([]int32, delta)...)
	s.NodespaceSubActivators = append(s.NodespaceSubActivators, make([]int32, delta)...)
	s.NodespaceSurActivators = append(s.NodespaceSurActivators, make([]int32, delta)...)
	s.NodespaceCatActivators = append(s.NodespaceCatActivators, make([]int32, delta)...)
	s.NodespaceExpActivators = append(s.NodespaceExpActivators, make([]int32, delta)...)
	s.NodespaceSamplingActivators = append(s.NodespaceSamplingActivators, make([]int32, delta)...)
	s.NodespaceLabels = append(s.NodespaceLabels, make([]string, delta)...)
	s.NoNS += delta
}

// MarkNodeChanged updates the node's and its parent nodespace's
// last-changed tick (spec §4.1 change tracking).
func (s *Store) MarkNodeChanged(nodeID int32, tick int64) {
	if nodeID < 0 || int(nodeID) >= len(s.NodesLastChanged) {
		return
	}
	s.NodesLastChanged[nodeID] = tick
	parent := s.AllocatedNodeParents[nodeID]
	if int(parent) < len(s.NodespacesContentsLastChanged) {
		s.NodespacesContentsLastChanged[parent] = tick
	}
}
