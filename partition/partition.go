// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package partition implements C6: the unit that aggregates C1-C5 (element
// store, weight matrix, gate transfer, dispatcher, activators), owns the
// nodespace tree, holds the inbound inter-partition link blocks (C7), and
// exposes the public editing/snapshot API (spec §4.6).
package partition

import (
	"sync"

	"github.com/emer/nodenet/activator"
	"github.com/emer/nodenet/dispatch"
	"github.com/emer/nodenet/elemstore"
	"github.com/emer/nodenet/nnerr"
	"github.com/emer/nodenet/nntype"
	"github.com/emer/nodenet/wmat"
	"github.com/emer/nodenet/xlink"
	"golang.org/x/exp/slices"
)

// NativeModule is the callback interface a user-registered node type
// implements; Call runs during step 5 of the tick (spec §4.8), after the
// standard dispatcher has produced this tick's `a`.
type NativeModule interface {
	// ElementCount is the number of consecutive elements this instance
	// occupies, fixed for the lifetime of the node.
	ElementCount() int
	// Call runs the module's per-tick logic; it may read/write its own
	// element range of p's activation vector and any private state it
	// closes over.
	Call(p *Partition, nodeID, offset int32, tick int64) error
}

// Group is a named, nodespace-scoped ordered sequence of element indices
// (spec §4.6's bulk tensor interface).
type Group struct {
	Nodespace int32
	Elements  []int32
}

type groupKey struct {
	nodespace int32
	name      string
}

// Partition aggregates C1-C5, the nodespace tree, inbound cross-partition
// blocks, and the capability flags the scheduler consults in step 1 of
// the tick (spec §4.8, §4.9 invariant 6).
type Partition struct {
	ID int32

	mu sync.RWMutex

	Store  *elemstore.Store
	Mat    wmat.Matrix
	Inbound *xlink.Manager

	natives map[int32]NativeModule // nodeID -> instance, for NativeModuleBase+ types
	nativeElemCounts map[int32]int // registered native type id -> element count

	groups map[groupKey]*Group

	CurrentStep int64

	HasPipeOrLSTM         bool
	HasActivators         bool
	HasSamplingActivators bool
	PorRetDirty           bool
	HasNewUsages          bool
}

// New allocates a partition with the given initial capacities. sparse
// selects the weight-matrix representation; the choice is immutable
// thereafter (spec §4.2, §9).
func New(id int32, noN, noE, noNS int, sparse bool) *Partition {
	var mat wmat.Matrix
	if sparse {
		mat = wmat.NewSparse(noE)
	} else {
		mat = wmat.NewDense(noE)
	}
	p := &Partition{
		ID:      id,
		Store:   elemstore.NewStore(noN, noE, noNS),
		Mat:     mat,
		Inbound: xlink.NewManager(),
		natives: map[int32]NativeModule{},
		nativeElemCounts: map[int32]int{},
		groups:  map[groupKey]*Group{},
	}
	return p
}

// RegisterNativeModuleType declares a native module type's element count
// (spec §3: "native modules declare their own") so CreateNode can allocate
// for it without an instance in hand yet.
func (p *Partition) RegisterNativeModuleType(typeID int32, elemCount int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nativeElemCounts[typeID] = elemCount
}

func (p *Partition) elemCountFor(typ int32) (int, error) {
	if typ >= int32(nntype.NativeModuleBase) {
		n, ok := p.nativeElemCounts[typ]
		if !ok {
			return 0, nnerr.New(nnerr.InvalidType, "partition %d: unregistered native module type %d", p.ID, typ)
		}
		return n, nil
	}
	n := nntype.ElementsPerType(nntype.NodeType(typ))
	if n < 0 {
		return 0, nnerr.New(nnerr.InvalidType, "partition %d: unknown node type %d", p.ID, typ)
	}
	return n, nil
}

// CreateNodespace allocates a nodespace under parent (spec §3's
// nodespace tree; root nodespaces are created with parent == their own
// future id, which the caller learns from the return value).
func (p *Partition) CreateNodespace(parent int32) (int32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, err := p.allocNodespace()
	if err != nil {
		return 0, err
	}
	if parent < 0 {
		parent = id
	}
	p.Store.AllocatedNodespaces[id] = parent
	p.Store.NodespacesContentsLastChanged[id] = p.CurrentStep
	return id, nil
}

func (p *Partition) allocNodespace() (int32, error) {
	for i := 0; i < p.Store.NoNS; i++ {
		if !p.nodespaceLive(int32(i)) {
			return int32(i), nil
		}
	}
	old := p.Store.NoNS
	grow := old/2 + 1
	p.Store.GrowNodespaces(grow)
	return int32(old), nil
}

// nodespaceLive reports whether index ns has ever been assigned a parent
// (root nodespaces self-parent, so the sentinel for "unused" is that the
// slot's parent equals 0 while ns != 0 and it was never set -- we track
// liveness with NodespacesContentsLastChanged instead, which is -1 until
// first use).
func (p *Partition) nodespaceLive(ns int32) bool {
	if int(ns) >= len(p.Store.NodespacesContentsLastChanged) {
		return false
	}
	return p.Store.NodespacesContentsLastChanged[ns] != -1
}

// DeleteNodespace recursively deletes ns's member nodes and child
// nodespaces, then marks ns itself free (spec §3: "deletion is recursive
// over child nodespaces and member nodes").
func (p *Partition) DeleteNodespace(ns int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.nodespaceLive(ns) {
		return nnerr.New(nnerr.InvalidID, "partition %d: nodespace %d not live", p.ID, ns)
	}
	for nodeID := 0; nodeID < p.Store.NoN; nodeID++ {
		if p.Store.AllocatedNodes[nodeID] != elemstore.FreeNode && p.Store.AllocatedNodeParents[nodeID] == ns {
			if err := p.deleteNodeLocked(int32(nodeID)); err != nil {
				return err
			}
		}
	}
	for child := 0; child < p.Store.NoNS; child++ {
		if int32(child) != ns && p.nodespaceLive(int32(child)) && p.Store.AllocatedNodespaces[child] == ns {
			if err := p.deleteNodespaceLocked(int32(child)); err != nil {
				return err
			}
		}
	}
	return p.deleteNodespaceLocked(ns)
}

func (p *Partition) deleteNodespaceLocked(ns int32) error {
	for nodeID := 0; nodeID < p.Store.NoN; nodeID++ {
		if p.Store.AllocatedNodes[nodeID] != elemstore.FreeNode && p.Store.AllocatedNodeParents[nodeID] == ns {
			if err := p.deleteNodeLocked(int32(nodeID)); err != nil {
				return err
			}
		}
	}
	for child := 0; child < p.Store.NoNS; child++ {
		if int32(child) != ns && p.nodespaceLive(int32(child)) && p.Store.AllocatedNodespaces[child] == ns {
			if err := p.deleteNodespaceLocked(int32(child)); err != nil {
				return err
			}
		}
	}
	p.Store.NodespacesContentsLastChanged[ns] = -1
	p.Store.AllocatedNodespaces[ns] = 0
	if int(ns) < len(p.Store.NodespaceLabels) {
		p.Store.NodespaceLabels[ns] = ""
	}
	return nil
}

// CreateNode allocates a node of type typ in nodespace parent (spec §3's
// node lifecycle / §4.1 allocate_node). Pipe and LSTM nodes get their
// node-function selectors, gate defaults and activator mapping wired up
// immediately; Sensor/Actuator nodes are indexed into sensor_indices /
// actuator_indices.
func (p *Partition) CreateNode(typ int32, parent int32, label string) (nodeID, offset int32, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.nodespaceLive(parent) {
		return 0, 0, nnerr.New(nnerr.InvalidID, "partition %d: nodespace %d not live", p.ID, parent)
	}
	n, err := p.elemCountFor(typ)
	if err != nil {
		return 0, 0, err
	}
	nodeID, offset, err = p.Store.AllocateNode(n)
	if err != nil {
		return 0, 0, err
	}
	if p.Store.NoE > p.Mat.Size() {
		p.Mat.Grow(p.Store.NoE)
	}
	p.Store.CommitAllocation(nodeID, offset, typ, n, parent)
	if int(nodeID) < len(p.Store.NodeLabels) {
		p.Store.NodeLabels[nodeID] = label
	}

	switch nntype.NodeType(typ) {
	case nntype.Pipe:
		p.initPipeOrLSTM(offset, n)
		activator.AssignPipeNode(p.Store, offset, parent)
		p.HasPipeOrLSTM = true
		p.PorRetDirty = true
	case nntype.LSTM:
		p.initPipeOrLSTM(offset, n)
		activator.AssignLSTMNode(p.Store, offset, parent)
		p.HasPipeOrLSTM = true
	case nntype.Sensor:
		p.Store.SensorIndices = insertSorted(p.Store.SensorIndices, offset)
	case nntype.Actuator:
		p.Store.ActuatorIndices = insertSorted(p.Store.ActuatorIndices, offset)
	default:
		if typ >= int32(nntype.NativeModuleBase) {
			p.HasNewUsages = true
		}
	}

	p.Store.MarkNodeChanged(nodeID, p.CurrentStep)
	return nodeID, offset, nil
}

func (p *Partition) initPipeOrLSTM(offset int32, n int) {
	for k := 0; k < n; k++ {
		e := offset + int32(k)
		switch {
		case n == 7:
			p.Store.NFunction[e] = nntype.PipeGen + nntype.NodeFunc(k)
			p.Store.GFunction[e] = nntype.Identity
		case n == 5:
			p.Store.NFunction[e] = nntype.LstmGen + nntype.NodeFunc(k)
			p.Store.GFunction[e] = nntype.Identity
		}
	}
}

// CreateNativeNode allocates a native-module node and registers inst as
// its per-tick callback; typ must already be registered via
// RegisterNativeModuleType with inst.ElementCount() elements.
func (p *Partition) CreateNativeNode(typ int32, parent int32, label string, inst NativeModule) (nodeID, offset int32, err error) {
	nodeID, offset, err = p.CreateNode(typ, parent, label)
	if err != nil {
		return 0, 0, err
	}
	p.mu.Lock()
	p.natives[nodeID] = inst
	p.mu.Unlock()
	return nodeID, offset, nil
}

// DeleteNode zeroes the node's elements, zeros its row/column in W,
// strips it from activator tables, sensor_indices/actuator_indices, and
// sets last_allocated_node to its id as a reuse hint (spec §3).
func (p *Partition) DeleteNode(nodeID int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.deleteNodeLocked(nodeID)
}

func (p *Partition) deleteNodeLocked(nodeID int32) error {
	if nodeID < 0 || int(nodeID) >= p.Store.NoN || p.Store.AllocatedNodes[nodeID] == elemstore.FreeNode {
		return nnerr.New(nnerr.InvalidID, "partition %d: node %d not live", p.ID, nodeID)
	}
	typ := p.Store.AllocatedNodes[nodeID]

	// stamp the change against the node's real parent nodespace before
	// FreeNodeElements clears AllocatedNodeParents[nodeID] to 0 -- after
	// that, MarkNodeChanged would credit nodespace 0 instead (spec §4.1/§6
	// change tracking).
	p.Store.MarkNodeChanged(nodeID, p.CurrentStep)

	offset, count, err := p.Store.FreeNodeElements(nodeID)
	if err != nil {
		return err
	}
	idx := make([]int32, count)
	for k := 0; k < count; k++ {
		idx[k] = offset + int32(k)
	}
	p.Mat.ZeroRowsAndCols(idx)

	switch nntype.NodeType(typ) {
	case nntype.Sensor:
		p.Store.SensorIndices = removeSorted(p.Store.SensorIndices, offset)
	case nntype.Actuator:
		p.Store.ActuatorIndices = removeSorted(p.Store.ActuatorIndices, offset)
	}
	delete(p.natives, nodeID)
	return nil
}

func insertSorted(s []int32, v int32) []int32 {
	pos, found := slices.BinarySearch(s, v)
	if found {
		return s
	}
	return slices.Insert(s, pos, v)
}

func removeSorted(s []int32, v int32) []int32 {
	pos, found := slices.BinarySearch(s, v)
	if !found {
		return s
	}
	return slices.Delete(s, pos, pos+1)
}

// ReadDatasources returns the current activation of every live sensor
// element in offset order (spec §6 net step API).
func (p *Partition) ReadDatasources() []float32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]float32, len(p.Store.SensorIndices))
	for i, e := range p.Store.SensorIndices {
		out[i] = p.Store.A[e]
	}
	return out
}

// WriteDatatargets writes vec into the live actuator elements in offset
// order (spec §6 net step API); extra or missing values are ignored /
// left untouched respectively.
func (p *Partition) WriteDatatargets(vec []float32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.Store.ActuatorIndices {
		if i >= len(vec) {
			break
		}
		p.Store.A[e] = vec[i]
	}
}

// Propagate runs step 2 of the tick (spec §4.2, §4.8): a_prev <- a;
// a <- a_in + W.a; a_in <- 0.
func (p *Partition) Propagate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	copy(p.Store.APrev, p.Store.A)
	next := make([]float32, p.Store.NoE)
	p.Mat.MulAdd(p.Store.AIn, p.Store.A, next)
	copy(p.Store.A, next)
	for i := range p.Store.AIn {
		p.Store.AIn[i] = 0
	}
}

// ApplyInbound runs this partition's share of step 3 (spec §4.7, §4.8):
// fold every inbound cross-partition block into a_in, reading each
// source partition's post-propagation `a`.
func (p *Partition) ApplyInbound(srcOf func(partition int32) (*elemstore.Store, error)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Inbound.Propagate(p.Store, srcOf)
}

// RebuildAndDispatch runs step 4 of the tick (spec §4.8): rebuild
// por_linked/ret_linked if dirty, compute g_factor if activators exist,
// then run the node-function dispatcher + gate transfer unit (C4, C3)
// over every element.
func (p *Partition) RebuildAndDispatch(tick int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PorRetDirty {
		activator.RebuildLinkedFlags(p.Store, p.Mat)
		p.PorRetDirty = false
	}
	if p.HasActivators {
		activator.ComputeGFactor(p.Store)
	}
	dispatch.Run(p.Store, tick, p.HasSamplingActivators)
	p.CurrentStep = tick
}

// CallNatives runs step 5 of the tick (spec §4.8): every registered
// native-module instance observes this tick's post-dispatch `a`.
func (p *Partition) CallNatives(tick int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for nodeID, inst := range p.natives {
		offset := p.Store.AllocatedNodeOffsets[nodeID]
		if err := inst.Call(p, nodeID, offset, tick); err != nil {
			return err
		}
	}
	return nil
}

// RLock / RUnlock expose the partition's reader lock for external
// read-only snapshots taken between ticks (spec §5).
func (p *Partition) RLock()   { p.mu.RLock() }
func (p *Partition) RUnlock() { p.mu.RUnlock() }
