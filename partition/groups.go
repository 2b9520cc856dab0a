// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package partition

import (
	"golang.org/x/exp/slices"

	"github.com/emer/nodenet/nnerr"
	"github.com/emer/nodenet/nntype"
)

var pipeGateByName = map[string]int32{
	"gen": int32(nntype.Gen), "por": int32(nntype.Por), "ret": int32(nntype.Ret),
	"sub": int32(nntype.Sub), "sur": int32(nntype.Sur), "cat": int32(nntype.Cat), "exp": int32(nntype.Exp),
}

// GroupNodesByIDs stores `allocated_node_offsets[ids] + gate_index` under
// (nodespace, name), rejecting duplicate ids (checked with x/exp/slices) (spec
// §4.6's group API, the engine's bulk tensor interface).
func (p *Partition) GroupNodesByIDs(nodespace int32, ids []int32, name, gate string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.nodespaceLive(nodespace) {
		return nnerr.New(nnerr.InvalidID, "partition %d: nodespace %d not live", p.ID, nodespace)
	}
	gateIdx, ok := pipeGateByName[gate]
	if !ok {
		gateIdx = 0 // Register/Sensor/Actuator/Concept nodes address their single/first element
	}
	// dedup validates uniqueness (x/exp/slices.Compact requires sorted
	// input); the stored sequence below preserves the caller's order.
	dedup := slices.Clone(ids)
	slices.Sort(dedup)
	dedup = slices.Compact(dedup)
	if len(dedup) != len(ids) {
		return nnerr.New(nnerr.InvalidGroup, "partition %d: group %q in nodespace %d has duplicate ids", p.ID, name, nodespace)
	}

	ordered := make([]int32, 0, len(ids))
	for _, id := range ids {
		if id < 0 || int(id) >= p.Store.NoN || p.Store.AllocatedNodes[id] == -1 {
			return nnerr.New(nnerr.InvalidID, "partition %d: node %d not live", p.ID, id)
		}
		offset := p.Store.AllocatedNodeOffsets[id]
		n := nntype.ElementsPerType(nntype.NodeType(p.Store.AllocatedNodes[id]))
		if n >= 0 && gateIdx >= int32(n) {
			return nnerr.New(nnerr.InvalidGateOrSlot, "partition %d: node %d has no gate %q", p.ID, id, gate)
		}
		ordered = append(ordered, offset+gateIdx)
	}
	p.groups[groupKey{nodespace, name}] = &Group{Nodespace: nodespace, Elements: ordered}
	return nil
}

func (p *Partition) group(nodespace int32, name string) (*Group, error) {
	g, ok := p.groups[groupKey{nodespace, name}]
	if !ok {
		return nil, nnerr.New(nnerr.InvalidGroup, "partition %d: no group %q in nodespace %d", p.ID, name, nodespace)
	}
	return g, nil
}

// GetActivations returns the current activation of every element in the
// named group, in group order (spec §4.6).
func (p *Partition) GetActivations(nodespace int32, name string) ([]float32, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	g, err := p.group(nodespace, name)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(g.Elements))
	for i, e := range g.Elements {
		out[i] = p.Store.A[e]
	}
	return out, nil
}

// SetActivations writes vals into the named group's elements in order;
// len(vals) must equal the group's size.
func (p *Partition) SetActivations(nodespace int32, name string, vals []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, err := p.group(nodespace, name)
	if err != nil {
		return err
	}
	if len(vals) != len(g.Elements) {
		return nnerr.New(nnerr.ShapeMismatch, "partition %d: SetActivations group %q has %d elements, got %d values", p.ID, name, len(g.Elements), len(vals))
	}
	for i, e := range g.Elements {
		p.Store.A[e] = vals[i]
		p.Store.MarkNodeChanged(p.Store.AllocatedElementsToNodes[e], p.CurrentStep)
	}
	return nil
}

// GetThetas returns g_theta for every element in the named group.
func (p *Partition) GetThetas(nodespace int32, name string) ([]float32, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	g, err := p.group(nodespace, name)
	if err != nil {
		return nil, err
	}
	out := make([]float32, len(g.Elements))
	for i, e := range g.Elements {
		out[i] = p.Store.GTheta[e]
	}
	return out, nil
}

// SetThetas writes vals into g_theta for the named group's elements.
func (p *Partition) SetThetas(nodespace int32, name string, vals []float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	g, err := p.group(nodespace, name)
	if err != nil {
		return err
	}
	if len(vals) != len(g.Elements) {
		return nnerr.New(nnerr.ShapeMismatch, "partition %d: SetThetas group %q has %d elements, got %d values", p.ID, name, len(g.Elements), len(vals))
	}
	for i, e := range g.Elements {
		p.Store.GTheta[e] = vals[i]
		p.Store.MarkNodeChanged(p.Store.AllocatedElementsToNodes[e], p.CurrentStep)
	}
	return nil
}

// GetLinkWeights returns W[toGroup, fromGroup] as a dense
// (len(toGroup), len(fromGroup)) block (spec §4.6: get/set_link_weights
// on the cartesian product of the two groups' element indices).
func (p *Partition) GetLinkWeights(nodespace int32, fromGroup, toGroup string) ([][]float32, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	from, err := p.group(nodespace, fromGroup)
	if err != nil {
		return nil, err
	}
	to, err := p.group(nodespace, toGroup)
	if err != nil {
		return nil, err
	}
	return p.Mat.SubmatrixDense(to.Elements, from.Elements), nil
}

// SetLinkWeights bulk-assigns W[toGroup, fromGroup] = matrix; matrix must
// be shaped (len(toGroup), len(fromGroup)).
func (p *Partition) SetLinkWeights(nodespace int32, fromGroup, toGroup string, matrix [][]float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	from, err := p.group(nodespace, fromGroup)
	if err != nil {
		return err
	}
	to, err := p.group(nodespace, toGroup)
	if err != nil {
		return err
	}
	if err := p.Mat.BulkSet(to.Elements, from.Elements, matrix); err != nil {
		return err
	}
	p.PorRetDirty = true
	return nil
}
