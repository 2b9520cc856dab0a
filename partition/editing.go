// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package partition

import (
	"github.com/emer/nodenet/activator"
	"github.com/emer/nodenet/nnerr"
	"github.com/emer/nodenet/nntype"
)

func (p *Partition) liveElement(e int32) bool {
	return e >= 0 && int(e) < p.Store.NoE && p.Store.AllocatedElementsToNodes[e] != -1
}

// CreateLink sets W[toElem, fromElem] = w (spec §3: W[slot_elem, gate_elem];
// slot = destination, gate = source). Touching a Pipe node's por/ret row
// marks por_ret_dirty so the next tick rebuilds porLinked/retLinked
// (invariant 5, spec §9's has_* capability rule).
func (p *Partition) CreateLink(fromElem, toElem int32, w float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setLinkLocked(fromElem, toElem, w)
}

// DeleteLink is CreateLink with weight 0 (there is no separate "unset"
// state in the matrix -- absence and zero weight coincide, spec §4.2).
func (p *Partition) DeleteLink(fromElem, toElem int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.setLinkLocked(fromElem, toElem, 0)
}

// SetLinkWeight is an alias for CreateLink: spec §6 lists both
// create_link and set_link_weight as distinct editing-API entries but
// gives them the same effect on W.
func (p *Partition) SetLinkWeight(fromElem, toElem int32, w float32) error {
	return p.CreateLink(fromElem, toElem, w)
}

func (p *Partition) setLinkLocked(fromElem, toElem int32, w float32) error {
	if !p.liveElement(fromElem) {
		return nnerr.New(nnerr.InvalidID, "partition %d: element %d not live (gate)", p.ID, fromElem)
	}
	if !p.liveElement(toElem) {
		return nnerr.New(nnerr.InvalidID, "partition %d: element %d not live (slot)", p.ID, toElem)
	}
	if err := p.Mat.SetWeight(toElem, fromElem, w); err != nil {
		return err
	}
	toNode := p.Store.AllocatedElementsToNodes[toElem]
	if toNode != -1 && p.Store.AllocatedNodes[toNode] == int32(nntype.Pipe) {
		off := p.Store.AllocatedNodeOffsets[toNode]
		local := toElem - off
		if local == int32(nntype.Por) || local == int32(nntype.Ret) {
			p.PorRetDirty = true
		}
	}
	p.Store.MarkNodeChanged(toNode, p.CurrentStep)
	return nil
}

// gateParam names the seven per-element scalar parameters spec §4.3/§4.4
// reads: theta, threshold, amplification, min, max, expect, wait.
type gateParam string

const (
	ParamTheta         gateParam = "theta"
	ParamThreshold     gateParam = "threshold"
	ParamAmplification gateParam = "amplification"
	ParamMin           gateParam = "min"
	ParamMax           gateParam = "max"
	ParamExpect        gateParam = "expect"
	ParamWait          gateParam = "wait"
)

// SetNodeGateParameter sets one scalar gate parameter of element elem
// (spec §6 editing API: set_node_gate_parameter).
func (p *Partition) SetNodeGateParameter(elem int32, param gateParam, value float32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.liveElement(elem) {
		return nnerr.New(nnerr.InvalidID, "partition %d: element %d not live", p.ID, elem)
	}
	switch param {
	case ParamTheta:
		p.Store.GTheta[elem] = value
	case ParamThreshold:
		p.Store.GThreshold[elem] = value
	case ParamAmplification:
		p.Store.GAmplification[elem] = value
	case ParamMin:
		p.Store.GMin[elem] = value
	case ParamMax:
		p.Store.GMax[elem] = value
	case ParamExpect:
		p.Store.GExpect[elem] = value
	case ParamWait:
		p.Store.GWait[elem] = int16(value)
	default:
		return nnerr.New(nnerr.InvalidGateOrSlot, "partition %d: unknown gate parameter %q", p.ID, param)
	}
	nodeID := p.Store.AllocatedElementsToNodes[elem]
	p.Store.MarkNodeChanged(nodeID, p.CurrentStep)
	return nil
}

// gateFunctionsByName maps the stable selector names (spec §6's "Gate
// function selector values") to their pinned numeric values.
var gateFunctionsByName = map[string]nntype.GateFunc{
	"identity": nntype.Identity,
	"absolute": nntype.Absolute,
	"sigmoid":  nntype.Sigmoid,
	"tanh":     nntype.Tanh,
	"rect":     nntype.Rect,
	"dist":     nntype.Dist,
}

// SetNodeGatefunctionName sets element elem's gate transfer selector by
// its stable name (spec §6 editing API: set_node_gatefunction_name).
func (p *Partition) SetNodeGatefunctionName(elem int32, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.liveElement(elem) {
		return nnerr.New(nnerr.InvalidID, "partition %d: element %d not live", p.ID, elem)
	}
	gf, ok := gateFunctionsByName[name]
	if !ok {
		return nnerr.New(nnerr.InvalidType, "partition %d: unknown gate function %q", p.ID, name)
	}
	p.Store.GFunction[elem] = gf
	nodeID := p.Store.AllocatedElementsToNodes[elem]
	p.Store.MarkNodeChanged(nodeID, p.CurrentStep)
	return nil
}

// SetNodespaceGatetypeActivator points nodespace ns's gatetype activator
// slot at activatorNodeID's element offset (0 clears it, so node id 0
// cannot be set as an activator), then
// re-derives allocated_elements_to_activators for every Pipe/LSTM node
// currently in ns (spec §4.5: "When set, all Pipe (or LSTM) elements in
// that nodespace have allocated_elements_to_activators[elem] =
// activator_offset").
func (p *Partition) SetNodespaceGatetypeActivator(ns int32, gatetype string, activatorNodeID int32) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.nodespaceLive(ns) {
		return nnerr.New(nnerr.InvalidID, "partition %d: nodespace %d not live", p.ID, ns)
	}
	var offset int32
	if activatorNodeID != 0 {
		if activatorNodeID < 0 || int(activatorNodeID) >= p.Store.NoN || p.Store.AllocatedNodes[activatorNodeID] == -1 {
			return nnerr.New(nnerr.InvalidID, "partition %d: activator node %d not live", p.ID, activatorNodeID)
		}
		offset = p.Store.AllocatedNodeOffsets[activatorNodeID]
	}
	switch gatetype {
	case "por":
		p.Store.NodespacePorActivators[ns] = offset
	case "ret":
		p.Store.NodespaceRetActivators[ns] = offset
	case "sub":
		p.Store.NodespaceSubActivators[ns] = offset
	case "sur":
		p.Store.NodespaceSurActivators[ns] = offset
	case "cat":
		p.Store.NodespaceCatActivators[ns] = offset
	case "exp":
		p.Store.NodespaceExpActivators[ns] = offset
	case "sampling":
		p.Store.NodespaceSamplingActivators[ns] = offset
		p.HasSamplingActivators = p.HasSamplingActivators || offset != 0
	default:
		return nnerr.New(nnerr.InvalidGateOrSlot, "partition %d: unknown activator gatetype %q", p.ID, gatetype)
	}
	if offset != 0 {
		p.HasActivators = true
	}
	p.refreshActivatorMapping(ns)
	return nil
}

// refreshActivatorMapping re-runs the Pipe/LSTM activator-slot assignment
// for every live node currently parented under ns, reflecting a change
// made by SetNodespaceGatetypeActivator to that nodespace's slots.
func (p *Partition) refreshActivatorMapping(ns int32) {
	for nodeID := 0; nodeID < p.Store.NoN; nodeID++ {
		if p.Store.AllocatedNodes[nodeID] == -1 || p.Store.AllocatedNodeParents[nodeID] != ns {
			continue
		}
		offset := p.Store.AllocatedNodeOffsets[nodeID]
		switch nntype.NodeType(p.Store.AllocatedNodes[nodeID]) {
		case nntype.Pipe:
			activator.AssignPipeNode(p.Store, offset, ns)
		case nntype.LSTM:
			activator.AssignLSTMNode(p.Store, offset, ns)
		}
	}
}
