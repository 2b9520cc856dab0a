// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package partition

import "github.com/emer/nodenet/nntype"

// NodeData is one node's snapshot row (spec §6: get_node_data).
type NodeData struct {
	ID         int32
	Type       int32
	Nodespace  int32
	Label      string
	Offset     int32
	Activations []float32
	Links       []LinkData // populated only when IncludeLinks was set
}

// LinkData is one inbound link into a snapshotted node's elements (slots).
type LinkData struct {
	FromElem, ToElem int32
	Weight           float32
}

// GetNodeData builds a read-only snapshot of the requested nodes (spec
// §6: `get_node_data(nodespace_ids?, ids?, include_links,
// include_followupnodes) -> {nodes, followup_uids}`). nodespaceIDs and
// ids are both optional filters (nil means "no filter on this axis");
// when both are nil every live node is returned. followup_uids collects
// the ids of nodes whose gates link into the returned set's slots (one
// inbound link hop), for a host to pull in as a second snapshot request.
func (p *Partition) GetNodeData(nodespaceIDs, ids []int32, includeLinks, includeFollowupNodes bool) (nodes []NodeData, followupIDs []int32) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	nsFilter := toSet(nodespaceIDs)
	idFilter := toSet(ids)
	followup := map[int32]bool{}

	for nodeID := 0; nodeID < p.Store.NoN; nodeID++ {
		if p.Store.AllocatedNodes[nodeID] == -1 {
			continue
		}
		if idFilter != nil && !idFilter[int32(nodeID)] {
			continue
		}
		parent := p.Store.AllocatedNodeParents[nodeID]
		if nsFilter != nil && !nsFilter[parent] {
			continue
		}
		offset := p.Store.AllocatedNodeOffsets[nodeID]
		typ := p.Store.AllocatedNodes[nodeID]
		n := nntype.ElementsPerType(nntype.NodeType(typ))
		if n < 0 {
			n = p.nativeElemCounts[typ]
		}
		nd := NodeData{
			ID: int32(nodeID), Type: typ, Nodespace: parent, Offset: offset,
		}
		if int(nodeID) < len(p.Store.NodeLabels) {
			nd.Label = p.Store.NodeLabels[nodeID]
		}
		nd.Activations = make([]float32, n)
		for k := 0; k < n; k++ {
			nd.Activations[k] = p.Store.A[offset+int32(k)]
		}
		if includeLinks {
			for k := 0; k < n; k++ {
				slotElem := offset + int32(k)
				for gateElem := int32(0); gateElem < int32(p.Mat.Size()); gateElem++ {
					w := p.Mat.GetWeight(slotElem, gateElem)
					if w == 0 {
						continue
					}
					nd.Links = append(nd.Links, LinkData{FromElem: gateElem, ToElem: slotElem, Weight: w})
					if includeFollowupNodes {
						if from := p.Store.AllocatedElementsToNodes[gateElem]; from != -1 {
							followup[from] = true
						}
					}
				}
			}
		}
		nodes = append(nodes, nd)
	}
	if includeFollowupNodes {
		for id := range followup {
			if idFilter == nil || !idFilter[id] {
				followupIDs = append(followupIDs, id)
			}
		}
	}
	return nodes, followupIDs
}

func toSet(ids []int32) map[int32]bool {
	if ids == nil {
		return nil
	}
	s := make(map[int32]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}

// HasNodespaceChanges reports whether ns or any node in it changed after
// sinceStep (spec §6).
func (p *Partition) HasNodespaceChanges(ns int32, sinceStep int64) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if int(ns) >= len(p.Store.NodespacesContentsLastChanged) {
		return false
	}
	return p.Store.NodespacesContentsLastChanged[ns] > sinceStep
}

// GetNodespaceChanges returns the ids of every node in ns that changed
// after sinceStep (spec §6).
func (p *Partition) GetNodespaceChanges(ns int32, sinceStep int64) []int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var out []int32
	for nodeID := 0; nodeID < p.Store.NoN; nodeID++ {
		if p.Store.AllocatedNodes[nodeID] == -1 || p.Store.AllocatedNodeParents[nodeID] != ns {
			continue
		}
		if p.Store.NodesLastChanged[nodeID] > sinceStep {
			out = append(out, int32(nodeID))
		}
	}
	return out
}
