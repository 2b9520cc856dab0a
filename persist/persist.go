// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package persist implements the per-partition archive format of spec
// §6: a keyed archive of labelled arrays, one file per partition. No
// library in this module's dependency stack reads or writes an
// npz-style zip-of-named-arrays container, so this package builds the
// same shape directly on stdlib archive/zip + encoding/binary: one
// small binary-encoded array per zip entry, keyed by §6's array names.
package persist

import (
	"archive/zip"
	"encoding/binary"
	"io"

	"golang.org/x/exp/slices"

	"github.com/emer/nodenet/activator"
	"github.com/emer/nodenet/elemstore"
	"github.com/emer/nodenet/nbool"
	"github.com/emer/nodenet/nnerr"
	"github.com/emer/nodenet/nnlog"
	"github.com/emer/nodenet/nntype"
	"github.com/emer/nodenet/partition"
	"github.com/emer/nodenet/wmat"
	"github.com/emer/nodenet/xlink"
)

var order = binary.LittleEndian

// requiredKeys lists every array spec §6 calls out as required; Load
// treats a missing one of these as PersistenceMalformed, not a
// gracefully-defaulted miss.
var requiredKeys = []string{
	"allocated_nodes", "allocated_node_offsets", "allocated_elements_to_nodes",
	"allocated_node_parents", "allocated_nodespaces", "allocated_elements_to_activators",
	"allocated_nodespaces_por_activators", "allocated_nodespaces_ret_activators",
	"allocated_nodespaces_sub_activators", "allocated_nodespaces_sur_activators",
	"allocated_nodespaces_cat_activators", "allocated_nodespaces_exp_activators",
	"allocated_nodespaces_sampling_activators",
	"w_data", "w_indices", "w_indptr",
	"a", "g_theta", "g_factor", "g_threshold", "g_amplification", "g_min", "g_max",
	"g_function_selector", "n_function_selector", "g_expect", "g_countdown", "g_wait",
	"sizeinformation",
}

// Save writes p's full state to w as a zip archive of labelled arrays
// (spec §6). Native module instances are not part of the archive -- the
// host re-registers and re-attaches them after Load, the same way the
// host built them in the first place.
func Save(w io.Writer, p *partition.Partition) error {
	p.RLock()
	defer p.RUnlock()
	s := p.Store
	zw := zip.NewWriter(w)

	data, indices, indptr := wmat.ToCSR(p.Mat)

	writers := []func() error{
		func() error { return writeI32(zw, "allocated_nodes", s.AllocatedNodes) },
		func() error { return writeI32(zw, "allocated_node_offsets", s.AllocatedNodeOffsets) },
		func() error { return writeI32(zw, "allocated_elements_to_nodes", s.AllocatedElementsToNodes) },
		func() error { return writeI32(zw, "allocated_node_parents", s.AllocatedNodeParents) },
		func() error { return writeI32(zw, "allocated_nodespaces", s.AllocatedNodespaces) },
		func() error { return writeI32(zw, "allocated_elements_to_activators", s.AllocatedElementsToActvtrs) },
		func() error { return writeI32(zw, "allocated_nodespaces_por_activators", s.NodespacePorActivators) },
		func() error { return writeI32(zw, "allocated_nodespaces_ret_activators", s.NodespaceRetActivators) },
		func() error { return writeI32(zw, "allocated_nodespaces_sub_activators", s.NodespaceSubActivators) },
		func() error { return writeI32(zw, "allocated_nodespaces_sur_activators", s.NodespaceSurActivators) },
		func() error { return writeI32(zw, "allocated_nodespaces_cat_activators", s.NodespaceCatActivators) },
		func() error { return writeI32(zw, "allocated_nodespaces_exp_activators", s.NodespaceExpActivators) },
		func() error {
			return writeI32(zw, "allocated_nodespaces_sampling_activators", s.NodespaceSamplingActivators)
		},
		func() error { return writeF32(zw, "w_data", data) },
		func() error { return writeI32(zw, "w_indices", indices) },
		func() error { return writeI32(zw, "w_indptr", indptr) },
		func() error { return writeF32(zw, "a", s.A) },
		func() error { return writeF32(zw, "g_theta", s.GTheta) },
		func() error { return writeF32(zw, "g_factor", s.GFactor) },
		func() error { return writeF32(zw, "g_threshold", s.GThreshold) },
		func() error { return writeF32(zw, "g_amplification", s.GAmplification) },
		func() error { return writeF32(zw, "g_min", s.GMin) },
		func() error { return writeF32(zw, "g_max", s.GMax) },
		func() error { return writeI8(zw, "g_function_selector", gateFuncsToI8(s.GFunction)) },
		func() error { return writeI8(zw, "n_function_selector", nodeFuncsToI8(s.NFunction)) },
		func() error { return writeF32(zw, "g_expect", s.GExpect) },
		func() error { return writeI16(zw, "g_countdown", s.GCountdown) },
		func() error { return writeI16(zw, "g_wait", s.GWait) },
		func() error {
			return writeI32(zw, "sizeinformation", []int32{int32(s.NoN), int32(s.NoE), int32(s.NoNS)})
		},
		func() error { return writeStrings(zw, "node_labels", s.NodeLabels) },
		func() error { return writeStrings(zw, "nodespace_labels", s.NodespaceLabels) },
	}
	for _, fn := range writers {
		if err := fn(); err != nil {
			return err
		}
	}
	if err := saveInbound(zw, p.Inbound); err != nil {
		return err
	}
	return zw.Close()
}

// Load reads a partition's state from a zip archive built by Save.
// sparse must match the representation chosen when the archive was
// written -- it is not itself persisted (spec §9: the choice is
// partition-creation-time and immutable; the host is expected to know
// it, same as the element/node capacities it pre-declares elsewhere).
func Load(r io.ReaderAt, size int64, id int32, sparse bool) (*partition.Partition, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, nnerr.Wrap(nnerr.PersistenceMalformed, err, "persist: partition %d archive is not a valid zip", id)
	}
	files := indexZip(zr)
	for _, k := range requiredKeys {
		if _, ok := files[k]; !ok {
			return nil, nnerr.New(nnerr.PersistenceMalformed, "persist: partition %d archive missing required key %q", id, k)
		}
	}

	sizeInfo, err := readI32(files, "sizeinformation")
	if err != nil || len(sizeInfo) != 3 {
		return nil, nnerr.New(nnerr.PersistenceMalformed, "persist: partition %d sizeinformation malformed", id)
	}
	noN, noE, noNS := int(sizeInfo[0]), int(sizeInfo[1]), int(sizeInfo[2])

	p := partition.New(id, 0, 0, 0, sparse)
	s := elemstore.NewStore(noN, noE, noNS)
	p.Store = s

	mustI32 := func(key string, dst *[]int32) error {
		v, err := readI32(files, key)
		if err != nil {
			return nnerr.Wrap(nnerr.PersistenceMalformed, err, "persist: partition %d key %q", id, key)
		}
		*dst = v
		return nil
	}
	mustF32 := func(key string, dst *[]float32) error {
		v, err := readF32(files, key)
		if err != nil {
			return nnerr.Wrap(nnerr.PersistenceMalformed, err, "persist: partition %d key %q", id, key)
		}
		*dst = v
		return nil
	}
	mustI16 := func(key string, dst *[]int16) error {
		v, err := readI16(files, key)
		if err != nil {
			return nnerr.Wrap(nnerr.PersistenceMalformed, err, "persist: partition %d key %q", id, key)
		}
		*dst = v
		return nil
	}

	for _, step := range []func() error{
		func() error { return mustI32("allocated_nodes", &s.AllocatedNodes) },
		func() error { return mustI32("allocated_node_offsets", &s.AllocatedNodeOffsets) },
		func() error { return mustI32("allocated_elements_to_nodes", &s.AllocatedElementsToNodes) },
		func() error { return mustI32("allocated_node_parents", &s.AllocatedNodeParents) },
		func() error { return mustI32("allocated_nodespaces", &s.AllocatedNodespaces) },
		func() error { return mustI32("allocated_elements_to_activators", &s.AllocatedElementsToActvtrs) },
		func() error { return mustI32("allocated_nodespaces_por_activators", &s.NodespacePorActivators) },
		func() error { return mustI32("allocated_nodespaces_ret_activators", &s.NodespaceRetActivators) },
		func() error { return mustI32("allocated_nodespaces_sub_activators", &s.NodespaceSubActivators) },
		func() error { return mustI32("allocated_nodespaces_sur_activators", &s.NodespaceSurActivators) },
		func() error { return mustI32("allocated_nodespaces_cat_activators", &s.NodespaceCatActivators) },
		func() error { return mustI32("allocated_nodespaces_exp_activators", &s.NodespaceExpActivators) },
		func() error { return mustI32("allocated_nodespaces_sampling_activators", &s.NodespaceSamplingActivators) },
		func() error { return mustF32("a", &s.A) },
		func() error { return mustF32("g_theta", &s.GTheta) },
		func() error { return mustF32("g_factor", &s.GFactor) },
		func() error { return mustF32("g_threshold", &s.GThreshold) },
		func() error { return mustF32("g_amplification", &s.GAmplification) },
		func() error { return mustF32("g_min", &s.GMin) },
		func() error { return mustF32("g_max", &s.GMax) },
		func() error { return mustF32("g_expect", &s.GExpect) },
		func() error { return mustI16("g_countdown", &s.GCountdown) },
		func() error { return mustI16("g_wait", &s.GWait) },
	} {
		if err := step(); err != nil {
			return nil, err
		}
	}

	gf, err := readI8(files, "g_function_selector")
	if err != nil {
		return nil, nnerr.Wrap(nnerr.PersistenceMalformed, err, "persist: partition %d key %q", id, "g_function_selector")
	}
	s.GFunction = i8ToGateFuncs(gf)
	nf, err := readI8(files, "n_function_selector")
	if err != nil {
		return nil, nnerr.Wrap(nnerr.PersistenceMalformed, err, "persist: partition %d key %q", id, "n_function_selector")
	}
	s.NFunction = i8ToNodeFuncs(nf)

	s.PorLinked = make([]nbool.Bool, noE)
	s.RetLinked = make([]nbool.Bool, noE)
	s.NodesLastChanged = make([]int64, noN)
	for i := range s.NodesLastChanged {
		s.NodesLastChanged[i] = -1
	}
	s.NodespacesContentsLastChanged = make([]int64, noNS)
	for i := range s.NodespacesContentsLastChanged {
		if s.AllocatedNodespaces[i] != 0 || i == 0 {
			s.NodespacesContentsLastChanged[i] = 0
		} else {
			s.NodespacesContentsLastChanged[i] = -1
		}
	}

	if labels, err := readStrings(files, "node_labels"); err == nil {
		s.NodeLabels = labels
	} else {
		nnlog.Warnf("persist: partition %d missing optional key node_labels, defaulting to empty", id)
		s.NodeLabels = make([]string, noN)
	}
	if labels, err := readStrings(files, "nodespace_labels"); err == nil {
		s.NodespaceLabels = labels
	} else {
		nnlog.Warnf("persist: partition %d missing optional key nodespace_labels, defaulting to empty", id)
		s.NodespaceLabels = make([]string, noNS)
	}

	wData, err := readF32(files, "w_data")
	if err != nil {
		return nil, nnerr.Wrap(nnerr.PersistenceMalformed, err, "persist: partition %d key w_data", id)
	}
	wIndices, err := readI32(files, "w_indices")
	if err != nil {
		return nil, nnerr.Wrap(nnerr.PersistenceMalformed, err, "persist: partition %d key w_indices", id)
	}
	wIndptr, err := readI32(files, "w_indptr")
	if err != nil {
		return nil, nnerr.Wrap(nnerr.PersistenceMalformed, err, "persist: partition %d key w_indptr", id)
	}
	p.Mat = wmat.FromCSR(noE, wData, wIndices, wIndptr, sparse)

	inbound, err := loadInbound(files, id)
	if err != nil {
		return nil, err
	}
	p.Inbound = inbound

	rebuildIOIndices(s)
	p.HasPipeOrLSTM, p.HasActivators, p.HasSamplingActivators = derivedCapabilities(s)
	activator.RebuildLinkedFlags(s, p.Mat)
	activator.ComputeGFactor(s)
	p.PorRetDirty = false

	return p, nil
}

// rebuildIOIndices restores sensor_indices/actuator_indices (spec §3),
// which CreateNode/DeleteNode maintain incrementally but which the
// archive itself does not carry.
func rebuildIOIndices(s *elemstore.Store) {
	var sensors, actuators []int32
	for nodeID := 0; nodeID < s.NoN; nodeID++ {
		switch nntype.NodeType(s.AllocatedNodes[nodeID]) {
		case nntype.Sensor:
			sensors = append(sensors, s.AllocatedNodeOffsets[nodeID])
		case nntype.Actuator:
			actuators = append(actuators, s.AllocatedNodeOffsets[nodeID])
		}
	}
	slices.Sort(sensors)
	slices.Sort(actuators)
	s.SensorIndices = sensors
	s.ActuatorIndices = actuators
}

// derivedCapabilities recomputes the gating flags CreateNode and
// SetNodespaceGatetypeActivator keep up to date incrementally in a live
// partition -- they are not part of the archive, so a freshly-loaded
// partition has to rescan for them once instead of waiting for the next
// edit to set them.
func derivedCapabilities(s *elemstore.Store) (hasPipeOrLSTM, hasActivators, hasSampling bool) {
	for nodeID := 0; nodeID < s.NoN; nodeID++ {
		switch nntype.NodeType(s.AllocatedNodes[nodeID]) {
		case nntype.Pipe, nntype.LSTM:
			hasPipeOrLSTM = true
		}
	}
	for ns := 0; ns < s.NoNS; ns++ {
		if s.NodespacePorActivators[ns] != 0 || s.NodespaceRetActivators[ns] != 0 ||
			s.NodespaceSubActivators[ns] != 0 || s.NodespaceSurActivators[ns] != 0 ||
			s.NodespaceCatActivators[ns] != 0 || s.NodespaceExpActivators[ns] != 0 ||
			s.NodespaceSamplingActivators[ns] != 0 {
			hasActivators = true
		}
		if s.NodespaceSamplingActivators[ns] != 0 {
			hasSampling = true
		}
	}
	return
}

func gateFuncsToI8(v []nntype.GateFunc) []int8 {
	out := make([]int8, len(v))
	for i, g := range v {
		out[i] = int8(g)
	}
	return out
}

func i8ToGateFuncs(v []int8) []nntype.GateFunc {
	out := make([]nntype.GateFunc, len(v))
	for i, g := range v {
		out[i] = nntype.GateFunc(g)
	}
	return out
}

func nodeFuncsToI8(v []nntype.NodeFunc) []int8 {
	out := make([]int8, len(v))
	for i, n := range v {
		out[i] = int8(n)
	}
	return out
}

func i8ToNodeFuncs(v []int8) []nntype.NodeFunc {
	out := make([]nntype.NodeFunc, len(v))
	for i, n := range v {
		out[i] = nntype.NodeFunc(n)
	}
	return out
}

func saveInbound(zw *zip.Writer, m *xlink.Manager) error {
	if m == nil || len(m.Blocks) == 0 {
		return nil
	}
	var pids, fromLens, toLens []int32
	var fromElems, toElems []int32
	var weights []float32
	for pid, b := range m.Blocks {
		pids = append(pids, pid)
		fromLens = append(fromLens, int32(len(b.FromElems)))
		toLens = append(toLens, int32(len(b.ToElems)))
		fromElems = append(fromElems, b.FromElems...)
		toElems = append(toElems, b.ToElems...)
		for _, row := range b.W {
			weights = append(weights, row...)
		}
	}
	for _, fn := range []func() error{
		func() error { return writeI32(zw, "inlink_pids", pids) },
		func() error { return writeI32(zw, "inlink_from_lengths", fromLens) },
		func() error { return writeI32(zw, "inlink_to_lengths", toLens) },
		func() error { return writeI32(zw, "inlink_from_elements", fromElems) },
		func() error { return writeI32(zw, "inlink_to_elements", toElems) },
		func() error { return writeF32(zw, "inlink_weights", weights) },
	} {
		if err := fn(); err != nil {
			return err
		}
	}
	return nil
}

func loadInbound(files map[string]*zip.File, id int32) (*xlink.Manager, error) {
	m := xlink.NewManager()
	pids, err := readI32(files, "inlink_pids")
	if err != nil {
		nnlog.Warnf("persist: partition %d has no inter-partition link blocks", id)
		return m, nil
	}
	fromLens, err1 := readI32(files, "inlink_from_lengths")
	toLens, err2 := readI32(files, "inlink_to_lengths")
	fromElems, err3 := readI32(files, "inlink_from_elements")
	toElems, err4 := readI32(files, "inlink_to_elements")
	weights, err5 := readF32(files, "inlink_weights")
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		return nil, nnerr.New(nnerr.PersistenceMalformed, "persist: partition %d inter-partition link block keys inconsistent", id)
	}
	fromAt, toAt, wAt := 0, 0, 0
	for i, pid := range pids {
		fn, tn := int(fromLens[i]), int(toLens[i])
		b := &xlink.Block{
			SrcPartition: pid,
			FromElems:    append([]int32{}, fromElems[fromAt:fromAt+fn]...),
			ToElems:      append([]int32{}, toElems[toAt:toAt+tn]...),
		}
		b.W = make([][]float32, tn)
		for r := 0; r < tn; r++ {
			b.W[r] = append([]float32{}, weights[wAt:wAt+fn]...)
			wAt += fn
		}
		m.Blocks[pid] = b
		fromAt += fn
		toAt += tn
	}
	return m, nil
}
