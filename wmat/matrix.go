// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package wmat implements C2, the weight matrix: a square NoE x NoE
// matrix where row = slot (destination) element and column = gate
// (source) element (spec §3, §4.2). Dense and sparse (CSR) variants
// satisfy the same Matrix interface; the choice is made once at
// partition-creation time and never changes (spec §9 design notes).
package wmat

import "github.com/emer/nodenet/nnerr"

// Matrix is satisfied by both the dense and CSR-sparse implementations.
// Every method treats index 0 (the invariant-I4 sentinel element) like
// any other index -- callers are responsible for never wiring it up as a
// live gate or slot.
type Matrix interface {
	// Size returns NoE, the matrix's current dimension.
	Size() int

	// SetWeight sets W[slotElem, gateElem] = w. slotElem is the row
	// (destination/input side), gateElem is the column (source/output
	// side), matching spec §3's Link definition `W[slot_elem, gate_elem]`.
	SetWeight(slotElem, gateElem int32, w float32) error

	// GetWeight returns W[slotElem, gateElem], 0 if never set.
	GetWeight(slotElem, gateElem int32) float32

	// RowHasNonZero reports whether row (slot) elem has any non-zero
	// column -- used by C5 (activator.RebuildLinkedFlags) to compute
	// por_linked/ret_linked (spec §4.4.1).
	RowHasNonZero(slotElem int32) bool

	// MulAdd computes out[i] = aIn[i] + sum_j W[i,j]*a[j] for every i,
	// the linear-propagation contract of spec §4.2. out must not alias a:
	// rows are written while later rows still read a.
	MulAdd(aIn, a, out []float32)

	// ZeroRowsAndCols zeros every entry in the given rows and the given
	// columns (same index set) -- used by delete_node (spec §3).
	ZeroRowsAndCols(idx []int32)

	// SubmatrixDense extracts W[rows, cols] as a dense row-major block,
	// for get_link_weights (spec §4.6).
	SubmatrixDense(rows, cols []int32) [][]float32

	// BulkSet assigns W[rows[i], cols[j]] = block[i][j] for all i,j, for
	// set_link_weights (spec §4.6). Returns ShapeMismatch if block's
	// shape does not match (len(rows), len(cols)).
	BulkSet(rows, cols []int32, block [][]float32) error

	// Grow extends the matrix to newSize x newSize, preserving the
	// existing top-left block verbatim (spec §4.1 growth policy).
	Grow(newSize int)
}

func outOfRange(row, col int32, n int) error {
	return nnerr.New(nnerr.InvalidID, "matrix index (%d,%d) out of range [0,%d)", row, col, n)
}

func checkBlockShape(rows, cols []int32, block [][]float32) error {
	if len(block) != len(rows) {
		return nnerr.New(nnerr.ShapeMismatch, "BulkSet: block has %d rows, want %d", len(block), len(rows))
	}
	for i, r := range block {
		if len(r) != len(cols) {
			return nnerr.New(nnerr.ShapeMismatch, "BulkSet: block row %d has %d cols, want %d", i, len(r), len(cols))
		}
	}
	return nil
}
