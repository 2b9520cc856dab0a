// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dispatch implements C4, the node-function dispatcher: the
// Pipe and LSTM element logic of spec §4.4, computed against a
// materialized "shifted view" of the activation vector (spec §4.4,
// design notes §9).
package dispatch

// View materializes the 14-column shifted window described in spec
// §4.4: View.At(i, k) == a[(i-7+k) mod NoE] for k in [0,14). It is
// rebuilt once per tick in a single cache-friendly pass (design notes
// §9 prefer this over aliasing tricks on the rolled buffer), then
// shared by every Pipe/LSTM element's dispatch this tick.
//
// For an element at local gate index r within its owning node (0-6 for
// Pipe, 0-4 for LSTM), View.At(i, 7-r+j) is slot j of that element's
// own node -- in particular View.At(i, 7) is always the element's own
// value, regardless of r, since 7-r+r == 7.
type View struct {
	noE int
	win [][14]float32
}

// Build materializes the shifted view of src (either the activation
// vector or the theta vector) over noE elements.
func Build(src []float32, noE int) *View {
	v := &View{noE: noE, win: make([][14]float32, noE)}
	for i := 0; i < noE; i++ {
		for k := 0; k < 14; k++ {
			idx := mod(i-7+k, noE)
			v.win[i][k] = src[idx]
		}
	}
	return v
}

func mod(i, n int) int {
	if n == 0 {
		return 0
	}
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// At returns column col (0-13) of element i's row.
func (v *View) At(i int32, col int) float32 {
	return v.win[i][col]
}

// Slot returns slot j (0-6) of element i's own node, given i's local
// gate index r within that node.
func (v *View) Slot(i int32, r, j int) float32 {
	return v.At(i, 7-r+j)
}
