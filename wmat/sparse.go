// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wmat

import (
	"golang.org/x/exp/slices"
)

// Sparse is a compressed-sparse-row float32 matrix. Preferred below ~5%
// fill (spec §9). Row i's non-zero columns live in
// Indices[Indptr[i]:Indptr[i+1]], sorted ascending, with values in the
// same positions of Data -- the exact CSR triple persisted as
// w_data/w_indices/w_indptr (spec §6).
type Sparse struct {
	n       int
	Data    []float32
	Indices []int32
	Indptr  []int32 // length n+1
}

// NewSparse allocates an empty n x n sparse matrix.
func NewSparse(n int) *Sparse {
	return &Sparse{n: n, Indptr: make([]int32, n+1)}
}

// NewSparseFromCSR wraps an already-built CSR triple (e.g. loaded from
// persistence) without copying.
func NewSparseFromCSR(n int, data []float32, indices, indptr []int32) *Sparse {
	return &Sparse{n: n, Data: data, Indices: indices, Indptr: indptr}
}

func (s *Sparse) Size() int { return s.n }

func (s *Sparse) rowSlice(row int32) (cols []int32, vals []float32, lo, hi int32) {
	lo, hi = s.Indptr[row], s.Indptr[row+1]
	return s.Indices[lo:hi], s.Data[lo:hi], lo, hi
}

func (s *Sparse) SetWeight(slotElem, gateElem int32, w float32) error {
	if int(slotElem) < 0 || int(slotElem) >= s.n || int(gateElem) < 0 || int(gateElem) >= s.n {
		return outOfRange(slotElem, gateElem, s.n)
	}
	cols, _, lo, _ := s.rowSlice(slotElem)
	pos, found := slices.BinarySearch(cols, gateElem)
	if found {
		s.Data[int(lo)+pos] = w
		return nil
	}
	if w == 0 {
		return nil
	}
	insAt := int(lo) + pos
	s.Indices = insertI32(s.Indices, insAt, gateElem)
	s.Data = insertF32(s.Data, insAt, w)
	for r := slotElem + 1; r <= int32(s.n); r++ {
		s.Indptr[r]++
	}
	return nil
}

func (s *Sparse) GetWeight(slotElem, gateElem int32) float32 {
	if int(slotElem) < 0 || int(slotElem) >= s.n || int(gateElem) < 0 || int(gateElem) >= s.n {
		return 0
	}
	cols, vals, _, _ := s.rowSlice(slotElem)
	pos, found := slices.BinarySearch(cols, gateElem)
	if !found {
		return 0
	}
	return vals[pos]
}

func (s *Sparse) RowHasNonZero(slotElem int32) bool {
	if int(slotElem) < 0 || int(slotElem) >= s.n {
		return false
	}
	cols, vals, _, _ := s.rowSlice(slotElem)
	for i, v := range vals {
		_ = cols[i]
		if v != 0 {
			return true
		}
	}
	return false
}

func (s *Sparse) MulAdd(aIn, a, out []float32) {
	for i := 0; i < s.n; i++ {
		cols, vals, _, _ := s.rowSlice(int32(i))
		sum := aIn[i]
		for k, c := range cols {
			sum += vals[k] * a[c]
		}
		out[i] = sum
	}
}

func (s *Sparse) ZeroRowsAndCols(idx []int32) {
	set := make(map[int32]bool, len(idx))
	for _, i := range idx {
		set[i] = true
	}
	for _, row := range idx {
		if int(row) < 0 || int(row) >= s.n {
			continue
		}
		lo, hi := s.Indptr[row], s.Indptr[row+1]
		s.Indices = append(s.Indices[:lo], s.Indices[hi:]...)
		s.Data = append(s.Data[:lo], s.Data[hi:]...)
		removed := hi - lo
		for r := row + 1; r <= int32(s.n); r++ {
			s.Indptr[r] -= removed
		}
	}
	// zero any remaining column entries belonging to the freed set
	for i := 0; i < s.n; i++ {
		lo, hi := s.Indptr[i], s.Indptr[i+1]
		cols := s.Indices[lo:hi]
		vals := s.Data[lo:hi]
		keepCols := cols[:0]
		keepVals := vals[:0]
		for k, c := range cols {
			if set[c] {
				continue
			}
			keepCols = append(keepCols, c)
			keepVals = append(keepVals, vals[k])
		}
		removed := int32(len(cols) - len(keepCols))
		if removed > 0 {
			tailIdx := append([]int32{}, s.Indices[hi:]...)
			tailDat := append([]float32{}, s.Data[hi:]...)
			s.Indices = append(s.Indices[:lo], append(keepCols, tailIdx...)...)
			s.Data = append(s.Data[:lo], append(keepVals, tailDat...)...)
			for r := int32(i) + 1; r <= int32(s.n); r++ {
				s.Indptr[r] -= removed
			}
		}
	}
}

func (s *Sparse) SubmatrixDense(rows, cols []int32) [][]float32 {
	out := make([][]float32, len(rows))
	for i, r := range rows {
		out[i] = make([]float32, len(cols))
		if int(r) < 0 || int(r) >= s.n {
			continue
		}
		for j, c := range cols {
			out[i][j] = s.GetWeight(r, c)
		}
	}
	return out
}

func (s *Sparse) BulkSet(rows, cols []int32, block [][]float32) error {
	if err := checkBlockShape(rows, cols, block); err != nil {
		return err
	}
	for i, r := range rows {
		for j, c := range cols {
			if err := s.SetWeight(r, c, block[i][j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Sparse) Grow(newSize int) {
	if newSize <= s.n {
		return
	}
	extra := make([]int32, newSize-s.n)
	last := s.Indptr[s.n]
	for i := range extra {
		extra[i] = last
	}
	s.Indptr = append(s.Indptr, extra...)
	s.n = newSize
}

func insertI32(s []int32, at int, v int32) []int32 {
	s = append(s, 0)
	copy(s[at+1:], s[at:])
	s[at] = v
	return s
}

func insertF32(s []float32, at int, v float32) []float32 {
	s = append(s, 0)
	copy(s[at+1:], s[at:])
	s[at] = v
	return s
}
