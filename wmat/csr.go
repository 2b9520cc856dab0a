// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wmat

// ToCSR exports m as a compressed-sparse-row triple, the exact shape the
// persistence format's w_data/w_indices/w_indptr keys use (spec §6),
// regardless of which Matrix implementation m actually is.
func ToCSR(m Matrix) (data []float32, indices, indptr []int32) {
	if s, ok := m.(*Sparse); ok {
		data = append([]float32{}, s.Data...)
		indices = append([]int32{}, s.Indices...)
		indptr = append([]int32{}, s.Indptr...)
		return data, indices, indptr
	}
	n := m.Size()
	indptr = make([]int32, n+1)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			w := m.GetWeight(int32(i), int32(j))
			if w == 0 {
				continue
			}
			data = append(data, w)
			indices = append(indices, int32(j))
		}
		indptr[i+1] = int32(len(data))
	}
	return data, indices, indptr
}

// FromCSR rebuilds a Matrix of size n from a CSR triple (e.g. one just
// read from persistence); sparse selects which concrete representation
// to materialize, matching the partition's own immutable choice (spec
// §4.2, §9).
func FromCSR(n int, data []float32, indices, indptr []int32, sparse bool) Matrix {
	if sparse {
		return NewSparseFromCSR(n, data, indices, indptr)
	}
	d := NewDense(n)
	for i := 0; i < n; i++ {
		lo, hi := indptr[i], indptr[i+1]
		for k := lo; k < hi; k++ {
			d.rows[i][indices[k]] = data[k]
		}
	}
	return d
}
