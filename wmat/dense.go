// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package wmat

// Dense is a plain row-major NoE x NoE matrix. Preferred above ~5% fill
// (spec §9 design notes).
type Dense struct {
	n    int
	rows [][]float32
}

// NewDense allocates a zeroed n x n dense matrix.
func NewDense(n int) *Dense {
	d := &Dense{n: n, rows: make([][]float32, n)}
	for i := range d.rows {
		d.rows[i] = make([]float32, n)
	}
	return d
}

func (d *Dense) Size() int { return d.n }

func (d *Dense) SetWeight(slotElem, gateElem int32, w float32) error {
	if int(slotElem) < 0 || int(slotElem) >= d.n || int(gateElem) < 0 || int(gateElem) >= d.n {
		return outOfRange(slotElem, gateElem, d.n)
	}
	d.rows[slotElem][gateElem] = w
	return nil
}

func (d *Dense) GetWeight(slotElem, gateElem int32) float32 {
	if int(slotElem) < 0 || int(slotElem) >= d.n || int(gateElem) < 0 || int(gateElem) >= d.n {
		return 0
	}
	return d.rows[slotElem][gateElem]
}

func (d *Dense) RowHasNonZero(slotElem int32) bool {
	if int(slotElem) < 0 || int(slotElem) >= d.n {
		return false
	}
	for _, v := range d.rows[slotElem] {
		if v != 0 {
			return true
		}
	}
	return false
}

func (d *Dense) MulAdd(aIn, a, out []float32) {
	for i := 0; i < d.n; i++ {
		sum := aIn[i]
		row := d.rows[i]
		for j := 0; j < d.n; j++ {
			if row[j] != 0 {
				sum += row[j] * a[j]
			}
		}
		out[i] = sum
	}
}

func (d *Dense) ZeroRowsAndCols(idx []int32) {
	set := make(map[int32]bool, len(idx))
	for _, i := range idx {
		set[i] = true
	}
	for _, i := range idx {
		if int(i) < 0 || int(i) >= d.n {
			continue
		}
		for j := range d.rows[i] {
			d.rows[i][j] = 0
		}
	}
	for i := 0; i < d.n; i++ {
		row := d.rows[i]
		for _, j := range idx {
			if int(j) >= 0 && int(j) < d.n {
				row[j] = 0
			}
		}
	}
}

func (d *Dense) SubmatrixDense(rows, cols []int32) [][]float32 {
	out := make([][]float32, len(rows))
	for i, r := range rows {
		out[i] = make([]float32, len(cols))
		if int(r) < 0 || int(r) >= d.n {
			continue
		}
		for j, c := range cols {
			if int(c) >= 0 && int(c) < d.n {
				out[i][j] = d.rows[r][c]
			}
		}
	}
	return out
}

func (d *Dense) BulkSet(rows, cols []int32, block [][]float32) error {
	if err := checkBlockShape(rows, cols, block); err != nil {
		return err
	}
	for i, r := range rows {
		if int(r) < 0 || int(r) >= d.n {
			return outOfRange(r, 0, d.n)
		}
		for j, c := range cols {
			if int(c) < 0 || int(c) >= d.n {
				return outOfRange(0, c, d.n)
			}
			d.rows[r][c] = block[i][j]
		}
	}
	return nil
}

func (d *Dense) Grow(newSize int) {
	if newSize <= d.n {
		return
	}
	for i := range d.rows {
		d.rows[i] = append(d.rows[i], make([]float32, newSize-d.n)...)
	}
	for i := d.n; i < newSize; i++ {
		d.rows = append(d.rows, make([]float32, newSize))
	}
	d.n = newSize
}
