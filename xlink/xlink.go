// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xlink implements C7, inter-partition links: for a destination
// partition and each source partition with at least one crossing link, a
// (from-elements, to-elements, weights) block and its propagation op
// (spec §4.7).
package xlink

import (
	"golang.org/x/exp/slices"

	"github.com/emer/nodenet/elemstore"
	"github.com/emer/nodenet/nnerr"
)

// Block holds the crossing links from one source partition into one
// destination partition. FromElems and ToElems are sorted ascending;
// W is shaped (len(ToElems), len(FromElems)) per spec §4.7 / §3
// invariant 8.
type Block struct {
	SrcPartition int32
	FromElems    []int32
	ToElems      []int32
	W            [][]float32
}

// Manager owns every inbound block for one destination partition, keyed
// by source partition id.
type Manager struct {
	Blocks map[int32]*Block
}

// NewManager returns an empty inbound-link manager.
func NewManager() *Manager {
	return &Manager{Blocks: map[int32]*Block{}}
}

// AddLink sets the weight of the link from element fromElem of partition
// srcPartition to element toElem of the owning (destination) partition,
// creating the block lazily on first use and growing its from/to index
// sets by set-union, preserving previously-set weights at their
// re-sorted positions (spec §4.7).
func (m *Manager) AddLink(srcPartition int32, fromElem, toElem int32, weight float32) error {
	b, ok := m.Blocks[srcPartition]
	if !ok {
		b = &Block{SrcPartition: srcPartition}
		m.Blocks[srcPartition] = b
	}
	fromIdx, fromGrew := unionInsert(&b.FromElems, fromElem)
	toIdx, toGrew := unionInsert(&b.ToElems, toElem)
	if fromGrew || toGrew {
		// an axis that did not grow gets an insertion point past its end,
		// so none of its existing rows/columns shift
		insFrom, insTo := len(b.FromElems), len(b.ToElems)
		if fromGrew {
			insFrom = fromIdx
		}
		if toGrew {
			insTo = toIdx
		}
		growBlock(b, insFrom, insTo)
	}
	b.W[toIdx][fromIdx] = weight
	return nil
}

// unionInsert inserts v into the sorted slice pointed to by s if absent,
// returning v's final index and whether an insertion happened.
func unionInsert(s *[]int32, v int32) (idx int, grew bool) {
	pos, found := slices.BinarySearch(*s, v)
	if found {
		return pos, false
	}
	*s = slices.Insert(*s, pos, v)
	return pos, true
}

// growBlock resizes W to (len(ToElems), len(FromElems)), shifting
// existing rows/columns to their new positions so previously-set
// weights survive the set-union growth of either axis.
func growBlock(b *Block, insertedFromAt, insertedToAt int) {
	newRows := len(b.ToElems)
	newCols := len(b.FromElems)
	next := make([][]float32, newRows)
	for r := 0; r < newRows; r++ {
		next[r] = make([]float32, newCols)
	}
	for r, row := range b.W {
		srcR := r
		if r >= insertedToAt {
			srcR = r + 1 // this row shifted down by the insertion
		}
		if srcR >= newRows {
			continue
		}
		for c, v := range row {
			srcC := c
			if c >= insertedFromAt {
				srcC = c + 1
			}
			if srcC >= newCols {
				continue
			}
			next[srcR][srcC] = v
		}
	}
	b.W = next
}

// Propagate applies this tick's cross-partition contribution (spec
// §4.7): dst.a_in[to] += W_block . src.a[from], reading src.A as it
// stood after src's own propagation step (step 2 of §4.8) -- the
// scheduler is responsible for the ordering barrier that guarantees
// that.
func (m *Manager) Propagate(dst *elemstore.Store, srcOf func(partition int32) (*elemstore.Store, error)) error {
	for _, b := range m.Blocks {
		src, err := srcOf(b.SrcPartition)
		if err != nil {
			return nnerr.Wrap(nnerr.CrossPartitionOrderViolation, err, "xlink: source partition %d unavailable", b.SrcPartition)
		}
		for ri, to := range b.ToElems {
			sum := float32(0)
			row := b.W[ri]
			for ci, from := range b.FromElems {
				sum += row[ci] * src.A[from]
			}
			dst.AIn[to] += sum
		}
	}
	return nil
}
