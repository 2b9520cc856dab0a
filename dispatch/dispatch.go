// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"github.com/emer/nodenet/elemstore"
	"github.com/emer/nodenet/gatefn"
	"github.com/emer/nodenet/nbool"
	"github.com/emer/nodenet/nntype"
)

// Store is the subset of elemstore.Store's fields the dispatcher reads
// and writes. Declared as an interface-free struct alias point so this
// package stays decoupled from partition's lock/ownership concerns --
// the caller (partition, step 4 of §4.8) holds the writer lock.
type Store = elemstore.Store

// Run executes step 4 of the tick (spec §4.8): for every element, pick
// its node-function result (identity passthrough, Pipe rule, or LSTM
// rule), run it through the gate transfer unit (C3), and commit the
// result atomically -- no element observes another element's new value
// mid-pass, since everything reads from the pre-built shifted view and
// writes into a scratch buffer first.
//
// hasSamplingActivators mirrors the has_sampling_activators capability
// flag (spec §9): when false, every LSTM sample predicate skips the
// activator gate entirely (spec §4.4.2's "true" branch).
func Run(s *Store, tick int64, hasSamplingActivators bool) {
	noE := s.NoE
	view := Build(s.A, noE)
	nextA := make([]float32, noE)
	nextCountdown := make([]int16, noE)
	copy(nextA, s.A)
	copy(nextCountdown, s.GCountdown)

	for i := 0; i < noE; i++ {
		if s.AllocatedElementsToNodes[i] == elemstore.FreeNode {
			continue
		}
		ei := int32(i)
		nf := s.NFunction[i]
		gFactor := s.GFactor[i]

		var x float32
		switch {
		case nf == nntype.None:
			x = s.A[i]

		case nf.IsPipe():
			res := DispatchPipe(view, ei, nf,
				s.GExpect[i], s.GCountdown[i], s.GWait[i],
				nbool.IsTrue(s.PorLinked[i]), nbool.IsTrue(s.RetLinked[i]), gFactor)
			x = res.X
			if res.CountdownSet {
				nextCountdown[i] = res.NewCountdown
			}

		case nf.IsLSTM():
			sample := Sample(tick, hasSamplingActivators, gFactor)
			x = DispatchLSTM(view, ei, nf, sample, s.APrev[i], s.GTheta[i])
		}

		nextA[i] = gatefn.Apply(s.GFunction[i], x, s.GTheta[i], s.GThreshold[i], s.GAmplification[i], s.GMin[i], s.GMax[i])
	}

	copy(s.A, nextA)
	copy(s.GCountdown, nextCountdown)
}
