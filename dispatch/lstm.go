// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"cogentcore.org/core/math32"

	"github.com/emer/nodenet/nntype"
)

func sigmoidL(x float32) float32 {
	return 1.0 / (1.0 + math32.FastExp(-x))
}

// tanhG is the "4*sigmoid(x)-2" squashing spec §4.4.2 uses in place of a
// plain tanh for the LSTM candidate-cell term.
func tanhG(x float32) float32 {
	return 4*sigmoidL(x) - 2
}

func lstmRoleOf(nf nntype.NodeFunc) int {
	return int(nf - nntype.LstmGen)
}

// Sample implements the sampling predicate of spec §4.4.2: every third
// tick, gated by the directional sampling activator if one is present.
func Sample(tick int64, hasSamplingActivators bool, gFactor float32) bool {
	if tick%3 != 0 {
		return false
	}
	if hasSamplingActivators {
		return gFactor > 0.99
	}
	return true
}

// DispatchLSTM computes the next pre-gate value for one LSTM element
// (spec §4.4.2). When sample is false the gate holds its previous value
// (aPrevOwn); thetaOwn is the dispatched element's own g_theta, added
// only for the gin/gou/gfg gates (§4.4.2: "plus its θ").
func DispatchLSTM(view *View, i int32, nf nntype.NodeFunc, sample bool, aPrevOwn, thetaOwn float32) float32 {
	if !sample {
		return aPrevOwn
	}
	r := lstmRoleOf(nf)
	switch nf {
	case nntype.LstmGen:
		s := view.Slot(i, r, int(nntype.LGen))
		netC := view.Slot(i, r, int(nntype.LPor))
		netIN := view.Slot(i, r, int(nntype.LGin))
		netPhi := view.Slot(i, r, int(nntype.LGfg))
		return s*sigmoidL(netPhi) + tanhG(netC)*sigmoidL(netIN)

	case nntype.LstmPor:
		s := view.Slot(i, r, int(nntype.LGen))
		netC := view.Slot(i, r, int(nntype.LPor))
		netIN := view.Slot(i, r, int(nntype.LGin))
		netOut := view.Slot(i, r, int(nntype.LGou))
		netPhi := view.Slot(i, r, int(nntype.LGfg))
		sPrime := s*sigmoidL(netPhi) + tanhG(netC)*sigmoidL(netIN)
		h := 2*sigmoidL(sPrime) - 1
		return h * sigmoidL(netOut)

	case nntype.LstmGin, nntype.LstmGou, nntype.LstmGfg:
		netX := view.At(i, 7) // own slot, current net input
		return sigmoidL(netX + thetaOwn)
	}
	return 0
}
