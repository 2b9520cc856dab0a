// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package gatefn implements C3, the gate transfer unit: the per-element
// threshold / amplification / min-max / transfer-function pipeline of
// spec §4.3. The order below is pinned and must never be reordered:
// transfer function, then threshold, then amplification, then clip.
package gatefn

import (
	"cogentcore.org/core/math32"

	"github.com/emer/nodenet/nntype"
)

// Apply runs the full per-element transfer pipeline on x, using the
// element's theta/threshold/amplification/min/max/selector. This is the
// single call site the dispatcher (C4) uses after computing each
// element's pre-gate value (spec §4.4.3).
func Apply(fn nntype.GateFunc, x, theta, threshold, amplification, min, max float32) float32 {
	y := Transfer(fn, x, theta)
	y = Threshold(y, threshold)
	y = y * amplification
	return Clip(y, min, max)
}

// Transfer applies the selected transfer function, before thresholding.
func Transfer(fn nntype.GateFunc, x, theta float32) float32 {
	switch fn {
	case nntype.Identity:
		return x
	case nntype.Absolute:
		return math32.Abs(x)
	case nntype.Sigmoid:
		return sigmoid(x + theta)
	case nntype.Tanh:
		return tanh(x + theta)
	case nntype.Rect:
		return rect(x, theta)
	case nntype.Dist:
		if x == 0 {
			return 0
		}
		return 1 / x
	default:
		return x
	}
}

// Threshold zeros y unless it meets or exceeds threshold (spec §4.3:
// thresholding precedes amplification and clipping).
func Threshold(y, threshold float32) float32 {
	if y >= threshold {
		return y
	}
	return 0
}

// Clip bounds y to [min, max].
func Clip(y, min, max float32) float32 {
	if y < min {
		return min
	}
	if y > max {
		return max
	}
	return y
}

func sigmoid(x float32) float32 {
	return 1.0 / (1.0 + math32.FastExp(-x))
}

func tanh(x float32) float32 {
	return 2*sigmoid(2*x) - 1
}

// rect is relu with a theta bias: max(0, x+theta).
func rect(x, theta float32) float32 {
	v := x + theta
	if v < 0 {
		return 0
	}
	return v
}
