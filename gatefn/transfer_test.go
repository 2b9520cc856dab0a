// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package gatefn

import (
	"math"
	"testing"

	"github.com/emer/nodenet/nntype"
)

func TestTransfer(t *testing.T) {
	cases := []struct {
		name  string
		fn    nntype.GateFunc
		x     float32
		theta float32
		want  float32
	}{
		{"identity", nntype.Identity, 2.5, 1, 2.5},
		{"absolute_neg", nntype.Absolute, -3, 0, 3},
		{"rect_below_zero", nntype.Rect, -5, 1, 0},
		{"rect_above_zero", nntype.Rect, 2, 1, 3},
		{"dist_zero", nntype.Dist, 0, 0, 0},
		{"dist_nonzero", nntype.Dist, 2, 0, 0.5},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Transfer(c.fn, c.x, c.theta)
			if math.Abs(float64(got-c.want)) > 1e-6 {
				t.Errorf("Transfer(%v, %v, %v) = %v, want %v", c.fn, c.x, c.theta, got, c.want)
			}
		})
	}
}

func TestSigmoidAndTanhBounds(t *testing.T) {
	s := Transfer(nntype.Sigmoid, 0, 0)
	if math.Abs(float64(s-0.5)) > 1e-6 {
		t.Errorf("sigmoid(0) = %v, want 0.5", s)
	}
	th := Transfer(nntype.Tanh, 0, 0)
	if math.Abs(float64(th)) > 1e-6 {
		t.Errorf("tanh(0) = %v, want 0", th)
	}
}

// TestApplyOrder pins spec §4.3's order: transfer, then threshold, then
// amplification, then clip. A naive amplify-before-threshold
// implementation would pass a value that should have been zeroed.
func TestApplyOrder(t *testing.T) {
	// identity(2) = 2; threshold 3 zeros it; amplify and clip never see
	// a nonzero value.
	got := Apply(nntype.Identity, 2, 0, 3, 10, -100, 100)
	if got != 0 {
		t.Fatalf("Apply = %v, want 0 (thresholded before amplification)", got)
	}
	// identity(5) = 5; threshold 3 passes it through; amplify by 10 ->
	// 50; clip to [-100,100] leaves it at 50.
	got = Apply(nntype.Identity, 5, 0, 3, 10, -100, 100)
	if got != 50 {
		t.Fatalf("Apply = %v, want 50", got)
	}
	// same as above but clip caps it at 20.
	got = Apply(nntype.Identity, 5, 0, 3, 10, -100, 20)
	if got != 20 {
		t.Fatalf("Apply = %v, want 20 (clipped after amplification)", got)
	}
}

func TestClip(t *testing.T) {
	if got := Clip(5, 0, 3); got != 3 {
		t.Errorf("Clip(5,0,3) = %v, want 3", got)
	}
	if got := Clip(-5, 0, 3); got != 0 {
		t.Errorf("Clip(-5,0,3) = %v, want 0", got)
	}
	if got := Clip(1, 0, 3); got != 1 {
		t.Errorf("Clip(1,0,3) = %v, want 1", got)
	}
}

func TestThreshold(t *testing.T) {
	if got := Threshold(2, 3); got != 0 {
		t.Errorf("Threshold(2,3) = %v, want 0", got)
	}
	if got := Threshold(3, 3); got != 3 {
		t.Errorf("Threshold(3,3) = %v, want 3 (>= passes)", got)
	}
}
