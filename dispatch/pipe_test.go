// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"testing"

	"github.com/emer/nodenet/nntype"
)

// buildPipeView materializes a shifted view over a single Pipe node
// occupying elements [offset, offset+7) of a noE-sized activation
// vector, with the rest zeroed, so pipe.go's DispatchPipe can be driven
// directly against literal gate values (spec §8 scenarios 2 and 3).
func buildPipeView(offset int32, gen, por, ret, sub, sur, cat, exp float32, noE int) *View {
	a := make([]float32, noE)
	a[offset+int32(nntype.Gen)] = gen
	a[offset+int32(nntype.Por)] = por
	a[offset+int32(nntype.Ret)] = ret
	a[offset+int32(nntype.Sub)] = sub
	a[offset+int32(nntype.Sur)] = sur
	a[offset+int32(nntype.Cat)] = cat
	a[offset+int32(nntype.Exp)] = exp
	return Build(a, noE)
}

// TestPipeConfirm is spec §8 scenario 2: wait=3, expect=1.0, no por/ret
// links, constant sub=1.0, sur=1.0. After one tick, sur's gate equals 1
// and its countdown equals wait.
func TestPipeConfirm(t *testing.T) {
	const noE = 20
	const offset = int32(5)
	view := buildPipeView(offset, 0, 0, 0, 1.0, 1.0, 0, 0, noE)
	elem := offset + int32(nntype.Sur)

	res := DispatchPipe(view, elem, nntype.PipeSur, 1.0, 3, 3, false, false, 1.0)
	if res.X != 1.0 {
		t.Fatalf("sur gate = %v, want 1.0 (confirms)", res.X)
	}
	if !res.CountdownSet || res.NewCountdown != 3 {
		t.Fatalf("sur countdown = %v, want 3 (reset to wait)", res.NewCountdown)
	}
}

// TestPipeTimeout is spec §8 scenario 3: sub=1.0, sur=0 continuously.
// Countdown decreases each tick from wait to 0, then the gate becomes -1
// and remains so.
func TestPipeTimeout(t *testing.T) {
	const noE = 20
	const offset = int32(5)
	view := buildPipeView(offset, 0, 0, 0, 1.0, 0, 0, 0, noE)
	elem := offset + int32(nntype.Sur)

	countdown := int16(3)
	const wait = int16(3)
	wantCountdowns := []int16{2, 1, 0, -1, -1}
	wantX := []float32{0, 0, 0, -1, -1}
	for i, wantCD := range wantCountdowns {
		res := DispatchPipe(view, elem, nntype.PipeSur, 1.0, countdown, wait, false, false, 1.0)
		if res.X != wantX[i] {
			t.Fatalf("tick %d: sur gate = %v, want %v", i, res.X, wantX[i])
		}
		if res.NewCountdown != wantCD {
			t.Fatalf("tick %d: countdown = %v, want %v", i, res.NewCountdown, wantCD)
		}
		countdown = res.NewCountdown
	}
}

// TestAsymmetricGenThresholds pins the open question from spec §9: por's
// rule gates on [gen > 0.1] while sur's gates on [gen > 0.2]. At
// gen=0.15, por must see it as "high" while sur must not.
func TestAsymmetricGenThresholds(t *testing.T) {
	const noE = 20
	const offset = int32(5)
	// sub=1 so por's "(por_linked => por>0) and sub>0" condition is
	// satisfied and the [gen>threshold] term actually reaches the output.
	view := buildPipeView(offset, 0.15, 0, 0, 1.0, 0, 0, 0, noE)

	porElem := offset + int32(nntype.Por)
	porRes := DispatchPipe(view, porElem, nntype.PipePor, 10.0, 1, 1, false, false, 1.0)
	// base = sur(0) + [gen>0.1](1) = 1; countdown(1)<=0 false so base stays 1;
	// value = base*[cond] + por*[search] = 1*1 + 0 = 1.
	if porRes.X != 1.0 {
		t.Fatalf("por gate at gen=0.15 = %v, want 1.0 ([gen>0.1] fires)", porRes.X)
	}

	surElem := offset + int32(nntype.Sur)
	surRes := DispatchPipe(view, surElem, nntype.PipeSur, 10.0, 1, 1, false, false, 1.0)
	// base = sur(0) + [gen>0.2](0) + exp*sub(0) = 0.
	if surRes.X != 0.0 {
		t.Fatalf("sur gate at gen=0.15 = %v, want 0.0 ([gen>0.2] does not fire)", surRes.X)
	}
}

func TestPipeGenRule(t *testing.T) {
	const noE = 20
	const offset = int32(5)
	// sur+exp = 0.6 >= expect(0.5) so def stays 0.6; gen*sub = 1*1 = 1,
	// |1| > 0.1 so g keeps its own value, not def.
	view := buildPipeView(offset, 1.0, 1.0, 0, 1.0, 0.3, 0, 0.3, noE)
	genElem := offset + int32(nntype.Gen)
	res := DispatchPipe(view, genElem, nntype.PipeGen, 0.5, 0, 0, false, false, 1.0)
	if res.X != 1.0 {
		t.Fatalf("gen gate = %v, want 1.0 (gen*sub passes through)", res.X)
	}
}
