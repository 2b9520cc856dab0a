// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatch

import (
	"math"
	"testing"

	"github.com/emer/nodenet/nntype"
)

func TestSample(t *testing.T) {
	cases := []struct {
		tick                  int64
		hasSamplingActivators bool
		gFactor               float32
		want                  bool
	}{
		{0, false, 1, true},
		{1, false, 1, false},
		{3, false, 1, true},
		{3, true, 1.0, true},  // gFactor == 1.0 > 0.99
		{3, true, 0.5, false}, // gated off by the sampling activator
		{6, true, 0.995, true},
	}
	for _, c := range cases {
		got := Sample(c.tick, c.hasSamplingActivators, c.gFactor)
		if got != c.want {
			t.Errorf("Sample(%d, %v, %v) = %v, want %v", c.tick, c.hasSamplingActivators, c.gFactor, got, c.want)
		}
	}
}

func buildLSTMView(offset int32, gen, por, gin, gou, gfg float32, noE int) *View {
	a := make([]float32, noE)
	a[offset+int32(nntype.LGen)] = gen
	a[offset+int32(nntype.LPor)] = por
	a[offset+int32(nntype.LGin)] = gin
	a[offset+int32(nntype.LGou)] = gou
	a[offset+int32(nntype.LGfg)] = gfg
	return Build(a, noE)
}

// TestDispatchLSTMHold checks that a non-sampling tick just holds the
// previous activation (spec §4.4.2: "when sample is false, the gate
// outputs a_prev").
func TestDispatchLSTMHold(t *testing.T) {
	const noE = 16
	const offset = int32(2)
	view := buildLSTMView(offset, 1, 1, 1, 1, 1, noE)
	got := DispatchLSTM(view, offset+int32(nntype.LGin), nntype.LstmGin, false, 0.42, 0)
	if got != 0.42 {
		t.Fatalf("held value = %v, want a_prev 0.42", got)
	}
}

// TestDispatchLSTMInputGate checks the gin/gou/gfg rule: sigmoid(netX+theta)
// read from the dispatched element's own slot.
func TestDispatchLSTMInputGate(t *testing.T) {
	const noE = 16
	const offset = int32(2)
	view := buildLSTMView(offset, 0, 0, 0, 0, 0, noE)
	got := DispatchLSTM(view, offset+int32(nntype.LGin), nntype.LstmGin, true, 0, 0)
	want := float32(0.5) // sigmoid(0+0) = 0.5
	if math.Abs(float64(got-want)) > 1e-6 {
		t.Fatalf("gin gate = %v, want %v", got, want)
	}
}
