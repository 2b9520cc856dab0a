// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dispatch

import "github.com/emer/nodenet/nntype"

// ind converts a boolean condition to 0/1, the "[cond]" Iverson-bracket
// notation used throughout spec §4.4.1.
func ind(cond bool) float32 {
	if cond {
		return 1
	}
	return 0
}

func clip01(x float32) float32 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func clampI16(v, lo, hi int16) int16 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PipeSlots holds the seven gen-frame slot values of one Pipe node, read
// relative to the element currently being dispatched.
type PipeSlots struct {
	Gen, Por, Ret, Sub, Sur, Cat, Exp float32
}

// readPipeSlots reads all seven slots of element i's owning Pipe node,
// given i's local gate index r (spec §4.4.1's "gen frame" window).
func readPipeSlots(view *View, i int32, r int) PipeSlots {
	return PipeSlots{
		Gen: view.Slot(i, r, int(nntype.Gen)),
		Por: view.Slot(i, r, int(nntype.Por)),
		Ret: view.Slot(i, r, int(nntype.Ret)),
		Sub: view.Slot(i, r, int(nntype.Sub)),
		Sur: view.Slot(i, r, int(nntype.Sur)),
		Cat: view.Slot(i, r, int(nntype.Cat)),
		Exp: view.Slot(i, r, int(nntype.Exp)),
	}
}

// pipeRoleOf maps a Pipe node-function selector to its local gate index
// (0=gen .. 6=exp), matching nntype.PipeSlot ordering.
func pipeRoleOf(nf nntype.NodeFunc) int {
	return int(nf - nntype.PipeGen)
}

// pipeCountdown is the next-countdown computation shared by the por and
// sur rules (spec §4.4.1: "Countdown same as por but on sur inputs").
// base is the rule's running accumulator at the "Countdown reset:" point;
// resetCond is the rule-specific extra reset condition ("sub <= 0 or
// (por_linked and por <= 0)" for both rules).
func pipeCountdown(base, expect float32, countdown, wait int16, resetCond bool) int16 {
	var next int16
	if base >= expect {
		next = wait
	} else {
		next = clampI16(countdown-1, -1, wait)
	}
	if resetCond {
		next = wait
	}
	return next
}

// PipeResult is the dispatcher's output for one Pipe element: the
// pre-gate value x (still to be passed through gatefn.Apply) and, for
// the por/sur elements, the updated countdown.
type PipeResult struct {
	X            float32
	NewCountdown int16
	CountdownSet bool
}

// DispatchPipe computes the next pre-gate value for one Pipe element
// (spec §4.4.1). expect/countdown/wait/porLinked/retLinked/gFactor are
// the dispatched element's own state; view is this tick's shifted
// activation window.
func DispatchPipe(view *View, i int32, nf nntype.NodeFunc, expect float32, countdown, wait int16, porLinked, retLinked bool, gFactor float32) PipeResult {
	r := pipeRoleOf(nf)
	s := readPipeSlots(view, i, r)
	porLinkedF := func() bool { return !porLinked || s.Por > 0 } // "por_linked => por>0"

	switch nf {
	case nntype.PipeGen:
		def := s.Sur + s.Exp
		if def > 0 && def < expect {
			def = 0
		}
		g := s.Gen * s.Sub
		if abs32(g) <= 0.1 {
			g = def
		}
		if s.Por == 0 && porLinked {
			g = def
		}
		return PipeResult{X: g}

	case nntype.PipePor:
		base := s.Sur + ind(s.Gen > 0.1)
		if countdown <= 0 && base < expect {
			base = -1
		}
		cond := porLinkedF() && s.Sub > 0
		value := base*ind(cond) + s.Por*ind(s.Sub == 0 && s.Sur == 0)
		resetCond := s.Sub <= 0 || (porLinked && s.Por <= 0)
		nc := pipeCountdown(base, expect, countdown, wait, resetCond)
		return PipeResult{X: value * gFactor, NewCountdown: nc, CountdownSet: true}

	case nntype.PipeRet:
		value := ind(s.Por < 0) + s.Ret*ind(s.Sub == 0 && s.Sur == 0)
		return PipeResult{X: value * gFactor}

	case nntype.PipeSub:
		value := (s.Sub + s.Cat) * ind(porLinkedF()) * ind(s.Gen == 0)
		return PipeResult{X: value * gFactor}

	case nntype.PipeSur:
		base := s.Sur + ind(s.Gen > 0.2) + s.Exp*s.Sub
		if base > 0 && base < expect {
			base = 0
		}
		if countdown <= 0 && base < expect {
			base = -1
		}
		resetCond := s.Sub <= 0 || (porLinked && s.Por <= 0)
		nc := pipeCountdown(base, expect, countdown, wait, resetCond)
		value := base
		if retLinked {
			value *= s.Ret
		}
		value *= ind(porLinkedF())
		return PipeResult{X: value * gFactor, NewCountdown: nc, CountdownSet: true}

	case nntype.PipeCat:
		value := (clip01(s.Sur)+s.Sub+s.Cat)*ind(porLinkedF())*ind(s.Gen == 0) + s.Cat*ind(s.Sub == 0 && s.Sur == 0)
		return PipeResult{X: value * gFactor}

	case nntype.PipeExp:
		value := s.Sur + s.Exp + ind(s.Por*s.Sub > 0.2)
		return PipeResult{X: value * gFactor}
	}
	return PipeResult{}
}

func abs32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
