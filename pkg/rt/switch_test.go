// Copyright 2025 The rv-runtime Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rt

import (
	"testing"

	"github.com/rivosinc/rv-runtime/pkg/riscv"
)

const (
	threadAEntry = uint64(0x80100000)
	threadBEntry = uint64(0x80200000)
	threadBStack = uint64(0x80380000)
)

// bootToThread returns a boot hook that installs ctx and continues in
// the runtime's own mode at pc, modeling the first integrating-mode
// thread.
func bootToThread(ctx *Context, pc uint64) func(h *Hart, tf *TrapFrame) {
	return func(h *Hart, tf *TrapFrame) {
		h.Block().SetContext(ctx)
		tf.SetReturn(pc)
	}
}

func TestVoluntarySwitchRoundTrip(t *testing.T) {
	var ctxA, ctxB Context
	m := newTestMachine(t, DefaultTargetConfig(), &testHooks{boot: bootToThread(&ctxA, threadAEntry)})
	h := m.NewHart(0)
	h.Reset()

	if h.PC != threadAEntry || h.Mode() != m.Config().Mode {
		t.Fatalf("boot landed at pc=%#x mode=%v", h.PC, h.Mode())
	}

	ctxB.Bootstrap(threadBEntry, threadBStack, m.Config().Mode.PPSelf())

	// Thread A: a callee-saved value and the switch call site.
	h.Regs[riscv.S0] = 0x77
	h.Regs[riscv.RA] = threadAEntry + 0x40
	aStack := h.Regs[riscv.SP]
	h.SwitchTo(&ctxB)

	// Now thread B.
	if h.PC != threadBEntry {
		t.Errorf("pc = %#x, want %#x", h.PC, threadBEntry)
	}
	if h.Regs[riscv.SP] != threadBStack {
		t.Errorf("sp = %#x, want %#x", h.Regs[riscv.SP], threadBStack)
	}
	if h.Regs[riscv.TP] != h.Block().Addr() {
		t.Errorf("tp = %#x, want block %#x", h.Regs[riscv.TP], h.Block().Addr())
	}
	if h.Block().Context() != &ctxB {
		t.Error("current context is not B")
	}
	if !ctxA.Live() {
		t.Error("outgoing context has no saved state")
	}
	if ctxB.Live() {
		t.Error("incoming context still marked saved")
	}

	// Thread B clobbers state A must get back, then switches back.
	h.Regs[riscv.S0] = 0
	h.Regs[riscv.RA] = threadBEntry + 0x80
	h.SwitchTo(&ctxA)

	if h.PC != threadAEntry+0x40 {
		t.Errorf("pc = %#x, want the switch call site %#x", h.PC, threadAEntry+0x40)
	}
	if h.Regs[riscv.S0] != 0x77 {
		t.Errorf("s0 = %#x, want 0x77", h.Regs[riscv.S0])
	}
	if h.Regs[riscv.SP] != aStack {
		t.Errorf("sp = %#x, want %#x", h.Regs[riscv.SP], aStack)
	}
	if h.Block().Context() != &ctxA {
		t.Error("current context is not A")
	}
	if !ctxB.Live() {
		t.Error("B was not saved on the way out")
	}
}

func TestSwitchToPanics(t *testing.T) {
	var ctxA, ctxB Context
	hooks := &testHooks{boot: bootToUser(&ctxA)}
	m := newTestMachine(t, DefaultTargetConfig(), hooks)
	h := m.NewHart(0)
	h.Reset()

	// From user mode there is nothing to voluntarily switch from.
	func() {
		defer func() {
			if recover() == nil {
				t.Error("SwitchTo from user mode did not panic")
			}
		}()
		h.SwitchTo(&ctxB)
	}()

	// With a trap outstanding the handoff must go through
	// RequestSwitch.
	hooks.trap = func(h *Hart, tf *TrapFrame) {
		defer func() {
			if recover() == nil {
				t.Error("SwitchTo during a trap did not panic")
			}
		}()
		h.SwitchTo(&ctxB)
	}
	h.PC = userEntry
	h.Trap(riscv.CauseECallFromU, 0)
}

func TestTrapHandoff(t *testing.T) {
	var ctxA, ctxB Context
	hooks := &testHooks{boot: bootToUser(&ctxA)}
	m := newTestMachine(t, DefaultTargetConfig(), hooks)
	h := m.NewHart(0)
	h.Reset()

	ctxB.Bootstrap(threadBEntry, threadBStack, m.Config().Mode.PPSelf())

	// User thread A takes a timer interrupt; the handler hands the
	// hart to kernel thread B instead of resuming A.
	const interruptedPC = userEntry + 0x90
	h.PC = interruptedPC
	h.Regs[riscv.A0] = 0xaaaa
	hooks.trap = func(h *Hart, tf *TrapFrame) {
		h.RequestSwitch(&ctxB)
	}
	h.Trap(riscv.CauseMachineTimer.Interrupt(riscv.Xlen64), 0)

	if h.PC != threadBEntry || h.Mode() != m.Config().Mode {
		t.Fatalf("handoff landed at pc=%#x mode=%v", h.PC, h.Mode())
	}
	if h.Block().Context() != &ctxB {
		t.Error("current context is not B after handoff")
	}
	if _, ok := h.Block().TrapFrame(); ok {
		t.Error("trap frame still published after handoff")
	}
	if !ctxA.Live() {
		t.Fatal("interrupted context was not saved")
	}
	if got := ctxA.saved.EPC; got != interruptedPC {
		t.Errorf("saved epc = %#x, want %#x", got, interruptedPC)
	}
	if got := ctxA.saved.GPR[riscv.A0]; got != 0xaaaa {
		t.Errorf("saved a0 = %#x, want 0xaaaa", got)
	}

	// B later switches back into the interrupted user thread; the
	// restore descends straight to user mode at the interrupted pc.
	h.Regs[riscv.RA] = threadBEntry + 0x20
	h.SwitchTo(&ctxA)

	if h.Mode() != riscv.ModeU {
		t.Errorf("mode = %v, want %v", h.Mode(), riscv.ModeU)
	}
	if h.PC != interruptedPC {
		t.Errorf("pc = %#x, want %#x", h.PC, interruptedPC)
	}
	if h.Regs[riscv.A0] != 0xaaaa {
		t.Errorf("a0 = %#x, want 0xaaaa", h.Regs[riscv.A0])
	}
	if h.Regs[riscv.SP] != userStack || h.Regs[riscv.TP] != userTP {
		t.Errorf("sp/tp = %#x/%#x, want %#x/%#x",
			h.Regs[riscv.SP], h.Regs[riscv.TP], userStack, userTP)
	}
	if h.scratch != h.Block().Addr() {
		t.Errorf("scratch = %#x, want block %#x", h.scratch, h.Block().Addr())
	}

	// The next trap from the resumed thread must find a coherent
	// runtime stack.
	hooks.trap = func(h *Hart, tf *TrapFrame) {
		tf.SetReturn(tf.EPC + 4)
	}
	h.Trap(riscv.CauseECallFromU, 0)
	if h.Parked() {
		t.Error("hart parked on the follow-up trap")
	}
}

func TestRequestSwitchOutsideTrapPanics(t *testing.T) {
	var ctx, other Context
	m := newTestMachine(t, DefaultTargetConfig(), &testHooks{boot: bootToUser(&ctx)})
	h := m.NewHart(0)
	h.Reset()

	defer func() {
		if recover() == nil {
			t.Error("RequestSwitch outside a trap did not panic")
		}
	}()
	h.RequestSwitch(&other)
}

func TestContextMigratesBetweenHarts(t *testing.T) {
	cfg := DefaultTargetConfig()
	cfg.MaxHarts = 2
	cfg.SkipMemInit = true

	var kernelA, kernelB, shared Context
	hooks := &testHooks{}
	m := newTestMachine(t, cfg, hooks)

	hooks.boot = bootToThread(&kernelA, threadAEntry)
	h0 := m.NewHart(0)
	h0.Reset()

	hooks.secondary = bootToThread(&kernelB, threadBEntry)
	h1 := m.NewHart(1)
	h1.Reset()

	shared.Bootstrap(0x80300000, 0x80390000, cfg.Mode.PPSelf())

	// Hart 0 runs the shared thread, which switches itself out.
	h0.Regs[riscv.RA] = threadAEntry + 0x10
	h0.SwitchTo(&shared)
	h0.Regs[riscv.S1] = 0x51
	h0.Regs[riscv.RA] = 0x80300040
	h0.SwitchTo(&kernelA)

	// Hart 1 picks the shared thread up; it must resume at the switch
	// call site with hart 1's control block in tp.
	h1.Regs[riscv.RA] = threadBEntry + 0x10
	h1.SwitchTo(&shared)

	if h1.PC != 0x80300040 {
		t.Errorf("pc = %#x, want %#x", h1.PC, 0x80300040)
	}
	if h1.Regs[riscv.S1] != 0x51 {
		t.Errorf("s1 = %#x, want 0x51", h1.Regs[riscv.S1])
	}
	if h1.Regs[riscv.TP] != h1.Block().Addr() {
		t.Errorf("tp = %#x, want hart 1 block %#x", h1.Regs[riscv.TP], h1.Block().Addr())
	}
	if h1.Regs[riscv.TP] == h0.Block().Addr() {
		t.Error("migrated thread kept the old hart's block")
	}
}
