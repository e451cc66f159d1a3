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
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rivosinc/rv-runtime/pkg/riscv"
)

// Synthetic code addresses for the runtime's own entry points in the
// modeled address space.
const (
	// trapVector is where the trap vector CSR points.
	trapVector uint64 = 0x1000

	// parkVector is the terminal wait loop. It is the default resume pc
	// installed at reset, so a hook that returns without steering the
	// frame parks its hart.
	parkVector uint64 = 0x1010
)

// Reset runs the hart's power-on path: optional custom reset, the boot
// id race, stack and control block setup, the memory initialization
// barrier, and entry into the integrating component. It returns when
// the hart parks or when a restored frame hands control to modeled
// software (lower privilege, or runtime-mode code at a steered pc).
func (h *Hart) Reset() {
	m := h.machine
	cfg := &m.cfg

	if cfg.CustomReset {
		if rh, ok := m.hooks.(ResetHooks); ok {
			rh.CustomReset(h)
		}
	}

	// The boot id race. One atomic increment per hart, in lieu of any
	// platform ordering guarantee.
	bootID := m.bootCounter.Add(1) - 1
	if bootID >= uint64(cfg.MaxHarts) {
		h.log.WithField("bootID", bootID).Info("surplus hart")
		h.park()
		return
	}

	blk := &m.blocks[bootID]
	h.block = blk
	blk.bootID = bootID
	switch cfg.Mode {
	case riscv.ModeM:
		blk.hartID = h.mhartid
	case riscv.ModeS:
		// The previous boot stage passes the hart id in a0.
		blk.hartID = h.Regs[riscv.A0]
	}
	blk.assigned = true
	h.log = h.log.WithField("bootID", bootID)

	h.mode = cfg.Mode
	h.Regs[riscv.SP] = m.stackTop(bootID)
	h.Regs[riscv.TP] = blk.addr
	h.Regs[riscv.RA] = parkVector
	h.scratch = blk.addr
	h.tvec = trapVector
	h.ie = 0
	h.cause = 0
	h.tval = 0
	h.epc = parkVector
	h.status = h.status&^cfg.Mode.PPMask() | cfg.Mode.PPSelf()
	if cfg.FloatingPoint {
		h.status = h.status&^riscv.StatusFSMask | riscv.StatusFSClean
		h.F = [32]uint64{}
		h.FCSR = 0
	}

	blk.currentModeSP = h.Regs[riscv.SP]
	blk.beginCapture()
	blk.interruptedModeSP = h.Regs[riscv.SP]
	blk.interruptedModeTP = blk.addr
	blk.flags = 0

	if bootID == 0 {
		if !cfg.SkipMemInit {
			m.memInit()
		}
		h.enter(EntryBoot)
		return
	}
	if !cfg.SkipMemInit {
		// Secondary harts wait for the boot hart to finish clearing
		// memory before touching anything.
		<-m.memInitDone
	}
	h.enter(EntrySecondary)
}

// Trap delivers a trap or interrupt to the hart, modeling the hardware
// side effects of trapping into the runtime's mode and then running the
// software trap path. The interrupted state is whatever Regs, PC and F
// hold at the call.
func (h *Hart) Trap(cause riscv.Cause, tval uint64) {
	m := h.machine
	cfg := &m.cfg
	if h.parked {
		panic("rt: trap delivered to a parked hart")
	}
	if h.block == nil {
		panic("rt: trap delivered to a hart that never reset")
	}

	// Hardware: latch the trap CSRs and raise privilege.
	h.epc = h.PC
	h.cause = uint64(cause)
	h.tval = tval
	h.status = h.status&^cfg.Mode.PPMask() | cfg.Mode.PPEncode(h.mode)
	h.mode = cfg.Mode
	h.PC = h.tvec

	// Software: swap tp with the scratch CSR. A zero result means the
	// trap interrupted the runtime's own mode (scratch is parked at
	// zero while it runs); otherwise scratch held the block address.
	h.Regs[riscv.TP], h.scratch = h.scratch, h.Regs[riscv.TP]
	blk := h.block
	if h.Regs[riscv.TP] == 0 {
		// Nested entry: the old tp, now in scratch, is the block.
		h.Regs[riscv.TP] = h.scratch
		h.assertBlockAddr(h.Regs[riscv.TP])
		blk.beginCapture()
		blk.currentModeSP = h.Regs[riscv.SP]
		blk.flags = FlagRestoreTrapFrame
	} else {
		h.assertBlockAddr(h.Regs[riscv.TP])
		blk.beginCapture()
		blk.flags = 0
	}
	blk.interruptedModeSP = h.Regs[riscv.SP]
	blk.interruptedModeTP = h.scratch
	h.Regs[riscv.SP] = blk.currentModeSP
	h.enter(EntryTrap)
}

// RequestSwitch arranges for the trap currently being handled to resume
// next instead of the interrupted context. The published frame is
// retired into the outgoing context's save area on return from the
// hook; this is the only sanctioned way to change the current context
// while a trap is outstanding.
func (h *Hart) RequestSwitch(next *Context) {
	blk := h.block
	if blk == nil || blk.trapFrame == nil {
		panic("rt: RequestSwitch outside a trap")
	}
	if blk.trapFrame.interrupted != nil {
		panic("rt: RequestSwitch from a nested trap")
	}
	if next == nil {
		panic("rt: RequestSwitch to a nil context")
	}
	h.pendingSwitch = next
}

// SwitchTo performs a voluntary context switch from integrating-mode
// code: the calling thread's state is captured as a frame and written
// to the current context's save area, and the hart resumes next from
// its save area. When something later switches back, the hart resumes
// as if SwitchTo had returned, at the captured ra.
func (h *Hart) SwitchTo(next *Context) {
	cfg := &h.machine.cfg
	blk := h.block
	if blk == nil || h.mode != cfg.Mode {
		panic("rt: SwitchTo outside the runtime's mode")
	}
	if blk.trapFrame != nil {
		panic("rt: SwitchTo with a trap outstanding; use RequestSwitch from the hook")
	}

	blk.entry = EntrySwitch
	blk.beginCapture()
	blk.interruptedModeSP = h.Regs[riscv.SP]
	blk.interruptedModeTP = h.Regs[riscv.TP]
	blk.returnAddr = h.Regs[riscv.RA]
	blk.flags = FlagRestoreTrapFrame
	// Resume at the call site when switched back.
	h.epc = h.Regs[riscv.RA]

	tf := h.buildFrame()
	h.handoff(tf, next)
}

// enter runs the shared entry sequence: stage the remaining slots,
// build the frame, dispatch to the integrating component, and restore.
func (h *Hart) enter(reason EntryReason) {
	m := h.machine
	blk := h.block

	blk.entry = reason
	blk.returnAddr = h.Regs[riscv.RA]
	if reason != EntryTrap && m.cfg.StackOverflowDetection {
		h.protectStack()
	}

	tf := h.buildFrame()
	if reason == EntryTrap {
		blk.trapFrame = tf
	}

	switch blk.entry {
	case EntryBoot:
		m.hooks.Boot(h, tf)
	case EntrySecondary:
		m.hooks.SecondaryBoot(h, tf)
	case EntryTrap:
		m.hooks.Trap(h, tf)
	default:
		panic(fmt.Sprintf("rt: unexpected entry reason %v", blk.entry))
	}

	if next := h.pendingSwitch; next != nil {
		h.pendingSwitch = nil
		h.handoff(tf, next)
		return
	}
	h.restoreFrame(tf)
}

// buildFrame carves a frame from the active stack and captures the
// interrupted state into it, draining the control block's single-use
// slots. On return the capture window is closed and scratch is zero.
func (h *Hart) buildFrame() *TrapFrame {
	cfg := &h.machine.cfg
	blk := h.block
	layout := h.machine.layout

	tf := h.pool.get()
	sp := (h.Regs[riscv.SP] - layout.Size()) &^ uint64(frameAlign-1)
	tf.addr = sp
	h.Regs[riscv.SP] = sp

	// All registers except the three whose true values live in the
	// block slots.
	for r := riscv.GP; r < riscv.NumRegs; r++ {
		if r == riscv.TP {
			continue
		}
		tf.GPR[r] = h.Regs[r]
	}

	if cfg.FloatingPoint && h.status&riscv.StatusFSMask == riscv.StatusFSDirty {
		// Lazy FP save: only a dirty register file is captured, and
		// the frame remembers that it was.
		tf.F = h.F
		tf.FCSR = h.FCSR
		h.status = h.status&^riscv.StatusFSMask | riscv.StatusFSClean
		blk.flags |= FlagFSDirty
	}

	blk.drainCapture()
	tf.GPR[riscv.SP] = blk.interruptedModeSP
	tf.GPR[riscv.RA] = blk.returnAddr
	tf.GPR[riscv.TP] = blk.interruptedModeTP

	// Park scratch at zero for nested trap detection.
	h.scratch = 0

	tf.Status = h.status
	tf.EPC = h.epc
	tf.Tval = h.tval
	tf.Cause = riscv.Cause(h.cause)
	tf.Flags = blk.flags
	blk.flags = 0
	tf.interrupted = blk.trapFrame
	return tf
}

// restoreFrame reloads the hart from tf and resumes at its epc, at the
// privilege encoded in its status PP field. Cause and tval are not
// restored.
func (h *Hart) restoreFrame(tf *TrapFrame) {
	cfg := &h.machine.cfg
	blk := h.block

	if cfg.StackOverflowDetection && !h.checkStack() {
		return
	}

	if tf.Status&cfg.Mode.PPMask() != cfg.Mode.PPSelf() {
		// Leaving the runtime's mode: re-park the block address in
		// scratch and record where the next trap's stack begins.
		blk.currentModeSP = tf.addr + h.machine.layout.AlignedSize()
		h.scratch = blk.addr
	}

	if tf.Flags&FlagRestoreTrapFrame != 0 {
		blk.trapFrame = tf.interrupted
	} else if blk.trapFrame == tf {
		// The trap this frame was built for is complete.
		blk.trapFrame = nil
	}

	if cfg.SfenceOnTrapFrameRestore && tf.Flags&FlagTranslationChanged != 0 {
		h.fences++
	}

	if cfg.FloatingPoint && tf.Flags&FlagFSDirty != 0 {
		h.F = tf.F
		h.FCSR = tf.FCSR
	}

	h.status = tf.Status
	h.epc = tf.EPC

	for r := riscv.RA; r < riscv.NumRegs; r++ {
		h.Regs[r] = tf.GPR[r]
	}
	h.Regs[riscv.Zero] = 0

	if cfg.AtomicExtension {
		// Any outstanding reservation dies with the privileged return.
		h.reservation = false
	}

	h.mode = cfg.Mode.PPDecode(tf.Status)
	h.PC = h.epc
	h.pool.put(tf)

	if h.mode == cfg.Mode && h.PC == parkVector {
		h.park()
	}
}

// handoff retires tf into the current context's save area and resumes
// next from its own. An incoming runtime-mode thread's tp is rewritten
// to this hart's block so contexts may migrate between harts; a lower
// privilege context keeps its own tp and the block address reaches
// scratch on the restore path instead.
func (h *Hart) handoff(tf *TrapFrame, next *Context) {
	cfg := &h.machine.cfg
	blk := h.block
	out := blk.context
	if out == nil {
		panic("rt: context switch with no current context")
	}
	if next == nil {
		panic("rt: context switch to a nil context")
	}
	if !next.live {
		panic("rt: context switch to a context with no saved state")
	}

	blk.trapFrame = tf.interrupted
	out.saved = *tf
	out.saved.interrupted = nil
	out.saved.pooled = false
	out.saved.inUse = false
	out.live = true
	h.pool.put(tf)

	blk.context = next
	// Re-initialized on trap exit to lower privilege and on nested
	// entry.
	blk.currentModeSP = 0

	in := next.saved
	next.live = false
	if in.Status&cfg.Mode.PPMask() == cfg.Mode.PPSelf() {
		in.GPR[riscv.TP] = blk.addr
	}
	h.restoreFrame(&in)
}

// ReturnToLower steers tf so that the restore descends to target at pc
// with the given stack and thread pointers.
func (h *Hart) ReturnToLower(tf *TrapFrame, target riscv.Mode, pc, sp, tp uint64) {
	cfg := &h.machine.cfg
	if target >= cfg.Mode {
		panic(fmt.Sprintf("rt: %v is not below the runtime's mode", target))
	}
	tf.Status = tf.Status&^cfg.Mode.PPMask() | cfg.Mode.PPEncode(target)
	tf.EPC = pc
	tf.GPR[riscv.SP] = sp
	tf.GPR[riscv.TP] = tp
}

// protectStack writes the sentry at the hart's stack floor.
func (h *Hart) protectStack() {
	h.stackGuard = h.machine.cfg.stackSentry()
}

// checkStack verifies the sentry; on corruption it reports the overflow
// and parks the hart.
func (h *Hart) checkStack() bool {
	want := h.machine.cfg.stackSentry()
	if got := h.stackGuard; got != want {
		h.log.WithFields(logrus.Fields{
			"want": fmt.Sprintf("%#x", want),
			"got":  fmt.Sprintf("%#x", got),
		}).Error("stack overflow detected")
		h.machine.hooks.StackOverflow(h, want, got)
		h.park()
		return false
	}
	return true
}

// park puts the hart into its terminal wait loop.
func (h *Hart) park() {
	h.parked = true
	h.PC = parkVector
	h.log.Info("hart parked")
}

// assertBlockAddr panics unless addr is this hart's control block, the
// moral equivalent of faulting on a clobbered tp or scratch.
func (h *Hart) assertBlockAddr(addr uint64) {
	if addr != h.block.addr {
		panic(fmt.Sprintf("rt: recovered control block %#x, want %#x", addr, h.block.addr))
	}
}
