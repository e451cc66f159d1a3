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

import "fmt"

// TPBlock is the per-hart control block. While the runtime's mode
// executes, tp holds the block's address; while a lower privilege
// executes, the runtime mode's scratch CSR holds it instead, so the
// trap path can always recover hart-local state in a handful of
// instructions.
//
// The first four fields plus returnAddr and flags are trampoline
// scratch: currentModeSP is the only one with a stable value between
// entries, the others are live only inside the capture window between
// an entry path staging them and the frame build draining them.
type TPBlock struct {
	// currentModeSP is the runtime-mode stack pointer to install when a
	// trap arrives from a lower privilege. Re-initialized on every trap
	// exit to lower privilege and on nested entry.
	currentModeSP uint64

	// interruptedModeSP and interruptedModeTP stage the interrupted
	// context's sp and tp between trap entry and frame build.
	interruptedModeSP uint64
	interruptedModeTP uint64

	// entry tags why the runtime was entered; staged by the entry paths
	// for the shared frame-build sequence.
	entry EntryReason

	// bootID is the hart's position in the boot race; hartID is its
	// architectural id.
	bootID uint64
	hartID uint64

	// context is the integrating component's current execution context.
	// Owned by the integrating component; the runtime only reads it
	// during a switch handoff.
	context *Context

	// returnAddr stages the interrupted ra between an entry path and
	// the frame build, freeing ra for the trampoline's own use.
	returnAddr uint64

	// flags stages runtime flag bits between entry and frame build.
	flags Flags

	// trapFrame is the published frame of the trap currently being
	// handled, or nil when no trap is active.
	trapFrame *TrapFrame

	// addr is the block's address in the simulated layout.
	addr uint64

	// slotsLive guards the capture window: set when an entry path
	// stages the single-use slots, cleared when the frame build drains
	// them.
	slotsLive bool

	// assigned is set once a hart has claimed this block at reset.
	assigned bool
}

// Addr returns the block's address, the value held in tp while the
// runtime's mode executes.
func (b *TPBlock) Addr() uint64 {
	return b.addr
}

// BootID returns the hart's boot id.
func (b *TPBlock) BootID() uint64 {
	return b.bootID
}

// HartID returns the hart's architectural id.
func (b *TPBlock) HartID() uint64 {
	return b.hartID
}

// Context returns the current execution context, which may be nil.
func (b *TPBlock) Context() *Context {
	return b.context
}

// SetContext installs the current execution context. It must not be
// called while a trap is being handled; a handler that wants to resume a
// different context requests a switch instead.
func (b *TPBlock) SetContext(ctx *Context) {
	if b.trapFrame != nil {
		panic("rt: SetContext called with a trap outstanding")
	}
	b.context = ctx
}

// TrapFrame returns the published frame of the trap currently being
// handled. ok is false when no trap is active.
func (b *TPBlock) TrapFrame() (tf *TrapFrame, ok bool) {
	return b.trapFrame, b.trapFrame != nil
}

// beginCapture opens the single-use slot window for an entry path.
func (b *TPBlock) beginCapture() {
	if b.slotsLive {
		panic(fmt.Sprintf("rt: hart %d re-entered before the previous capture was drained", b.hartID))
	}
	b.slotsLive = true
}

// drainCapture closes the window from the frame build.
func (b *TPBlock) drainCapture() {
	if !b.slotsLive {
		panic(fmt.Sprintf("rt: hart %d frame build without staged slots", b.hartID))
	}
	b.slotsLive = false
}
