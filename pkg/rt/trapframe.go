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

	"github.com/rivosinc/rv-runtime/pkg/riscv"
)

// Flags is the set of runtime state bits carried first in the control
// block (between trap entry and frame build) and then in the frame
// itself.
type Flags uint64

const (
	// FlagRestoreTrapFrame marks a frame whose restore must also
	// restore the control block's published frame reference from the
	// frame's back-link. Set on nested trap entry and on voluntary
	// switch frames.
	FlagRestoreTrapFrame Flags = 1 << 0

	// FlagFSDirty marks a frame that captured the FP register file
	// because the interrupted context had dirtied it.
	FlagFSDirty Flags = 1 << 1

	// FlagTranslationChanged marks a frame whose interrupted context
	// had address-translation controls modified while it was suspended.
	// Restoring such a frame issues a translation fence when the
	// configuration asks for one.
	FlagTranslationChanged Flags = 1 << 2
)

// String implements fmt.Stringer.String.
func (f Flags) String() string {
	s := ""
	if f&FlagRestoreTrapFrame != 0 {
		s += "|restore_trap_frame"
	}
	if f&FlagFSDirty != 0 {
		s += "|fs_dirty"
	}
	if f&FlagTranslationChanged != 0 {
		s += "|translation_changed"
	}
	if rest := f &^ (FlagRestoreTrapFrame | FlagFSDirty | FlagTranslationChanged); rest != 0 {
		s += fmt.Sprintf("|%#x", uint64(rest))
	}
	if s == "" {
		return "0"
	}
	return s[1:]
}

// TrapFrame is the register and CSR image captured on the active stack
// when the runtime is entered. Hooks mutate it to steer where, and at
// what privilege, the hart resumes; the x0 slot of GPR is always zero.
//
// Cause and Tval are informational: they are captured on entry but
// never written back to the hart on restore.
type TrapFrame struct {
	GPR    [riscv.NumRegs]uint64
	F      [32]uint64
	FCSR   uint64
	Status uint64
	EPC    uint64
	Tval   uint64
	Cause  riscv.Cause
	Flags  Flags

	// interrupted is the frame that was live when this one was built,
	// or nil. Forms the nesting chain.
	interrupted *TrapFrame

	// addr is the frame's base address on the simulated stack.
	addr uint64

	// pool bookkeeping.
	pooled bool
	inUse  bool
}

// Addr returns the frame's base address on the interrupted stack.
func (tf *TrapFrame) Addr() uint64 {
	return tf.addr
}

// Interrupted returns the frame that was outstanding when this one was
// built, or nil for an outermost frame.
func (tf *TrapFrame) Interrupted() *TrapFrame {
	return tf.interrupted
}

// SetReturn points the frame's resume pc at pc. The common idiom for a
// synchronous exception handler is tf.SetReturn(tf.EPC + 4).
func (tf *TrapFrame) SetReturn(pc uint64) {
	tf.EPC = pc
}

// framePool is a hart-local fixed pool of trap frames. Entry paths are
// allocation-free: the pool is sized at hart creation for the
// configured nesting depth and never grows.
type framePool struct {
	frames []TrapFrame
}

func (p *framePool) init(n int) {
	p.frames = make([]TrapFrame, n)
	for i := range p.frames {
		p.frames[i].pooled = true
	}
}

func (p *framePool) get() *TrapFrame {
	for i := range p.frames {
		if tf := &p.frames[i]; !tf.inUse {
			tf.inUse = true
			return tf
		}
	}
	panic("rt: trap frame pool exhausted; trap nesting exceeds the configured depth")
}

func (p *framePool) put(tf *TrapFrame) {
	if !tf.pooled {
		return
	}
	*tf = TrapFrame{pooled: true}
}
