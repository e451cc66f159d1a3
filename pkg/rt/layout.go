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

// BlockField identifies a word slot of the per-hart control block. The
// enumeration order is the storage order; each field occupies one
// register-width word, so the field index is also the offset in words
// from the block base held in tp.
type BlockField int

const (
	BlockCurrentModeSP BlockField = iota
	BlockInterruptedModeSP
	BlockInterruptedModeTP
	BlockHandlerEntry
	BlockBootID
	BlockHartID
	BlockCurrentContext
	BlockReturnAddr
	BlockFlags
	BlockTrapFrame

	NumBlockFields
)

var blockFieldNames = [NumBlockFields]string{
	BlockCurrentModeSP:     "current_mode_sp",
	BlockInterruptedModeSP: "interrupted_mode_sp",
	BlockInterruptedModeTP: "interrupted_mode_tp",
	BlockHandlerEntry:      "handler_entry",
	BlockBootID:            "boot_id",
	BlockHartID:            "hart_id",
	BlockCurrentContext:    "curr_context",
	BlockReturnAddr:        "return_addr",
	BlockFlags:             "rt_flags",
	BlockTrapFrame:         "trap_ctx_frame",
}

// String implements fmt.Stringer.String.
func (f BlockField) String() string {
	if f < 0 || f >= NumBlockFields {
		return fmt.Sprintf("BlockField(%d)", int(f))
	}
	return blockFieldNames[f]
}

// BlockOffset returns the byte offset of f from the block base.
func BlockOffset(f BlockField, x riscv.Xlen) uint64 {
	return uint64(f) * x.Bytes()
}

// BlockSize returns the control block size in bytes.
func BlockSize(x riscv.Xlen) uint64 {
	return uint64(NumBlockFields) * x.Bytes()
}

// FrameLayout describes the word layout of a trap context frame for a
// given configuration. Frames are carved from the active stack and hold,
// in order: the general registers x1..x31 except that sp, ra and tp
// slots receive the interrupted values staged in the control block; the
// FP register file and fcsr when configured; the status, epc, tval and
// cause CSRs; the runtime flags; and the back-reference to the
// interrupted frame.
type FrameLayout struct {
	Xlen          riscv.Xlen
	FloatingPoint bool
}

// frameAlign is the stack alignment required of a frame base.
const frameAlign = 16

const (
	frameGPRWords = int(riscv.NumRegs) - 1 // x0 has no slot
	frameFPWords  = 33                     // f0..f31 and fcsr
	frameCSRWords = 4                      // status, epc, tval, cause
	frameCtlWords = 2                      // rt_flags, int_frame
)

// GPROffset returns the byte offset of register r's save slot. Register
// x0 is not stored.
func (l FrameLayout) GPROffset(r riscv.Reg) uint64 {
	if r == riscv.Zero || r >= riscv.NumRegs {
		panic(fmt.Sprintf("rt: no frame slot for register %v", r))
	}
	return uint64(r-1) * l.Xlen.Bytes()
}

// FPOffset returns the byte offset of FP register fn's save slot.
func (l FrameLayout) FPOffset(n int) uint64 {
	if !l.FloatingPoint {
		panic("rt: frame layout has no FP slots")
	}
	if n < 0 || n > 31 {
		panic(fmt.Sprintf("rt: no frame slot for FP register f%d", n))
	}
	return (uint64(frameGPRWords) + uint64(n)) * l.Xlen.Bytes()
}

// FCSROffset returns the byte offset of the fcsr save slot.
func (l FrameLayout) FCSROffset() uint64 {
	if !l.FloatingPoint {
		panic("rt: frame layout has no FP slots")
	}
	return (uint64(frameGPRWords) + 32) * l.Xlen.Bytes()
}

func (l FrameLayout) csrBase() uint64 {
	w := uint64(frameGPRWords)
	if l.FloatingPoint {
		w += frameFPWords
	}
	return w * l.Xlen.Bytes()
}

// CSROffset returns the byte offset of the save slot for one of the
// captured CSRs: CSRStatus, CSREPC, CSRTval or CSRCause.
func (l FrameLayout) CSROffset(c riscv.CSR) uint64 {
	var idx uint64
	switch c {
	case riscv.CSRStatus:
		idx = 0
	case riscv.CSREPC:
		idx = 1
	case riscv.CSRTval:
		idx = 2
	case riscv.CSRCause:
		idx = 3
	default:
		panic(fmt.Sprintf("rt: CSR %v is not captured in the frame", c))
	}
	return l.csrBase() + idx*l.Xlen.Bytes()
}

// FlagsOffset returns the byte offset of the runtime flags slot.
func (l FrameLayout) FlagsOffset() uint64 {
	return l.csrBase() + uint64(frameCSRWords)*l.Xlen.Bytes()
}

// InterruptedFrameOffset returns the byte offset of the back-reference
// to the interrupted frame.
func (l FrameLayout) InterruptedFrameOffset() uint64 {
	return l.FlagsOffset() + l.Xlen.Bytes()
}

// Words returns the frame size in register-width words.
func (l FrameLayout) Words() int {
	w := frameGPRWords + frameCSRWords + frameCtlWords
	if l.FloatingPoint {
		w += frameFPWords
	}
	return w
}

// Size returns the frame size in bytes, before stack alignment.
func (l FrameLayout) Size() uint64 {
	return uint64(l.Words()) * l.Xlen.Bytes()
}

// AlignedSize returns the stack space consumed by a frame, including
// alignment padding below the frame base.
func (l FrameLayout) AlignedSize() uint64 {
	return (l.Size() + frameAlign - 1) &^ uint64(frameAlign-1)
}
