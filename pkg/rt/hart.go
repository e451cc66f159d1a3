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
	"github.com/sirupsen/logrus"

	"github.com/rivosinc/rv-runtime/pkg/riscv"
)

// Hart models one hardware thread's architectural state as the runtime
// sees it: the integer and FP register files, pc, the current privilege
// and the CSRs the trampoline traffics in. Exported register state may
// be read and written freely between entries to model the interrupted
// software; everything the trampoline owns is behind accessors.
//
// A Hart is confined to a single goroutine. Reset, Trap and SwitchTo
// are synchronous: hooks run on the caller's goroutine and state is
// fully restored before they return.
type Hart struct {
	// Regs is the integer register file; Regs[0] is hardwired to zero
	// and writes to it are ignored at restore.
	Regs [riscv.NumRegs]uint64

	// PC is the program counter of the modeled software.
	PC uint64

	// F and FCSR are the FP register file, meaningful only when the
	// configuration enables floating point.
	F    [32]uint64
	FCSR uint64

	machine *Machine
	block   *TPBlock
	pool    framePool
	log     *logrus.Entry

	// pendingSwitch is the context a trap hook asked to resume instead
	// of the interrupted one.
	pendingSwitch *Context

	mode riscv.Mode

	// CSR state for the runtime's mode.
	status  uint64
	epc     uint64
	cause   uint64
	tval    uint64
	scratch uint64
	tvec    uint64
	ie      uint64
	mhartid uint64

	parked      bool
	reservation bool
	fences      uint64

	// stackGuard models the word at this hart's stack floor.
	stackGuard uint64
}

// Mode returns the hart's current privilege mode.
func (h *Hart) Mode() riscv.Mode {
	return h.mode
}

// Parked reports whether the hart has entered its terminal wait loop.
func (h *Hart) Parked() bool {
	return h.parked
}

// Block returns the hart's control block. It is nil before Reset and on
// surplus harts that parked without claiming a boot id.
func (h *Hart) Block() *TPBlock {
	return h.block
}

// Machine returns the machine this hart belongs to.
func (h *Hart) Machine() *Machine {
	return h.machine
}

// Status returns the hart's status CSR for the runtime's mode.
func (h *Hart) Status() uint64 {
	return h.status
}

// Fences returns the number of address-translation fences the restore
// path has issued.
func (h *Hart) Fences() uint64 {
	return h.fences
}

// SetReservation models a load-reserved acquiring a reservation.
func (h *Hart) SetReservation() {
	h.reservation = true
}

// Reservation reports whether an LR reservation is outstanding.
func (h *Hart) Reservation() bool {
	return h.reservation
}

// CorruptStackGuard overwrites the word at the stack floor, as runaway
// stack growth would.
func (h *Hart) CorruptStackGuard(v uint64) {
	h.stackGuard = v
}
