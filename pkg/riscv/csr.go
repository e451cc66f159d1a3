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

package riscv

import "fmt"

// CSR identifies one of the control-and-status registers the runtime
// touches. Most of these exist per privilege mode; Addr and Name resolve
// the mode-specific instance.
type CSR uint8

const (
	// CSRStatus is the mode status register (mstatus/sstatus).
	CSRStatus CSR = iota

	// CSREPC is the exception program counter (mepc/sepc).
	CSREPC

	// CSRCause is the trap cause register (mcause/scause).
	CSRCause

	// CSRTval is the trap value register (mtval/stval).
	CSRTval

	// CSRScratch is the mode scratch register (mscratch/sscratch). The
	// runtime parks the per-hart control block address here while lower
	// privilege code owns the thread pointer.
	CSRScratch

	// CSRTvec is the trap vector base (mtvec/stvec).
	CSRTvec

	// CSRIE is the interrupt enable register (mie/sie).
	CSRIE

	// CSRHartID is mhartid. Machine mode only; supervisor runtimes
	// receive the hart id in a0 from the previous boot stage.
	CSRHartID
)

// Numeric CSR addresses per the privileged architecture.
var csrAddrs = map[Mode]map[CSR]uint16{
	ModeM: {
		CSRStatus:  0x300,
		CSRIE:      0x304,
		CSRTvec:    0x305,
		CSRScratch: 0x340,
		CSREPC:     0x341,
		CSRCause:   0x342,
		CSRTval:    0x343,
		CSRHartID:  0xf14,
	},
	ModeS: {
		CSRStatus:  0x100,
		CSRIE:      0x104,
		CSRTvec:    0x105,
		CSRScratch: 0x140,
		CSREPC:     0x141,
		CSRCause:   0x142,
		CSRTval:    0x143,
	},
}

var csrBaseNames = map[CSR]string{
	CSRStatus:  "status",
	CSREPC:     "epc",
	CSRCause:   "cause",
	CSRTval:    "tval",
	CSRScratch: "scratch",
	CSRTvec:    "tvec",
	CSRIE:      "ie",
	CSRHartID:  "mhartid",
}

// Addr returns the numeric address of the CSR as seen by a runtime in
// mode m.
func (c CSR) Addr(m Mode) uint16 {
	if c == CSRHartID {
		return csrAddrs[ModeM][c]
	}
	addr, ok := csrAddrs[m][c]
	if !ok {
		panic(fmt.Sprintf("riscv: csr %v not defined for mode %v", c, m))
	}
	return addr
}

// Name returns the assembler name of the CSR as seen by a runtime in
// mode m, e.g. "mstatus" or "sscratch".
func (c CSR) Name(m Mode) string {
	if c == CSRHartID {
		return csrBaseNames[c]
	}
	return m.String() + csrBaseNames[c]
}

// Cause is the value of the cause register captured at trap time. The
// top bit flags an interrupt as opposed to an exception.
type Cause uint64

// Exception causes.
const (
	CauseMisalignedFetch    Cause = 0
	CauseFetchAccess        Cause = 1
	CauseIllegalInstruction Cause = 2
	CauseBreakpoint         Cause = 3
	CauseLoadAccess         Cause = 5
	CauseStoreAccess        Cause = 7
	CauseECallFromU         Cause = 8
	CauseECallFromS         Cause = 9
	CauseECallFromM         Cause = 11
	CauseFetchPageFault     Cause = 12
	CauseLoadPageFault      Cause = 13
	CauseStorePageFault     Cause = 15
)

// Interrupt causes (the interrupt flag is added separately).
const (
	CauseSupervisorSoftware Cause = 1
	CauseMachineSoftware    Cause = 3
	CauseSupervisorTimer    Cause = 5
	CauseMachineTimer       Cause = 7
	CauseSupervisorExternal Cause = 9
	CauseMachineExternal    Cause = 11
)

// InterruptFlag returns the cause bit distinguishing interrupts from
// exceptions for the given register width.
func InterruptFlag(x Xlen) Cause {
	return 1 << (uint(x) - 1)
}

// Interrupt builds an interrupt cause value for the given width.
func (c Cause) Interrupt(x Xlen) Cause {
	return c | InterruptFlag(x)
}

// IsInterrupt reports whether the cause records an interrupt.
func (c Cause) IsInterrupt(x Xlen) bool {
	return c&InterruptFlag(x) != 0
}

// Code returns the exception code with the interrupt flag stripped.
func (c Cause) Code(x Xlen) Cause {
	return c &^ InterruptFlag(x)
}
