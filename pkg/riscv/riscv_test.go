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

import "testing"

func TestPPEncoding(t *testing.T) {
	for _, tc := range []struct {
		mode   Mode
		target Mode
		want   uint64
	}{
		{ModeM, ModeM, 3 << 11},
		{ModeM, ModeS, 1 << 11},
		{ModeM, ModeU, 0},
		{ModeS, ModeS, 1 << 8},
		{ModeS, ModeU, 0},
	} {
		if got := tc.mode.PPEncode(tc.target); got != tc.want {
			t.Errorf("%v.PPEncode(%v) = %#x, want %#x", tc.mode, tc.target, got, tc.want)
		}
		status := ^uint64(0)&^tc.mode.PPMask() | tc.mode.PPEncode(tc.target)
		if got := tc.mode.PPDecode(status); got != tc.target {
			t.Errorf("%v.PPDecode(%#x) = %v, want %v", tc.mode, status, got, tc.target)
		}
	}
}

func TestPPSelf(t *testing.T) {
	if got, want := ModeM.PPSelf(), uint64(3<<11); got != want {
		t.Errorf("ModeM.PPSelf = %#x, want %#x", got, want)
	}
	if got, want := ModeS.PPSelf(), uint64(1<<8); got != want {
		t.Errorf("ModeS.PPSelf = %#x, want %#x", got, want)
	}
}

func TestCSRNames(t *testing.T) {
	for _, tc := range []struct {
		csr  CSR
		mode Mode
		want string
	}{
		{CSRStatus, ModeM, "mstatus"},
		{CSRStatus, ModeS, "sstatus"},
		{CSRScratch, ModeM, "mscratch"},
		{CSRScratch, ModeS, "sscratch"},
		{CSREPC, ModeS, "sepc"},
		{CSRHartID, ModeM, "mhartid"},
		{CSRHartID, ModeS, "mhartid"},
	} {
		if got := tc.csr.Name(tc.mode); got != tc.want {
			t.Errorf("%v in %v = %q, want %q", tc.csr, tc.mode, got, tc.want)
		}
	}
}

func TestCSRAddrs(t *testing.T) {
	for _, tc := range []struct {
		csr  CSR
		mode Mode
		want uint16
	}{
		{CSRStatus, ModeM, 0x300},
		{CSRStatus, ModeS, 0x100},
		{CSRScratch, ModeM, 0x340},
		{CSRScratch, ModeS, 0x140},
		{CSREPC, ModeM, 0x341},
		{CSRCause, ModeS, 0x142},
		{CSRHartID, ModeM, 0xf14},
	} {
		if got := tc.csr.Addr(tc.mode); got != tc.want {
			t.Errorf("%v in %v = %#x, want %#x", tc.csr, tc.mode, got, tc.want)
		}
	}
}

func TestCause(t *testing.T) {
	c := CauseMachineTimer.Interrupt(Xlen64)
	if !c.IsInterrupt(Xlen64) {
		t.Error("interrupt flag lost")
	}
	if got := c.Code(Xlen64); got != CauseMachineTimer {
		t.Errorf("Code = %v, want %v", got, CauseMachineTimer)
	}
	if CauseECallFromU.IsInterrupt(Xlen64) {
		t.Error("exception reported as interrupt")
	}

	c32 := CauseSupervisorTimer.Interrupt(Xlen32)
	if got, want := uint64(c32), uint64(1<<31|5); got != want {
		t.Errorf("rv32 interrupt cause = %#x, want %#x", got, want)
	}
	if c32.IsInterrupt(Xlen64) {
		t.Error("rv32 interrupt flag read with rv64 width")
	}
}

func TestRegNames(t *testing.T) {
	for r, want := range map[Reg]string{
		Zero: "zero", RA: "ra", SP: "sp", GP: "gp", TP: "tp",
		A0: "a0", A7: "a7", S11: "s11", T6: "t6",
	} {
		if got := r.String(); got != want {
			t.Errorf("Reg(%d) = %q, want %q", uint8(r), got, want)
		}
	}
}

func TestXlenBytes(t *testing.T) {
	if got := Xlen64.Bytes(); got != 8 {
		t.Errorf("Xlen64.Bytes = %d", got)
	}
	if got := Xlen32.Bytes(); got != 4 {
		t.Errorf("Xlen32.Bytes = %d", got)
	}
}
