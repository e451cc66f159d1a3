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

// Package riscv provides the architectural definitions shared by the
// runtime: privilege modes, register identities, CSR identities and the
// status/cause bit layouts the trap machinery depends on.
package riscv

import "fmt"

// Mode is a RISC-V privilege mode. The numeric values match the
// architectural encoding used in the status xPP fields.
type Mode uint8

const (
	// ModeU is user mode.
	ModeU Mode = 0

	// ModeS is supervisor mode.
	ModeS Mode = 1

	// ModeM is machine mode.
	ModeM Mode = 3
)

// String returns the single-letter mode prefix, as used in CSR names.
func (m Mode) String() string {
	switch m {
	case ModeU:
		return "u"
	case ModeS:
		return "s"
	case ModeM:
		return "m"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// PPMask returns the mask covering the previous-privilege field of the
// status register owned by mode m: MPP for machine mode, SPP for
// supervisor mode.
func (m Mode) PPMask() uint64 {
	switch m {
	case ModeM:
		return 3 << 11
	case ModeS:
		return 1 << 8
	default:
		panic("riscv: no previous-privilege field for mode " + m.String())
	}
}

// PPSelf returns the previous-privilege field value indicating a trap
// taken from mode m itself. The value equals PPMask for both M and S,
// which the trap-return path relies on.
func (m Mode) PPSelf() uint64 {
	return m.PPMask()
}

// PPEncode returns the previous-privilege field value naming target as
// the mode to return to, encoded for a runtime executing in mode m.
func (m Mode) PPEncode(target Mode) uint64 {
	switch m {
	case ModeM:
		return uint64(target) << 11
	case ModeS:
		switch target {
		case ModeS:
			return 1 << 8
		case ModeU:
			return 0
		}
	}
	panic(fmt.Sprintf("riscv: cannot encode return to %v from %v", target, m))
}

// PPDecode extracts the mode named by the previous-privilege field of
// status, for a runtime executing in mode m.
func (m Mode) PPDecode(status uint64) Mode {
	switch m {
	case ModeM:
		return Mode((status >> 11) & 3)
	case ModeS:
		if status&(1<<8) != 0 {
			return ModeS
		}
		return ModeU
	default:
		panic("riscv: no previous-privilege field for mode " + m.String())
	}
}

// Xlen is the register width of the hart.
type Xlen uint8

const (
	// Xlen32 is RV32.
	Xlen32 Xlen = 32

	// Xlen64 is RV64.
	Xlen64 Xlen = 64
)

// Bytes returns the register width in bytes.
func (x Xlen) Bytes() uint64 {
	return uint64(x) / 8
}

// String implements fmt.Stringer.
func (x Xlen) String() string {
	return fmt.Sprintf("rv%d", uint8(x))
}

// Status register floating-point state (FS) field, bits 14:13.
const (
	// StatusFSMask covers the FS field.
	StatusFSMask uint64 = 3 << 13

	// StatusFSClean marks the FP register file as clean.
	StatusFSClean uint64 = 2 << 13

	// StatusFSDirty marks the FP register file as dirty; equal to the
	// full mask, so status&StatusFSMask == StatusFSDirty tests dirtiness.
	StatusFSDirty uint64 = 3 << 13
)
