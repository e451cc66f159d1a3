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

	"github.com/BurntSushi/toml"

	"github.com/rivosinc/rv-runtime/pkg/riscv"
)

// Stack sentry values, written at the stack floor at boot and verified
// on every trap return when overflow detection is configured.
const (
	// StackSentry64 is "-SENTRY-" as a little-endian RV64 word.
	StackSentry64 uint64 = 0x2d5952544e45532d

	// StackSentry32 is "-SEN" as a little-endian RV32 word.
	StackSentry32 uint64 = 0x4e45532d
)

// TargetConfig describes the hart configuration the runtime is built
// for. The scratch-register identity, stack carve-out and frame layout
// all derive from it, so it is fixed at machine creation.
type TargetConfig struct {
	// Mode is the privilege mode the runtime itself executes in. It
	// selects the scratch CSR and the status PP field interpretation.
	Mode riscv.Mode

	// Xlen is the register width.
	Xlen riscv.Xlen

	// MaxHarts bounds the number of boot ids handed out. Harts beyond
	// this count park at reset.
	MaxHarts int

	// StackSize is the per-hart stack carve-out, in bytes.
	StackSize uint64

	// StackTop is the top of the stack region; hart with boot id n gets
	// the range [StackTop-(n+1)*StackSize, StackTop-n*StackSize).
	StackTop uint64

	// BlockBase is the base address of the per-hart control block
	// storage.
	BlockBase uint64

	// TrapNestingDepth is the number of simultaneously outstanding trap
	// frames a hart must support beyond the entry frame. Sizes the
	// per-hart frame pool.
	TrapNestingDepth int

	// SkipMemInit skips the boot-hart memory clearing barrier that
	// secondary harts otherwise wait on.
	SkipMemInit bool

	// StackOverflowDetection enables the stack sentry check on every
	// trap return.
	StackOverflowDetection bool

	// AtomicExtension indicates LR/SC support; reservations are cleared
	// when a frame is restored.
	AtomicExtension bool

	// FloatingPoint enables lazy save/restore of the FP register file,
	// keyed on the status FS field.
	FloatingPoint bool

	// SfenceOnTrapFrameRestore issues an address-translation fence when
	// a restored frame is flagged as having changed translation
	// controls.
	SfenceOnTrapFrameRestore bool

	// CustomReset invokes the integrating component's reset hook before
	// common hart initialization.
	CustomReset bool
}

// DefaultTargetConfig returns a single-hart RV64 machine-mode
// configuration.
func DefaultTargetConfig() TargetConfig {
	return TargetConfig{
		Mode:             riscv.ModeM,
		Xlen:             riscv.Xlen64,
		MaxHarts:         1,
		StackSize:        16 << 10,
		StackTop:         0x80400000,
		BlockBase:        0x80001000,
		TrapNestingDepth: 1,
		AtomicExtension:  true,
	}
}

// Validate checks the configuration for internal consistency.
func (c *TargetConfig) Validate() error {
	if c.Mode != riscv.ModeM && c.Mode != riscv.ModeS {
		return fmt.Errorf("rt: unsupported runtime mode %v", c.Mode)
	}
	if c.Xlen != riscv.Xlen32 && c.Xlen != riscv.Xlen64 {
		return fmt.Errorf("rt: unsupported xlen %d", c.Xlen)
	}
	if c.MaxHarts < 1 {
		return fmt.Errorf("rt: max harts must be at least 1, got %d", c.MaxHarts)
	}
	if c.StackSize == 0 || c.StackSize%16 != 0 {
		return fmt.Errorf("rt: stack size must be a non-zero multiple of 16, got %d", c.StackSize)
	}
	if c.StackTop < uint64(c.MaxHarts)*c.StackSize {
		return fmt.Errorf("rt: stack region [%#x, %#x) underflows", c.StackTop-uint64(c.MaxHarts)*c.StackSize, c.StackTop)
	}
	if c.BlockBase == 0 {
		return fmt.Errorf("rt: control block base must be non-zero")
	}
	if c.TrapNestingDepth < 1 {
		return fmt.Errorf("rt: trap nesting depth must be at least 1, got %d", c.TrapNestingDepth)
	}
	return nil
}

// stackSentry returns the sentry word for the configured width.
func (c *TargetConfig) stackSentry() uint64 {
	if c.Xlen == riscv.Xlen32 {
		return StackSentry32
	}
	return StackSentry64
}

// fileConfig is the on-disk TOML form of TargetConfig.
type fileConfig struct {
	Hart struct {
		Mode     string `toml:"mode"`
		Xlen     int    `toml:"xlen"`
		MaxHarts int    `toml:"max-harts"`
	} `toml:"hart"`
	Memory struct {
		StackSize uint64 `toml:"stack-size"`
		StackTop  uint64 `toml:"stack-top"`
		BlockBase uint64 `toml:"block-base"`
	} `toml:"memory"`
	Features struct {
		FloatingPoint          bool `toml:"floating-point"`
		StackOverflowDetection bool `toml:"stack-overflow-detection"`
		AtomicExtension        bool `toml:"atomic-extension"`
		SkipMemInit            bool `toml:"skip-mem-init"`
		SfenceOnRestore        bool `toml:"sfence-on-restore"`
		CustomReset            bool `toml:"custom-reset"`
		TrapNestingDepth       int  `toml:"trap-nesting-depth"`
	} `toml:"features"`
}

func (fc *fileConfig) target() (TargetConfig, error) {
	c := DefaultTargetConfig()
	switch fc.Hart.Mode {
	case "", "machine", "m":
		c.Mode = riscv.ModeM
	case "supervisor", "s":
		c.Mode = riscv.ModeS
	default:
		return c, fmt.Errorf("rt: unknown mode %q", fc.Hart.Mode)
	}
	switch fc.Hart.Xlen {
	case 0:
	case 32:
		c.Xlen = riscv.Xlen32
	case 64:
		c.Xlen = riscv.Xlen64
	default:
		return c, fmt.Errorf("rt: unknown xlen %d", fc.Hart.Xlen)
	}
	if fc.Hart.MaxHarts != 0 {
		c.MaxHarts = fc.Hart.MaxHarts
	}
	if fc.Memory.StackSize != 0 {
		c.StackSize = fc.Memory.StackSize
	}
	if fc.Memory.StackTop != 0 {
		c.StackTop = fc.Memory.StackTop
	}
	if fc.Memory.BlockBase != 0 {
		c.BlockBase = fc.Memory.BlockBase
	}
	if fc.Features.TrapNestingDepth != 0 {
		c.TrapNestingDepth = fc.Features.TrapNestingDepth
	}
	c.FloatingPoint = fc.Features.FloatingPoint
	c.StackOverflowDetection = fc.Features.StackOverflowDetection
	c.AtomicExtension = fc.Features.AtomicExtension
	c.SkipMemInit = fc.Features.SkipMemInit
	c.SfenceOnTrapFrameRestore = fc.Features.SfenceOnRestore
	c.CustomReset = fc.Features.CustomReset
	return c, nil
}

// LoadTargetConfig reads a TargetConfig from a TOML file. Absent fields
// take their DefaultTargetConfig values.
func LoadTargetConfig(path string) (TargetConfig, error) {
	var fc fileConfig
	fc.Features.AtomicExtension = true
	if _, err := toml.DecodeFile(path, &fc); err != nil {
		return TargetConfig{}, fmt.Errorf("rt: reading target config %s: %w", path, err)
	}
	c, err := fc.target()
	if err != nil {
		return TargetConfig{}, err
	}
	if err := c.Validate(); err != nil {
		return TargetConfig{}, err
	}
	return c, nil
}
