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

// Package rt models the per-hart execution context layer of a bare
// metal RISC-V runtime: the tp-anchored control block, the trap context
// frame, and the trampoline that builds and restores frames across
// boot, traps and context switches.
//
// The runtime owns exactly one privilege mode (machine or supervisor,
// per TargetConfig). While that mode executes, tp holds the hart's
// control block address and the mode's scratch CSR is zero; while a
// lower privilege executes, the assignment is inverted. The trap path
// tells the two apart with a single swap, which is also how nested
// traps are detected.
//
// Harts are goroutine-confined: all entry points on Hart are
// synchronous calls that run the integrating component's Hooks and
// return with the hart's state fully restored.
package rt

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/rivosinc/rv-runtime/pkg/riscv"
)

// Machine is a set of harts sharing one configuration, one Hooks
// implementation and the boot id counter. Create harts with NewHart and
// drive each from its own goroutine.
type Machine struct {
	cfg    TargetConfig
	hooks  Hooks
	log    *logrus.Entry
	layout FrameLayout

	// bootCounter hands out boot ids; the hardware analogue is an
	// atomic add on a word in cleared memory.
	bootCounter atomic.Uint64

	// memInitDone is closed by the boot hart once memory
	// initialization is complete. Secondary harts block on it.
	memInitDone chan struct{}
	memOnce     sync.Once

	blocks []TPBlock
}

// MachineOpts are the arguments to NewMachine.
type MachineOpts struct {
	Config TargetConfig
	Hooks  Hooks

	// Logger defaults to the logrus standard logger.
	Logger *logrus.Logger
}

// NewMachine validates the configuration and builds a machine.
func NewMachine(opts MachineOpts) (*Machine, error) {
	cfg := opts.Config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if opts.Hooks == nil {
		return nil, errors.New("rt: hooks are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	m := &Machine{
		cfg:         cfg,
		hooks:       opts.Hooks,
		layout:      FrameLayout{Xlen: cfg.Xlen, FloatingPoint: cfg.FloatingPoint},
		memInitDone: make(chan struct{}),
		blocks:      make([]TPBlock, cfg.MaxHarts),
	}
	m.log = logger.WithFields(logrus.Fields{
		"mode": cfg.Mode,
		"xlen": cfg.Xlen,
	})
	for i := range m.blocks {
		m.blocks[i].addr = cfg.BlockBase + uint64(i)*BlockSize(cfg.Xlen)
	}
	m.log.WithField("maxHarts", cfg.MaxHarts).Debug("machine created")
	return m, nil
}

// Config returns the machine's configuration.
func (m *Machine) Config() TargetConfig {
	return m.cfg
}

// Layout returns the frame layout the configuration implies.
func (m *Machine) Layout() FrameLayout {
	return m.layout
}

// NewHart creates a hart with the given architectural id. The id is
// what the machine-mode hart id CSR would read; for a supervisor-mode
// runtime it is also seeded into a0, where the previous boot stage
// leaves it.
func (m *Machine) NewHart(hartID uint64) *Hart {
	h := &Hart{
		machine: m,
		mhartid: hartID,
		log:     m.log.WithField("hart", hartID),
	}
	h.Regs[riscv.A0] = hartID
	// Entry frame, configured nesting, and one transient switch frame.
	h.pool.init(m.cfg.TrapNestingDepth + 2)
	return h
}

// memInit models the boot hart clearing memory and releasing the
// secondary harts.
func (m *Machine) memInit() {
	m.memOnce.Do(func() {
		m.log.Debug("memory initialization complete")
		close(m.memInitDone)
	})
}

// stackTop returns the stack top for a boot id.
func (m *Machine) stackTop(bootID uint64) uint64 {
	return m.cfg.StackTop - bootID*m.cfg.StackSize
}

// BootToHartID translates a boot id to the architectural hart id that
// claimed it. Valid once the harts have finished reset.
func (m *Machine) BootToHartID(bootID uint64) (uint64, bool) {
	if bootID >= uint64(len(m.blocks)) || !m.blocks[bootID].assigned {
		return 0, false
	}
	return m.blocks[bootID].hartID, true
}

// HartToBootID translates an architectural hart id to its boot id.
// Valid once the harts have finished reset.
func (m *Machine) HartToBootID(hartID uint64) (uint64, bool) {
	for i := range m.blocks {
		if b := &m.blocks[i]; b.assigned && b.hartID == hartID {
			return b.bootID, true
		}
	}
	return 0, false
}

// Block returns the control block for a boot id, for inspection.
func (m *Machine) Block(bootID uint64) (*TPBlock, bool) {
	if bootID >= uint64(len(m.blocks)) || !m.blocks[bootID].assigned {
		return nil, false
	}
	return &m.blocks[bootID], true
}
