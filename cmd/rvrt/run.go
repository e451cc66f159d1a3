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

package main

import (
	"context"
	"flag"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rivosinc/rv-runtime/pkg/riscv"
	"github.com/rivosinc/rv-runtime/pkg/rt"
)

// runCmd boots a simulated machine from a configuration and drives each
// hart through a short user-mode trap exercise.
type runCmd struct {
	config string
	harts  int
	traps  int
}

// Name implements subcommands.Command.Name.
func (*runCmd) Name() string {
	return "run"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*runCmd) Synopsis() string {
	return "boot a simulated machine and exercise the trap path"
}

// Usage implements subcommands.Command.Usage.
func (*runCmd) Usage() string {
	return "run [-config <target.toml>] [-harts N] [-traps N]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *runCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "target configuration file")
	f.IntVar(&c.harts, "harts", 0, "harts to reset (default: the configured maximum)")
	f.IntVar(&c.traps, "traps", 8, "traps to deliver per hart")
}

// exerciseHooks descends every hart to user mode and counts syscalls.
type exerciseHooks struct {
	entry uint64
	stack uint64
}

func (e *exerciseHooks) start(h *rt.Hart, tf *rt.TrapFrame) {
	id := h.Block().BootID()
	logrus.WithFields(logrus.Fields{
		"bootID": id,
		"hartID": h.Block().HartID(),
	}).Info("hart up")
	h.Block().SetContext(new(rt.Context))
	tf.GPR[riscv.A0] = 0 // syscall counter
	h.ReturnToLower(tf, riscv.ModeU, e.entry, e.stack-id*0x10000, 0)
}

// Boot implements rt.Hooks.Boot.
func (e *exerciseHooks) Boot(h *rt.Hart, tf *rt.TrapFrame) {
	e.start(h, tf)
}

// SecondaryBoot implements rt.Hooks.SecondaryBoot.
func (e *exerciseHooks) SecondaryBoot(h *rt.Hart, tf *rt.TrapFrame) {
	e.start(h, tf)
}

// Trap implements rt.Hooks.Trap.
func (e *exerciseHooks) Trap(h *rt.Hart, tf *rt.TrapFrame) {
	logrus.WithFields(logrus.Fields{
		"bootID": h.Block().BootID(),
		"cause":  uint64(tf.Cause),
		"epc":    tf.EPC,
	}).Debug("trap")
	tf.GPR[riscv.A0]++
	tf.SetReturn(tf.EPC + 4)
}

// StackOverflow implements rt.Hooks.StackOverflow.
func (e *exerciseHooks) StackOverflow(h *rt.Hart, want, got uint64) {
	logrus.WithFields(logrus.Fields{
		"bootID": h.Block().BootID(),
		"want":   want,
		"got":    got,
	}).Error("stack overflow")
}

// Execute implements subcommands.Command.Execute.
func (c *runCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig(c.config)
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	harts := c.harts
	if harts <= 0 {
		harts = cfg.MaxHarts
	}

	hooks := &exerciseHooks{
		entry: 0x100000,
		stack: cfg.StackTop - uint64(cfg.MaxHarts)*cfg.StackSize,
	}
	m, err := rt.NewMachine(rt.MachineOpts{Config: cfg, Hooks: hooks})
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}

	var g errgroup.Group
	for i := 0; i < harts; i++ {
		h := m.NewHart(uint64(i))
		g.Go(func() error {
			h.Reset()
			if h.Block() == nil {
				// Surplus hart; nothing to exercise.
				return nil
			}
			for n := 0; n < c.traps; n++ {
				h.PC = hooks.entry + uint64(4*n)
				h.Trap(riscv.CauseECallFromU, 0)
			}
			logrus.WithFields(logrus.Fields{
				"bootID":  h.Block().BootID(),
				"counted": h.Regs[riscv.A0],
			}).Info("hart done")
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
