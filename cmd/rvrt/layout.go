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
	"fmt"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/rivosinc/rv-runtime/pkg/riscv"
	"github.com/rivosinc/rv-runtime/pkg/rt"
)

// loadConfig resolves the -config flag shared by the commands.
func loadConfig(path string) (rt.TargetConfig, error) {
	if path == "" {
		return rt.DefaultTargetConfig(), nil
	}
	return rt.LoadTargetConfig(path)
}

// layoutCmd prints the control block and trap frame layouts a
// configuration implies, in the form consumed by assembly authors.
type layoutCmd struct {
	config string
}

// Name implements subcommands.Command.Name.
func (*layoutCmd) Name() string {
	return "layout"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*layoutCmd) Synopsis() string {
	return "print the control block and trap frame layouts"
}

// Usage implements subcommands.Command.Usage.
func (*layoutCmd) Usage() string {
	return "layout [-config <target.toml>]\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *layoutCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "target configuration file")
}

// Execute implements subcommands.Command.Execute.
func (c *layoutCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	cfg, err := loadConfig(c.config)
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}

	fmt.Printf("target: %v %v, %d hart(s)\n\n", cfg.Xlen, cfg.Mode, cfg.MaxHarts)

	fmt.Printf("control block (%d bytes):\n", rt.BlockSize(cfg.Xlen))
	for field := rt.BlockField(0); field < rt.NumBlockFields; field++ {
		fmt.Printf("  %3d  %s\n", rt.BlockOffset(field, cfg.Xlen), field)
	}

	l := rt.FrameLayout{Xlen: cfg.Xlen, FloatingPoint: cfg.FloatingPoint}
	fmt.Printf("\ntrap frame (%d bytes, %d with alignment):\n", l.Size(), l.AlignedSize())
	for r := riscv.RA; r < riscv.NumRegs; r++ {
		fmt.Printf("  %3d  %s\n", l.GPROffset(r), r)
	}
	if cfg.FloatingPoint {
		for i := 0; i < 32; i++ {
			fmt.Printf("  %3d  f%d\n", l.FPOffset(i), i)
		}
		fmt.Printf("  %3d  fcsr\n", l.FCSROffset())
	}
	for _, csr := range []riscv.CSR{riscv.CSRStatus, riscv.CSREPC, riscv.CSRTval, riscv.CSRCause} {
		fmt.Printf("  %3d  %s\n", l.CSROffset(csr), csr.Name(cfg.Mode))
	}
	fmt.Printf("  %3d  rt_flags\n", l.FlagsOffset())
	fmt.Printf("  %3d  int_frame\n", l.InterruptedFrameOffset())
	return subcommands.ExitSuccess
}

// checkCmd validates a configuration file.
type checkCmd struct {
	config string
}

// Name implements subcommands.Command.Name.
func (*checkCmd) Name() string {
	return "check"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*checkCmd) Synopsis() string {
	return "validate a target configuration file"
}

// Usage implements subcommands.Command.Usage.
func (*checkCmd) Usage() string {
	return "check -config <target.toml>\n"
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *checkCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.config, "config", "", "target configuration file")
}

// Execute implements subcommands.Command.Execute.
func (c *checkCmd) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if c.config == "" {
		logrus.Error("check requires -config")
		return subcommands.ExitUsageError
	}
	cfg, err := rt.LoadTargetConfig(c.config)
	if err != nil {
		logrus.Error(err)
		return subcommands.ExitFailure
	}
	logrus.WithFields(logrus.Fields{
		"mode":  cfg.Mode,
		"xlen":  cfg.Xlen,
		"harts": cfg.MaxHarts,
	}).Info("configuration valid")
	return subcommands.ExitSuccess
}
