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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/rivosinc/rv-runtime/pkg/riscv"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "target.toml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTargetConfig(t *testing.T) {
	path := writeConfig(t, `
[hart]
mode = "supervisor"
xlen = 64
max-harts = 4

[memory]
stack-size = 32768
stack-top = 0x80800000
block-base = 0x80002000

[features]
floating-point = true
stack-overflow-detection = true
skip-mem-init = false
sfence-on-restore = true
trap-nesting-depth = 3
`)
	got, err := LoadTargetConfig(path)
	if err != nil {
		t.Fatalf("LoadTargetConfig: %v", err)
	}
	want := TargetConfig{
		Mode:                     riscv.ModeS,
		Xlen:                     riscv.Xlen64,
		MaxHarts:                 4,
		StackSize:                32768,
		StackTop:                 0x80800000,
		BlockBase:                0x80002000,
		TrapNestingDepth:         3,
		FloatingPoint:            true,
		StackOverflowDetection:   true,
		AtomicExtension:          true,
		SfenceOnTrapFrameRestore: true,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadTargetConfigDefaults(t *testing.T) {
	path := writeConfig(t, "")
	got, err := LoadTargetConfig(path)
	if err != nil {
		t.Fatalf("LoadTargetConfig: %v", err)
	}
	if diff := cmp.Diff(DefaultTargetConfig(), got); diff != "" {
		t.Errorf("empty file does not yield defaults (-want +got):\n%s", diff)
	}
}

func TestLoadTargetConfigRejects(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{"mode", "[hart]\nmode = \"hypervisor\"\n"},
		{"xlen", "[hart]\nxlen = 128\n"},
		{"stack", "[memory]\nstack-size = 24\n"},
		{"nesting", "[features]\ntrap-nesting-depth = -1\n"},
		{"syntax", "[hart\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LoadTargetConfig(writeConfig(t, tc.body)); err == nil {
				t.Errorf("LoadTargetConfig accepted %q", tc.body)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	mutations := []struct {
		name string
		f    func(*TargetConfig)
	}{
		{"mode", func(c *TargetConfig) { c.Mode = riscv.ModeU }},
		{"xlen", func(c *TargetConfig) { c.Xlen = 16 }},
		{"harts", func(c *TargetConfig) { c.MaxHarts = 0 }},
		{"stack size", func(c *TargetConfig) { c.StackSize = 0 }},
		{"stack align", func(c *TargetConfig) { c.StackSize = 24 }},
		{"stack region", func(c *TargetConfig) { c.StackTop = c.StackSize - 16 }},
		{"block base", func(c *TargetConfig) { c.BlockBase = 0 }},
		{"nesting", func(c *TargetConfig) { c.TrapNestingDepth = 0 }},
	}
	for _, tc := range mutations {
		t.Run(tc.name, func(t *testing.T) {
			c := DefaultTargetConfig()
			tc.f(&c)
			if err := c.Validate(); err == nil {
				t.Error("Validate accepted a broken configuration")
			}
		})
	}
	c := DefaultTargetConfig()
	if err := c.Validate(); err != nil {
		t.Errorf("Validate rejected the default configuration: %v", err)
	}
}

func TestStackSentry(t *testing.T) {
	c := DefaultTargetConfig()
	if got := c.stackSentry(); got != StackSentry64 {
		t.Errorf("rv64 sentry = %#x, want %#x", got, StackSentry64)
	}
	c.Xlen = riscv.Xlen32
	if got := c.stackSentry(); got != StackSentry32 {
		t.Errorf("rv32 sentry = %#x, want %#x", got, StackSentry32)
	}
}
