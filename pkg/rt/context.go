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
	"unsafe"

	"github.com/rivosinc/rv-runtime/pkg/riscv"
)

// ThreadContext is the register save area a context switch writes the
// outgoing thread's state into and reads the incoming thread's state
// from. The integrating component embeds it, via Context, at the head
// of whatever per-thread structure it keeps; the runtime relies on that
// placement to find the save area from the context reference alone.
type ThreadContext struct {
	saved TrapFrame
	live  bool
}

// Bootstrap seeds the save area for an integrating-mode thread that has
// never run, so that the first switch into it lands at pc with the
// given stack. status must carry the runtime mode's own PP encoding;
// descents to lower privilege happen on the trap return path, not here.
// The returned frame may be further seeded (argument registers) before
// the thread is first switched to.
func (tc *ThreadContext) Bootstrap(pc, sp, status uint64) *TrapFrame {
	tc.saved = TrapFrame{
		Status: status,
		EPC:    pc,
		Flags:  FlagRestoreTrapFrame,
	}
	tc.saved.GPR[riscv.SP] = sp
	tc.saved.GPR[riscv.RA] = pc
	tc.saved.addr = sp
	tc.live = true
	return &tc.saved
}

// Live reports whether the save area holds a restorable state.
func (tc *ThreadContext) Live() bool {
	return tc.live
}

// Context is the runtime's view of an integrating-component execution
// context. The save area must sit at offset zero; the component embeds
// Context at the head of its own thread structure and keeps whatever
// else it needs behind it.
type Context struct {
	ThreadContext
}

func init() {
	if off := unsafe.Offsetof(Context{}.ThreadContext); off != 0 {
		panic("rt: ThreadContext is not at offset zero of Context")
	}
}
