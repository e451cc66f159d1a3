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

import "fmt"

// EntryReason tags why the runtime entered the integrating component.
// It is staged in the control block's handler_entry slot by whichever
// path triggered the entry, so the shared frame-build sequence can
// dispatch without knowing its caller.
type EntryReason int

const (
	// EntryBoot is the cold-boot entry of the hart that won boot id 0.
	EntryBoot EntryReason = iota

	// EntrySecondary is the cold-boot entry of every other hart.
	EntrySecondary

	// EntryTrap is a hardware trap or interrupt.
	EntryTrap

	// EntrySwitch is a voluntary context switch; it builds a frame but
	// dispatches to no hook.
	EntrySwitch
)

// String implements fmt.Stringer.String.
func (r EntryReason) String() string {
	switch r {
	case EntryBoot:
		return "boot"
	case EntrySecondary:
		return "secondary"
	case EntryTrap:
		return "trap"
	case EntrySwitch:
		return "switch"
	default:
		return fmt.Sprintf("EntryReason(%d)", int(r))
	}
}

// Hooks is the integrating component's entry surface. Every method runs
// on the hart's goroutine with a fully built trap context frame; the
// frame is restored when the method returns, so mutating it steers
// where and at what privilege the hart resumes.
type Hooks interface {
	// Boot is invoked exactly once per machine, on the hart that won
	// boot id 0, after memory initialization. Returning without
	// changing the frame parks the hart.
	Boot(h *Hart, tf *TrapFrame)

	// SecondaryBoot is invoked once on every other hart that received a
	// boot id.
	SecondaryBoot(h *Hart, tf *TrapFrame)

	// Trap is invoked for every trap taken into the runtime's mode. The
	// frame's Cause and Tval describe the event.
	Trap(h *Hart, tf *TrapFrame)

	// StackOverflow is invoked when the stack sentry check fails on a
	// trap return. The hart parks afterwards.
	StackOverflow(h *Hart, want, got uint64)
}

// ResetHooks is optionally implemented by a Hooks value to run
// target-specific work at the very top of reset, before any common hart
// state is touched. Only consulted when the configuration enables
// custom reset.
type ResetHooks interface {
	// CustomReset runs before common reset on every hart.
	CustomReset(h *Hart)
}
