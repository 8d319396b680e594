// breakpoint.go - C9: per-process software breakpoint management, byte
// patching through C7 (§4.6).

package debugger

import (
	"fmt"

	"github.com/dev-zzo/METALBONES/winapi"
)

const int3Byte = 0xCC

// Breakpoint is a software breakpoint: armed iff SavedByte is non-nil,
// in which case the invariant "byte at Address == 0xCC" holds.
type Breakpoint struct {
	Process   *Process
	Address   uint32
	SavedByte *byte
	AutoRearm bool
}

// Armed reports whether this breakpoint currently has a saved byte.
func (b *Breakpoint) Armed() bool { return b.SavedByte != nil }

// GetBreakpoint returns the Breakpoint for (p, va), creating it on
// first access; repeated calls for the same address return the same
// object (§4.6).
func (p *Process) GetBreakpoint(va uint32) *Breakpoint {
	p.mu.Lock()
	defer p.mu.Unlock()
	if bp, ok := p.breakpoints[va]; ok {
		return bp
	}
	bp := &Breakpoint{Process: p, Address: va}
	p.breakpoints[va] = bp
	return bp
}

// Arm lifts the page's protection to RW, saves the original byte, writes
// 0xCC, restores protection, and verifies the readback (§4.6).
func (b *Breakpoint) Arm() error {
	if b.Armed() {
		return ErrInvalidOperation
	}
	p := b.Process

	old, err := p.ProtectMemory(b.Address, 1, winapi.PageExecuteReadWrite)
	if err != nil {
		return err
	}
	orig, err := p.ReadMemory(b.Address, 1)
	if err != nil {
		_, _ = p.ProtectMemory(b.Address, 1, old)
		return err
	}
	if err := p.WriteMemory(b.Address, []byte{int3Byte}); err != nil {
		_, _ = p.ProtectMemory(b.Address, 1, old)
		return err
	}
	if _, err := p.ProtectMemory(b.Address, 1, old); err != nil {
		return err
	}

	readback, err := p.ReadMemory(b.Address, 1)
	if err != nil {
		return err
	}
	if readback[0] != int3Byte {
		return &BreakpointArmFailedError{Address: b.Address, Readback: readback[0]}
	}

	saved := orig[0]
	b.SavedByte = &saved
	return nil
}

// Disarm lifts protection, writes SavedByte back, restores protection,
// and clears SavedByte (§4.6).
func (b *Breakpoint) Disarm() error {
	if !b.Armed() {
		return ErrInvalidOperation
	}
	p := b.Process

	old, err := p.ProtectMemory(b.Address, 1, winapi.PageExecuteReadWrite)
	if err != nil {
		return err
	}
	if err := p.WriteMemory(b.Address, []byte{*b.SavedByte}); err != nil {
		_, _ = p.ProtectMemory(b.Address, 1, old)
		return err
	}
	if _, err := p.ProtectMemory(b.Address, 1, old); err != nil {
		return err
	}

	b.SavedByte = nil
	return nil
}

// HwKind names the four hardware-breakpoint kinds. IO is declared but
// rejected from Arm (§9 - not actually implemented in the source).
type HwKind int

const (
	HwExecute HwKind = iota
	HwWrite
	HwReadWrite
	HwIO
)

// HwBreakpoint is a declared-only interface onto DR0-DR3: no debug
// register is programmed, and Arm returns an error for every kind.
type HwBreakpoint struct {
	Process *Process
	Address uint32
	Kind    HwKind
}

var errHwIONotImplemented = fmt.Errorf("metalbones/debugger: hardware IO watchpoints are not implemented")

// Arm rejects IO with errHwIONotImplemented (§9) and reports every
// other kind as declared but not armed; it never touches a debug
// register.
func (h *HwBreakpoint) Arm() error {
	if h.Kind == HwIO {
		return errHwIONotImplemented
	}
	return fmt.Errorf("metalbones/debugger: hardware breakpoints are declared but not armed by this engine")
}
