// eventpump_test.go - exercises C10/C11 against winapi.FakeEngine,
// including literal translations of the scripted end-to-end scenarios.

package debugger

import (
	"testing"

	"github.com/dev-zzo/METALBONES/winapi"
)

func TestProcessCreateSynthesizesImageAndInitialThread(t *testing.T) {
	eng := winapi.NewFakeEngine()
	pid := eng.CreateFakeProcess()
	d := NewDebugger(eng, nil)

	var order []string
	d.Hooks.OnProcessCreateBegin = func(p *Process) { order = append(order, "begin") }
	d.Hooks.OnModuleLoad = func(m *Module) { order = append(order, "module") }
	d.Hooks.OnThreadCreate = func(th *Thread) { order = append(order, "thread") }
	d.Hooks.OnProcessCreateEnd = func(p *Process) { order = append(order, "end") }

	eng.PushEvent(winapi.DebugEvent{
		Kind:         winapi.ProcessCreate,
		ProcessID:    pid,
		ThreadID:     1,
		ImageBase:    0x400000,
		StartAddress: 0x401000,
	})

	if !d.WaitEvent(0) {
		t.Fatalf("WaitEvent returned false")
	}

	want := []string{"begin", "module", "thread", "end"}
	if len(order) != len(want) {
		t.Fatalf("hook order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hook order = %v, want %v", order, want)
		}
	}

	p, ok := d.process(pid)
	if !ok {
		t.Fatalf("process %d not registered", pid)
	}
	if p.Image == nil || p.Image.BaseAddress != 0x400000 {
		t.Fatalf("Image not set correctly: %+v", p.Image)
	}
	if p.InitialThread == nil || !p.InitialThread.IsInitial {
		t.Fatalf("InitialThread not set correctly: %+v", p.InitialThread)
	}
}

// TestProcessCreateThenExitEmptiesRegistry is scenario 5: ProcessCreate
// immediately followed by ProcessExit must fire OnProcessExit and leave
// the registry empty, with no synthetic module-unload in between.
func TestProcessCreateThenExitEmptiesRegistry(t *testing.T) {
	eng := winapi.NewFakeEngine()
	pid := eng.CreateFakeProcess()
	d := NewDebugger(eng, nil)

	var order []string
	d.Hooks.OnProcessCreateBegin = func(p *Process) { order = append(order, "begin") }
	d.Hooks.OnModuleLoad = func(m *Module) { order = append(order, "module-load") }
	d.Hooks.OnModuleUnload = func(m *Module) { order = append(order, "module-unload") }
	d.Hooks.OnThreadCreate = func(th *Thread) { order = append(order, "thread-create") }
	d.Hooks.OnProcessCreateEnd = func(p *Process) { order = append(order, "end") }
	d.Hooks.OnProcessExit = func(p *Process) { order = append(order, "exit") }

	eng.PushEvent(winapi.DebugEvent{
		Kind:         winapi.ProcessCreate,
		ProcessID:    pid,
		ThreadID:     1,
		ImageBase:    0x400000,
		StartAddress: 0x401000,
	})
	eng.PushEvent(winapi.DebugEvent{
		Kind:      winapi.ProcessExit,
		ProcessID: pid,
		ThreadID:  1,
		ExitCode:  0,
	})

	if !d.WaitEvent(0) {
		t.Fatalf("first WaitEvent returned false")
	}
	if !d.WaitEvent(0) {
		t.Fatalf("second WaitEvent returned false")
	}

	want := []string{"begin", "module-load", "thread-create", "end", "exit"}
	if len(order) != len(want) {
		t.Fatalf("hook order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hook order = %v, want %v (no synthetic module-unload expected)", order, want)
		}
	}

	if _, ok := d.process(pid); ok {
		t.Fatalf("process %d still registered after exit", pid)
	}
}

// TestBreakpointArmDisarmRoundTrip is scenario 6: arming then disarming
// a software breakpoint must be a byte-exact round trip through the
// fake memory/protect model.
func TestBreakpointArmDisarmRoundTrip(t *testing.T) {
	eng := winapi.NewFakeEngine()
	pid := eng.CreateFakeProcess()
	h, err := eng.OpenProcess(pid)
	if err != nil {
		t.Fatalf("OpenProcess: %v", err)
	}
	const addr = 0x401000
	original := []byte{0x55, 0x8B, 0xEC}
	if err := h.WriteMemory(addr, original); err != nil {
		t.Fatalf("seed WriteMemory: %v", err)
	}

	p := newProcess(pid, h)
	bp := p.GetBreakpoint(addr)

	if err := bp.Arm(); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if !bp.Armed() {
		t.Fatalf("expected Armed() true after Arm")
	}
	patched, err := h.ReadMemory(addr, 1)
	if err != nil || patched[0] != int3Byte {
		t.Fatalf("expected 0xCC at %#x, got %v err=%v", addr, patched, err)
	}

	if err := bp.Disarm(); err != nil {
		t.Fatalf("Disarm: %v", err)
	}
	if bp.Armed() {
		t.Fatalf("expected Armed() false after Disarm")
	}
	restored, err := h.ReadMemory(addr, 1)
	if err != nil || restored[0] != original[0] {
		t.Fatalf("expected original byte %#x restored, got %v err=%v", original[0], restored, err)
	}
}

func TestBreakpointArmTwiceIsInvalidOperation(t *testing.T) {
	eng := winapi.NewFakeEngine()
	pid := eng.CreateFakeProcess()
	h, _ := eng.OpenProcess(pid)
	_ = h.WriteMemory(0x401000, []byte{0x90})
	p := newProcess(pid, h)
	bp := p.GetBreakpoint(0x401000)

	if err := bp.Arm(); err != nil {
		t.Fatalf("Arm: %v", err)
	}
	if err := bp.Arm(); err != ErrInvalidOperation {
		t.Fatalf("second Arm: got %v, want ErrInvalidOperation", err)
	}
}

func TestBreakpointHitDecrementsEipAndDisarms(t *testing.T) {
	eng := winapi.NewFakeEngine()
	pid := eng.CreateFakeProcess()
	h, _ := eng.OpenProcess(pid)
	const addr = 0x401000
	_ = h.WriteMemory(addr, []byte{0x90})

	d := NewDebugger(eng, nil)
	eng.PushEvent(winapi.DebugEvent{Kind: winapi.ProcessCreate, ProcessID: pid, ThreadID: 1, ImageBase: 0x400000, StartAddress: addr})
	d.WaitEvent(0)

	p, _ := d.process(pid)
	bp := p.GetBreakpoint(addr)
	if err := bp.Arm(); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	th, _ := h.OpenThread(1)
	ctx, _ := th.GetContext()
	ctx.Eip = addr + 1
	_ = th.SetContext(ctx)

	var reported *Breakpoint
	var seenEip uint32
	d.Hooks.OnBreakpoint = func(t *Thread, c *winapi.ThreadContext, b *Breakpoint) winapi.ContinueStatus {
		reported = b
		seenEip = c.Eip
		return winapi.DBG_CONTINUE
	}

	eng.PushEvent(winapi.DebugEvent{Kind: winapi.Breakpoint, ProcessID: pid, ThreadID: 1})
	if !d.WaitEvent(0) {
		t.Fatalf("WaitEvent returned false")
	}

	if reported != bp {
		t.Fatalf("expected OnBreakpoint to report the hit breakpoint, got %v", reported)
	}
	if seenEip != addr {
		t.Fatalf("expected decremented EIP %#x, got %#x", addr, seenEip)
	}
	if bp.Armed() {
		t.Fatalf("expected breakpoint disarmed after hit")
	}
}

func TestAutoRearmOnNextSingleStep(t *testing.T) {
	eng := winapi.NewFakeEngine()
	pid := eng.CreateFakeProcess()
	h, _ := eng.OpenProcess(pid)
	const addr = 0x401000
	_ = h.WriteMemory(addr, []byte{0x90})

	d := NewDebugger(eng, nil)
	eng.PushEvent(winapi.DebugEvent{Kind: winapi.ProcessCreate, ProcessID: pid, ThreadID: 1, ImageBase: 0x400000, StartAddress: addr})
	d.WaitEvent(0)

	p, _ := d.process(pid)
	bp := p.GetBreakpoint(addr)
	bp.AutoRearm = true
	if err := bp.Arm(); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	th, _ := h.OpenThread(1)
	ctx, _ := th.GetContext()
	ctx.Eip = addr + 1
	_ = th.SetContext(ctx)

	eng.PushEvent(winapi.DebugEvent{Kind: winapi.Breakpoint, ProcessID: pid, ThreadID: 1})
	d.WaitEvent(0)
	if bp.Armed() {
		t.Fatalf("expected disarmed immediately after hit")
	}

	eng.PushEvent(winapi.DebugEvent{Kind: winapi.SingleStep, ProcessID: pid, ThreadID: 1})
	d.WaitEvent(0)
	if !bp.Armed() {
		t.Fatalf("expected auto-rearm to re-arm the breakpoint after single step")
	}

	t2 := p.Threads()[0]
	if t2.pendingRearm != nil {
		t.Fatalf("expected pendingRearm cleared after single step")
	}
}

func TestNoAutoRearmLeavesBreakpointDisarmed(t *testing.T) {
	eng := winapi.NewFakeEngine()
	pid := eng.CreateFakeProcess()
	h, _ := eng.OpenProcess(pid)
	const addr = 0x401000
	_ = h.WriteMemory(addr, []byte{0x90})

	d := NewDebugger(eng, nil)
	eng.PushEvent(winapi.DebugEvent{Kind: winapi.ProcessCreate, ProcessID: pid, ThreadID: 1, ImageBase: 0x400000, StartAddress: addr})
	d.WaitEvent(0)

	p, _ := d.process(pid)
	bp := p.GetBreakpoint(addr)
	if err := bp.Arm(); err != nil {
		t.Fatalf("Arm: %v", err)
	}

	th, _ := h.OpenThread(1)
	ctx, _ := th.GetContext()
	ctx.Eip = addr + 1
	_ = th.SetContext(ctx)

	eng.PushEvent(winapi.DebugEvent{Kind: winapi.Breakpoint, ProcessID: pid, ThreadID: 1})
	d.WaitEvent(0)

	eng.PushEvent(winapi.DebugEvent{Kind: winapi.SingleStep, ProcessID: pid, ThreadID: 1})
	d.WaitEvent(0)

	if bp.Armed() {
		t.Fatalf("expected breakpoint to remain disarmed without auto_rearm")
	}
}

func TestHwBreakpointIORejected(t *testing.T) {
	hw := &HwBreakpoint{Kind: HwIO}
	if err := hw.Arm(); err != errHwIONotImplemented {
		t.Fatalf("Arm(IO) = %v, want errHwIONotImplemented", err)
	}
}

func TestHwBreakpointExecuteNotActuallyArmed(t *testing.T) {
	hw := &HwBreakpoint{Kind: HwExecute}
	if err := hw.Arm(); err == nil {
		t.Fatalf("expected Arm to report the declared-only status for HwExecute")
	}
}

func TestWaitEventTimeoutReturnsFalse(t *testing.T) {
	eng := winapi.NewFakeEngine()
	d := NewDebugger(eng, nil)
	if d.WaitEvent(0) {
		t.Fatalf("expected WaitEvent to return false with no pending events")
	}
}

func TestUnknownEventKindPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected dispatch to panic on an unknown event kind")
		}
	}()
	eng := winapi.NewFakeEngine()
	d := NewDebugger(eng, nil)
	d.dispatch(winapi.DebugEvent{Kind: winapi.EventKind(999)})
}
