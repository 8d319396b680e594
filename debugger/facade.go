// facade.go - C11: aggregates C7-C10 behind spawn/attach/wait_event and
// the overridable hooks (§6).

package debugger

import (
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/dev-zzo/METALBONES/decoder"
	"github.com/dev-zzo/METALBONES/winapi"
)

// Debugger is the facade: single-threaded and cooperative at the
// granularity of WaitEvent (§5) — exactly one goroutine should drive a
// given instance.
type Debugger struct {
	engine winapi.Engine
	Hooks  Hooks

	mu        sync.RWMutex
	processes map[uint32]*Process

	log *log.Logger
}

// NewDebugger builds a facade over engine. logOut receives diagnostic
// lines (nil discards them); Hooks starts with every callback set to
// its no-op default.
func NewDebugger(engine winapi.Engine, logOut io.Writer) *Debugger {
	if logOut == nil {
		logOut = io.Discard
	}
	d := &Debugger{
		engine:    engine,
		processes: make(map[uint32]*Process),
		log:       log.New(logOut, "eventpump: ", log.LstdFlags),
	}
	d.Hooks = defaultHooks()
	return d
}

// Processes returns a read-only view of the live process registry.
func (d *Debugger) Processes() map[uint32]*Process {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[uint32]*Process, len(d.processes))
	for k, v := range d.processes {
		out[k] = v
	}
	return out
}

// Spawn starts commandLine under the debug session.
func (d *Debugger) Spawn(commandLine string) (uint32, error) {
	return d.engine.Spawn(commandLine)
}

// Attach joins an already-running process's debug session.
func (d *Debugger) Attach(pid uint32) error {
	return d.engine.Attach(pid)
}

// WaitEvent blocks for up to timeoutMs milliseconds, dispatching at
// most one event. It returns true if an event was dispatched, false on
// timeout (§5 "Timeouts" — the caller may re-invoke).
func (d *Debugger) WaitEvent(timeoutMs uint32) bool {
	d.Hooks.fillDefaults()

	ev, ok, err := d.engine.WaitEvent(timeoutMs)
	if err != nil {
		d.log.Printf("wait_event failed: %v", err)
		return false
	}
	if !ok {
		return false
	}

	status := d.dispatch(ev)
	if err := d.engine.ContinueEvent(ev.ProcessID, ev.ThreadID, status); err != nil {
		d.log.Printf("continue_event failed: %v", err)
	}
	return true
}

// DisassembleAt decodes one instruction from addr in p's memory,
// supplementing the original source's instruction-pointer-relative
// disassembly helper.
func (p *Process) DisassembleAt(addr uint32) (decoder.Instruction, error) {
	r := &decoder.MemReader{Read: p.ReadMemory, Addr: addr}
	return decoder.Decode(r, decoder.Options{})
}

func (d *Debugger) process(pid uint32) (*Process, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.processes[pid]
	return p, ok
}

func (d *Debugger) addProcess(p *Process) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.processes[p.Pid] = p
}

func (d *Debugger) removeProcess(pid uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.processes, pid)
}

// dispatch is C10: classifies ev, updates the model, invokes the
// matching hook, and returns the continuation code for the kernel
// (§4.7).
func (d *Debugger) dispatch(ev winapi.DebugEvent) winapi.ContinueStatus {
	switch ev.Kind {
	case winapi.ProcessCreate:
		return d.handleProcessCreate(ev)
	case winapi.ProcessExit:
		return d.handleProcessExit(ev)
	case winapi.ThreadCreate:
		return d.handleThreadCreate(ev)
	case winapi.ThreadExit:
		return d.handleThreadExit(ev)
	case winapi.ModuleLoad:
		return d.handleModuleLoad(ev)
	case winapi.ModuleUnload:
		return d.handleModuleUnload(ev)
	case winapi.Exception:
		return d.handleException(ev)
	case winapi.Breakpoint:
		return d.handleBreakpoint(ev)
	case winapi.SingleStep:
		return d.handleSingleStep(ev)
	default:
		panic(fmt.Sprintf("metalbones/debugger: unknown event kind %d", ev.Kind))
	}
}

func (d *Debugger) handleProcessCreate(ev winapi.DebugEvent) winapi.ContinueStatus {
	h, err := d.engine.OpenProcess(ev.ProcessID)
	if err != nil {
		d.log.Printf("OpenProcess(%d): %v", ev.ProcessID, err)
		return winapi.DBG_CONTINUE
	}
	p := newProcess(ev.ProcessID, h)
	p.BaseAddress = ev.ImageBase
	d.addProcess(p)

	d.Hooks.OnProcessCreateBegin(p)

	image := newModule(ev.ImageBase, p)
	p.mu.Lock()
	p.modules[ev.ImageBase] = image
	p.Image = image
	p.mu.Unlock()
	d.Hooks.OnModuleLoad(image)

	th, err := h.OpenThread(ev.ThreadID)
	if err != nil {
		d.log.Printf("OpenThread(%d): %v", ev.ThreadID, err)
	} else {
		t := newThread(ev.ThreadID, p, th, ev.StartAddress, true)
		p.mu.Lock()
		p.threads[ev.ThreadID] = t
		p.InitialThread = t
		p.mu.Unlock()
		d.Hooks.OnThreadCreate(t)
	}

	d.Hooks.OnProcessCreateEnd(p)
	return winapi.DBG_CONTINUE
}

func (d *Debugger) handleProcessExit(ev winapi.DebugEvent) winapi.ContinueStatus {
	p, ok := d.process(ev.ProcessID)
	if !ok {
		return winapi.DBG_CONTINUE
	}
	exit := ev.ExitCode
	p.ExitStatus = &exit

	d.Hooks.OnProcessExit(p)

	// §9: no synthetic module-unloads at process termination — the
	// process is removed from the registry before any module-unload
	// would fire.
	d.removeProcess(ev.ProcessID)
	if err := p.handle.Close(); err != nil {
		d.log.Printf("Close(process %d): %v", ev.ProcessID, err)
	}
	return winapi.DBG_CONTINUE
}

func (d *Debugger) handleThreadCreate(ev winapi.DebugEvent) winapi.ContinueStatus {
	p, ok := d.process(ev.ProcessID)
	if !ok {
		return winapi.DBG_CONTINUE
	}
	h, err := p.handle.OpenThread(ev.ThreadID)
	if err != nil {
		d.log.Printf("OpenThread(%d): %v", ev.ThreadID, err)
		return winapi.DBG_CONTINUE
	}
	t := newThread(ev.ThreadID, p, h, ev.StartAddress, false)
	p.mu.Lock()
	p.threads[ev.ThreadID] = t
	p.mu.Unlock()
	d.Hooks.OnThreadCreate(t)
	return winapi.DBG_CONTINUE
}

func (d *Debugger) handleThreadExit(ev winapi.DebugEvent) winapi.ContinueStatus {
	p, ok := d.process(ev.ProcessID)
	if !ok {
		return winapi.DBG_CONTINUE
	}
	p.mu.RLock()
	t, ok := p.threads[ev.ThreadID]
	p.mu.RUnlock()
	if !ok {
		return winapi.DBG_CONTINUE
	}
	exit := ev.ExitCode
	t.ExitStatus = &exit
	d.Hooks.OnThreadExit(t)

	p.mu.Lock()
	delete(p.threads, ev.ThreadID)
	p.mu.Unlock()
	return winapi.DBG_CONTINUE
}

func (d *Debugger) handleModuleLoad(ev winapi.DebugEvent) winapi.ContinueStatus {
	p, ok := d.process(ev.ProcessID)
	if !ok {
		return winapi.DBG_CONTINUE
	}
	m := newModule(ev.ModuleBase, p)
	p.mu.Lock()
	p.modules[ev.ModuleBase] = m
	p.mu.Unlock()
	d.Hooks.OnModuleLoad(m)
	return winapi.DBG_CONTINUE
}

func (d *Debugger) handleModuleUnload(ev winapi.DebugEvent) winapi.ContinueStatus {
	p, ok := d.process(ev.ProcessID)
	if !ok {
		return winapi.DBG_CONTINUE
	}
	p.mu.RLock()
	m, ok := p.modules[ev.ModuleBase]
	p.mu.RUnlock()
	if !ok {
		return winapi.DBG_CONTINUE
	}
	d.Hooks.OnModuleUnload(m)
	p.mu.Lock()
	delete(p.modules, ev.ModuleBase)
	p.mu.Unlock()
	return winapi.DBG_CONTINUE
}

func (d *Debugger) handleException(ev winapi.DebugEvent) winapi.ContinueStatus {
	p, ok := d.process(ev.ProcessID)
	if !ok {
		return winapi.DBG_EXCEPTION_NOT_HANDLED
	}
	p.mu.RLock()
	t := p.threads[ev.ThreadID]
	p.mu.RUnlock()
	if t == nil {
		return winapi.DBG_EXCEPTION_NOT_HANDLED
	}

	info := ev.Exception
	if info == nil {
		info = &winapi.ExceptionInfo{}
	}
	return d.Hooks.OnException(t, info, info.FirstChance)
}

func (d *Debugger) handleBreakpoint(ev winapi.DebugEvent) winapi.ContinueStatus {
	p, ok := d.process(ev.ProcessID)
	if !ok {
		return winapi.DBG_CONTINUE
	}
	p.mu.RLock()
	t := p.threads[ev.ThreadID]
	p.mu.RUnlock()
	if t == nil {
		return winapi.DBG_CONTINUE
	}

	ctx, err := t.Context()
	if err != nil {
		d.log.Printf("GetContext(%d): %v", t.Tid, err)
		return winapi.DBG_CONTINUE
	}
	ctx.Eip--

	p.mu.RLock()
	bp, found := p.breakpoints[ctx.Eip]
	p.mu.RUnlock()

	var reportedBp *Breakpoint
	if found && bp.Armed() {
		if err := bp.Disarm(); err != nil {
			d.log.Printf("Disarm(%#x): %v", bp.Address, err)
		} else {
			reportedBp = bp
			t.pendingRearm = bp
		}
	}

	if err := t.SetContext(ctx); err != nil {
		d.log.Printf("SetContext(%d): %v", t.Tid, err)
	}

	return d.Hooks.OnBreakpoint(t, &ctx, reportedBp)
}

func (d *Debugger) handleSingleStep(ev winapi.DebugEvent) winapi.ContinueStatus {
	p, ok := d.process(ev.ProcessID)
	if !ok {
		return winapi.DBG_CONTINUE
	}
	p.mu.RLock()
	t := p.threads[ev.ThreadID]
	p.mu.RUnlock()
	if t == nil {
		return winapi.DBG_CONTINUE
	}

	d.Hooks.OnSingleStep(t)

	// §9 auto_rearm resolution: on the next SingleStep for this thread,
	// rearm the last breakpoint disarmed on it if it requested
	// auto-rearm, and always clear the pending slot afterward.
	if bp := t.pendingRearm; bp != nil {
		if bp.AutoRearm {
			if err := bp.Arm(); err != nil {
				d.log.Printf("auto-rearm(%#x): %v", bp.Address, err)
			}
		}
		t.pendingRearm = nil
	}

	return winapi.DBG_CONTINUE
}
