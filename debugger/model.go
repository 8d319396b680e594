// model.go - C8: the mutable, observable process/thread/module model
// (§3 DATA MODEL). Back-references (Thread/Module/Breakpoint -> Process)
// are non-owning per §9; the owning relation always runs the other way,
// through the Process's own maps.

package debugger

import (
	"fmt"
	"sync"

	"github.com/dev-zzo/METALBONES/winapi"
)

// Process is the debuggee's process model object: identity, its owned
// threads/modules/breakpoints, and the handle used to reach C7.
type Process struct {
	Pid         uint32
	BaseAddress uint32
	ExitStatus  *uint32

	Image         *Module
	InitialThread *Thread

	handle winapi.ProcessHandle

	mu          sync.RWMutex
	threads     map[uint32]*Thread
	modules     map[uint32]*Module
	breakpoints map[uint32]*Breakpoint

	terminateRequested bool
}

func newProcess(pid uint32, h winapi.ProcessHandle) *Process {
	return &Process{
		Pid:         pid,
		handle:      h,
		threads:     make(map[uint32]*Thread),
		modules:     make(map[uint32]*Module),
		breakpoints: make(map[uint32]*Breakpoint),
	}
}

// Threads returns a read-only snapshot of the live thread set.
func (p *Process) Threads() []*Thread {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Thread, 0, len(p.threads))
	for _, t := range p.threads {
		out = append(out, t)
	}
	return out
}

// Modules returns a read-only snapshot of the live module set.
func (p *Process) Modules() []*Module {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Module, 0, len(p.modules))
	for _, m := range p.modules {
		out = append(out, m)
	}
	return out
}

// Breakpoints returns a read-only snapshot of the live breakpoint set,
// mirroring the donor's ListBreakpoints naming.
func (p *Process) Breakpoints() []*Breakpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]*Breakpoint, 0, len(p.breakpoints))
	for _, bp := range p.breakpoints {
		out = append(out, bp)
	}
	return out
}

// GetModuleFromVA returns the module whose mapped range contains addr,
// or nil if none does.
func (p *Process) GetModuleFromVA(addr uint32) *Module {
	p.mu.RLock()
	defer p.mu.RUnlock()
	var best *Module
	for _, m := range p.modules {
		if addr < m.BaseAddress {
			continue
		}
		size, err := m.mappedSizeLocked()
		if err != nil {
			continue
		}
		if addr < m.BaseAddress+size {
			if best == nil || m.BaseAddress > best.BaseAddress {
				best = m
			}
		}
	}
	return best
}

// Location is a module-relative or bare-VA rendering of an address,
// supplementing the original source's get_location_from_va.
type Location struct {
	Module *Module
	RVA    uint32
	VA     uint32
}

func (l Location) String() string {
	if l.Module != nil {
		name, _ := l.Module.Path()
		return fmt.Sprintf("%s+%#x", name, l.RVA)
	}
	return fmt.Sprintf("%#x", l.VA)
}

// GetLocationFromVA resolves addr against the process's known modules.
func (p *Process) GetLocationFromVA(addr uint32) Location {
	if m := p.GetModuleFromVA(addr); m != nil {
		return Location{Module: m, RVA: addr - m.BaseAddress, VA: addr}
	}
	return Location{VA: addr}
}

// ReadMemory/WriteMemory/QueryMemory/ProtectMemory/QuerySectionName
// forward to C7 for this process's handle.
func (p *Process) ReadMemory(addr uint32, length int) ([]byte, error) {
	return p.handle.ReadMemory(addr, length)
}

func (p *Process) WriteMemory(addr uint32, data []byte) error {
	return p.handle.WriteMemory(addr, data)
}

func (p *Process) QueryMemory(addr uint32) (winapi.MemoryInfo, error) {
	return p.handle.QueryMemory(addr)
}

func (p *Process) ProtectMemory(addr uint32, length int, newProtect uint32) (uint32, error) {
	return p.handle.ProtectMemory(addr, length, newProtect)
}

func (p *Process) QuerySectionName(addr uint32) (string, error) {
	return p.handle.QuerySectionName(addr)
}

// Terminate requests an orderly shutdown: the engine kills the process
// and the pump synthesizes the ordinary ProcessExit handling once the
// kernel reports it (§5 "Cancellation").
func (p *Process) Terminate(exitCode uint32) error {
	p.mu.Lock()
	p.terminateRequested = true
	p.mu.Unlock()
	return p.handle.Terminate(exitCode)
}

// Thread is the debuggee's thread model object. Process is a
// non-owning back-reference; the Process outlives its Threads.
type Thread struct {
	Tid           uint32
	Process       *Process
	StartAddress  uint32
	IsInitial     bool
	ExitStatus    *uint32

	handle winapi.ThreadHandle

	// pendingRearm implements the auto_rearm resolution from §9: the
	// breakpoint most recently disarmed on this thread, armed again on
	// the next SingleStep event if it requested auto-rearm.
	pendingRearm *Breakpoint
}

func newThread(tid uint32, proc *Process, h winapi.ThreadHandle, start uint32, isInitial bool) *Thread {
	return &Thread{Tid: tid, Process: proc, handle: h, StartAddress: start, IsInitial: isInitial}
}

// Context fetches the thread's current register state.
func (t *Thread) Context() (winapi.ThreadContext, error) { return t.handle.GetContext() }

// SetContext writes back register state.
func (t *Thread) SetContext(c winapi.ThreadContext) error { return t.handle.SetContext(c) }

func (t *Thread) Suspend() error { return t.handle.Suspend() }
func (t *Thread) Resume() error  { return t.handle.Resume() }

// EnableSingleStep sets TF in the thread's saved EFLAGS so the next
// instruction raises a single-step exception.
func (t *Thread) EnableSingleStep() error { return t.handle.EnableSingleStep() }

// Module is the debuggee's module (mapped image) model object. path and
// mappedSize are lazily resolved and memoized per §9.
type Module struct {
	BaseAddress uint32
	Process     *Process

	once       sync.Once
	path       string
	pathErr    error

	sizeOnce sync.Once
	size     uint32
	sizeErr  error
}

func newModule(base uint32, proc *Process) *Module {
	return &Module{BaseAddress: base, Process: proc}
}

// Path lazily resolves the section file name backing this module's base
// address, memoizing the result (and any error) on first access.
func (m *Module) Path() (string, error) {
	m.once.Do(func() {
		m.path, m.pathErr = m.Process.QuerySectionName(m.BaseAddress)
	})
	return m.path, m.pathErr
}

// MappedSize walks VM regions from BaseAddress while each queried
// region's section file name equals Path, until the query fails or the
// name differs (§9 module mapped-size resolution).
func (m *Module) MappedSize() (uint32, error) {
	return m.mappedSizeLocked()
}

func (m *Module) mappedSizeLocked() (uint32, error) {
	m.sizeOnce.Do(func() {
		path, err := m.Path()
		if err != nil {
			m.sizeErr = err
			return
		}
		var total uint32
		addr := m.BaseAddress
		for {
			info, err := m.Process.QueryMemory(addr)
			if err != nil {
				break
			}
			name, err := m.Process.QuerySectionName(addr)
			if err != nil || name != path {
				break
			}
			total += info.RegionSize
			addr = info.BaseAddress + info.RegionSize
		}
		m.size = total
	})
	return m.size, m.sizeErr
}
