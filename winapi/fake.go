// fake.go - an in-memory Engine double, in the same spirit as the
// donor's TestX86Bus (cpu_x86_test.go): a plain struct standing in for
// a real OS resource so the debugger package's tests (and any non-
// Windows build of the facade) have something to drive.

package winapi

import (
	"fmt"
	"sync"
)

// FakeEngine simulates debuggee processes entirely in memory.
// It is driven by PushEvent from a test, not by a real kernel.
type FakeEngine struct {
	mu        sync.Mutex
	nextPid   uint32
	processes map[uint32]*fakeProcess
	pending   []DebugEvent
}

type fakeProcess struct {
	mu        sync.Mutex
	memory    map[uint32][]byte // page-granular sparse memory, keyed by page base
	protect   map[uint32]uint32
	threads   map[uint32]*FakeThreadHandle
	exitCode  uint32
	terminated bool
}

const fakePageSize = 0x1000

// NewFakeEngine returns an empty simulated debug session.
func NewFakeEngine() *FakeEngine {
	return &FakeEngine{processes: make(map[uint32]*fakeProcess)}
}

// PushEvent queues ev to be returned by the next WaitEvent call, for
// tests that want to drive the pump with scripted kernel behavior.
func (e *FakeEngine) PushEvent(ev DebugEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = append(e.pending, ev)
}

// CreateFakeProcess registers a simulated process and returns its pid,
// for tests that want to populate memory before pumping events.
func (e *FakeEngine) CreateFakeProcess() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextPid++
	pid := e.nextPid
	e.processes[pid] = &fakeProcess{
		memory:  make(map[uint32][]byte),
		protect: make(map[uint32]uint32),
		threads: make(map[uint32]*FakeThreadHandle),
	}
	return pid
}

func (e *FakeEngine) Spawn(commandLine string) (uint32, error) {
	return e.CreateFakeProcess(), nil
}

func (e *FakeEngine) Attach(pid uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.processes[pid]; !ok {
		return fmt.Errorf("metalbones/winapi: fake: no such process %d", pid)
	}
	return nil
}

func (e *FakeEngine) WaitEvent(timeoutMs uint32) (DebugEvent, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) == 0 {
		return DebugEvent{}, false, nil
	}
	ev := e.pending[0]
	e.pending = e.pending[1:]
	return ev, true, nil
}

func (e *FakeEngine) ContinueEvent(pid, tid uint32, status ContinueStatus) error {
	return nil
}

func (e *FakeEngine) OpenProcess(pid uint32) (ProcessHandle, error) {
	e.mu.Lock()
	p, ok := e.processes[pid]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("metalbones/winapi: fake: no such process %d", pid)
	}
	return &FakeProcessHandle{p: p}, nil
}

// FakeProcessHandle is the ProcessHandle returned by FakeEngine.
type FakeProcessHandle struct {
	p *fakeProcess
}

func pageOf(addr uint32) uint32 { return addr &^ (fakePageSize - 1) }

func (h *FakeProcessHandle) page(base uint32, create bool) []byte {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	buf, ok := h.p.memory[base]
	if !ok {
		if !create {
			return nil
		}
		buf = make([]byte, fakePageSize)
		h.p.memory[base] = buf
		h.p.protect[base] = PageReadWrite
	}
	return buf
}

func (h *FakeProcessHandle) ReadMemory(addr uint32, length int) ([]byte, error) {
	out := make([]byte, 0, length)
	for len(out) < length {
		base := pageOf(addr)
		buf := h.page(base, false)
		if buf == nil {
			return out, newStatusError("ReadMemory", 0xC0000005)
		}
		off := int(addr - base)
		n := fakePageSize - off
		if n > length-len(out) {
			n = length - len(out)
		}
		out = append(out, buf[off:off+n]...)
		addr += uint32(n)
	}
	return out, nil
}

func (h *FakeProcessHandle) WriteMemory(addr uint32, data []byte) error {
	remaining := data
	for len(remaining) > 0 {
		base := pageOf(addr)
		buf := h.page(base, true)
		off := int(addr - base)
		n := fakePageSize - off
		if n > len(remaining) {
			n = len(remaining)
		}
		copy(buf[off:off+n], remaining[:n])
		remaining = remaining[n:]
		addr += uint32(n)
	}
	return nil
}

func (h *FakeProcessHandle) QueryMemory(addr uint32) (MemoryInfo, error) {
	base := pageOf(addr)
	h.p.mu.Lock()
	protect, ok := h.p.protect[base]
	h.p.mu.Unlock()
	if !ok {
		return MemoryInfo{}, newStatusError("QueryMemory", 0xC0000005)
	}
	return MemoryInfo{BaseAddress: base, RegionSize: fakePageSize, State: 0x1000, Protect: protect}, nil
}

func (h *FakeProcessHandle) ProtectMemory(addr uint32, length int, newProtect uint32) (uint32, error) {
	base := pageOf(addr)
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	old, ok := h.p.protect[base]
	if !ok {
		return 0, newStatusError("ProtectMemory", 0xC0000005)
	}
	h.p.protect[base] = newProtect
	return old, nil
}

func (h *FakeProcessHandle) QuerySectionName(addr uint32) (string, error) {
	return "", nil
}

func (h *FakeProcessHandle) Terminate(exitCode uint32) error {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	h.p.terminated = true
	h.p.exitCode = exitCode
	return nil
}

func (h *FakeProcessHandle) OpenThread(tid uint32) (ThreadHandle, error) {
	h.p.mu.Lock()
	defer h.p.mu.Unlock()
	th, ok := h.p.threads[tid]
	if !ok {
		th = &FakeThreadHandle{}
		h.p.threads[tid] = th
	}
	return th, nil
}

func (h *FakeProcessHandle) Close() error { return nil }

// FakeThreadHandle is an in-memory ThreadHandle: GetContext/SetContext
// just round-trip a stored ThreadContext value.
type FakeThreadHandle struct {
	mu      sync.Mutex
	ctx     ThreadContext
	suspend int
}

func (t *FakeThreadHandle) GetContext() (ThreadContext, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ctx, nil
}

func (t *FakeThreadHandle) SetContext(c ThreadContext) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctx = c
	return nil
}

func (t *FakeThreadHandle) Suspend() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.suspend++
	return nil
}

func (t *FakeThreadHandle) Resume() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.suspend > 0 {
		t.suspend--
	}
	return nil
}

func (t *FakeThreadHandle) EnableSingleStep() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.ctx.EnableTrapFlag()
	return nil
}

func (t *FakeThreadHandle) Close() error { return nil }
