//go:build windows

// context_windows.go - the i386 Win32 CONTEXT structure and its
// conversion to/from the engine-neutral ThreadContext. GetThreadContext
// and SetThreadContext are bound directly from kernel32 rather than
// through golang.org/x/sys/windows's Context type, which is defined
// per-host-architecture and does not match the i386 layout a 32-bit
// debuggee's thread reports.

package winapi

import "unsafe"

const (
	contextI386           = 0x00010000
	contextFull           = contextI386 | 0x7
	contextDebugRegisters = contextI386 | 0x10
)

var (
	procGetThreadContext = modkernel32.NewProc("GetThreadContext")
	procSetThreadContext = modkernel32.NewProc("SetThreadContext")
)

type floatingSaveArea struct {
	ControlWord, StatusWord, TagWord     uint32
	ErrorOffset, ErrorSelector           uint32
	DataOffset, DataSelector             uint32
	RegisterArea                         [80]byte
	Cr0NpxState                          uint32
}

// win32Context mirrors the i386 CONTEXT structure field-for-field.
type win32Context struct {
	ContextFlags uint32
	Dr0, Dr1, Dr2, Dr3, Dr6, Dr7 uint32
	FloatSave                    floatingSaveArea
	SegGs, SegFs, SegEs, SegDs   uint32
	Edi, Esi, Ebx, Edx, Ecx, Eax uint32
	Ebp, Eip                     uint32
	SegCs                        uint32
	EFlags                       uint32
	Esp                          uint32
	SegSs                        uint32
	ExtendedRegisters            [512]byte
}

func (c *win32Context) toThreadContext() ThreadContext {
	return ThreadContext{
		Eax: c.Eax, Ebx: c.Ebx, Ecx: c.Ecx, Edx: c.Edx,
		Esi: c.Esi, Edi: c.Edi,
		Ebp: c.Ebp, Esp: c.Esp, Eip: c.Eip,
		EFlags: c.EFlags,
		SegCs:  uint16(c.SegCs), SegDs: uint16(c.SegDs), SegEs: uint16(c.SegEs),
		SegFs: uint16(c.SegFs), SegGs: uint16(c.SegGs), SegSs: uint16(c.SegSs),
		Dr0: c.Dr0, Dr1: c.Dr1, Dr2: c.Dr2, Dr3: c.Dr3, Dr6: c.Dr6, Dr7: c.Dr7,
	}
}

func fromThreadContext(t ThreadContext) win32Context {
	var c win32Context
	c.Eax, c.Ebx, c.Ecx, c.Edx = t.Eax, t.Ebx, t.Ecx, t.Edx
	c.Esi, c.Edi = t.Esi, t.Edi
	c.Ebp, c.Esp, c.Eip = t.Ebp, t.Esp, t.Eip
	c.EFlags = t.EFlags
	c.SegCs, c.SegDs, c.SegEs = uint32(t.SegCs), uint32(t.SegDs), uint32(t.SegEs)
	c.SegFs, c.SegGs, c.SegSs = uint32(t.SegFs), uint32(t.SegGs), uint32(t.SegSs)
	c.Dr0, c.Dr1, c.Dr2, c.Dr3, c.Dr6, c.Dr7 = t.Dr0, t.Dr1, t.Dr2, t.Dr3, t.Dr6, t.Dr7
	return c
}

func getThreadContext(h uintptr, ctx *win32Context) error {
	ctx.ContextFlags = contextFull | contextDebugRegisters
	ok, _, callErr := procGetThreadContext.Call(h, uintptr(unsafe.Pointer(ctx)))
	if ok == 0 {
		return callErr
	}
	return nil
}

func setThreadContext(h uintptr, ctx *win32Context) error {
	ctx.ContextFlags = contextFull | contextDebugRegisters
	ok, _, callErr := procSetThreadContext.Call(h, uintptr(unsafe.Pointer(ctx)))
	if ok == 0 {
		return callErr
	}
	return nil
}
