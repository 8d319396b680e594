// types.go - C7's wire types: the kernel debug-event shape and the VM
// primitive result types, independent of how they're obtained.

package winapi

// EventKind classifies a kernel debug state-change into one of the nine
// kinds the event pump understands (§4.7).
type EventKind int

const (
	ProcessCreate EventKind = iota
	ProcessExit
	ThreadCreate
	ThreadExit
	ModuleLoad
	ModuleUnload
	Exception
	Breakpoint
	SingleStep
)

func (k EventKind) String() string {
	switch k {
	case ProcessCreate:
		return "ProcessCreate"
	case ProcessExit:
		return "ProcessExit"
	case ThreadCreate:
		return "ThreadCreate"
	case ThreadExit:
		return "ThreadExit"
	case ModuleLoad:
		return "ModuleLoad"
	case ModuleUnload:
		return "ModuleUnload"
	case Exception:
		return "Exception"
	case Breakpoint:
		return "Breakpoint"
	case SingleStep:
		return "SingleStep"
	default:
		return "Unknown"
	}
}

// ContinueStatus is returned from the pump's hooks and fed back to
// ContinueEvent to tell the kernel how to resume the debuggee.
type ContinueStatus uint32

const (
	DBG_CONTINUE              ContinueStatus = 0x00010002
	DBG_EXCEPTION_NOT_HANDLED ContinueStatus = 0x80010001
	// dbgTerminateRequested is an unexported sentinel that is never
	// handed to the kernel. Nothing reads it: the event pump handles a
	// Terminate()-triggered ProcessExit like any other.
	dbgTerminateRequested ContinueStatus = 0
)

// AccessViolationKind classifies a 0xC0000005 exception's access type.
type AccessViolationKind int

const (
	AccessRead AccessViolationKind = iota
	AccessWrite
	AccessDEP
)

// AccessViolationInfo is the expanded form of a 0xC0000005 exception.
type AccessViolationInfo struct {
	Kind          AccessViolationKind
	TargetAddress uint32
}

const statusAccessViolation uint32 = 0xC0000005

// ExceptionInfo carries the raw exception record and an optional
// expanded {kind, target_address} form for access violations. Neither
// the Windows engine nor the event pump fills AccessViolation; the pump
// passes the record to OnException as the engine delivered it.
type ExceptionInfo struct {
	Code          uint32
	Address       uint32
	FirstChance   bool
	AccessViolation *AccessViolationInfo
}

// DebugEvent is one kernel state-change: a process id, thread id, a
// kind, and kind-specific payload fields.
type DebugEvent struct {
	Kind      EventKind
	ProcessID uint32
	ThreadID  uint32

	ExitCode     uint32 // ProcessExit, ThreadExit
	ModuleBase   uint32 // ModuleLoad, ModuleUnload
	StartAddress uint32 // ThreadCreate, ProcessCreate's initial thread
	ImageBase    uint32 // ProcessCreate
	Exception    *ExceptionInfo
}

// MemoryInfo mirrors a VirtualQueryEx result.
type MemoryInfo struct {
	BaseAddress uint32
	RegionSize  uint32
	State       uint32
	Protect     uint32
}

// Memory protection constants (Win32 PAGE_* values), needed by callers
// that want to request RW access before patching a breakpoint byte.
const (
	PageNoAccess         = 0x01
	PageReadOnly         = 0x02
	PageReadWrite        = 0x04
	PageWriteCopy        = 0x08
	PageExecute          = 0x10
	PageExecuteRead      = 0x20
	PageExecuteReadWrite = 0x40
)

// ThreadContext is the subset of the Win32 CONTEXT structure the
// debugger engine needs: general-purpose registers, EFLAGS, segment
// selectors, and the debug registers.
type ThreadContext struct {
	Eax, Ebx, Ecx, Edx uint32
	Esi, Edi           uint32
	Ebp, Esp, Eip      uint32
	EFlags             uint32

	SegCs, SegDs, SegEs, SegFs, SegGs, SegSs uint16

	Dr0, Dr1, Dr2, Dr3, Dr6, Dr7 uint32
}

const eflagsTF = 1 << 8

// EnableTrapFlag sets TF in EFlags, arming the CPU's single-step trap
// for the next instruction.
func (c *ThreadContext) EnableTrapFlag() { c.EFlags |= eflagsTF }

// ClearTrapFlag clears TF.
func (c *ThreadContext) ClearTrapFlag() { c.EFlags &^= eflagsTF }

// TrapFlagSet reports whether TF is currently set.
func (c *ThreadContext) TrapFlagSet() bool { return c.EFlags&eflagsTF != 0 }
