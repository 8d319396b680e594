// hooks.go - the overridable event hooks (§6, §9 "callback-style
// handlers"): a struct of function pointers with no-op defaults rather
// than an interface/inheritance hierarchy, per the design note.

package debugger

import "github.com/dev-zzo/METALBONES/winapi"

// Hooks holds the facade's overridable callbacks. Any field left nil
// after NewDebugger is filled with a no-op default, so callers only
// need to set the ones they care about.
type Hooks struct {
	OnProcessCreateBegin func(p *Process)
	OnProcessCreateEnd   func(p *Process)
	OnProcessExit        func(p *Process)
	OnThreadCreate       func(t *Thread)
	OnThreadExit         func(t *Thread)
	OnModuleLoad         func(m *Module)
	OnModuleUnload       func(m *Module)
	OnBreakpoint         func(t *Thread, ctx *winapi.ThreadContext, bp *Breakpoint) winapi.ContinueStatus
	OnSingleStep         func(t *Thread)
	OnException          func(t *Thread, info *winapi.ExceptionInfo, firstChance bool) winapi.ContinueStatus
}

func defaultHooks() Hooks {
	return Hooks{
		OnProcessCreateBegin: func(*Process) {},
		OnProcessCreateEnd:   func(*Process) {},
		OnProcessExit:        func(*Process) {},
		OnThreadCreate:       func(*Thread) {},
		OnThreadExit:         func(*Thread) {},
		OnModuleLoad:         func(*Module) {},
		OnModuleUnload:       func(*Module) {},
		OnBreakpoint: func(*Thread, *winapi.ThreadContext, *Breakpoint) winapi.ContinueStatus {
			return winapi.DBG_CONTINUE
		},
		OnSingleStep: func(*Thread) {},
		OnException: func(*Thread, *winapi.ExceptionInfo, bool) winapi.ContinueStatus {
			return winapi.DBG_EXCEPTION_NOT_HANDLED
		},
	}
}

// fillDefaults replaces any nil field of h with the corresponding
// no-op/default implementation.
func (h *Hooks) fillDefaults() {
	d := defaultHooks()
	if h.OnProcessCreateBegin == nil {
		h.OnProcessCreateBegin = d.OnProcessCreateBegin
	}
	if h.OnProcessCreateEnd == nil {
		h.OnProcessCreateEnd = d.OnProcessCreateEnd
	}
	if h.OnProcessExit == nil {
		h.OnProcessExit = d.OnProcessExit
	}
	if h.OnThreadCreate == nil {
		h.OnThreadCreate = d.OnThreadCreate
	}
	if h.OnThreadExit == nil {
		h.OnThreadExit = d.OnThreadExit
	}
	if h.OnModuleLoad == nil {
		h.OnModuleLoad = d.OnModuleLoad
	}
	if h.OnModuleUnload == nil {
		h.OnModuleUnload = d.OnModuleUnload
	}
	if h.OnBreakpoint == nil {
		h.OnBreakpoint = d.OnBreakpoint
	}
	if h.OnSingleStep == nil {
		h.OnSingleStep = d.OnSingleStep
	}
	if h.OnException == nil {
		h.OnException = d.OnException
	}
}
