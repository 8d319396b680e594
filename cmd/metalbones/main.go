// main.go - CLI entry point: wires C7-C11 together behind flag-based
// options, in the same shape as the donor's own main.go/TerminalHost
// pairing. Windows-only, like the engine it drives.

//go:build windows

package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/dev-zzo/METALBONES/debugger"
	"github.com/dev-zzo/METALBONES/decoder"
	"github.com/dev-zzo/METALBONES/winapi"
)

func main() {
	var (
		command     = flag.String("run", "", "command line to launch under the debugger")
		attachPid   = flag.Uint("attach", 0, "pid of a running process to attach to")
		waitMs      = flag.Uint("wait-ms", 100, "milliseconds to wait per wait_event poll")
	)
	flag.Parse()

	if *command == "" && *attachPid == 0 {
		fmt.Fprintln(os.Stderr, "metalbones: one of -run or -attach is required")
		os.Exit(1)
	}

	eng := winapi.NewEngine()
	dbg := debugger.NewDebugger(eng, os.Stderr)
	host := newKeyHost()

	dbg.Hooks.OnProcessCreateEnd = func(p *debugger.Process) {
		fmt.Printf("process %d created, image base %#x\n", p.Pid, p.BaseAddress)
	}
	dbg.Hooks.OnModuleLoad = func(m *debugger.Module) {
		name, _ := m.Path()
		fmt.Printf("module loaded at %#x (%s)\n", m.BaseAddress, name)
	}
	dbg.Hooks.OnBreakpoint = func(t *debugger.Thread, ctx *winapi.ThreadContext, bp *debugger.Breakpoint) winapi.ContinueStatus {
		loc := t.Process.GetLocationFromVA(ctx.Eip)
		fmt.Printf("breakpoint hit: thread %d at %s\n", t.Tid, loc)
		if insn, err := t.Process.DisassembleAt(ctx.Eip); err == nil {
			fmt.Printf("  %s\n", decoder.PrintInsn(insn, 10))
		}
		return winapi.DBG_CONTINUE
	}
	dbg.Hooks.OnProcessExit = func(p *debugger.Process) {
		fmt.Printf("process %d exited\n", p.Pid)
	}

	if *command != "" {
		pid, err := dbg.Spawn(*command)
		if err != nil {
			fmt.Fprintf(os.Stderr, "metalbones: spawn failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("spawned pid %d\n", pid)
	} else {
		if err := dbg.Attach(uint32(*attachPid)); err != nil {
			fmt.Fprintf(os.Stderr, "metalbones: attach failed: %v\n", err)
			os.Exit(1)
		}
	}

	host.Start()
	defer host.Stop()

	var g errgroup.Group
	done := make(chan struct{})

	g.Go(func() error {
		for {
			select {
			case <-done:
				return nil
			case key := <-host.keys:
				if key == 'q' {
					close(done)
					return nil
				}
			}
		}
	})

	g.Go(func() error {
		for {
			select {
			case <-done:
				return nil
			default:
			}
			if len(dbg.Processes()) == 0 {
				close(done)
				return nil
			}
			dbg.WaitEvent(uint32(*waitMs))
		}
	})

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "metalbones: %v\n", err)
		os.Exit(1)
	}
}

// keyHost puts stdin in raw mode and streams single keystrokes to a
// channel, the same shape as the donor's TerminalHost but feeding the
// CLI's own key channel instead of a memory-mapped device.
type keyHost struct {
	fd       int
	oldState *term.State
	stopCh   chan struct{}
	done     chan struct{}
	stopped  sync.Once
	keys     chan byte
}

func newKeyHost() *keyHost {
	return &keyHost{
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		keys:   make(chan byte, 16),
	}
}

func (h *keyHost) Start() {
	h.fd = int(os.Stdin.Fd())
	if !term.IsTerminal(h.fd) {
		close(h.done)
		return
	}
	oldState, err := term.MakeRaw(h.fd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "metalbones: failed to set raw mode: %v\n", err)
		close(h.done)
		return
	}
	h.oldState = oldState

	go func() {
		defer close(h.done)
		r := bufio.NewReader(os.Stdin)
		for {
			select {
			case <-h.stopCh:
				return
			default:
			}
			b, err := r.ReadByte()
			if err != nil {
				return
			}
			select {
			case h.keys <- b:
			case <-h.stopCh:
				return
			}
		}
	}()
}

func (h *keyHost) Stop() {
	h.stopped.Do(func() {
		close(h.stopCh)
	})
	<-h.done
	if h.oldState != nil {
		_ = term.Restore(h.fd, h.oldState)
		h.oldState = nil
	}
}
