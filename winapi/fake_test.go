package winapi

import "testing"

func TestFakeProcessHandleMemoryRoundTrip(t *testing.T) {
	e := NewFakeEngine()
	pid := e.CreateFakeProcess()
	h, err := e.OpenProcess(pid)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.WriteMemory(0x401000, []byte{0x90, 0x90, 0xCC}); err != nil {
		t.Fatal(err)
	}
	got, err := h.ReadMemory(0x401000, 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0x90, 0x90, 0xCC}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte %d: got %#x want %#x", i, got[i], want[i])
		}
	}
}

func TestFakeProcessHandleProtectRoundTrip(t *testing.T) {
	e := NewFakeEngine()
	pid := e.CreateFakeProcess()
	h, _ := e.OpenProcess(pid)
	_ = h.WriteMemory(0x2000, []byte{0x00}) // creates the page as RW

	old, err := h.ProtectMemory(0x2000, 1, PageExecuteRead)
	if err != nil {
		t.Fatal(err)
	}
	if old != PageReadWrite {
		t.Fatalf("expected prior protect PageReadWrite, got %#x", old)
	}
	restored, err := h.ProtectMemory(0x2000, 1, old)
	if err != nil {
		t.Fatal(err)
	}
	if restored != PageExecuteRead {
		t.Fatalf("expected prior protect PageExecuteRead, got %#x", restored)
	}
}

func TestFakeEngineWaitEventTimeout(t *testing.T) {
	e := NewFakeEngine()
	_, ok, err := e.WaitEvent(10)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected timeout (no pending events)")
	}
}
