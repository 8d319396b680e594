package decoder

import "testing"

func TestDecodeAndPrintScenarios(t *testing.T) {
	cases := []struct {
		name string
		in   []byte
		want string
	}{
		{
			name: "add byte ptr si prefixed addr16",
			in:   []byte{0x67, 0x00, 0x44, 0x7F},
			want: "add        byte ds:[si*1+7f], al",
		},
		{
			name: "add with es override and addr16",
			in:   []byte{0x26, 0x67, 0x00, 0x44, 0x7F},
			want: "add        byte es:[si*1+7f], al",
		},
		{
			name: "add with negative disp16",
			in:   []byte{0x67, 0x00, 0x84, 0xFF, 0xFF},
			want: "add        byte ds:[si*1-0001], al",
		},
		{
			name: "lea via SIB base esp",
			in:   []byte{0x8D, 0x44, 0x24, 0x10},
			want: "lea        dword ss:[esp+10], eax",
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			insn, n, err := DecodeBytes(c.in, Options{})
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if n != len(c.in) {
				t.Fatalf("consumed %d bytes, want %d", n, len(c.in))
			}
			got := PrintInsn(insn, 10)
			if got != c.want {
				t.Fatalf("got %q want %q", got, c.want)
			}
		})
	}
}

func TestDecodeDeterministic(t *testing.T) {
	in := []byte{0x8D, 0x44, 0x24, 0x10}
	i1, n1, err1 := DecodeBytes(in, Options{})
	i2, n2, err2 := DecodeBytes(in, Options{})
	if err1 != nil || err2 != nil {
		t.Fatalf("unexpected errors: %v, %v", err1, err2)
	}
	if n1 != n2 || i1.Mnemonic != i2.Mnemonic || len(i1.Operands) != len(i2.Operands) {
		t.Fatalf("decode is not deterministic: %+v vs %+v", i1, i2)
	}
}

func TestPrefixNeutrality(t *testing.T) {
	// A segment-override prefix and an address-size prefix in either
	// order ahead of the opcode must not change the decoded mnemonic or
	// operand count.
	a, _, err := DecodeBytes([]byte{0x26, 0x67, 0x00, 0x44, 0x7F}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := DecodeBytes([]byte{0x67, 0x26, 0x00, 0x44, 0x7F}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Mnemonic != b.Mnemonic || len(a.Operands) != len(b.Operands) {
		t.Fatalf("prefix order changed decode: %+v vs %+v", a, b)
	}
}

func TestGroup1Opcode82MirrorsByteForm(t *testing.T) {
	// §9: 0x82 is an undocumented mirror of the 0x80 byte forms.
	modrm := byte(0xC0) // mod=3, reg=0 (ADD), rm=0 (AL)
	a, _, err := DecodeBytes([]byte{0x80, modrm, 0x05}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := DecodeBytes([]byte{0x82, modrm, 0x05}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if a.Mnemonic != b.Mnemonic {
		t.Fatalf("0x82 did not mirror 0x80: %q vs %q", a.Mnemonic, b.Mnemonic)
	}
}

func TestRdRequiresModRegister(t *testing.T) {
	// mod != 3 must be rejected for Rd, never panic.
	s := newState(NewBytesReader([]byte{0x05}), Width32) // mod=0, rm=5
	_, err := resolveOperand(s, "Rd")
	if err == nil {
		t.Fatal("expected Rd to be rejected when mod != 3")
	}
}

func TestShortReadAbortsInstruction(t *testing.T) {
	_, _, err := DecodeBytes([]byte{0x00}, Options{}) // Eb,Gb needs a ModR/M byte
	if err == nil {
		t.Fatal("expected short read error")
	}
}

func TestInvalidOpcodeNeverPanics(t *testing.T) {
	for op := 0; op < 256; op++ {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("opcode %#x panicked: %v", op, r)
				}
			}()
			_, _, _ = DecodeBytes([]byte{byte(op), 0, 0, 0, 0, 0, 0, 0}, Options{})
		}()
	}
}

func TestMemorySegmentDefaultsToSSForEBPBase(t *testing.T) {
	// mod=01, rm=101 (EBP), disp8 -> base EBP must default to SS.
	insn, _, err := DecodeBytes([]byte{0x8D, 0x45, 0x04}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	mem := insn.Operands[0].Mem
	if mem.Seg != SegSS {
		t.Fatalf("expected SS default segment for EBP base, got %v", mem.Seg)
	}
}

func TestIsbSignExtension(t *testing.T) {
	// 83 /5 Isb: SUB Ev, Isb with Isb = 0xFF (-1) must sign-extend to
	// the full operand width, not zero-extend.
	modrm := byte(0xE8) // mod=3, reg=5 (SUB), rm=0 (EAX)
	insn, _, err := DecodeBytes([]byte{0x83, modrm, 0xFF}, Options{})
	if err != nil {
		t.Fatal(err)
	}
	imm := insn.Operands[1].Imm
	if !imm.Signed {
		t.Fatal("Isb operand must be marked signed")
	}
	if imm.SignedValue() != -1 {
		t.Fatalf("expected sign-extended -1, got %d", imm.SignedValue())
	}
}
