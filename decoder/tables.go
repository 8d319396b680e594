// tables.go - static opcode dispatch tables (C4 §4.2): the main 32-bit
// map, the 0F-escape map, and the ModR/M-group maps.

package decoder

// aluMnemonics lists the eight ALU operations whose one-byte opcode
// block (0x00-0x3D) and Group 1 (0x80-0x83) share the same operand-code
// forms and only differ in which operation ModR/M.reg (or the opcode's
// own block) selects.
var aluMnemonics = [8]string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"}

// buildALUBlock fills in the eight-opcode block starting at base for one
// ALU operation: Eb,Gb / Ev,Gv / Gb,Eb / Gv,Ev / AL,Ib / eAX,Iz.
func buildALUBlock(t *[256]*node, base byte, mnemonic string) {
	t[base+0] = terminal(mnemonic, "Eb", "Gb")
	t[base+1] = terminal(mnemonic, "Ev", "Gv")
	t[base+2] = terminal(mnemonic, "Gb", "Eb")
	t[base+3] = terminal(mnemonic, "Gv", "Ev")
	t[base+4] = terminal(mnemonic, "al", "Ib")
	t[base+5] = terminal(mnemonic, "?ax", "Iz")
}

// buildGroup1 builds the eight ModR/M.reg-selected ALU operations used
// by opcodes 0x80-0x83 and (per §9's documented ambiguity) 0x82, which
// mirrors the byte forms of 0x80 exactly as undocumented 8086-compatible
// encoding.
func buildGroup1(immCode OperandCode, eCode OperandCode) *[8]*node {
	var t [8]*node
	for i, mnem := range aluMnemonics {
		t[i] = terminal(mnem, eCode, immCode)
	}
	return &t
}

// buildGroup2 builds the eight shift/rotate operations selected by
// ModR/M.reg for the 0xC0/0xC1/0xD0-0xD3 shift-group opcodes.
var group2Mnemonics = [8]string{"rol", "ror", "rcl", "rcr", "shl", "shr", "sal", "sar"}

func buildGroup2(eCode, countCode OperandCode) *[8]*node {
	var t [8]*node
	for i, mnem := range group2Mnemonics {
		t[i] = terminal(mnem, eCode, countCode)
	}
	return &t
}

// buildGroup3 builds the TEST/NOT/NEG/MUL/IMUL/DIV/IDIV family selected
// by ModR/M.reg for opcodes 0xF6/0xF7. reg==0,1 (TEST) additionally
// consumes an immediate; the rest are unary.
func buildGroup3(eCode, immCode OperandCode) *[8]*node {
	return &[8]*node{
		terminal("test", eCode, immCode),
		terminal("test", eCode, immCode),
		terminal("not", eCode),
		terminal("neg", eCode),
		terminal("mul", eCode),
		terminal("imul", eCode),
		terminal("div", eCode),
		terminal("idiv", eCode),
	}
}

// buildGroup4 is the 0xFE INC/DEC-only byte group.
func buildGroup4() *[8]*node {
	return &[8]*node{
		terminal("inc", "Eb"),
		terminal("dec", "Eb"),
		invalidNode(), invalidNode(), invalidNode(), invalidNode(), invalidNode(), invalidNode(),
	}
}

// buildGroup5 is the 0xFF INC/DEC/CALL/JMP/PUSH group.
func buildGroup5() *[8]*node {
	return &[8]*node{
		terminal("inc", "Ev"),
		terminal("dec", "Ev"),
		terminal("call", "Ev"),
		terminal("call", "Mp"),
		terminal("jmp", "Ev"),
		terminal("jmp", "Mp"),
		terminal("push", "Ev"),
		invalidNode(),
	}
}

// buildGroup11 is the 0xC6/0xC7 MOV-immediate group: only reg==0 is
// defined, the rest are reserved.
func buildGroup11(eCode, immCode OperandCode) *[8]*node {
	t := &[8]*node{terminal("mov", eCode, immCode)}
	for i := 1; i < 8; i++ {
		t[i] = invalidNode()
	}
	return t
}

var mainTable [256]*node
var escape0FTable [256]*node

// Slots neither builder fills stay nil; dispatch reports them as
// ErrUnknownOpcode.
func init() {
	buildMainTable()
	buildEscape0FTable()
}

func buildMainTable() {
	t := &mainTable

	for i, mnem := range aluMnemonics {
		buildALUBlock(t, byte(i*8), mnem)
	}

	// PUSH/POP of the 8 GPRs, 0x50-0x5F.
	for r := byte(0); r < 8; r++ {
		reg := reg32Table[r]
		t[0x50+r] = terminal("push", OperandCode(reg))
		t[0x58+r] = terminal("pop", OperandCode(reg))
	}

	t[0x68] = terminal("push", "Iz")
	t[0x69] = terminal("imul", "Gv", "Ev", "Iz")
	t[0x6A] = terminal("push", "Isb")
	t[0x6B] = terminal("imul", "Gv", "Ev", "Isb")

	// Group 1: immediate ALU ops against Eb/Ev, with 0x82 an
	// undocumented mirror of the 0x80 byte forms (§9 - do not guess).
	grp1EbIb := buildGroup1("Ib", "Eb")
	grp1EvIz := buildGroup1("Iz", "Ev")
	grp1EvIsb := buildGroup1("Isb", "Ev")
	t[0x80] = switchModRMReg(grp1EbIb)
	t[0x81] = switchModRMReg(grp1EvIz)
	t[0x82] = switchModRMReg(grp1EbIb)
	t[0x83] = switchModRMReg(grp1EvIsb)

	t[0x84] = terminal("test", "Eb", "Gb")
	t[0x85] = terminal("test", "Ev", "Gv")
	t[0x86] = terminal("xchg", "Eb", "Gb")
	t[0x87] = terminal("xchg", "Ev", "Gv")
	t[0x88] = terminal("mov", "Eb", "Gb")
	t[0x89] = terminal("mov", "Ev", "Gv")
	t[0x8A] = terminal("mov", "Gb", "Eb")
	t[0x8B] = terminal("mov", "Gv", "Ev")
	t[0x8C] = terminal("mov", "Ew", "Sw")
	t[0x8D] = terminal("lea", "M", "Gv")
	t[0x8E] = terminal("mov", "Sw", "Ew")
	t[0x8F] = switchModRMReg(&[8]*node{terminal("pop", "Ev"), invalidNode(), invalidNode(), invalidNode(), invalidNode(), invalidNode(), invalidNode(), invalidNode()})

	t[0x90] = terminal("nop")
	for r := byte(1); r < 8; r++ {
		t[0x90+r] = terminal("xchg", OperandCode("?ax"), OperandCode(reg32Table[r]))
	}
	t[0x98] = terminal("cwde")
	t[0x99] = terminal("cdq")
	t[0x9C] = terminal("pushfd")
	t[0x9D] = terminal("popfd")

	t[0xA0] = terminal("mov", "al", "Ob")
	t[0xA1] = terminal("mov", "?ax", "Ov")
	t[0xA2] = terminal("mov", "Ob", "al")
	t[0xA3] = terminal("mov", "Ov", "?ax")
	t[0xA4] = terminal("movsb", "Yb", "Xb")
	t[0xA5] = terminal("movsd", "Yv", "Xv")
	t[0xA6] = terminal("cmpsb", "Xb", "Yb")
	t[0xA7] = terminal("cmpsd", "Xv", "Yv")
	t[0xA8] = terminal("test", "al", "Ib")
	t[0xA9] = terminal("test", "?ax", "Iz")
	t[0xAA] = terminal("stosb", "Yb", "al")
	t[0xAB] = terminal("stosd", "Yv", "?ax")
	t[0xAC] = terminal("lodsb", "al", "Xb")
	t[0xAD] = terminal("lodsd", "?ax", "Xv")
	t[0xAE] = terminal("scasb", "al", "Yb")
	t[0xAF] = terminal("scasd", "?ax", "Yv")

	for r := byte(0); r < 8; r++ {
		t[0xB0+r] = terminal("mov", OperandCode(reg8Table[r]), "Ib")
		t[0xB8+r] = terminal("mov", OperandCode(reg32Table[r]), "Iv")
	}

	t[0xC0] = switchModRMReg(buildGroup2("Eb", "Ib"))
	t[0xC1] = switchModRMReg(buildGroup2("Ev", "Ib"))
	t[0xC2] = terminal("ret", "Iw")
	t[0xC3] = terminal("ret")
	t[0xC6] = switchModRMReg(buildGroup11("Eb", "Ib"))
	t[0xC7] = switchModRMReg(buildGroup11("Ev", "Iz"))
	t[0xC8] = terminal("enter", "Iw", "Ib")
	t[0xC9] = terminal("leave")
	t[0xCC] = terminal("int3")
	t[0xCD] = terminal("int", "Ib")
	t[0xCE] = terminal("into")
	t[0xCF] = terminal("iretd")

	t[0xD0] = switchModRMReg(buildGroup2("Eb", "1"))
	t[0xD1] = switchModRMReg(buildGroup2("Ev", "1"))
	t[0xD2] = switchModRMReg(buildGroup2("Eb", "cl"))
	t[0xD3] = switchModRMReg(buildGroup2("Ev", "cl"))

	for cc, mnem := range jccMnemonics {
		t[0x70+byte(cc)] = terminal(mnem, "Jb")
	}
	t[0xE2] = terminal("loop", "Jb")
	t[0xE3] = terminal("jecxz", "Jb")
	t[0xE8] = terminal("call", "Jz")
	t[0xE9] = terminal("jmp", "Jz")
	t[0xEA] = terminal("jmp", "Ap")
	t[0xEB] = terminal("jmp", "Jb")

	t[0xF4] = terminal("hlt")
	t[0xF5] = terminal("cmc")
	t[0xF6] = switchModRMReg(buildGroup3("Eb", "Ib"))
	t[0xF7] = switchModRMReg(buildGroup3("Ev", "Iz"))
	t[0xF8] = terminal("clc")
	t[0xF9] = terminal("stc")
	t[0xFA] = terminal("cli")
	t[0xFB] = terminal("sti")
	t[0xFC] = terminal("cld")
	t[0xFD] = terminal("std")
	t[0xFE] = switchModRMReg(buildGroup4())
	t[0xFF] = switchModRMReg(buildGroup5())

	// Segment-override, operand/address-size, lock/rep prefixes.
	t[0x26] = prefixNode(func(s *state) { s.segOverride = SegES })
	t[0x2E] = prefixNode(func(s *state) { s.segOverride = SegCS })
	t[0x36] = prefixNode(func(s *state) { s.segOverride = SegSS })
	t[0x3E] = prefixNode(func(s *state) { s.segOverride = SegDS })
	t[0x64] = prefixNode(func(s *state) { s.segOverride = SegFS })
	t[0x65] = prefixNode(func(s *state) { s.segOverride = SegGS })
	t[0x66] = prefixNode(func(s *state) {
		s.prefixes.OpSize = true
		if s.operandWidth == Width32 {
			s.operandWidth = Width16
		} else {
			s.operandWidth = Width32
		}
	})
	t[0x67] = prefixNode(func(s *state) {
		s.prefixes.AddrSize = true
		if s.addressWidth == Width32 {
			s.addressWidth = Width16
		} else {
			s.addressWidth = Width32
		}
	})
	t[0xF0] = prefixNode(func(s *state) { s.prefixes.Lock = true })
	t[0xF2] = prefixNode(func(s *state) { s.prefixes.RepNE = true })
	t[0xF3] = prefixNode(func(s *state) { s.prefixes.RepE = true })

	t[0x0F] = &node{kind: nodeSwitchOpcode, table256: &escape0FTable}
}

var jccMnemonics = [16]string{
	"jo", "jno", "jb", "jae", "je", "jne", "jbe", "ja",
	"js", "jns", "jp", "jnp", "jl", "jge", "jle", "jg",
}

func buildEscape0FTable() {
	t := &escape0FTable
	t[0x1F] = switchModRMReg(&[8]*node{
		terminal("nop", "Ev"), terminal("nop", "Ev"), terminal("nop", "Ev"), terminal("nop", "Ev"),
		terminal("nop", "Ev"), terminal("nop", "Ev"), terminal("nop", "Ev"), terminal("nop", "Ev"),
	})
	for cc, mnem := range jccMnemonics {
		t[0x80+byte(cc)] = terminal(mnem, "Jz")
	}
	t[0xA2] = terminal("cpuid")
	t[0xA3] = terminal("bt", "Ev", "Gv")
	t[0xAF] = terminal("imul", "Gv", "Ev")
	t[0xB6] = terminal("movzx", "Gv", "Eb")
	t[0xB7] = terminal("movzx", "Gv", "Ew")
	t[0xBE] = terminal("movsx", "Gv", "Eb")
	t[0xBF] = terminal("movsx", "Gv", "Ew")
}
