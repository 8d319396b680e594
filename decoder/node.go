// node.go - dispatch node tagged variant and operand-code resolution
// (C3, C4 §4.2, §9 "dynamic dispatch becomes a tagged variant").

package decoder

import "strings"

// OperandCode names one operand slot of a terminal node: an uppercase
// addressing-mode code (Eb, Gv, Iz, Jb, ...) or a lowercase literal
// register token (al, dx, ...). "?ax"/"?cx".../"?di" select ax or eax
// depending on the current operand width.
type OperandCode string

// nodeKind tags which fields of node are meaningful.
type nodeKind int

const (
	nodeTerminal nodeKind = iota
	nodeSwitchOpcode
	nodeSwitchModRMReg
	nodeSwitchModRMMod
	nodeSwitchModRMRM
	nodeSwitchPrefix
	nodePrefix
	nodeInvalid
)

// node is the single tagged-variant type every dispatch-table entry is
// built from; dispatch switches on kind in the hot loop instead of
// walking a virtual-call tree.
type node struct {
	kind nodeKind

	// nodeTerminal
	mnemonic string
	operands []OperandCode
	needsRM  bool // true iff any operand code begins with CDEGMNPQRSUVW

	// nodeSwitchOpcode
	table256 *[256]*node

	// nodeSwitchModRMReg: 8-entry table by ModR/M.reg; always fetches ModR/M.
	regTable *[8]*node

	// nodeSwitchModRMMod: chosen by ModR/M.mod==3 or not.
	memTable  *[8]*node // mod != 3, indexed by reg
	regIsNode *[8]*node // mod == 3, indexed by reg

	// nodeSwitchModRMRM: 8-entry table by ModR/M.rm.
	rmTable *[8]*node

	// nodeSwitchPrefix: branches on the mandatory prefix, consuming it.
	prefixNone *node
	prefix66   *node
	prefixF2   *node
	prefixF3   *node

	// nodePrefix: sets a flag in state, then re-dispatches topNode.
	setFlag func(s *state)
}

func terminal(mnemonic string, operands ...OperandCode) *node {
	n := &node{kind: nodeTerminal, mnemonic: mnemonic, operands: operands}
	for _, code := range operands {
		if code != "" && strings.ContainsRune("CDEGMNPQRSUVW", rune(code[0])) {
			n.needsRM = true
			break
		}
	}
	return n
}

func invalidNode() *node { return &node{kind: nodeInvalid} }

func switchOpcode(t *[256]*node) *node { return &node{kind: nodeSwitchOpcode, table256: t} }

func switchModRMReg(t *[8]*node) *node { return &node{kind: nodeSwitchModRMReg, regTable: t} }

func switchModRMMod(mem, reg *[8]*node) *node {
	return &node{kind: nodeSwitchModRMMod, memTable: mem, regIsNode: reg}
}

func switchModRMRM(t *[8]*node) *node { return &node{kind: nodeSwitchModRMRM, rmTable: t} }

func prefixNode(set func(s *state)) *node { return &node{kind: nodePrefix, setFlag: set} }

// resolveOperand maps a single OperandCode to a concrete Operand given
// the current decoder state (§4.3).
func resolveOperand(s *state, code OperandCode) (Operand, error) {
	if code == "" {
		return Operand{}, errInvalidOperand(code, "empty operand code")
	}

	// Literal register tokens and the "?ax"-style width-dependent forms.
	if lit, ok := literalRegister(s, code); ok {
		return lit, nil
	}

	switch {
	case code == "Eb":
		return resolveE(s, Width8)
	case code == "Ew":
		return resolveE(s, Width16)
	case code == "Ev":
		return resolveE(s, s.operandWidth)
	case code == "Ey":
		return resolveE(s, Width32)
	case code == "Ep":
		return resolveE(s, s.operandWidth)

	case code == "Gb":
		if err := s.fetchModRM(); err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandRegister, Reg: gpRegister(s.regField, Width8)}, nil
	case code == "Gw":
		if err := s.fetchModRM(); err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandRegister, Reg: gpRegister(s.regField, Width16)}, nil
	case code == "Gv", code == "Gy", code == "Gz":
		if err := s.fetchModRM(); err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandRegister, Reg: gpRegister(s.regField, s.operandWidth)}, nil

	case code == "Rd":
		if err := s.fetchModRM(); err != nil {
			return Operand{}, err
		}
		if s.mod != 3 {
			return Operand{}, errInvalidOperand(code, "requires mod==3")
		}
		return Operand{Kind: OperandRegister, Reg: gpRegister(s.rm, Width32)}, nil

	case code == "Cd":
		if err := s.fetchModRM(); err != nil {
			return Operand{}, err
		}
		switch s.regField {
		case 1, 5, 6, 7:
			return Operand{}, errInvalidOperand(code, "reserved control register index")
		}
		return Operand{Kind: OperandRegister, Reg: Register{Name: ctrlRegTable[s.regField], Width: Width32}}, nil

	case code == "Dd":
		if err := s.fetchModRM(); err != nil {
			return Operand{}, err
		}
		switch s.regField {
		case 4, 5:
			return Operand{}, errInvalidOperand(code, "reserved debug register index")
		}
		return Operand{Kind: OperandRegister, Reg: Register{Name: debugRegTable[s.regField], Width: Width32}}, nil

	case code == "Sw":
		if err := s.fetchModRM(); err != nil {
			return Operand{}, err
		}
		seg := segRegTable[s.regField]
		if seg == SegNone {
			return Operand{}, errInvalidOperand(code, "reserved segment register index")
		}
		return Operand{Kind: OperandRegister, Reg: Register{Name: seg.String(), Width: Width16}}, nil

	case code == "Jb":
		v, err := s.fetchImm(Width8)
		if err != nil {
			return Operand{}, err
		}
		return immOperand(uint64(v), Width8, true), nil
	case code == "Jz":
		v, err := s.fetchImm(s.operandWidth)
		if err != nil {
			return Operand{}, err
		}
		return immOperand(uint64(v), s.operandWidth, true), nil

	case code == "Ib":
		v, err := s.fetchImm(Width8)
		if err != nil {
			return Operand{}, err
		}
		return immOperand(uint64(v), Width8, false), nil
	case code == "Iw":
		v, err := s.fetchImm(Width16)
		if err != nil {
			return Operand{}, err
		}
		return immOperand(uint64(v), Width16, false), nil
	case code == "Iv", code == "Iz":
		v, err := s.fetchImm(s.operandWidth)
		if err != nil {
			return Operand{}, err
		}
		return immOperand(uint64(v), s.operandWidth, false), nil
	case code == "Isb":
		// Sign-extend an 8-bit immediate into the current operand width
		// (used by the 83/XX group).
		v, err := s.fetchImm(Width8)
		if err != nil {
			return Operand{}, err
		}
		signExtended := uint64(int64(int8(byte(v))))
		if s.operandWidth == Width16 {
			signExtended &= 0xFFFF
		}
		return immOperand(signExtended, s.operandWidth, true), nil

	case code == "Ap":
		offWidth := s.operandWidth
		off, err := s.fetchImm(offWidth)
		if err != nil {
			return Operand{}, err
		}
		seg, err := s.fetchImm(Width16)
		if err != nil {
			return Operand{}, err
		}
		return Operand{
			Kind: OperandFarPointer,
			Far: FarPointer{
				Seg: Immediate{Value: uint64(seg), Width: Width16},
				Off: Immediate{Value: uint64(off), Width: offWidth},
			},
		}, nil

	case code == "Ma", code == "Mp", code == "Mb", code == "Mw", code == "Md",
		code == "Mv", code == "Mq", code == "Mt", code == "M":
		width := memCodeWidth(code, s.operandWidth)
		if err := s.fetchModRM(); err != nil {
			return Operand{}, err
		}
		if s.mod == 3 {
			return Operand{}, errInvalidOperand(code, "mod==3 is invalid for a memory-only operand")
		}
		m, err := s.resolveMemory(width)
		if err != nil {
			return Operand{}, err
		}
		return memOperand(m), nil

	case code == "Ob", code == "Ov":
		width := Width32
		if code == "Ob" {
			width = Width8
		} else {
			width = s.operandWidth
		}
		v, err := s.fetchImm(s.addressWidth)
		if err != nil {
			return Operand{}, err
		}
		seg := SegDS
		m := MemoryRef{Width: width, Seg: seg, Scale: 1, Disp: dispImmediate(v, s.addressWidth, false)}
		s.applySegOverride(&m)
		return memOperand(m), nil

	case code == "Xb", code == "Xv", code == "Xz":
		width := stringWidth(code, s.operandWidth)
		reg := Register{Name: "si", Width: s.addressWidth}
		if s.addressWidth == Width32 {
			reg.Name = "esi"
		}
		m := MemoryRef{Width: width, Seg: SegDS, Base: &reg, Scale: 1}
		s.applySegOverride(&m)
		return memOperand(m), nil

	case code == "Yb", code == "Yv", code == "Yz":
		width := stringWidth(code, s.operandWidth)
		reg := Register{Name: "di", Width: s.addressWidth}
		if s.addressWidth == Width32 {
			reg.Name = "edi"
		}
		m := MemoryRef{Width: width, Seg: SegES, Base: &reg, Scale: 1}
		// Yb/Yv/Yz segment is ES and is NOT overridable.
		return memOperand(m), nil

	case code == "Fv":
		name := "eflags"
		if s.operandWidth == Width16 {
			name = "flags"
		}
		return Operand{Kind: OperandRegister, Reg: Register{Name: name, Width: s.operandWidth}}, nil

	case code == "Kt":
		if err := s.fetchModRM(); err != nil {
			return Operand{}, err
		}
		return Operand{Kind: OperandRegister, Reg: Register{Name: st(s.rm), Width: Width80}}, nil
	}

	return Operand{}, errInvalidOperand(code, "unrecognised operand code")
}

func st(i byte) string {
	return "st(" + string(rune('0'+i&7)) + ")"
}

func stringWidth(code OperandCode, operandWidth Width) Width {
	switch code[1] {
	case 'b':
		return Width8
	case 'v', 'z':
		return operandWidth
	}
	return operandWidth
}

func memCodeWidth(code OperandCode, operandWidth Width) Width {
	switch code {
	case "Mb":
		return Width8
	case "Mw":
		return Width16
	case "Md":
		return Width32
	case "Mq":
		return Width64
	case "Mt":
		return Width80
	case "Mp", "Ma":
		return operandWidth
	default:
		return operandWidth
	}
}

// resolveE implements the Eb/Ew/Ev/Ey/Ep family: a register when
// mod==3, else a memory reference built by §4.3-Mem.
func resolveE(s *state, width Width) (Operand, error) {
	if err := s.fetchModRM(); err != nil {
		return Operand{}, err
	}
	if s.mod == 3 {
		return Operand{Kind: OperandRegister, Reg: gpRegister(s.rm, width)}, nil
	}
	m, err := s.resolveMemory(width)
	if err != nil {
		return Operand{}, err
	}
	return memOperand(m), nil
}

// literalRegister recognises lowercase literal register tokens
// ("al", "dx", "ecx", ...), the width-dependent "?ax"/"?cx".../"?di"
// short forms, and the literal shift count "1".
func literalRegister(s *state, code OperandCode) (Operand, bool) {
	str := string(code)
	if len(str) == 0 {
		return Operand{}, false
	}
	if (str[0] < 'a' || str[0] > 'z') && str[0] != '?' && str != "1" {
		return Operand{}, false
	}
	if strings.HasPrefix(str, "?") {
		pair := str[1:] // "ax", "cx", "dx", "bx", "sp", "bp", "si", "di"
		if s.operandWidth == Width16 {
			return Operand{Kind: OperandRegister, Reg: Register{Name: pair, Width: Width16}}, true
		}
		return Operand{Kind: OperandRegister, Reg: Register{Name: "e" + pair, Width: Width32}}, true
	}
	switch str {
	case "al", "cl", "dl", "bl", "ah", "ch", "dh", "bh":
		return Operand{Kind: OperandRegister, Reg: Register{Name: str, Width: Width8}}, true
	case "ax", "cx", "dx", "bx", "sp", "bp", "si", "di":
		return Operand{Kind: OperandRegister, Reg: Register{Name: str, Width: Width16}}, true
	case "eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi":
		return Operand{Kind: OperandRegister, Reg: Register{Name: str, Width: Width32}}, true
	case "cs", "ds", "es", "ss", "fs", "gs":
		return Operand{Kind: OperandRegister, Reg: Register{Name: str, Width: Width16}}, true
	case "1":
		return immOperand(1, Width8, false), true
	}
	return Operand{}, false
}
