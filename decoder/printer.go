// printer.go - C6: renders an Instruction as Intel-syntax text (§4.4).

package decoder

import (
	"fmt"
	"strings"
)

// PrintInsn renders insn as Intel-syntax text: "<mnem> <op1>, <op2>,
// <op3>", with lock/repne/repe prefixes preceding the mnemonic when
// set. minMnemonicWidth pads the mnemonic field (plus a following
// space) the way the original disassembler columns its output.
func PrintInsn(insn Instruction, minMnemonicWidth int) string {
	var b strings.Builder
	if insn.Prefixes.Lock {
		b.WriteString("lock ")
	}
	if insn.Prefixes.RepNE {
		b.WriteString("repne ")
	}
	if insn.Prefixes.RepE {
		b.WriteString("repe ")
	}
	fmt.Fprintf(&b, "%-*s", minMnemonicWidth, insn.Mnemonic)
	b.WriteByte(' ')

	operandStrs := make([]string, len(insn.Operands))
	for i, op := range insn.Operands {
		operandStrs[i] = printOperand(op)
	}
	b.WriteString(strings.Join(operandStrs, ", "))
	return b.String()
}

func printOperand(op Operand) string {
	switch op.Kind {
	case OperandRegister:
		return op.Reg.Name
	case OperandImmediate:
		return printImmediate(op.Imm, true)
	case OperandMemory:
		return printMemory(op.Mem)
	case OperandFarPointer:
		return fmt.Sprintf("%s:%s", printImmediate(op.Far.Seg, false), printImmediate(op.Far.Off, false))
	default:
		return "?"
	}
}

// printImmediate renders a standalone immediate operand: hex,
// zero-padded to width/4 nibbles, with a sign prefix when the value is
// signed and withSign requests one.
func printImmediate(im Immediate, withSign bool) string {
	if !withSign || !im.Signed {
		return fmt.Sprintf("%0*x", im.Width.nibbles(), im.Value&widthMask(im.Width))
	}
	return signedHex(im)
}

func signedHex(im Immediate) string {
	sv := im.SignedValue()
	if sv < 0 {
		return fmt.Sprintf("-%0*x", im.Width.nibbles(), uint64(-sv))
	}
	return fmt.Sprintf("+%0*x", im.Width.nibbles(), uint64(sv))
}

func widthMask(w Width) uint64 {
	if w == 0 || w >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(w)) - 1
}

// printMemory renders a MemoryRef as "<width> <seg>:[<addr>]" per
// §4.4: base, then "+index*scale" (or bare "index*scale" with no
// base), then a signed displacement — or, for a purely-displacement
// reference with neither base nor index, the raw hex address.
func printMemory(m MemoryRef) string {
	var addr strings.Builder
	if m.Base != nil {
		addr.WriteString(m.Base.Name)
	}
	if m.Index != nil {
		if m.Base != nil {
			addr.WriteByte('+')
		}
		fmt.Fprintf(&addr, "%s*%d", m.Index.Name, m.Scale)
	}
	if m.Disp != nil {
		if m.Base != nil || m.Index != nil {
			addr.WriteString(signedHex(*m.Disp))
		} else {
			addr.WriteString(printImmediate(*m.Disp, false))
		}
	} else if m.Base == nil && m.Index == nil {
		addr.WriteString("0")
	}

	seg := m.Seg.String()
	if seg == "" {
		return fmt.Sprintf("%s [%s]", m.Width.Name(), addr.String())
	}
	return fmt.Sprintf("%s %s:[%s]", m.Width.Name(), seg, addr.String())
}
