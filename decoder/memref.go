// memref.go - memory-reference construction rules (§4.3-Mem).

package decoder

// mem16Entry describes one of the 24 (mod,rm) combinations of 16-bit
// addressing: which two registers form the base+index, the default
// segment, and whether a displacement follows and of what width.
type mem16Entry struct {
	base, index string // "" if absent
	seg         SegReg
	dispWidth   Width // WidthNone if no displacement for this (mod,rm)
}

// mem16Table is indexed by (mod<<3)|rm for mod in {0,1,2} (mod==3 never
// reaches memory construction). mod==0,rm==6 is the special [disp16]
// case; rm==6 at mod 1/2 is [BP+disp] and defaults to SS.
// Single-register forms (rm 4/5/7, and rm 6 when mod!=0) carry their
// register in the index slot with an implicit scale of 1, not in base —
// matching how the printer renders them ("si*1", not bare "si").
var mem16Table = map[byte]mem16Entry{
	0<<3 | 0: {"bx", "si", SegDS, WidthNone},
	0<<3 | 1: {"bx", "di", SegDS, WidthNone},
	0<<3 | 2: {"bp", "si", SegSS, WidthNone},
	0<<3 | 3: {"bp", "di", SegSS, WidthNone},
	0<<3 | 4: {"", "si", SegDS, WidthNone},
	0<<3 | 5: {"", "di", SegDS, WidthNone},
	0<<3 | 6: {"", "", SegDS, Width16}, // [disp16]
	0<<3 | 7: {"", "bx", SegDS, WidthNone},

	1<<3 | 0: {"bx", "si", SegDS, Width8},
	1<<3 | 1: {"bx", "di", SegDS, Width8},
	1<<3 | 2: {"bp", "si", SegSS, Width8},
	1<<3 | 3: {"bp", "di", SegSS, Width8},
	1<<3 | 4: {"", "si", SegDS, Width8},
	1<<3 | 5: {"", "di", SegDS, Width8},
	1<<3 | 6: {"", "bp", SegSS, Width8},
	1<<3 | 7: {"", "bx", SegDS, Width8},

	2<<3 | 0: {"bx", "si", SegDS, Width16},
	2<<3 | 1: {"bx", "di", SegDS, Width16},
	2<<3 | 2: {"bp", "si", SegSS, Width16},
	2<<3 | 3: {"bp", "di", SegSS, Width16},
	2<<3 | 4: {"", "si", SegDS, Width16},
	2<<3 | 5: {"", "di", SegDS, Width16},
	2<<3 | 6: {"", "bp", SegSS, Width16},
	2<<3 | 7: {"", "bx", SegDS, Width16},
}

// resolveMemory16 builds a MemoryRef for 16-bit addressing mode given
// the already-fetched ModR/M fields.
func (s *state) resolveMemory16(width Width) (MemoryRef, error) {
	key := s.mod<<3 | s.rm
	e, ok := mem16Table[key]
	if !ok {
		return MemoryRef{}, errInvalidOperand("M", "no 16-bit addressing entry")
	}
	m := MemoryRef{Width: width, Seg: e.seg, Scale: 1}
	if e.base != "" {
		r := Register{Name: e.base, Width: Width16}
		m.Base = &r
	}
	if e.index != "" {
		r := Register{Name: e.index, Width: Width16}
		m.Index = &r
	}
	if e.dispWidth != WidthNone {
		v, err := s.fetchImm(e.dispWidth)
		if err != nil {
			return MemoryRef{}, err
		}
		m.Disp = dispImmediate(v, e.dispWidth, m.Base != nil || m.Index != nil)
	}
	s.applySegOverride(&m)
	return m, nil
}

// dispImmediate builds the displacement Immediate per §4.3-Mem: 8-bit
// displacements are always sign-extended when added; the full-width
// displacement is signed when a base or index is present, else an
// unsigned absolute address.
func dispImmediate(v uint32, w Width, hasBaseOrIndex bool) *Immediate {
	signed := w == Width8 || hasBaseOrIndex
	im := Immediate{Value: uint64(v), Width: w, Signed: signed}
	return &im
}

// mem32RMNames gives the base-register name for each rm in
// {0,1,2,3,5,6,7} at mod in {0,1,2}; rm==4 always means SIB, and
// mod==0,rm==5 means a bare 32-bit displacement (no base).
var mem32RMNames = [8]string{"eax", "ecx", "edx", "ebx", "", "ebp", "esi", "edi"}

// resolveMemory32 builds a MemoryRef for 32-bit addressing mode.
func (s *state) resolveMemory32(width Width) (MemoryRef, error) {
	if s.rm == 4 {
		return s.resolveMemorySIB(width)
	}

	m := MemoryRef{Width: width, Seg: SegDS, Scale: 1}

	if s.mod == 0 && s.rm == 5 {
		// [disp32], no base.
		v, err := s.fetchImm(Width32)
		if err != nil {
			return MemoryRef{}, err
		}
		m.Disp = dispImmediate(v, Width32, false)
		s.applySegOverride(&m)
		return m, nil
	}

	baseName := mem32RMNames[s.rm]
	base := Register{Name: baseName, Width: Width32}
	m.Base = &base
	if baseName == "esp" || baseName == "ebp" {
		m.Seg = SegSS
	}

	switch s.mod {
	case 1:
		v, err := s.fetchImm(Width8)
		if err != nil {
			return MemoryRef{}, err
		}
		m.Disp = dispImmediate(v, Width8, true)
	case 2:
		v, err := s.fetchImm(Width32)
		if err != nil {
			return MemoryRef{}, err
		}
		m.Disp = dispImmediate(v, Width32, true)
	}
	s.applySegOverride(&m)
	return m, nil
}

// sibIndexTable maps SIB.index to a register name; index==4 means "no
// index register" (ESP cannot be scaled).
var sibIndexTable = [8]string{"eax", "ecx", "edx", "ebx", "", "ebp", "esi", "edi"}
var sibBaseTable = [8]string{"eax", "ecx", "edx", "ebx", "esp", "ebp", "esi", "edi"}

// resolveMemorySIB handles ModR/M.rm==4 in 32-bit addressing mode.
func (s *state) resolveMemorySIB(width Width) (MemoryRef, error) {
	if err := s.fetchSIB(); err != nil {
		return MemoryRef{}, err
	}
	m := MemoryRef{Width: width, Seg: SegDS, Scale: 1 << s.scale}

	if s.index != 4 {
		idx := Register{Name: sibIndexTable[s.index], Width: Width32}
		m.Index = &idx
	} else {
		m.Scale = 1
	}

	hasBase := true
	if s.mod == 0 && s.base == 5 {
		hasBase = false
	} else {
		b := Register{Name: sibBaseTable[s.base], Width: Width32}
		m.Base = &b
		if b.Name == "esp" || b.Name == "ebp" {
			m.Seg = SegSS
		}
	}

	if !hasBase {
		v, err := s.fetchImm(Width32)
		if err != nil {
			return MemoryRef{}, err
		}
		m.Disp = dispImmediate(v, Width32, m.Index != nil)
	} else {
		switch s.mod {
		case 1:
			v, err := s.fetchImm(Width8)
			if err != nil {
				return MemoryRef{}, err
			}
			m.Disp = dispImmediate(v, Width8, true)
		case 2:
			v, err := s.fetchImm(Width32)
			if err != nil {
				return MemoryRef{}, err
			}
			m.Disp = dispImmediate(v, Width32, true)
		}
	}

	s.applySegOverride(&m)
	return m, nil
}

// applySegOverride replaces the default segment with an explicit
// override prefix, if one was seen.
func (s *state) applySegOverride(m *MemoryRef) {
	if s.segOverride != SegNone {
		m.Seg = s.segOverride
	}
}

// resolveMemory dispatches to the 16- or 32-bit addressing-mode builder
// depending on the current address width.
func (s *state) resolveMemory(width Width) (MemoryRef, error) {
	if err := s.fetchModRM(); err != nil {
		return MemoryRef{}, err
	}
	if s.mod == 3 {
		return MemoryRef{}, errInvalidOperand("M", "mod==3 is a register form, not memory")
	}
	if s.addressWidth == Width16 {
		return s.resolveMemory16(width)
	}
	return s.resolveMemory32(width)
}
