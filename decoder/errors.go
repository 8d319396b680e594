// errors.go - decoder failure taxonomy (C4/C5 §4.8).

package decoder

import "errors"

// ErrInvalidOpcode marks an opcode slot that the ISA itself reserves —
// it must never execute, regardless of table coverage.
var ErrInvalidOpcode = errors.New("metalbones/decoder: invalid opcode")

// ErrUnknownOpcode marks a slot the dispatch tables simply haven't
// filled in yet. Distinct from ErrInvalidOpcode: this is a property of
// the table, not the ISA.
var ErrUnknownOpcode = errors.New("metalbones/decoder: unknown opcode")
