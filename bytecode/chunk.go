package bytecode

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Chunk: the compilation artifact
// ---------------------------------------------------------------------------

// Chunk is a compiled unit of bytecode: an instruction stream, the constant
// pool it indexes, and the number of local slots a frame must reserve.
type Chunk struct {
	Code       []byte
	Constants  []Value
	LocalCount int
}

// NewChunk creates a new empty chunk.
func NewChunk() *Chunk {
	return &Chunk{
		Code:      make([]byte, 0, 64),
		Constants: make([]Value, 0, 8),
	}
}

// readU16 decodes a big-endian uint16 at the given offset.
func (c *Chunk) readU16(offset int) uint16 {
	return binary.BigEndian.Uint16(c.Code[offset:])
}

// readI16 decodes a big-endian int16 at the given offset.
func (c *Chunk) readI16(offset int) int16 {
	return int16(c.readU16(offset))
}

// Validate checks chunk well-formedness: every opcode is known and fully
// encoded, constant and local indices are in range, and every jump delta
// lands on an instruction boundary inside the chunk (or exactly at its end).
func (c *Chunk) Validate() error {
	boundaries := make(map[int]bool, len(c.Code)/2)

	offset := 0
	for offset < len(c.Code) {
		boundaries[offset] = true

		op := Opcode(c.Code[offset])
		info, ok := GetOpcodeInfo(op)
		if !ok {
			return fmt.Errorf("invalid opcode 0x%02x at offset %d", byte(op), offset)
		}
		width := info.Operand.Width()
		if offset+1+width > len(c.Code) {
			return fmt.Errorf("truncated operand for %s at offset %d", info.Name, offset)
		}

		switch op {
		case OpConst:
			if idx := int(c.readU16(offset + 1)); idx >= len(c.Constants) {
				return fmt.Errorf("constant index %d out of range at offset %d", idx, offset)
			}
		case OpLoadLocal, OpStoreLocal:
			if idx := int(c.readU16(offset + 1)); idx >= c.LocalCount {
				return fmt.Errorf("local slot %d out of range at offset %d", idx, offset)
			}
		}

		offset += 1 + width
	}
	boundaries[len(c.Code)] = true

	// Second pass: jump targets must be instruction boundaries.
	offset = 0
	for offset < len(c.Code) {
		op := Opcode(c.Code[offset])
		info, _ := GetOpcodeInfo(op)
		width := info.Operand.Width()

		if op == OpJump || op == OpJumpFalse {
			target := offset + 1 + width + int(c.readI16(offset+1))
			if target < 0 || target > len(c.Code) || !boundaries[target] {
				return fmt.Errorf("jump at offset %d targets invalid offset %d", offset, target)
			}
		}

		offset += 1 + width
	}

	return nil
}

// Disassemble renders the chunk as one instruction per line.
func Disassemble(c *Chunk) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "; locals=%d constants=%d\n", c.LocalCount, len(c.Constants))

	offset := 0
	for offset < len(c.Code) {
		op := Opcode(c.Code[offset])
		info, ok := GetOpcodeInfo(op)
		if !ok {
			fmt.Fprintf(&sb, "%04d ??? 0x%02x\n", offset, byte(op))
			offset++
			continue
		}

		switch info.Operand {
		case OperandU16:
			idx := int(c.readU16(offset + 1))
			if op == OpConst && idx < len(c.Constants) {
				fmt.Fprintf(&sb, "%04d %-12s %d ; %s\n", offset, info.Name, idx, c.Constants[idx])
			} else {
				fmt.Fprintf(&sb, "%04d %-12s %d\n", offset, info.Name, idx)
			}
		case OperandI16:
			delta := int(c.readI16(offset + 1))
			target := offset + 3 + delta
			fmt.Fprintf(&sb, "%04d %-12s %+d ; -> %04d\n", offset, info.Name, delta, target)
		case OperandU8:
			fmt.Fprintf(&sb, "%04d %-12s %d\n", offset, info.Name, int(c.Code[offset+1]))
		default:
			fmt.Fprintf(&sb, "%04d %s\n", offset, info.Name)
		}

		offset += 1 + info.Operand.Width()
	}

	return sb.String()
}
