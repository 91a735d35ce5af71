// Package opcode is the one shared opcode table for the fCore
// instruction stream: the pipeline-length scanner (internal/deployer),
// the disassembler and the software emulator's interpreter
// (internal/emulator) all read the same mnemonic table instead of
// keeping three divergent copies of "what does opcode 0xC mean."
//
// The upstream fCore opcode widths and per-mnemonic values aren't part
// of the retrieved source tree (they live in an external fcore
// library); this table is a self-consistent placeholder assignment, not
// a measured hardware encoding.
package opcode

import "fmt"

const (
	Width = 6
	Mask  = (1 << Width) - 1

	Stop = 0xC // full instruction word, never masked
	LDC  = 0x05
	REC  = 0x0B
	ADD  = 0x01
	SUB  = 0x02
	MUL  = 0x03
)

var Mnemonics = map[uint32]string{
	LDC: "ldc",
	REC: "rec",
	ADD: "add",
	SUB: "sub",
	MUL: "mul",
}

func Is(instr, op uint32) bool { return instr&Mask == op }

// ScanReciprocal walks a program's opcode stream per §4.5.1: the first
// two Stop sentinels mark the end of header words and the start of user
// code. From there, an ldc opcode causes the immediately-following word
// to be skipped (a constant operand, not an opcode), and a rec opcode
// marks the program as using the reciprocal unit.
func ScanReciprocal(program []uint32) (hasReciprocal bool) {
	section := 0
	skipNext := false
	for _, instr := range program {
		if section < 2 {
			if instr == Stop {
				section++
			}
			continue
		}
		if skipNext {
			skipNext = false
			continue
		}
		if Is(instr, LDC) {
			skipNext = true
			continue
		}
		if Is(instr, REC) {
			hasReciprocal = true
		}
	}
	return hasReciprocal
}

// Disassemble renders a program's opcode stream into one mnemonic line
// per instruction word, following the same header/ldc-skip convention as
// ScanReciprocal. Header words (before the second Stop) and unrecognized
// opcodes are rendered as raw hex.
func Disassemble(program []uint32) []string {
	lines := make([]string, 0, len(program))
	section := 0
	skipNext := false
	for i, instr := range program {
		if section < 2 {
			lines = append(lines, fmt.Sprintf("%04d: .word 0x%x", i, instr))
			if instr == Stop {
				section++
			}
			continue
		}
		if skipNext {
			lines = append(lines, fmt.Sprintf("%04d: .const 0x%x", i, instr))
			skipNext = false
			continue
		}
		op := instr & Mask
		name, ok := Mnemonics[op]
		if !ok {
			lines = append(lines, fmt.Sprintf("%04d: .word 0x%x", i, instr))
			continue
		}
		lines = append(lines, fmt.Sprintf("%04d: %s", i, name))
		if op == LDC {
			skipNext = true
		}
	}
	return lines
}
