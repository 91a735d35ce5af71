package emulator

import (
	"fmt"

	"hilctl/internal/opcode"
	"hilctl/internal/specmodel"
)

// Disassemble renders a program's opcode stream into one mnemonic line
// per instruction word (§4.7, the hil_disassemble endpoint). It shares
// the opcode table and header/ldc-skip scanning convention with the
// deployer's pipeline scanner and this package's interpreter —
// internal/opcode is the one table all three read.
func Disassemble(program []uint32) []string {
	return opcode.Disassemble(program)
}

// execute runs one core's program against a single float64 accumulator
// seeded from its constant/external input values, in declaration order.
// add/sub/mul consume the next input value; ldc's operand word and rec
// are honored per §4.5.1's scan convention but don't themselves consume
// an input. Programs referencing more values than were supplied settle
// at zero for the missing operand rather than erroring, since a
// partially-wired spec is a legitimate thing to emulate.
func execute(core specmodel.CoreSpec) (float64, error) {
	values := inputValues(core)
	acc := 0.0
	if len(values) > 0 {
		acc = values[0]
	}
	next := 1

	take := func() float64 {
		if next >= len(values) {
			return 0
		}
		v := values[next]
		next++
		return v
	}

	section := 0
	skip := false
	for _, instr := range core.Program {
		if section < 2 {
			if instr == opcode.Stop {
				section++
			}
			continue
		}
		if skip {
			skip = false
			continue
		}
		op := instr & opcode.Mask
		switch op {
		case opcode.LDC:
			skip = true
		case opcode.ADD:
			acc += take()
		case opcode.SUB:
			acc -= take()
		case opcode.MUL:
			acc *= take()
		case opcode.REC:
			if acc == 0 {
				return 0, fmt.Errorf("reciprocal of zero")
			}
			acc = 1 / acc
		}
	}
	return acc, nil
}

// inputValues flattens a core's constant/external inputs into a flat
// value list in declaration order, taking the first (broadcast) value
// of each. Random and waveform inputs aren't deterministic so they
// don't feed the interpreter; they still deploy to hardware via
// internal/deployer.
func inputValues(core specmodel.CoreSpec) []float64 {
	values := make([]float64, 0, len(core.Inputs))
	for _, in := range core.Inputs {
		if in.Kind != specmodel.InputConstant && in.Kind != specmodel.InputExternal {
			continue
		}
		if len(in.Values) == 0 {
			values = append(values, 0)
			continue
		}
		values = append(values, in.Values[0])
	}
	return values
}
