// Package emulator is the §4.7 software emulator adapter: it runs a
// deployment spec against an in-memory model of the fCore programs
// instead of real hardware, and exposes the same interactive stepping
// shape (add_breakpoint/remove_breakpoint/step_over/resume) the wire
// protocol's interactive_command envelope names.
package emulator

import (
	"encoding/json"
	"fmt"

	"hilctl/errcode"
	"hilctl/internal/hilbus"
	"hilctl/internal/specmodel"
)

// Result is the §4.7 emulate_hil response shape.
type Result struct {
	Results      string `json:"results"`
	ResultsValid bool   `json:"results_valid"`
	Duplicates   string `json:"duplicates"`
	Code         int    `json:"code"`
}

// CoreTrace is one core's emulated output, the unit the Results JSON
// string is built from.
type CoreTrace struct {
	ID      string             `json:"id"`
	Outputs map[string]float64 `json:"outputs"`
}

// Emulator runs specs through a conflict check and a minimal software
// interpreter of each core's program.
type Emulator struct {
	sessions map[string]*debugSession
}

func New() *Emulator {
	return &Emulator{sessions: make(map[string]*debugSession)}
}

// Emulate implements §4.7's emulate entry: a bus-conflict check (same
// rule the deployer enforces, P2) runs first and, on failure, short
// circuits with code 9 and the conflicting pair named in Duplicates —
// no program ever runs. Otherwise each core's program is interpreted
// and the per-core output values are serialized as the Results string.
func (e *Emulator) Emulate(spec specmodel.EmulatorSpec) Result {
	bus := hilbus.New()
	for _, slot := range spec.Interconnect {
		bus.PushBack(slot)
	}
	if err := bus.CheckConflicts(); err != nil {
		return Result{
			Results:      "HIL BUS CONFLICT DETECTED\n",
			ResultsValid: false,
			Duplicates:   err.Error(),
			Code:         errcode.HilBusConflictWarning.Int(),
		}
	}

	traces, err := e.run(spec)
	if err != nil {
		return Result{
			Results:      "EMULATION ERROR:\n" + err.Error(),
			ResultsValid: false,
			Code:         errcode.EmulationError.Int(),
		}
	}

	body, err := json.Marshal(traces)
	if err != nil {
		return Result{
			Results:      "EMULATION ERROR:\n" + err.Error(),
			ResultsValid: false,
			Code:         errcode.EmulationError.Int(),
		}
	}
	return Result{
		Results:      string(body),
		ResultsValid: true,
		Code:         errcode.OK.Int(),
	}
}

// run interprets every core's program independently. The interpreter is
// deliberately minimal: a single accumulator fed by each core's constant
// and external input values in declaration order, updated by add/sub/mul
// opcodes, with the final accumulator value reported per declared
// output. It exists to give emulate_hil real, reproducible numbers to
// return, not to model fCore's pipeline timing.
func (e *Emulator) run(spec specmodel.EmulatorSpec) ([]CoreTrace, error) {
	traces := make([]CoreTrace, 0, len(spec.Cores))
	for _, core := range spec.Cores {
		acc, err := execute(core)
		if err != nil {
			return nil, fmt.Errorf("core %q: %w", core.ID, err)
		}
		outputs := make(map[string]float64, len(core.Outputs))
		for _, out := range core.Outputs {
			outputs[out.Name] = acc
		}
		traces = append(traces, CoreTrace{ID: core.ID, Outputs: outputs})
	}
	return traces, nil
}

// Disassemble implements the hil_disassemble endpoint: one list of
// mnemonic lines (one per program word) per core, keyed by core ID (matching the original's
// core-id-to-disassembly map shape).
func (e *Emulator) Disassemble(spec specmodel.EmulatorSpec) map[string][]string {
	out := make(map[string][]string, len(spec.Cores))
	for _, core := range spec.Cores {
		out[core.ID] = Disassemble(core.Program)
	}
	return out
}
