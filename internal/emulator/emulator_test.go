package emulator

import (
	"strings"
	"testing"

	"hilctl/internal/opcode"
	"hilctl/internal/specmodel"
)

func constInput(name string, v float64) specmodel.InputSpec {
	return specmodel.InputSpec{
		Name:   name,
		Kind:   specmodel.InputConstant,
		Meta:   specmodel.IOMetadata{Type: specmodel.IOFloat, Width: 32},
		Values: []float64{v},
	}
}

func TestEmulateSuccess(t *testing.T) {
	program := []uint32{0xC, 0xC, opcode.ADD}
	spec := specmodel.EmulatorSpec{
		Cores: []specmodel.CoreSpec{
			{
				ID:      "core0",
				Program: program,
				Inputs:  []specmodel.InputSpec{constInput("a", 2), constInput("b", 3)},
				Outputs: []specmodel.OutputSpec{{Name: "out"}},
			},
		},
	}
	e := New()
	result := e.Emulate(spec)
	if result.Code != 1 || !result.ResultsValid {
		t.Fatalf("expected success, got %+v", result)
	}
	if !strings.Contains(result.Results, "\"out\":5") {
		t.Fatalf("expected out==2+3==5 in results, got %s", result.Results)
	}
}

func TestEmulateBusConflict(t *testing.T) {
	spec := specmodel.EmulatorSpec{
		Interconnect: []specmodel.InterconnectSlot{
			{SourceID: "a", DestBusAddress: 5, DestChannel: 0},
			{SourceID: "b", DestBusAddress: 5, DestChannel: 0},
		},
	}
	e := New()
	result := e.Emulate(spec)
	if result.Code != 9 || result.ResultsValid {
		t.Fatalf("expected bus-conflict code 9, got %+v", result)
	}
	if !strings.Contains(result.Duplicates, "5") || !strings.Contains(result.Duplicates, "0") {
		t.Fatalf("expected duplicates text naming 5 and 0, got %q", result.Duplicates)
	}
}

func TestEmulateReciprocalOfZeroIsEmulationError(t *testing.T) {
	program := []uint32{0xC, 0xC, opcode.REC}
	spec := specmodel.EmulatorSpec{
		Cores: []specmodel.CoreSpec{{ID: "core0", Program: program}},
	}
	e := New()
	result := e.Emulate(spec)
	if result.Code != 7 || result.ResultsValid {
		t.Fatalf("expected emulation-error code 7, got %+v", result)
	}
}

func TestDisassembleRendersMnemonics(t *testing.T) {
	e := New()
	spec := specmodel.EmulatorSpec{
		Cores: []specmodel.CoreSpec{
			{ID: "core0", Program: []uint32{0xC, 0xC, opcode.ADD, opcode.LDC, 0x99}},
		},
	}
	out := e.Disassemble(spec)
	lines, ok := out["core0"]
	if !ok || len(lines) != 5 {
		t.Fatalf("expected 5 lines for core0, got %+v", out)
	}
	if !strings.Contains(lines[2], "add") {
		t.Fatalf("expected add mnemonic, got %q", lines[2])
	}
	if !strings.Contains(lines[4], ".const") {
		t.Fatalf("expected ldc operand rendered as .const, got %q", lines[4])
	}
}

func TestHandleInteractiveBreakpointLifecycle(t *testing.T) {
	e := New()
	spec := specmodel.EmulatorSpec{
		Cores: []specmodel.CoreSpec{{ID: "core0", Program: make([]uint32, 10)}},
	}
	if _, err := e.HandleInteractive(InteractiveCommand{Type: CmdInitialize, ID: "sess", Spec: spec}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if _, err := e.HandleInteractive(InteractiveCommand{Type: CmdAddBreakpoint, ID: "sess", TargetInstruction: 3}); err != nil {
		t.Fatalf("add_breakpoint: %v", err)
	}
	got, err := e.HandleInteractive(InteractiveCommand{Type: CmdGetBreakpoints, ID: "sess"})
	if err != nil || got != "[3]" {
		t.Fatalf("expected [3], got %q err=%v", got, err)
	}
	if _, err := e.HandleInteractive(InteractiveCommand{Type: CmdResume, ID: "sess"}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if pc := e.sessions["sess"].paused["core0"]; pc != 3 {
		t.Fatalf("expected resume to stop at breakpoint 3, got %d", pc)
	}
}

func TestHandleInteractiveUnknownSession(t *testing.T) {
	e := New()
	if _, err := e.HandleInteractive(InteractiveCommand{Type: CmdStepOver, ID: "missing"}); err == nil {
		t.Fatal("expected error for unknown session")
	}
}
