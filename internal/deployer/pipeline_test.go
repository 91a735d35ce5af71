package deployer

import (
	"testing"

	"hilctl/internal/opcode"
)

func TestScanProgramDetectsReciprocal(t *testing.T) {
	program := []uint32{0xC, 0xC, opcode.LDC, 0x1234, opcode.REC}
	if !ScanProgram(program) {
		t.Fatal("expected reciprocal detected")
	}
}

func TestScanProgramSkipsLDCOperand(t *testing.T) {
	// the word right after ldc is a raw constant that happens to look
	// like opcode.REC; it must be skipped, not scanned as an opcode.
	program := []uint32{0xC, 0xC, opcode.LDC, opcode.REC}
	if ScanProgram(program) {
		t.Fatal("expected ldc operand to be skipped, not counted as rec")
	}
}

func TestScanProgramNoReciprocal(t *testing.T) {
	program := []uint32{0xC, 0xC, 0x01, 0x02}
	if ScanProgram(program) {
		t.Fatal("expected no reciprocal")
	}
}

func TestChannelCount(t *testing.T) {
	if ChannelCount(false, false) != 8 {
		t.Fatal("expected 8 channels for plain program")
	}
	if ChannelCount(true, false) != 11 {
		t.Fatal("expected 11 channels when reciprocal present")
	}
	if ChannelCount(false, true) != 11 {
		t.Fatal("expected 11 channels under full_cores_override")
	}
}
