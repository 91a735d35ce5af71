package deployer

import "hilctl/internal/opcode"

// FixedPortion and PerChannelPortion are the pipeline-length coefficients
// fed into the fixed + channels*per_channel formula the schedule uses for
// its phase shifts and min_timebase. Dividers are derived from sample
// rates alone; no check compares a core's length against its time
// slot. The upstream fCore pipeline depth constants aren't
// part of the retrieved source tree; these are a self-consistent
// placeholder pair, not a measured hardware value.
const (
	FixedPortion      = 20
	PerChannelPortion = 8

	channelsBasic = 8
	channelsFull  = 11
)

// ScanProgram reports whether a program uses the reciprocal unit, per
// §4.5.1. The scan itself lives in internal/opcode, shared with the
// disassembler and emulator.
func ScanProgram(program []uint32) (hasReciprocal bool) {
	return opcode.ScanReciprocal(program)
}

// ChannelCount returns the channel count used for scheduling (§4.5.1):
// 11 when the program uses the reciprocal unit or fullCoresOverride is
// set, else 8.
func ChannelCount(hasReciprocal, fullCoresOverride bool) int {
	if hasReciprocal || fullCoresOverride {
		return channelsFull
	}
	return channelsBasic
}

// ProgramLength computes fixed_portion + channels*per_channel_portion,
// the pipeline-length figure the schedule's shifts and min_timebase use.
func ProgramLength(channels int) int {
	return FixedPortion + channels*PerChannelPortion
}
