package deployer

import (
	"sort"

	"hilctl/x/mathx"
)

// DefaultHilClockFrequency is the default PS/PL reference clock (100 MHz),
// matching the original deployer's hil_clock_frequency default.
const DefaultHilClockFrequency = 100_000_000

const interCoreBuffer = 90 // measured slack, not user-tunable (§4.5.2)

// ScheduleInput is one program's scheduling-relevant facts.
type ScheduleInput struct {
	Name     string
	Order    int
	SampleHz uint64
	Channels int // resolved via ChannelCount, used by ProgramLength
}

// Schedule is the §4.5.2 result: per-program divider/shift, the overall
// timebase frequency and sequencer period.
type Schedule struct {
	TimebaseFrequency uint64
	MinTimebase       uint32
	Period            uint32
	Dividers          map[string]uint32
	Shifts            map[string]uint32
}

// ComputeSchedule derives the timebase frequency (LCM of non-zero sample
// rates), per-program dividers, and the staggered phase shifts ordered by
// execution order (§4.5.2).
func ComputeSchedule(programs []ScheduleInput, hilClockFrequency uint64) Schedule {
	freqs := make([]uint64, len(programs))
	for i, p := range programs {
		freqs[i] = p.SampleHz
	}
	tf := mathx.LCMAll(freqs)

	dividers := make(map[string]uint32, len(programs))
	for _, p := range programs {
		if p.SampleHz == 0 {
			dividers[p.Name] = 1
		} else {
			dividers[p.Name] = uint32(tf / p.SampleHz)
		}
	}

	sorted := append([]ScheduleInput(nil), programs...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	shifts := make(map[string]uint32, len(programs))
	var minTimebase uint32
	next := uint32(2)
	for _, p := range sorted {
		shifts[p.Name] = next
		length := uint32(ProgramLength(p.Channels))
		minTimebase += length + interCoreBuffer
		next += length + interCoreBuffer
	}

	var period uint32
	if tf == 0 {
		period = minTimebase
	} else {
		period = uint32(hilClockFrequency / tf)
	}

	return Schedule{
		TimebaseFrequency: tf,
		MinTimebase:       minTimebase,
		Period:            period,
		Dividers:          dividers,
		Shifts:            shifts,
	}
}
