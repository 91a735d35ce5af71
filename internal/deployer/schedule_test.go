package deployer

import (
	"testing"

	"hilctl/internal/specmodel"
)

func ioMeta(width int, signed, isFloat bool) specmodel.IOMetadata {
	t := specmodel.IOInteger
	if isFloat {
		t = specmodel.IOFloat
	}
	return specmodel.IOMetadata{Type: t, Width: width, Signed: signed}
}

func TestComputeScheduleAllZeroFrequency(t *testing.T) {
	programs := []ScheduleInput{
		{Name: "a", Order: 0, SampleHz: 0, Channels: 11},
		{Name: "b", Order: 1, SampleHz: 0, Channels: 11},
	}
	s := ComputeSchedule(programs, DefaultHilClockFrequency)
	if s.TimebaseFrequency != 0 {
		t.Fatalf("expected timebase_frequency 0, got %d", s.TimebaseFrequency)
	}
	if s.Period != s.MinTimebase {
		t.Fatalf("expected period == min_timebase when timebase_frequency is 0, got period=%d min=%d", s.Period, s.MinTimebase)
	}
	if s.Dividers["a"] != 1 || s.Dividers["b"] != 1 {
		t.Fatalf("expected divider 1 for zero-frequency cores, got %+v", s.Dividers)
	}
}

func TestComputeScheduleShiftStagger(t *testing.T) {
	programs := []ScheduleInput{
		{Name: "producer", Order: 0, SampleHz: 0, Channels: 11},
		{Name: "consumer", Order: 1, SampleHz: 0, Channels: 11},
	}
	s := ComputeSchedule(programs, DefaultHilClockFrequency)
	if s.Shifts["producer"] != 2 {
		t.Fatalf("expected first shift == 2, got %d", s.Shifts["producer"])
	}
	wantSecond := uint32(2) + uint32(ProgramLength(11)) + interCoreBuffer
	if s.Shifts["consumer"] != wantSecond {
		t.Fatalf("expected second shift == %d, got %d", wantSecond, s.Shifts["consumer"])
	}
}

func TestComputeScheduleLCMOfSampleRates(t *testing.T) {
	programs := []ScheduleInput{
		{Name: "a", Order: 0, SampleHz: 4, Channels: 8},
		{Name: "b", Order: 1, SampleHz: 6, Channels: 8},
	}
	s := ComputeSchedule(programs, DefaultHilClockFrequency)
	if s.TimebaseFrequency != 12 {
		t.Fatalf("expected LCM(4,6)=12, got %d", s.TimebaseFrequency)
	}
	if s.Dividers["a"] != 3 || s.Dividers["b"] != 2 {
		t.Fatalf("expected dividers {3,2}, got %+v", s.Dividers)
	}
	if s.Period != DefaultHilClockFrequency/12 {
		t.Fatalf("expected period %d, got %d", DefaultHilClockFrequency/12, s.Period)
	}
}

func TestEncodeOutputMetadataFloatForcesFields(t *testing.T) {
	meta := ioMeta(16, false, true)
	got := EncodeOutputMetadata(meta)
	want := uint32(32-8) | 0x10 | 0x20
	if got != want {
		t.Fatalf("want 0x%x got 0x%x", want, got)
	}
}

func TestEncodeOutputMetadataIntegerSigned(t *testing.T) {
	meta := ioMeta(12, true, false)
	got := EncodeOutputMetadata(meta)
	want := uint32(12-8) | 0x10
	if got != want {
		t.Fatalf("want 0x%x got 0x%x", want, got)
	}
}
