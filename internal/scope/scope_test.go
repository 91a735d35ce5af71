package scope

import (
	"bytes"
	"math"
	"testing"

	"hilctl/internal/busaccess"
)

func testRegs() Registers {
	return Registers{
		Base:            0x2000,
		TriggerMode:     0x00,
		TriggerSource:   0x04,
		TriggerLevel:    0x08,
		AcquisitionMode: 0x0C,
		TriggerPoint:    0x10,
		Prescaler:       0x14,
		RearmStatus:     0x18,
		TimebaseEnable:  0x1C,
		TimebasePeriod:  0x20,
		Threshold:       0x24,
		ScopeAddress:    0x28,
		DisableDMA:      0x2C,
	}
}

func TestDecodeSampleFloatPassthrough(t *testing.T) {
	var scaling [NumChannels]float64
	for i := range scaling {
		scaling[i] = 2.0 // must be ignored for float channels
	}
	raw := uint64(math.Float32bits(3.25))
	raw |= uint64(2) << 32   // channel 2
	raw |= uint64(0x20) << 48 // float flag set
	ch, val, ok := DecodeSample(raw, scaling)
	if !ok || ch != 2 || val != 3.25 {
		t.Fatalf("got ch=%d val=%v ok=%v", ch, val, ok)
	}
}

func TestDecodeSampleSignedScaled(t *testing.T) {
	var scaling [NumChannels]float64
	scaling[1] = 0.5
	// 12-bit signed value -1 => 0xFFF, size byte = 12-8=4
	raw := uint64(0xFFF)
	raw |= uint64(1) << 32 // channel 1
	meta := uint64(4) | 0x10
	raw |= meta << 48
	ch, val, ok := DecodeSample(raw, scaling)
	if !ok || ch != 1 || val != -0.5 {
		t.Fatalf("got ch=%d val=%v ok=%v", ch, val, ok)
	}
}

func TestDecodeSampleUnsignedScaled(t *testing.T) {
	var scaling [NumChannels]float64
	scaling[0] = 3.0
	raw := uint64(10)
	meta := uint64(0) // size 8, unsigned, not float
	raw |= meta << 48
	ch, val, ok := DecodeSample(raw, scaling)
	if !ok || ch != 0 || val != 30.0 {
		t.Fatalf("got ch=%d val=%v ok=%v", ch, val, ok)
	}
}

func TestDecodeSampleOutOfRangeChannel(t *testing.T) {
	var scaling [NumChannels]float64
	raw := uint64(9) << 32 // channel 9, invalid
	_, _, ok := DecodeSample(raw, scaling)
	if ok {
		t.Fatal("expected ok=false for out-of-range channel")
	}
}

func TestDecodeBlockSkipsDisabledChannel(t *testing.T) {
	m := New(busaccess.NewSinkAccessor(), testRegs())
	m.SetChannelStatus(map[int]bool{3: false})

	raw := make([]byte, BlockBytes)
	putWord := func(i int, word uint64) {
		for b := 0; b < 8; b++ {
			raw[i*8+b] = byte(word >> (8 * b))
		}
	}
	// sample 0: channel 3 (disabled), sample 1: channel 0 value 5; every
	// remaining all-zero word decodes as channel 0, value 0
	putWord(0, uint64(3)<<32)
	putWord(1, uint64(5))

	block, err := m.DecodeBlock(raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(block.Channels[3]) != 0 {
		t.Fatalf("expected disabled channel 3 to be empty, got %v", block.Channels[3])
	}
	if len(block.Channels[0]) != NumChannels*SamplesPerBlock-1 || block.Channels[0][0] != 5 {
		t.Fatalf("expected channel 0 = [5, 0, ...] with %d samples, got %d samples", NumChannels*SamplesPerBlock-1, len(block.Channels[0]))
	}
}

func TestDecodeBlockWrongLength(t *testing.T) {
	m := New(busaccess.NewSinkAccessor(), testRegs())
	if _, err := m.DecodeBlock(make([]byte, 10)); err == nil {
		t.Fatal("expected error for wrong block length")
	}
}

func TestSetAcquisitionPrescalerGatesTimebase(t *testing.T) {
	sink := busaccess.NewSinkAccessor()
	m := New(sink, testRegs())
	cfg := AcquisitionConfig{
		Mode: AcqSingle, TriggerMode: TriggerRisingEdge, TriggerSource: 1,
		TriggerLevel: 1.5, LevelType: LevelFloat, TriggerPoint: 100, Prescaler: 1,
	}
	if err := m.SetAcquisition(cfg); err != nil {
		t.Fatal(err)
	}
	writes := sink.ControlWrites()
	if len(writes) != 5 {
		t.Fatalf("expected 5 writes (no timebase), got %d", len(writes))
	}

	sink.Reset()
	cfg.Prescaler = 4
	if err := m.SetAcquisition(cfg); err != nil {
		t.Fatal(err)
	}
	writes = sink.ControlWrites()
	if len(writes) != 8 {
		t.Fatalf("expected 8 writes (with timebase), got %d", len(writes))
	}
}

func TestSetAcquisitionRejectsZeroTriggerSource(t *testing.T) {
	m := New(busaccess.NewSinkAccessor(), testRegs())
	err := m.SetAcquisition(AcquisitionConfig{TriggerSource: 0})
	if err == nil {
		t.Fatal("expected error for trigger_source < 1")
	}
}

func TestGetAcquisitionStatus(t *testing.T) {
	sink := busaccess.NewSinkAccessor()
	m := New(sink, testRegs())
	status, err := m.GetAcquisitionStatus()
	if err != nil {
		t.Fatal(err)
	}
	if status != RearmRun { // sink's placeholder read counter starts at 1
		t.Fatalf("expected RearmRun from fresh sink, got %v", status)
	}
}

func TestReadDataDecodesOneBlock(t *testing.T) {
	m := New(busaccess.NewSinkAccessor(), testRegs())
	raw := make([]byte, BlockBytes)
	word := uint64(42) // channel 0, size 8, unsigned; the zero words after it are channel 0 too
	for b := 0; b < 8; b++ {
		raw[b] = byte(word >> (8 * b))
	}
	block, err := m.ReadData(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if len(block.Channels[0]) != NumChannels*SamplesPerBlock || block.Channels[0][0] != 42 {
		t.Fatalf("expected channel 0 = [42, 0, ...] with %d samples, got %d samples", NumChannels*SamplesPerBlock, len(block.Channels[0]))
	}
}

func TestReadDataShortReadErrors(t *testing.T) {
	m := New(busaccess.NewSinkAccessor(), testRegs())
	if _, err := m.ReadData(bytes.NewReader(make([]byte, 10))); err == nil {
		t.Fatal("expected error on short read")
	}
}

func TestDisableDMAAndScopeAddress(t *testing.T) {
	sink := busaccess.NewSinkAccessor()
	m := New(sink, testRegs())
	if err := m.SetScopeAddress(0xABCD); err != nil {
		t.Fatal(err)
	}
	if err := m.DisableDMA(true); err != nil {
		t.Fatal(err)
	}
	writes := sink.ControlWrites()
	if len(writes) != 2 || writes[0].Data != 0xABCD || writes[1].Data != 1 {
		t.Fatalf("unexpected writes: %+v", writes)
	}
}
