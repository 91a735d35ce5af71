package timing

import (
	"testing"

	"hilctl/internal/busaccess"
)

func TestBaseClockSetGet(t *testing.T) {
	m := New(busaccess.NewSinkAccessor(), [4]uint64{100, 200, 300, 400})
	if hz, err := m.GetBaseClock(2); err != nil || hz != 300 {
		t.Fatalf("expected 300, got %d err=%v", hz, err)
	}
	if err := m.SetBaseClock(2, 999); err != nil {
		t.Fatalf("set_base_clock: %v", err)
	}
	if hz, _ := m.GetBaseClock(2); hz != 999 {
		t.Fatalf("expected 999 after set, got %d", hz)
	}
	if _, err := m.GetBaseClock(4); err == nil {
		t.Fatal("expected out-of-range error")
	}
}

func TestGeneratedClockDividerBased(t *testing.T) {
	sink := busaccess.NewSinkAccessor()
	m := New(sink, [4]uint64{100_000_000, 0, 0, 0})
	m.AddGeneratedClock("pl0", ClockDefinition{
		Multiplier:    1,
		Divider:       4,
		BaseClock:     0,
		GeneratorBase: 0x2000,
	})
	hz, err := m.GetGeneratedClock("pl0")
	if err != nil || hz != 25_000_000 {
		t.Fatalf("expected 25MHz, got %d err=%v", hz, err)
	}

	if err := m.SetGeneratedClock("pl0", 1, 8, 3); err != nil {
		t.Fatalf("set_generated_clock: %v", err)
	}
	if hz, _ := m.GetGeneratedClock("pl0"); hz != 12_500_000 {
		t.Fatalf("expected 12.5MHz after redivide, got %d", hz)
	}
	if len(sink.Ops) != 2 {
		t.Fatalf("expected 2 register writes (divider, phase), got %d", len(sink.Ops))
	}
	if sink.Ops[0].Addresses[0] != 0x2004 || sink.Ops[0].Data != 8 {
		t.Fatalf("expected divider write at base+4, got %+v", sink.Ops[0])
	}
	if sink.Ops[1].Addresses[0] != 0x2008 || sink.Ops[1].Data != 3 {
		t.Fatalf("expected phase write at base+8, got %+v", sink.Ops[1])
	}
}

func TestGeneratedClockPLLBackedNoHardwareWrite(t *testing.T) {
	sink := busaccess.NewSinkAccessor()
	m := New(sink, [4]uint64{100_000_000, 0, 0, 0})
	m.AddGeneratedClock("pll0", ClockDefinition{
		Multiplier:        2,
		Divider:           1,
		BaseClock:         0,
		GeneratorBase:     0x3000,
		MultiplierPresent: true,
	})
	if err := m.SetGeneratedClock("pll0", 4, 1, 0); err != nil {
		t.Fatalf("set_generated_clock (PLL): %v", err)
	}
	if len(sink.Ops) != 0 {
		t.Fatalf("expected no register writes for PLL-backed clock, got %+v", sink.Ops)
	}
	if hz, err := m.GetGeneratedClock("pll0"); err != nil || hz != 400_000_000 {
		t.Fatalf("expected updated multiplier to take effect, got %d err=%v", hz, err)
	}
}

func TestGeneratedClockUnknownName(t *testing.T) {
	m := New(busaccess.NewSinkAccessor(), [4]uint64{})
	if _, err := m.GetGeneratedClock("missing"); err == nil {
		t.Fatal("expected error for unknown clock")
	}
	if err := m.SetGeneratedClock("missing", 1, 1, 0); err == nil {
		t.Fatal("expected error for unknown clock")
	}
}
