// Package timing is the §4.8 timing manager: the four cached PS↔PL base
// clocks and the named generated-clock table derived from them.
package timing

import (
	"fmt"
	"sync"

	"hilctl/internal/busaccess"
)

const baseClockCount = 4

// ClockDefinition is one generated clock's wiring, named by
// add_generated_clock.
type ClockDefinition struct {
	Multiplier        uint16
	Divider           uint16
	BaseClock         uint8 // index into the 4 PS/PL base clocks
	GeneratorBase     uint64
	MultiplierPresent bool // true: PLL-backed, false: divider-backed
	Phase             uint64
}

// Manager holds the base clocks and generated-clock table for one
// deployment target.
type Manager struct {
	mu       sync.Mutex
	acc      busaccess.Accessor
	base     [baseClockCount]uint64
	generated map[string]ClockDefinition
}

// New constructs a Manager with the four base clock frequencies cached
// at construction time, mirroring the original reading them once from
// the bridge in its constructor.
func New(acc busaccess.Accessor, initial [baseClockCount]uint64) *Manager {
	return &Manager{
		acc:       acc,
		base:      initial,
		generated: make(map[string]ClockDefinition),
	}
}

// SetBaseClock updates the cached frequency for base clock n. Driving
// the PS/PL clock wrapper hardware itself is out of scope here (§4.2's
// SetClockFrequency on the bridge does that over sysfs); the timing
// manager only needs the resulting frequency for get_generated_clock's
// arithmetic.
func (m *Manager) SetBaseClock(n uint8, hz uint64) error {
	if int(n) >= baseClockCount {
		return fmt.Errorf("timing: base clock index %d out of range", n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.base[n] = hz
	return nil
}

// GetBaseClock returns the cached frequency for base clock n.
func (m *Manager) GetBaseClock(n uint8) (uint64, error) {
	if int(n) >= baseClockCount {
		return 0, fmt.Errorf("timing: base clock index %d out of range", n)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base[n], nil
}

// AddGeneratedClock registers a named clock's wiring.
func (m *Manager) AddGeneratedClock(name string, def ClockDefinition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generated[name] = def
}

// SetGeneratedClock reprograms a named clock's divider/multiplier/phase.
// PLL-backed clocks (MultiplierPresent) aren't implemented at the
// hardware level yet, matching the original's setup_pll stub, so this
// only updates the cached definition and reports success. Divider-backed
// clocks write divider at base+4 and phase at base+8.
func (m *Manager) SetGeneratedClock(name string, mult, div, phase uint16) error {
	m.mu.Lock()
	def, ok := m.generated[name]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("timing: unknown generated clock %q", name)
	}
	def.Divider = div
	def.Phase = uint64(phase)
	if def.MultiplierPresent {
		def.Multiplier = mult
	}
	m.generated[name] = def
	m.mu.Unlock()

	if def.MultiplierPresent {
		return nil // PLL-backed dynamic frequency unimplemented in hardware
	}
	if err := m.acc.WriteRegister([]uint64{def.GeneratorBase + 4}, uint32(div)); err != nil {
		return err
	}
	return m.acc.WriteRegister([]uint64{def.GeneratorBase + 8}, uint32(phase))
}

// GetGeneratedClock returns base_clock * multiplier / divider for the
// named clock.
func (m *Manager) GetGeneratedClock(name string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	def, ok := m.generated[name]
	if !ok {
		return 0, fmt.Errorf("timing: unknown generated clock %q", name)
	}
	if def.Divider == 0 {
		return 0, fmt.Errorf("timing: generated clock %q has zero divider", name)
	}
	base := m.base[def.BaseClock]
	return base * uint64(def.Multiplier) / uint64(def.Divider), nil
}
