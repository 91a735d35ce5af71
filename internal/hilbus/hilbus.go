// Package hilbus holds the deployed set of interconnect slots that make
// up one deployment's HIL bus (§4.4): conflict detection and
// producer-output-to-destination translation.
package hilbus

import (
	"fmt"

	"hilctl/internal/specmodel"
)

// Map is the deployed interconnect slot table.
type Map struct {
	slots []specmodel.InterconnectSlot
}

func New() *Map { return &Map{} }

func (m *Map) PushBack(slot specmodel.InterconnectSlot) {
	m.slots = append(m.slots, slot)
}

func (m *Map) Clear() { m.slots = nil }

// Slots returns the deployed slots in insertion order. Callers must treat
// the returned slice as read-only.
func (m *Map) Slots() []specmodel.InterconnectSlot { return m.slots }

func (m *Map) IsBusAddressFree(addr uint32) bool {
	for _, s := range m.slots {
		if s.DestBusAddress == addr {
			return false
		}
	}
	return true
}

func (m *Map) IsIOAddressFree(addr uint32, srcID string) bool {
	for _, s := range m.slots {
		if s.SourceID == srcID && s.SourceIOAddress == addr {
			return false
		}
	}
	return true
}

// GetFreeAddress returns original if its destination slot is free; else
// the smallest natural number >= len(slots) whose destination slot is
// free; else an error (§4.4).
func (m *Map) GetFreeAddress(original uint32) (uint32, error) {
	if m.IsBusAddressFree(original) {
		return original, nil
	}
	start := uint32(len(m.slots))
	for addr := start; addr < start+uint32(len(m.slots))+1; addr++ {
		if m.IsBusAddressFree(addr) {
			return addr, nil
		}
	}
	return 0, fmt.Errorf("hilbus: no free bus address found starting from %d", start)
}

// CheckConflicts fails naming the first duplicate (destination_bus_address,
// destination_channel) pair, before any bus writes occur (§4.4, P2).
func (m *Map) CheckConflicts() error {
	seen := make(map[[2]uint32]struct{}, len(m.slots))
	for _, s := range m.slots {
		key := [2]uint32{s.DestBusAddress, uint32(s.DestChannel)}
		if _, dup := seen[key]; dup {
			return fmt.Errorf("hil_bus_conflict: duplicate destination (%d, %d)", s.DestBusAddress, s.DestChannel)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// OutputRef names a producer output by core, output name and channel.
type OutputRef struct {
	Core    string
	Output  string
	Channel int
}

// TranslateOutput returns the (bus_address, channel) a producer output
// resolves to, or an error when no matching slot exists.
func (m *Map) TranslateOutput(ref OutputRef) (busAddress uint32, channel int, err error) {
	for _, s := range m.slots {
		if s.SourceID == ref.Core && s.SourceName == ref.Output && s.SourceChannel == ref.Channel {
			return s.DestBusAddress, s.DestChannel, nil
		}
	}
	return 0, 0, fmt.Errorf("hilbus: no slot for %s.%s[%d]", ref.Core, ref.Output, ref.Channel)
}
