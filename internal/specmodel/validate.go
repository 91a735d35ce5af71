package specmodel

import "fmt"

// MaxCores is the hard ceiling on deployable fCores per deployment (§4.5
// step 3: "Enforce M <= 32; otherwise fail fatally").
const MaxCores = 32

// Validate checks the structural invariants §3 requires of an
// EmulatorSpec before it is handed to the deployer or emulator: every
// interconnect slot's source resolves inside the core set, and the
// core count does not exceed MaxCores.
func (s *EmulatorSpec) Validate() error {
	if len(s.Cores) > MaxCores {
		return fmt.Errorf("too many cores: %d exceeds maximum of %d", len(s.Cores), MaxCores)
	}
	ids := make(map[string]CoreSpec, len(s.Cores))
	for _, c := range s.Cores {
		if _, dup := ids[c.ID]; dup {
			return fmt.Errorf("duplicate core id %q", c.ID)
		}
		ids[c.ID] = c
	}
	for i, slot := range s.Interconnect {
		src, ok := ids[slot.SourceID]
		if !ok {
			return fmt.Errorf("interconnect slot %d: unknown source core %q", i, slot.SourceID)
		}
		if slot.SourceChannel < 0 || slot.SourceChannel > 15 {
			return fmt.Errorf("interconnect slot %d: source channel %d out of range [0,15]", i, slot.SourceChannel)
		}
		if slot.DestChannel < 0 || slot.DestChannel > 15 {
			return fmt.Errorf("interconnect slot %d: destination channel %d out of range [0,15]", i, slot.DestChannel)
		}
		if slot.SourceIOAddress > 0xFFF {
			return fmt.Errorf("interconnect slot %d: source io address 0x%X exceeds 0xFFF", i, slot.SourceIOAddress)
		}
		if slot.DestBusAddress > 0xFFF {
			return fmt.Errorf("interconnect slot %d: destination bus address 0x%X exceeds 0xFFF", i, slot.DestBusAddress)
		}
		_ = src // resolution confirmed; fields beyond existence aren't cross-checked
	}
	return nil
}
