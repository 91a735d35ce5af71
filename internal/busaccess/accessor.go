// Package busaccess implements the §4.1 bus accessor: word-level
// register read/write and bulk ROM-plane loads, with two backends (a live
// memory-mapped device and a recording sink) behind one Accessor
// interface so the deployer never branches on which one it holds.
package busaccess

import "fmt"

// Accessor is the three-primitive contract every higher layer (the FPGA
// bridge, the deployer) programs through.
type Accessor interface {
	// WriteRegister stores data. When len(addresses) == 1, it stores data
	// at that control-plane address. When len(addresses) == 2, addresses
	// are {target, proxy_base}: target is written to proxy_base+4, then
	// data to proxy_base, in that order (the axis-constant proxy
	// protocol) — target MUST be observed written before data.
	WriteRegister(addresses []uint64, data uint32) error

	// ReadRegister word-loads the first address. A recording accessor
	// returns an arbitrary small placeholder instead of touching hardware.
	ReadRegister(addresses []uint64) (uint32, error)

	// LoadProgram bulk-stores words sequentially to the ROM plane
	// starting at address, each word at address + 4*i.
	LoadProgram(address uint64, words []uint32) error
}

// wordStore is the single-word primitive each backend supplies; shared
// write/read protocol logic is layered on top of it so both backends get
// identical proxy-write semantics without duplicating the branch.
type wordStore interface {
	storeWord(addr uint64, data uint32) error
	loadWord(addr uint64) (uint32, error)
}

func writeRegisterVia(s wordStore, addresses []uint64, data uint32) error {
	switch len(addresses) {
	case 1:
		return s.storeWord(addresses[0], data)
	case 2:
		target, proxyBase := addresses[0], addresses[1]
		// target MUST be written before data (§5 ordering guarantee).
		if err := s.storeWord(proxyBase+4, uint32(target)); err != nil {
			return err
		}
		return s.storeWord(proxyBase, data)
	default:
		return fmt.Errorf("write_register: expected 1 or 2 addresses, got %d", len(addresses))
	}
}

func readRegisterVia(s wordStore, addresses []uint64) (uint32, error) {
	if len(addresses) == 0 {
		return 0, fmt.Errorf("read_register: no addresses given")
	}
	return s.loadWord(addresses[0])
}

func loadProgramVia(s wordStore, address uint64, words []uint32) error {
	for i, w := range words {
		if err := s.storeWord(address+4*uint64(i), w); err != nil {
			return err
		}
	}
	return nil
}
