package busaccess

import "sync"

// BusOpKind tags a recorded bus operation.
type BusOpKind int

const (
	OpControlWrite BusOpKind = iota
	OpControlRead
	OpRomWrite
)

// BusOp is one recorded operation. For OpControlWrite, Addresses holds
// the single word address stored to and Data the word written; a
// 2-address proxy write is recorded as two such entries (target word at
// proxy_base+4, then data at proxy_base). For OpControlRead, Addresses
// holds the word address loaded. For OpRomWrite, Address is the ROM
// base and Words the bulk payload.
type BusOp struct {
	Kind      BusOpKind
	Addresses []uint64
	Address   uint64
	Data      uint32
	Words     []uint32
}

// SinkAccessor never touches hardware: it appends every operation to an
// ordered log. This is the accessor used for tests and for producing the
// hardware-simulation dump (§4.5.5, §6.3).
type SinkAccessor struct {
	mu      sync.Mutex
	Ops     []BusOp
	nextRead uint32
}

func NewSinkAccessor() *SinkAccessor {
	return &SinkAccessor{}
}

func (s *SinkAccessor) storeWord(addr uint64, data uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ops = append(s.Ops, BusOp{Kind: OpControlWrite, Addresses: []uint64{addr}, Data: data})
	return nil
}

func (s *SinkAccessor) loadWord(addr uint64) (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ops = append(s.Ops, BusOp{Kind: OpControlRead, Addresses: []uint64{addr}})
	// Recording mode returns an arbitrary small placeholder (§4.1).
	s.nextRead++
	return s.nextRead, nil
}

func (s *SinkAccessor) WriteRegister(addresses []uint64, data uint32) error {
	// Each underlying storeWord call records its own {addr, word} entry,
	// so a 2-address proxy write yields two ordered dump lines (target
	// first, then data) matching §6.3's "per control-plane write, in
	// emit order".
	return writeRegisterVia(s, addresses, data)
}

func (s *SinkAccessor) ReadRegister(addresses []uint64) (uint32, error) {
	return readRegisterVia(s, addresses)
}

func (s *SinkAccessor) LoadProgram(address uint64, words []uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ops = append(s.Ops, BusOp{Kind: OpRomWrite, Address: address, Words: append([]uint32(nil), words...)})
	return nil
}

// ControlWrites returns every recorded {address, data} pair from
// single-address control writes and from both halves of proxy writes, in
// emit order — the shape §6.3's "control" dump blob needs.
func (s *SinkAccessor) ControlWrites() []struct {
	Addr uint64
	Data uint32
} {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]struct {
		Addr uint64
		Data uint32
	}, 0, len(s.Ops))
	for _, op := range s.Ops {
		if op.Kind != OpControlWrite {
			continue
		}
		out = append(out, struct {
			Addr uint64
			Data uint32
		}{op.Addresses[0], op.Data})
	}
	return out
}

// RomWrites returns every recorded ROM bulk-write, in emit order.
func (s *SinkAccessor) RomWrites() []BusOp {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]BusOp, 0, len(s.Ops))
	for _, op := range s.Ops {
		if op.Kind == OpRomWrite {
			out = append(out, op)
		}
	}
	return out
}

// Reset clears the recorded operation log (used when disabling/enabling
// bus access per §4.2).
func (s *SinkAccessor) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Ops = nil
}
