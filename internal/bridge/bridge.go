// Package bridge is the §4.2 FPGA bridge: a thin typed layer over the
// bus accessor exposing bitstream loading, register/program/filter/clock
// operations and scope-DMA enablement.
package bridge

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"hilctl/errcode"
	"hilctl/internal/busaccess"
	"hilctl/internal/config"
)

// RegisterWriteType is the top-level variant of a single_write_register
// request object.
type RegisterWriteType string

const (
	RegisterDirect  RegisterWriteType = "direct"
	RegisterProxied RegisterWriteType = "proxied"
)

// ProxiedAxisConstant is the only supported proxied write subtype.
const ProxiedAxisConstant = "axis_constant"

// RegisterWriteRequest is the argument to single_write_register.
type RegisterWriteRequest struct {
	Type      RegisterWriteType
	Subtype   string   // only meaningful when Type == RegisterProxied
	Addresses []uint64 // 1 element for direct, 2 for proxied (target, proxy_base)
	Data      uint32
}

// RegisterReadResult is the result of single_read_register.
type RegisterReadResult struct {
	Data         uint32
	ResponseCode errcode.Code
}

// Bridge is constructed once per process around whichever Accessor the
// caller chooses (live hardware or a sink for hardware-sim capture).
type Bridge struct {
	acc busaccess.Accessor
	dual *busaccess.DualAccessor // non-nil only when acc is sink-mode capable

	Arch config.Architecture

	BitstreamDir       string
	FPGAManagerTrigger string // sysfs node to request a program cycle
	FPGAManagerState   string // sysfs node polled for completion
	ClockSysfsFmt      string // fmt.Sprintf pattern taking a clock id
	DMABufferAddrPath  string // sysfs node exposing the physical DMA buffer address

	pollInterval time.Duration
	pollAttempts int
}

// New builds a Bridge over acc. If acc is a *busaccess.DualAccessor, the
// bridge's enable/disable_bus_access calls operate on its passthrough
// flag and recording log; otherwise they are no-ops.
func New(acc busaccess.Accessor, arch config.Architecture) *Bridge {
	b := &Bridge{
		acc:          acc,
		Arch:         arch,
		pollInterval: 5 * time.Millisecond,
		pollAttempts: 500, // ~2.5s, §4.2
	}
	if d, ok := acc.(*busaccess.DualAccessor); ok {
		b.dual = d
	}
	return b
}

// LoadBitstream requests an FPGA-manager program cycle for the named
// bitstream file and polls for completion (§4.2).
func (b *Bridge) LoadBitstream(name string) error {
	path := filepath.Join(b.BitstreamDir, name)
	if _, err := os.Stat(path); err != nil {
		return errcode.New(errcode.BitstreamNotFound, "load_bitstream", name)
	}
	if b.FPGAManagerTrigger != "" {
		if err := os.WriteFile(b.FPGAManagerTrigger, []byte(path), 0644); err != nil {
			return errcode.Wrap(errcode.DriverWriteFailed, "load_bitstream", err)
		}
	}
	for i := 0; i < b.pollAttempts; i++ {
		if b.FPGAManagerState == "" {
			return nil // no state node configured; assume success (test doubles)
		}
		raw, err := os.ReadFile(b.FPGAManagerState)
		if err == nil && strings.TrimSpace(string(raw)) == "operating" {
			return nil
		}
		time.Sleep(b.pollInterval)
	}
	return errcode.New(errcode.BitstreamLoadFailed, "load_bitstream", name)
}

// SingleWriteRegister performs one direct or proxied register write.
func (b *Bridge) SingleWriteRegister(req RegisterWriteRequest) error {
	switch req.Type {
	case RegisterDirect:
		if len(req.Addresses) != 1 {
			return errcode.New(errcode.InvalidArg, "single_write_register", "direct write requires exactly 1 address")
		}
		return b.acc.WriteRegister(req.Addresses, req.Data)
	case RegisterProxied:
		if req.Subtype != ProxiedAxisConstant {
			return errcode.New(errcode.InvalidArg, "single_write_register", "unrecognized proxied subtype: "+req.Subtype)
		}
		if len(req.Addresses) != 2 {
			return errcode.New(errcode.InvalidArg, "single_write_register", "proxied write requires exactly 2 addresses")
		}
		return b.acc.WriteRegister(req.Addresses, req.Data)
	default:
		return errcode.New(errcode.InvalidArg, "single_write_register", "unrecognized type: "+string(req.Type))
	}
}

// SingleReadRegister reads one register.
func (b *Bridge) SingleReadRegister(addr uint64) (RegisterReadResult, error) {
	data, err := b.acc.ReadRegister([]uint64{addr})
	if err != nil {
		return RegisterReadResult{}, err
	}
	return RegisterReadResult{Data: data, ResponseCode: errcode.OK}, nil
}

// ApplyProgram bulk-loads a core's ROM.
func (b *Bridge) ApplyProgram(romAddr uint64, words []uint32) error {
	return b.acc.LoadProgram(romAddr, words)
}

// ApplyFilter writes each tap and its index to a tap-and-index register
// pair: {addr + 8*i: tap (as float32 bits), addr + 8*i + 4: i}.
func (b *Bridge) ApplyFilter(addr uint64, taps []float64) error {
	for i, tap := range taps {
		tapAddr := addr + 8*uint64(i)
		if err := b.acc.WriteRegister([]uint64{tapAddr}, float32Bits(tap)); err != nil {
			return err
		}
		if err := b.acc.WriteRegister([]uint64{tapAddr + 4}, uint32(i)); err != nil {
			return err
		}
	}
	return nil
}

// SetClockFrequency writes hz to the per-clock sysfs node. On zynqmp this
// is a no-op: dynamic PL clocks are not supported there (§4.2).
func (b *Bridge) SetClockFrequency(id int, hz uint64) error {
	if b.Arch == config.ZynqMP {
		return nil
	}
	if b.ClockSysfsFmt == "" {
		return nil
	}
	path := fmt.Sprintf(b.ClockSysfsFmt, id)
	if err := os.WriteFile(path, []byte(strconv.FormatUint(hz, 10)), 0644); err != nil {
		return errcode.Wrap(errcode.DriverWriteFailed, "set_clock_frequency", err)
	}
	return nil
}

// SetScopeData reads the physical DMA buffer address from a sysfs node,
// writes it to bufferAddr, then enables scope DMA at enableAddr (§4.2).
func (b *Bridge) SetScopeData(enableAddr, bufferAddr uint64) error {
	var physAddr uint64
	if b.DMABufferAddrPath != "" {
		raw, err := os.ReadFile(b.DMABufferAddrPath)
		if err != nil {
			return errcode.Wrap(errcode.DriverFileNotFound, "set_scope_data", err)
		}
		physAddr, err = strconv.ParseUint(strings.TrimSpace(string(raw)), 0, 64)
		if err != nil {
			return errcode.Wrap(errcode.InternalError, "set_scope_data", err)
		}
	}
	if err := b.acc.WriteRegister([]uint64{bufferAddr}, uint32(physAddr)); err != nil {
		return err
	}
	return b.acc.WriteRegister([]uint64{enableAddr}, 1)
}

// DisableBusAccess, in sink-mode, disables live passthrough and clears
// the recorded operation log. On a plain live accessor this is a no-op.
func (b *Bridge) DisableBusAccess() {
	if b.dual == nil {
		return
	}
	b.dual.SetPassthrough(false)
	b.dual.Sink.Reset()
}

// EnableBusAccess, in sink-mode, re-enables live passthrough.
func (b *Bridge) EnableBusAccess() {
	if b.dual == nil {
		return
	}
	b.dual.SetPassthrough(true)
}

func float32Bits(v float64) uint32 {
	return f32bits(float32(v))
}
