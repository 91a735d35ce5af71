// Package scope implements the §4.3 scope manager: it owns the DMA ring
// of NumChannels x SamplesPerBlock, demultiplexes the raw 64-bit sample
// stream into per-channel float vectors, and programs acquisition mode,
// trigger and channel-scaling registers.
package scope

import (
	"fmt"
	"io"
	"math"
	"sync"

	"hilctl/errcode"
	"hilctl/internal/busaccess"
	"hilctl/x/mathx"
)

const (
	NumChannels     = 6
	SamplesPerBlock = 1024
	sampleBytes     = 8
	BlockBytes      = NumChannels * SamplesPerBlock * sampleBytes
)

// Block holds one de-interleaved DMA block: NumChannels vectors of
// decoded float samples.
type Block struct {
	Channels [NumChannels][]float64
}

// Registers is the per-architecture register offset table the scope
// manager writes through. The source material disagrees on the exact
// trg_rearm_status offset between two copies of its address-map struct
// (§9); this table carries only the offsets actually exercised here, and
// callers supply them directly: the layout map has no scope register
// offsets.
type Registers struct {
	Base uint64

	TriggerMode     uint64 // offset
	TriggerSource   uint64
	TriggerLevel    uint64
	AcquisitionMode uint64
	TriggerPoint    uint64
	Prescaler       uint64
	RearmStatus     uint64
	TimebaseEnable  uint64
	TimebasePeriod  uint64
	Threshold       uint64
	ScopeAddress    uint64
	DisableDMA      uint64
}

func (r Registers) addr(offset uint64) uint64 { return r.Base + offset }

// TriggerMode is the acquisition trigger edge selector (§3).
type TriggerMode int

const (
	TriggerRisingEdge TriggerMode = iota
	TriggerFallingEdge
	TriggerBoth
)

// AcqMode is the acquisition-mode selector (§3).
type AcqMode int

const (
	AcqContinuous AcqMode = iota
	AcqSingle
	AcqFreeRunning
)

// LevelType says whether TriggerLevel is raw integer bits or an IEEE-754
// float to be bit-cast.
type LevelType string

const (
	LevelRaw   LevelType = "raw"
	LevelFloat LevelType = "float"
)

// AcquisitionConfig is the §3 AcquisitionConfig record.
type AcquisitionConfig struct {
	Mode          AcqMode
	TriggerMode   TriggerMode
	TriggerSource int // 1-based, 1..NumChannels
	TriggerLevel  float64
	LevelType     LevelType
	TriggerPoint  uint32
	Prescaler     uint32
}

// RearmStatus is the raw trg_rearm_status register value. The mapping
// from 0..3 to {wait, run, stop, free_run} is reproduced verbatim per
// §9's open question — no derivation is available, only the enumeration.
type RearmStatus uint32

const (
	RearmWait RearmStatus = iota
	RearmRun
	RearmStop
	RearmFreeRun
)

func (s RearmStatus) String() string {
	switch s {
	case RearmWait:
		return "wait"
	case RearmRun:
		return "run"
	case RearmStop:
		return "stop"
	case RearmFreeRun:
		return "free_run"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(s))
	}
}

// Manager owns channel scaling/status and programs the acquisition
// registers over an Accessor.
type Manager struct {
	mu      sync.Mutex
	acc     busaccess.Accessor
	regs    Registers
	scaling [NumChannels]float64
	enabled [NumChannels]bool
}

func New(acc busaccess.Accessor, regs Registers) *Manager {
	m := &Manager{acc: acc, regs: regs}
	for i := range m.scaling {
		m.scaling[i] = 1.0
		m.enabled[i] = true
	}
	return m
}

func (m *Manager) SetScalingFactors(factors [NumChannels]float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scaling = factors
}

func (m *Manager) scalingSnapshot() [NumChannels]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scaling
}

// SetChannelStatus enables/disables channels by index (0-based).
func (m *Manager) SetChannelStatus(status map[int]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ch, en := range status {
		if ch >= 0 && ch < NumChannels {
			m.enabled[ch] = en
		}
	}
}

func (m *Manager) channelEnabled(ch int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[ch]
}

// SetScopeAddress writes the scope buffer-address register.
func (m *Manager) SetScopeAddress(addr uint64) error {
	return m.acc.WriteRegister([]uint64{m.regs.addr(m.regs.ScopeAddress)}, uint32(addr))
}

// DisableDMA enables/disables scope DMA via a single boolean register.
func (m *Manager) DisableDMA(disable bool) error {
	var v uint32
	if disable {
		v = 1
	}
	return m.acc.WriteRegister([]uint64{m.regs.addr(m.regs.DisableDMA)}, v)
}

// GetAcquisitionStatus reads the trigger-rearm-status register.
func (m *Manager) GetAcquisitionStatus() (RearmStatus, error) {
	v, err := m.acc.ReadRegister([]uint64{m.regs.addr(m.regs.RearmStatus)})
	if err != nil {
		return 0, err
	}
	return RearmStatus(v), nil
}

// SetAcquisition programs trigger mode/source/level, acquisition mode and
// trigger point, and — only when prescaler > 2 — enables the scope
// timebase, writes its period, and writes threshold 1 (§4.3).
func (m *Manager) SetAcquisition(cfg AcquisitionConfig) error {
	if cfg.TriggerSource < 1 {
		return errcode.New(errcode.InvalidArg, "set_acquisition", "trigger_source must be >= 1")
	}
	if err := m.acc.WriteRegister([]uint64{m.regs.addr(m.regs.TriggerMode)}, uint32(cfg.TriggerMode)); err != nil {
		return err
	}
	if err := m.acc.WriteRegister([]uint64{m.regs.addr(m.regs.TriggerSource)}, uint32(cfg.TriggerSource-1)); err != nil {
		return err
	}
	var levelWord uint32
	if cfg.LevelType == LevelFloat {
		levelWord = math.Float32bits(float32(cfg.TriggerLevel))
	} else {
		levelWord = uint32(int32(cfg.TriggerLevel))
	}
	if err := m.acc.WriteRegister([]uint64{m.regs.addr(m.regs.TriggerLevel)}, levelWord); err != nil {
		return err
	}
	if err := m.acc.WriteRegister([]uint64{m.regs.addr(m.regs.AcquisitionMode)}, uint32(cfg.Mode)); err != nil {
		return err
	}
	if err := m.acc.WriteRegister([]uint64{m.regs.addr(m.regs.TriggerPoint)}, cfg.TriggerPoint); err != nil {
		return err
	}
	if cfg.Prescaler > 2 {
		if err := m.acc.WriteRegister([]uint64{m.regs.addr(m.regs.TimebaseEnable)}, 1); err != nil {
			return err
		}
		if err := m.acc.WriteRegister([]uint64{m.regs.addr(m.regs.TimebasePeriod)}, cfg.Prescaler); err != nil {
			return err
		}
		if err := m.acc.WriteRegister([]uint64{m.regs.addr(m.regs.Threshold)}, 1); err != nil {
			return err
		}
	}
	return nil
}

// DecodeSample decodes one raw 64-bit DMA word into (channel, value, ok).
// ok is false when the sample's channel index is out of [0,NumChannels).
// Float channels pass the raw low 32 bits straight through
// math.Float32frombits; integer channels mask to the declared width,
// sign-extend when signed, and scale (P4).
func DecodeSample(raw uint64, scaling [NumChannels]float64) (channel int, value float64, ok bool) {
	data := uint32(raw & 0xFFFFFFFF)
	channel = int((raw >> 32) & 0xFFFF)
	metadata := uint16((raw >> 48) & 0xFFFF)
	if channel < 0 || channel >= NumChannels {
		return channel, 0, false
	}
	size := uint(metadata&0xF) + 8
	signed := metadata&0x10 != 0
	isFloat := metadata&0x20 != 0

	if isFloat {
		return channel, float64(math.Float32frombits(data)), true
	}
	masked := uint64(data) & mathx.MaskWidth(size)
	if signed {
		return channel, float64(mathx.SignExtend(masked, size)) * scaling[channel], true
	}
	return channel, float64(masked) * scaling[channel], true
}

// ReadData blocks on a single full read of one DMA block from the scope
// character device (r) and demultiplexes it (§4.3 read_data). r is
// expected to be the scope device file; closing it from another
// goroutine is the cooperative cancellation path §5 describes.
func (m *Manager) ReadData(r io.Reader) (Block, error) {
	raw := make([]byte, BlockBytes)
	if _, err := io.ReadFull(r, raw); err != nil {
		return Block{}, fmt.Errorf("scope: read_data: %w", err)
	}
	return m.DecodeBlock(raw)
}

// DecodeBlock demultiplexes a raw byte block (BlockBytes long) into a
// Block, skipping samples whose channel is out of range or disabled.
func (m *Manager) DecodeBlock(raw []byte) (Block, error) {
	if len(raw) != BlockBytes {
		return Block{}, fmt.Errorf("scope: expected %d bytes, got %d", BlockBytes, len(raw))
	}
	scaling := m.scalingSnapshot()
	var out Block
	for i := 0; i < NumChannels; i++ {
		out.Channels[i] = make([]float64, 0, SamplesPerBlock)
	}
	for i := 0; i < len(raw); i += sampleBytes {
		word := uint64(0)
		for b := 0; b < sampleBytes; b++ {
			word |= uint64(raw[i+b]) << (8 * b)
		}
		ch, val, ok := DecodeSample(word, scaling)
		if !ok || !m.channelEnabled(ch) {
			continue
		}
		out.Channels[ch] = append(out.Channels[ch], val)
	}
	return out, nil
}
