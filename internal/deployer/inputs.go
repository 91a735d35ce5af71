package deployer

import (
	"hilctl/internal/busaccess"
	"hilctl/internal/specmodel"
)

// Constant-engine register layout, relative to its per-core base (§6.4).
const (
	constLSB      = 0x00
	constHSB      = 0x04
	constDest     = 0x08
	constSelector = 0x0C
	constActive   = 0x10
	constMetadata = 0x14
)

// InputLabel records where a constant/external input's three-register
// sequence lives, so set_input can replay it later (§4.5.5).
type InputLabel struct {
	Peripheral uint64 // constant-engine base address
	Dest       uint32
	Selector   uint32
	CoreIndex  int
}

// setupMemoryInits implements §4.5 step 7.
func setupMemoryInits(acc busaccess.Accessor, controlBase uint64, channels int, inits []specmodel.MemoryInitSpec) error {
	for _, m := range inits {
		regBase := m.Reg[0]
		if len(m.Values) == channels {
			for i, v := range m.Values {
				addr := controlBase + ((regBase&0xFF)+uint64(i)<<8)*4
				if err := acc.WriteRegister([]uint64{addr}, encodeWord(m.Meta, v)); err != nil {
					return err
				}
			}
		} else {
			addr := controlBase + regBase*4
			if err := acc.WriteRegister([]uint64{addr}, encodeWord(m.Meta, m.Values[0])); err != nil {
				return err
			}
		}
	}
	return nil
}

func encodeWord(meta specmodel.IOMetadata, v float64) uint32 {
	if meta.Type == specmodel.IOFloat {
		return f32bits(v)
	}
	return uint32(int32(v))
}

// setupConstantInput drives the three-step selector->dest->lsb sequence
// for one channel of a constant/time-series input (§4.5 step 8, P3).
// peripheralBase is the constant engine's per-core base address;
// constIdx is the input's ordinal position among this core's inputs.
func setupConstantInput(acc busaccess.Accessor, peripheralBase uint64, regBase uint64, constIdx, channel int, value float64, isFloat bool) (dest, selector uint32, err error) {
	dest = uint32(regBase) | uint32(channel)<<16
	selector = uint32(constIdx) | uint32(channel)<<16

	if err = acc.WriteRegister([]uint64{peripheralBase + constSelector}, selector); err != nil {
		return
	}
	if err = acc.WriteRegister([]uint64{peripheralBase + constDest}, dest); err != nil {
		return
	}
	var word uint32
	if isFloat {
		word = f32bits(value)
	} else {
		word = uint32(int32(value))
	}
	err = acc.WriteRegister([]uint64{peripheralBase + constLSB}, word)
	return
}

// setupRandomInput writes the next noise-generator slot for one channel
// and returns the updated active-random-input count.
func setupRandomInput(acc busaccess.Accessor, noiseGeneratorBase uint64, regBase uint64, channel int, activeRandomInputs int) (int, error) {
	addr := uint32(regBase) | uint32(channel)<<16
	if err := acc.WriteRegister([]uint64{noiseGeneratorBase + uint64(activeRandomInputs+1)*4}, addr); err != nil {
		return activeRandomInputs, err
	}
	return activeRandomInputs + 1, nil
}

// Waveform generator slot layout relative to a slot's base address (§6.4).
const (
	waveActive   = 0x00
	waveShape    = 0x04
	waveSelector = 0x08
	waveParam0   = 0x0C // v_on
	waveParam1   = 0x10 // v_off
	waveParam2   = 0x14 // t_delay ticks
	waveParam3   = 0x18 // t_on ticks
	waveParam4   = 0x1C // period ticks
	waveParam5   = 0x20 // destination
	waveParam6   = 0x24 // metadata

	waveSlotStride = 0x28
)

func shapeIndex(shape specmodel.WaveformShape) uint32 {
	switch shape {
	case specmodel.WaveformSquare:
		return 0
	case specmodel.WaveformSine:
		return 1
	case specmodel.WaveformTriangle:
		return 2
	default:
		return 0
	}
}

func paramAt(params map[string][]float64, key string, channel int) float64 {
	vals, ok := params[key]
	if !ok || len(vals) == 0 {
		return 0
	}
	if channel < len(vals) {
		return vals[channel]
	}
	return vals[0]
}

// setupWaveformInput programs one channel's waveform-generator slot
// (§4.5.4): slot selection by channel_selector, then the shape-specific
// parameter set, shape index, and metadata, returning the updated
// active-waveform count.
func setupWaveformInput(acc busaccess.Accessor, waveformGenBase uint64, regBase uint64, in specmodel.InputSpec, channel, activeWaveforms int) (int, error) {
	slotBase := waveformGenBase + uint64(activeWaveforms)*waveSlotStride
	dest := uint32(regBase) | uint32(channel)<<16

	writes := []struct {
		offset uint64
		value  uint32
	}{
		{waveSelector, uint32(activeWaveforms)},
		{waveParam0, uint32(int32(paramAt(in.Params, "v_on", channel)))},
		{waveParam1, uint32(int32(paramAt(in.Params, "v_off", channel)))},
		{waveParam2, uint32(int32(paramAt(in.Params, "t_delay", channel)))},
		{waveParam3, uint32(int32(paramAt(in.Params, "t_on", channel)))},
		{waveParam4, uint32(int32(paramAt(in.Params, "period", channel)))},
		{waveParam5, dest},
		{waveParam6, EncodeOutputMetadata(in.Meta)},
		{waveShape, shapeIndex(in.Shape)},
		{waveActive, 1},
	}
	for _, w := range writes {
		if err := acc.WriteRegister([]uint64{slotBase + w.offset}, w.value); err != nil {
			return activeWaveforms, err
		}
	}
	return activeWaveforms + 1, nil
}
