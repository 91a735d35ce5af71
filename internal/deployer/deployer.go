// Package deployer implements the §4.5 HIL deployer: it walks a
// validated EmulatorSpec and a layout map and issues the full sequence
// of bus writes that program cores, their DMA tables, memory
// initializers, inputs, and the sequencer, plus the runtime operations
// (set_input, select_output, start/stop, hardware-sim dump) that follow
// a deploy.
package deployer

import (
	"fmt"

	"hilctl/errcode"
	"hilctl/internal/busaccess"
	"hilctl/internal/hilbus"
	"hilctl/internal/specmodel"
)

// Deployer owns the state a deploy leaves behind for later runtime calls:
// the active bus map and the input/output label tables the dump and
// set_input/select_output endpoints consult.
type Deployer struct {
	acc               busaccess.Accessor
	layout            specmodel.LayoutMap
	fullCoresOverride bool

	bus          *hilbus.Map
	busLabels    map[uint32]string
	inputsLabels map[string]InputLabel
	coreChannels map[string]int

	lastSpec specmodel.EmulatorSpec
}

// New builds a Deployer. fullCoresOverride mirrors the upstream driver's
// "only full cores are used right now" default; the teacher always
// constructs with it true, but callers (tests in particular) may pass
// false to exercise the reciprocal-scan path.
func New(acc busaccess.Accessor, layout specmodel.LayoutMap, fullCoresOverride bool) *Deployer {
	return &Deployer{
		acc:               acc,
		layout:            layout,
		fullCoresOverride: fullCoresOverride,
		bus:               hilbus.New(),
		busLabels:         make(map[uint32]string),
		inputsLabels:      make(map[string]InputLabel),
		coreChannels:      make(map[string]int),
	}
}

func inputPath(core, name string, channel, channels int) string {
	if channels <= 1 {
		return core + "." + name
	}
	return fmt.Sprintf("%s[%d].%s", core, channel, name)
}

// Deploy implements the §4.5 top-level algorithm.
func (d *Deployer) Deploy(spec specmodel.EmulatorSpec) error {
	d.bus.Clear()
	d.busLabels = make(map[uint32]string)
	d.inputsLabels = make(map[string]InputLabel)
	d.coreChannels = make(map[string]int)
	d.lastSpec = spec

	if len(spec.Cores) > specmodel.MaxCores {
		return errcode.New(errcode.DeploymentError, "deploy", "more than 32 cores in spec")
	}

	for _, slot := range spec.Interconnect {
		d.bus.PushBack(slot)
	}
	if err := d.bus.CheckConflicts(); err != nil {
		return errcode.Wrap(errcode.DeploymentError, "deploy", err)
	}

	type programInfo struct {
		name          string
		order         int
		index         int
		sampleHz      uint64
		channels      int
		singleChannel bool
	}
	programs := make([]programInfo, len(spec.Cores))

	for i, core := range spec.Cores {
		romAddr := d.layout.Bases.CoresROM + uint64(i)*d.layout.Offsets.CoresROM
		if err := d.acc.LoadProgram(romAddr, core.Program); err != nil {
			return err
		}
		hasReciprocal := ScanProgram(core.Program)
		channels := ChannelCount(hasReciprocal, d.fullCoresOverride)
		programs[i] = programInfo{
			name: core.ID, order: core.Order, index: i,
			sampleHz: core.SampleHz, channels: channels,
			singleChannel: core.Channels <= 1,
		}
		d.coreChannels[core.ID] = core.Channels
	}

	scheduleInputs := make([]ScheduleInput, len(programs))
	for i, p := range programs {
		scheduleInputs[i] = ScheduleInput{Name: p.name, Order: p.order, SampleHz: p.sampleHz, Channels: p.channels}
	}
	schedule := ComputeSchedule(scheduleInputs, DefaultHilClockFrequency)

	for _, p := range programs {
		dmaBase := d.layout.Bases.CoresControl + uint64(p.index)*d.layout.Offsets.CoresControl + d.layout.Offsets.DMA
		if _, err := buildDMATable(d.acc, dmaBase, p.name, spec.Interconnect, d.busLabels, p.singleChannel); err != nil {
			return err
		}
	}

	for i, core := range spec.Cores {
		controlBase := d.layout.Bases.CoresControl + uint64(i)*d.layout.Offsets.CoresControl
		if err := setupMemoryInits(d.acc, controlBase, core.Channels, core.MemoryInits); err != nil {
			return err
		}
	}

	activeRandomInputs := 0
	activeWaveforms := 0
	for i, core := range spec.Cores {
		complexBase := d.layout.Bases.CoresControl + uint64(i)*d.layout.Offsets.CoresControl
		peripheralBase := complexBase + d.layout.Offsets.CoresInputs
		channels := core.Channels
		if channels < 1 {
			channels = 1
		}

		for inputIdx, in := range core.Inputs {
			switch in.Kind {
			case specmodel.InputConstant, specmodel.InputExternal:
				isFloat := in.Meta.Type == specmodel.IOFloat
				values := in.Values
				if len(values) == 0 {
					values = []float64{0}
				}
				for ch := 0; ch < channels; ch++ {
					v := values[0]
					if len(values) == channels {
						v = values[ch]
					} else if ch < len(values) {
						v = values[ch]
					}
					dest, selector, err := setupConstantInput(d.acc, peripheralBase, in.Reg[0], inputIdx, ch, v, isFloat)
					if err != nil {
						return err
					}
					path := inputPath(core.ID, in.Name, ch, channels)
					if _, exists := d.inputsLabels[path]; !exists {
						d.inputsLabels[path] = InputLabel{Peripheral: peripheralBase, Dest: dest, Selector: selector, CoreIndex: i}
					}
				}
			case specmodel.InputRandom:
				for ch := 0; ch < channels; ch++ {
					var err error
					activeRandomInputs, err = setupRandomInput(d.acc, d.layout.Bases.NoiseGenerator, in.Reg[0], ch, activeRandomInputs)
					if err != nil {
						return err
					}
				}
			case specmodel.InputWaveform:
				for ch := 0; ch < channels; ch++ {
					var err error
					activeWaveforms, err = setupWaveformInput(d.acc, d.layout.Bases.WaveformGenerator, in.Reg[0], in, ch, activeWaveforms)
					if err != nil {
						return err
					}
				}
			}
		}
	}

	if activeRandomInputs > 0 {
		if err := d.acc.WriteRegister([]uint64{d.layout.Bases.NoiseGenerator}, uint32(activeRandomInputs)); err != nil {
			return err
		}
	}

	m := len(programs)
	for i, p := range programs {
		divider := schedule.Dividers[p.name]
		if divider > 0 {
			divider--
		}
		if err := d.acc.WriteRegister([]uint64{d.layout.Bases.Controller + d.layout.Offsets.Controller + 4 + uint64(i)*4}, divider); err != nil {
			return err
		}
		shift := schedule.Shifts[p.name]
		if err := d.acc.WriteRegister([]uint64{d.layout.Bases.Controller + d.layout.Offsets.HilTB + 8 + uint64(i)*4}, shift); err != nil {
			return err
		}
	}
	if err := d.acc.WriteRegister([]uint64{d.layout.Bases.Controller + d.layout.Offsets.HilTB + 4}, schedule.Period); err != nil {
		return err
	}
	var enableMask uint32
	if m > 0 {
		enableMask = uint32(1)<<uint(m) - 1
	}
	if err := d.acc.WriteRegister([]uint64{d.layout.Bases.Controller + d.layout.Offsets.Controller}, enableMask); err != nil {
		return err
	}

	for _, p := range programs {
		addr := d.layout.Bases.CoresControl + uint64(p.index)*d.layout.Offsets.CoresControl
		if err := d.acc.WriteRegister([]uint64{addr}, uint32(p.channels)); err != nil {
			return err
		}
	}

	return nil
}

// BusMap exposes the active HIL bus map for select_output and inspection.
func (d *Deployer) BusMap() *hilbus.Map { return d.bus }

// LastSpec returns the most recently deployed spec, for hil_debug's
// dump-rom/scan-pipeline/describe sub-commands.
func (d *Deployer) LastSpec() specmodel.EmulatorSpec { return d.lastSpec }

// SetLayout replaces the active layout map (set_layout_map / the
// set_hil_address_map alias), clearing any prior deploy's bus/label
// state since it was built against the old addressing.
func (d *Deployer) SetLayout(layout specmodel.LayoutMap) {
	d.layout = layout
	d.bus.Clear()
	d.busLabels = make(map[uint32]string)
	d.inputsLabels = make(map[string]InputLabel)
	d.coreChannels = make(map[string]int)
}

// HilAddressMap implements get_hil_address_map: the *resolved*
// bus-label and inputs-label tables from the most recent deploy, not
// the input layout map (§4 supplement, matching command_processor.cpp).
func (d *Deployer) HilAddressMap() (busLabels map[uint32]string, inputsLabels map[string]InputLabel) {
	return d.busLabels, d.inputsLabels
}
