package deployer

import (
	"fmt"

	"hilctl/internal/busaccess"
	"hilctl/internal/hilbus"
)

// SetInput implements §4.5.5 set_input: look up the stored InputLabel and
// replay the selector->dest->lsb sequence with a new value.
func (d *Deployer) SetInput(core, name string, channel int, value float64, isFloat bool) error {
	key := inputPath(core, name, channel, d.coreChannels[core])
	label, ok := d.inputsLabels[key]
	if !ok {
		return fmt.Errorf("deployer: no input labeled %q", key)
	}
	if err := d.acc.WriteRegister([]uint64{label.Peripheral + constSelector}, label.Selector); err != nil {
		return err
	}
	if err := d.acc.WriteRegister([]uint64{label.Peripheral + constDest}, label.Dest); err != nil {
		return err
	}
	var word uint32
	if isFloat {
		word = f32bits(value)
	} else {
		word = uint32(int32(value))
	}
	return d.acc.WriteRegister([]uint64{label.Peripheral + constLSB}, word)
}

// SelectOutput implements §4.5.5 select_output: resolve the producer
// output through the HIL bus map and wire it to a scope channel.
func (d *Deployer) SelectOutput(scopeChannel int, ref hilbus.OutputRef) error {
	busAddr, channel, err := d.bus.TranslateOutput(ref)
	if err != nil {
		return err
	}
	word := busAddr | uint32(channel)<<16
	addr := d.layout.Bases.ScopeMux + uint64(scopeChannel+1)*4
	return d.acc.WriteRegister([]uint64{addr}, word)
}

// Start writes 1 to bases.hil_control.
func (d *Deployer) Start() error {
	return d.acc.WriteRegister([]uint64{d.layout.Bases.HilControl}, 1)
}

// Stop writes 0 to bases.hil_control.
func (d *Deployer) Stop() error {
	return d.acc.WriteRegister([]uint64{d.layout.Bases.HilControl}, 0)
}

// HardwareSimData deploys into a fresh sink accessor, starts the HIL
// engine, and renders the recorded operations into the four §6.3 text
// blobs (§4.5.5 get_hardware_sim_data).
func (d *Deployer) HardwareSimData() (Dump, error) {
	sink := busaccess.NewSinkAccessor()
	sinkDeployer := New(sink, d.layout, d.fullCoresOverride)
	if err := sinkDeployer.Deploy(d.lastSpec); err != nil {
		return Dump{}, err
	}
	if err := sinkDeployer.Start(); err != nil {
		return Dump{}, err
	}
	return RenderDump(sink, sinkDeployer.busLabels, sinkDeployer.inputsLabels), nil
}
