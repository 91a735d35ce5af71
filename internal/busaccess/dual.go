package busaccess

import "sync"

// DualAccessor pairs a recording SinkAccessor with an optional live
// passthrough. It is what "sink-mode" actually is outside of pure
// dry-run use: every operation is always recorded (so the
// hardware-simulation dump is always reconstructible), and is also
// applied to a live accessor while passthrough is enabled. The FPGA
// bridge's enable/disable_bus_access (§4.2) toggles passthrough and
// clears the recording.
type DualAccessor struct {
	mu          sync.Mutex
	Sink        *SinkAccessor
	Live        Accessor // nil when there is no hardware to pass through to
	passthrough bool
}

// NewDualAccessor starts with passthrough disabled: a fresh deployment
// is always staged into the sink log first, and only driven onto
// hardware once the bridge enables bus access.
func NewDualAccessor(live Accessor) *DualAccessor {
	return &DualAccessor{Sink: NewSinkAccessor(), Live: live}
}

func (d *DualAccessor) SetPassthrough(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.passthrough = enabled
}

func (d *DualAccessor) Passthrough() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.passthrough
}

func (d *DualAccessor) WriteRegister(addresses []uint64, data uint32) error {
	if err := d.Sink.WriteRegister(addresses, data); err != nil {
		return err
	}
	if d.Passthrough() && d.Live != nil {
		return d.Live.WriteRegister(addresses, data)
	}
	return nil
}

func (d *DualAccessor) ReadRegister(addresses []uint64) (uint32, error) {
	if d.Passthrough() && d.Live != nil {
		v, err := d.Live.ReadRegister(addresses)
		if err != nil {
			return 0, err
		}
		_, _ = d.Sink.ReadRegister(addresses) // keep the recording in lockstep
		return v, nil
	}
	return d.Sink.ReadRegister(addresses)
}

func (d *DualAccessor) LoadProgram(address uint64, words []uint32) error {
	if err := d.Sink.LoadProgram(address, words); err != nil {
		return err
	}
	if d.Passthrough() && d.Live != nil {
		return d.Live.LoadProgram(address, words)
	}
	return nil
}
