// Package specmodel holds the data model of an emulator specification
// (§3 of the driver spec): the finite, ordered description of cores,
// their programs, inputs, outputs, memory initial values and the
// interconnect between them that the deployer and the emulator both
// consume.
package specmodel

// IOType is the scalar type carried by an input, output or memory slot.
type IOType string

const (
	IOInteger IOType = "integer"
	IOFloat   IOType = "float"
)

// IOMetadata describes one scalar signal's wire shape.
type IOMetadata struct {
	Type     IOType `json:"type"`
	Width    int    `json:"width"`     // bits, <= 32
	Signed   bool   `json:"signed"`
	CommonIO bool   `json:"common_io"` // shared register across all channels
}

// InputKind tags the variant of InputSpec.Source.
type InputKind string

const (
	InputConstant   InputKind = "constant"
	InputExternal   InputKind = "external"
	InputRandom     InputKind = "random"
	InputWaveform   InputKind = "waveform"
)

// WaveformShape names the §4.5.4 waveform generator variants.
type WaveformShape string

const (
	WaveformSquare   WaveformShape = "square"
	WaveformSine     WaveformShape = "sine"
	WaveformTriangle WaveformShape = "triangle"
)

// InputSpec is one scalar input of a core. A "vector" input of size K from
// §3 is represented by the spec ingester as K contiguous InputSpec values
// (this package never groups them back up).
type InputSpec struct {
	Name string     `json:"name"`
	Meta IOMetadata `json:"meta"`
	Kind InputKind  `json:"kind"`

	// Reg carries the register descriptor the external compiler assigned
	// this input (reg[0] is the base register word used throughout §4.5
	// step 7/8; a second element is reserved for proxied addressing).
	Reg []uint64 `json:"reg"`

	// Values holds literal per-channel values for Constant/External
	// inputs: length 1 (broadcast to all channels) or equal to the
	// core's channel count.
	Values []float64 `json:"values,omitempty"`

	// Waveform fields, only meaningful when Kind == InputWaveform.
	Shape  WaveformShape        `json:"shape,omitempty"`
	Params map[string][]float64 `json:"params,omitempty"`
}

// OutputSpec is one scalar or vector output of a core.
type OutputSpec struct {
	Name       string     `json:"name"`
	Meta       IOMetadata `json:"meta"`
	VectorSize int        `json:"vector_size,omitempty"` // 0/1 == scalar
}

// MemoryInitSpec is one memory cell's initial-value declaration.
type MemoryInitSpec struct {
	Name     string     `json:"name"`
	Meta     IOMetadata `json:"meta"`
	IsOutput bool       `json:"is_output"`
	IsInput  bool       `json:"is_input"`
	Reg      []uint64   `json:"reg"`
	Values   []float64  `json:"values"` // scalar (len 1) or per-channel (len N)
}

// Options carries per-core behavioral knobs named in §3. They are decoded
// and carried with the spec; neither the deployer nor the software
// emulator reads them (the deployer only cares whether the reciprocal
// opcode is present, determined by scanning the program; see
// internal/deployer/pipeline.go).
type Options struct {
	ComparatorPolicy  string `json:"comparator_policy"`  // "strict" | "tolerant"
	EFIImplementation string `json:"efi_implementation"` // "newton" | "lookup"
}

// CoreSpec is one fCore's complete configuration.
type CoreSpec struct {
	ID       string  `json:"id"`
	Order    int     `json:"order"`     // execution order among peers
	SampleHz uint64  `json:"sample_hz"` // 0 == as fast as the pipeline allows
	Channels int      `json:"channels"` // N, SIMD replication factor
	Options  Options  `json:"options"`
	Program  []uint32 `json:"program"` // opcode vector

	Inputs      []InputSpec      `json:"inputs"`
	Outputs     []OutputSpec     `json:"outputs"`
	MemoryInits []MemoryInitSpec `json:"memory_inits"`
}

// InterconnectSlot is one entry of the HIL bus after lowering: a producer
// output routed onto a destination bus address/channel pair. See
// internal/hilbus for the conflict-checked collection of these.
type InterconnectSlot struct {
	SourceID        string     `json:"source_id"`
	SourceName      string     `json:"source_name"`
	SourceIOAddress uint32     `json:"source_io_address"` // 0..0xFFF
	SourceChannel   int        `json:"source_channel"`    // 0..15
	DestBusAddress  uint32     `json:"destination_bus_address"` // 0..0xFFF
	DestChannel     int        `json:"destination_channel"`     // 0..15
	Meta            IOMetadata `json:"meta"`
}

// EmulatorSpec is the top-level JSON document a client submits to
// emulate_hil / deploy_hil / hil_hardware_sim.
type EmulatorSpec struct {
	Version       string             `json:"version"`
	Cores         []CoreSpec         `json:"cores"`
	Interconnect  []InterconnectSlot `json:"interconnect"`
	EmulationTime float64            `json:"emulation_time"` // seconds
	Mode          string             `json:"mode"`           // deployment-mode flag, informational
}

// CoreByID returns the core with the given ID, or false.
func (s *EmulatorSpec) CoreByID(id string) (CoreSpec, bool) {
	for _, c := range s.Cores {
		if c.ID == id {
			return c, true
		}
	}
	return CoreSpec{}, false
}
