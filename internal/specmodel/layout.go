package specmodel

// LayoutMap is the §6.2 input to the deployer: base addresses per
// peripheral family and the per-core byte offsets the deployer strides
// by when addressing core i's slice of each family.
type LayoutMap struct {
	Bases   LayoutBases   `json:"bases"`
	Offsets LayoutOffsets `json:"offsets"`
}

type LayoutBases struct {
	CoresROM         uint64 `json:"cores_rom"`
	CoresControl     uint64 `json:"cores_control"`
	CoresInputs      uint64 `json:"cores_inputs"`
	Controller       uint64 `json:"controller"`
	ScopeMux         uint64 `json:"scope_mux"`
	HilControl       uint64 `json:"hil_control"`
	NoiseGenerator   uint64 `json:"noise_generator"`
	WaveformGenerator uint64 `json:"waveform_generator"`
}

type LayoutOffsets struct {
	CoresROM     uint64 `json:"cores_rom"`
	CoresControl uint64 `json:"cores_control"`
	CoresInputs  uint64 `json:"cores_inputs"`
	Controller   uint64 `json:"controller"`
	DMA          uint64 `json:"dma"`
	HilTB        uint64 `json:"hil_tb"`
}
