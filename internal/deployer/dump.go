package deployer

import (
	"fmt"
	"sort"
	"strings"

	"hilctl/internal/busaccess"
)

// Dump holds the four §6.3 hardware-simulation text blobs.
type Dump struct {
	Code    string
	Control string
	Outputs string
	Inputs  string
}

// RenderDump renders a sink accessor's recorded operations into the
// §6.3 dump format: code (ROM words), control (every control-plane
// write in emit order), outputs (bus_address|channel<<16 -> label) and
// inputs (per constant input, path/peripheral/dest/selector/core_idx).
func RenderDump(sink *busaccess.SinkAccessor, busLabels map[uint32]string, inputsLabels map[string]InputLabel) Dump {
	var code, control strings.Builder

	for _, rom := range sink.RomWrites() {
		for i, w := range rom.Words {
			fmt.Fprintf(&code, "%d:%d\n", rom.Address+4*uint64(i), w)
		}
	}
	for _, w := range sink.ControlWrites() {
		fmt.Fprintf(&control, "%d:%d\n", w.Addr, w.Data)
	}

	var outputs strings.Builder
	keys := make([]uint32, 0, len(busLabels))
	for k := range busLabels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		fmt.Fprintf(&outputs, "%d:%s\n", k, busLabels[k])
	}

	var inputs strings.Builder
	paths := make([]string, 0, len(inputsLabels))
	for p := range inputsLabels {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		l := inputsLabels[p]
		fmt.Fprintf(&inputs, "%s,%d,%d,%d,%d\n", p, l.Peripheral, l.Dest, l.Selector, l.CoreIndex)
	}

	return Dump{
		Code:    code.String(),
		Control: control.String(),
		Outputs: outputs.String(),
		Inputs:  inputs.String(),
	}
}
