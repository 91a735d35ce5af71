// Package dispatcher is the §4.6 command dispatcher: it decodes a
// JSON or MessagePack envelope, routes cmd to one of the four endpoint
// families (control, cores, scope, platform) plus infrastructure, and
// encodes the {response_code, data} result back through the same codec.
package dispatcher

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/shlex"

	"hilctl/errcode"
	"hilctl/evbus"
	"hilctl/internal/bridge"
	"hilctl/internal/deployer"
	"hilctl/internal/emulator"
	"hilctl/internal/hilbus"
	"hilctl/internal/scope"
	"hilctl/internal/specmodel"
	"hilctl/internal/timing"
)

// Status topics carry internal progress independent of the wire protocol:
// deploy phase transitions and bridge link health, the role
// bridge.Service.publishState played in the teacher, generalized across
// every command family here rather than one peripheral service.
var (
	TopicDeployPhase = evbus.T("deploy", "phase")
	TopicBridgeLink  = evbus.T("bridge", "link")
)

// Version is reported by get_version.
const Version = "hilctl-1.0"

// Dispatcher owns every hardware-facing service and routes wire commands
// to them.
type Dispatcher struct {
	mu sync.Mutex

	Bridge   *bridge.Bridge
	Deployer *deployer.Deployer
	Scope    *scope.Manager
	Emulator *emulator.Emulator
	Timing   *timing.Manager

	// ScopeDevice backs scope read_data (§4.3); nil until wired by the
	// caller, in which case read_data reports internal_error.
	ScopeDevice io.Reader

	// Status publishes internal progress (deploy phase, bridge link
	// health) for anything subscribed inside the process; nil is a valid
	// no-op (tests never wire one).
	Status *evbus.Connection

	debugLevel int
}

func (d *Dispatcher) publish(topic evbus.Topic, payload any) {
	if d.Status == nil {
		return
	}
	d.Status.Publish(d.Status.NewMessage(topic, payload, true))
}

type handlerFunc func(d *Dispatcher, args json.RawMessage) (any, error)

var handlers map[string]handlerFunc

func init() {
	handlers = map[string]handlerFunc{
		// control
		"load_bitstream":  handleLoadBitstream,
		"register_read":   handleRegisterRead,
		"register_write":  handleRegisterWrite,
		"apply_filter":    handleApplyFilter,
		"set_scope_data":  handleSetScopeData,
		"set_frequency":   handleSetFrequency,

		// cores
		"apply_program":        handleApplyProgram,
		"compile_program":      handleCompileProgram,
		"emulate_hil":          handleEmulateHil,
		"deploy_hil":           handleDeployHil,
		"hil_set_in":           handleHilSetIn,
		"hil_select_out":       handleHilSelectOut,
		"hil_start":            handleHilStart,
		"hil_stop":             handleHilStop,
		"set_layout_map":       handleSetLayoutMap,
		"set_hil_address_map":  handleSetLayoutMap, // alias, see DESIGN.md
		"get_hil_address_map":  handleGetHilAddressMap,
		"hil_hardware_sim":     handleHilHardwareSim,
		"hil_disassemble":      handleHilDisassemble,
		"hil_debug":            handleHilDebug,

		// scope
		"read_data":             handleReadData,
		"set_scaling_factors":   handleSetScalingFactors,
		"set_channel_status":    handleSetChannelStatus,
		"disable_scope_dma":     handleDisableScopeDMA,
		"get_acquisition_status": handleGetAcquisitionStatus,
		"set_acquisition":       handleSetAcquisition,
		"set_scope_address":     handleSetScopeAddress,

		// platform
		"set_pl_clock":     handleSetPLClock,
		"get_clock":        handleGetClock,
		"get_version":      handleGetVersion,
		"set_debug_level":  handleSetDebugLevel,
		"get_debug_level":  handleGetDebugLevel,

		// infrastructure
		"null": handleNull,
	}
}

// Dispatch decodes raw (JSON or MessagePack), routes it, and encodes a
// response envelope in whichever codec the request used.
func (d *Dispatcher) Dispatch(raw []byte) []byte {
	req, useMsgpack, err := decodeRequest(raw)
	if err != nil {
		body, _ := encodeResponse("", responseBody{ResponseCode: errcode.InvalidCmdSchema.Int()}, useMsgpack)
		return body
	}

	data, err := d.handle(req)
	code := errcode.OK
	if err != nil {
		code = errcode.Of(err)
	}
	resp, err := encodeResponse(req.Cmd, responseBody{ResponseCode: code.Int(), Data: data}, useMsgpack)
	if err != nil {
		resp, _ = encodeResponse(req.Cmd, responseBody{ResponseCode: errcode.InternalError.Int()}, useMsgpack)
	}
	return resp
}

func (d *Dispatcher) handle(req request) (any, error) {
	fn, ok := handlers[req.Cmd]
	if !ok {
		return nil, errcode.New(errcode.InvalidCmdSchema, "dispatch", "unknown command: "+req.Cmd)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return fn(d, req.Args)
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return errcode.New(errcode.InvalidCmdSchema, "decode_args", "missing args")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return errcode.Wrap(errcode.InvalidCmdSchema, "decode_args", err)
	}
	return nil
}

// --- control ---

func handleLoadBitstream(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Name string `json:"name"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	err := d.Bridge.LoadBitstream(a.Name)
	if err != nil {
		d.publish(TopicBridgeLink, map[string]any{"state": "load_failed", "bitstream": a.Name})
	} else {
		d.publish(TopicBridgeLink, map[string]any{"state": "programmed", "bitstream": a.Name})
	}
	return nil, err
}

func handleRegisterRead(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Address uint64 `json:"address"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	res, err := d.Bridge.SingleReadRegister(a.Address)
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func handleRegisterWrite(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Type      string   `json:"type"`
		Subtype   string   `json:"subtype"`
		Addresses []uint64 `json:"addresses"`
		Data      uint32   `json:"data"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, d.Bridge.SingleWriteRegister(bridge.RegisterWriteRequest{
		Type:      bridge.RegisterWriteType(a.Type),
		Subtype:   a.Subtype,
		Addresses: a.Addresses,
		Data:      a.Data,
	})
}

func handleApplyFilter(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Address uint64    `json:"address"`
		Taps    []float64 `json:"taps"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, d.Bridge.ApplyFilter(a.Address, a.Taps)
}

func handleSetScopeData(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		EnableAddr uint64 `json:"enable_addr"`
		BufferAddr uint64 `json:"buffer_addr"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, d.Bridge.SetScopeData(a.EnableAddr, a.BufferAddr)
}

func handleSetFrequency(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		ID int    `json:"id"`
		Hz uint64 `json:"hz"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, d.Bridge.SetClockFrequency(a.ID, a.Hz)
}

// --- cores ---

func handleApplyProgram(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		RomAddr uint64   `json:"rom_addr"`
		Words   []uint32 `json:"words"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, d.Bridge.ApplyProgram(a.RomAddr, a.Words)
}

// compile_program isn't detailed by the source material (no textual
// assembly syntax appears anywhere in the retrieved corpus): it takes an
// already-numeric opcode stream and returns the pipeline-scan results a
// real compiler front-end would also report, rather than accepting or
// producing source text.
func handleCompileProgram(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Program []uint32 `json:"program"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	hasReciprocal := deployer.ScanProgram(a.Program)
	return map[string]any{
		"has_reciprocal": hasReciprocal,
		"channel_count":  deployer.ChannelCount(hasReciprocal, true),
		"disassembly":    emulator.Disassemble(a.Program),
	}, nil
}

func handleEmulateHil(d *Dispatcher, args json.RawMessage) (any, error) {
	spec, err := decodeSpec(args)
	if err != nil {
		return nil, err
	}
	return d.Emulator.Emulate(spec), nil
}

func handleDeployHil(d *Dispatcher, args json.RawMessage) (any, error) {
	spec, err := decodeSpec(args)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, errcode.Wrap(errcode.InvalidArg, "deploy_hil", err)
	}
	d.publish(TopicDeployPhase, "deploying")
	if err := d.Deployer.Deploy(spec); err != nil {
		d.publish(TopicDeployPhase, "deploy_failed")
		return nil, err
	}
	d.publish(TopicDeployPhase, "deployed")
	return nil, nil
}

func handleHilSetIn(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Core    string  `json:"core"`
		Name    string  `json:"name"`
		Channel int     `json:"channel"`
		Value   float64 `json:"value"`
		IsFloat bool    `json:"is_float"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, d.Deployer.SetInput(a.Core, a.Name, a.Channel, a.Value, a.IsFloat)
}

func handleHilSelectOut(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		ScopeChannel int    `json:"scope_channel"`
		Core         string `json:"core"`
		Name         string `json:"name"`
		Channel      int    `json:"channel"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	ref := hilbus.OutputRef{Core: a.Core, Output: a.Name, Channel: a.Channel}
	return nil, d.Deployer.SelectOutput(a.ScopeChannel, ref)
}

func handleHilStart(d *Dispatcher, args json.RawMessage) (any, error) {
	err := d.Deployer.Start()
	if err == nil {
		d.publish(TopicDeployPhase, "running")
	}
	return nil, err
}

func handleHilStop(d *Dispatcher, args json.RawMessage) (any, error) {
	err := d.Deployer.Stop()
	if err == nil {
		d.publish(TopicDeployPhase, "stopped")
	}
	return nil, err
}

func handleSetLayoutMap(d *Dispatcher, args json.RawMessage) (any, error) {
	var layout specmodel.LayoutMap
	if err := decodeArgs(args, &layout); err != nil {
		return nil, err
	}
	d.Deployer.SetLayout(layout)
	return nil, nil
}

func handleGetHilAddressMap(d *Dispatcher, args json.RawMessage) (any, error) {
	busLabels, inputsLabels := d.Deployer.HilAddressMap()
	keys := make([]uint32, 0, len(busLabels))
	for k := range busLabels {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	bus := make(map[string]string, len(busLabels))
	for _, k := range keys {
		bus[fmt.Sprintf("%d", k)] = busLabels[k]
	}
	return map[string]any{
		"bus_labels":    bus,
		"inputs_labels": inputsLabels,
	}, nil
}

func handleHilHardwareSim(d *Dispatcher, args json.RawMessage) (any, error) {
	spec, err := decodeSpec(args)
	if err != nil {
		return nil, err
	}
	if err := spec.Validate(); err != nil {
		return nil, errcode.Wrap(errcode.InvalidArg, "hil_hardware_sim", err)
	}
	if err := d.Deployer.Deploy(spec); err != nil {
		return nil, err
	}
	return d.Deployer.HardwareSimData()
}

func handleHilDisassemble(d *Dispatcher, args json.RawMessage) (any, error) {
	spec, err := decodeSpec(args)
	if err != nil {
		return nil, err
	}
	return d.Emulator.Disassemble(spec), nil
}

// handleHilDebug accepts either a free-form debug command line (tokenized
// with shlex, per the dump-rom/scan-pipeline/describe sub-language) or a
// structured interactive_command object (add_breakpoint/.../resume).
func handleHilDebug(d *Dispatcher, args json.RawMessage) (any, error) {
	var line string
	if err := json.Unmarshal(args, &line); err == nil {
		return runDebugLine(d, line)
	}
	var cmd emulator.InteractiveCommand
	if err := decodeArgs(args, &cmd); err != nil {
		return nil, err
	}
	return d.Emulator.HandleInteractive(cmd)
}

func runDebugLine(d *Dispatcher, line string) (any, error) {
	tokens, err := shlex.Split(line)
	if err != nil || len(tokens) == 0 {
		return nil, errcode.New(errcode.InvalidArg, "hil_debug", "could not tokenize debug command")
	}
	verb, rest := tokens[0], tokens[1:]
	spec := d.Deployer.LastSpec()
	switch verb {
	case "dump-rom":
		if len(rest) != 1 {
			return nil, errcode.New(errcode.InvalidArg, "hil_debug", "dump-rom requires a core id")
		}
		core, ok := spec.CoreByID(rest[0])
		if !ok {
			return nil, errcode.New(errcode.InvalidArg, "hil_debug", "unknown core: "+rest[0])
		}
		return emulator.Disassemble(core.Program), nil
	case "scan-pipeline":
		if len(rest) != 1 {
			return nil, errcode.New(errcode.InvalidArg, "hil_debug", "scan-pipeline requires a core id")
		}
		core, ok := spec.CoreByID(rest[0])
		if !ok {
			return nil, errcode.New(errcode.InvalidArg, "hil_debug", "unknown core: "+rest[0])
		}
		hasReciprocal := deployer.ScanProgram(core.Program)
		return map[string]any{
			"has_reciprocal": hasReciprocal,
			"channel_count":  deployer.ChannelCount(hasReciprocal, true),
		}, nil
	case "describe":
		if len(rest) != 1 {
			return nil, errcode.New(errcode.InvalidArg, "hil_debug", "describe requires a core id")
		}
		core, ok := spec.CoreByID(rest[0])
		if !ok {
			return nil, errcode.New(errcode.InvalidArg, "hil_debug", "unknown core: "+rest[0])
		}
		return map[string]any{
			"id":        core.ID,
			"order":     core.Order,
			"sample_hz": core.SampleHz,
			"channels":  core.Channels,
			"inputs":    len(core.Inputs),
			"outputs":   len(core.Outputs),
		}, nil
	default:
		return nil, errcode.New(errcode.InvalidArg, "hil_debug", "unknown debug verb: "+verb)
	}
}

func decodeSpec(args json.RawMessage) (specmodel.EmulatorSpec, error) {
	var spec specmodel.EmulatorSpec
	if err := decodeArgs(args, &spec); err != nil {
		return specmodel.EmulatorSpec{}, err
	}
	return spec, nil
}

// --- scope ---

func handleReadData(d *Dispatcher, args json.RawMessage) (any, error) {
	if d.ScopeDevice == nil {
		return nil, errcode.New(errcode.InternalError, "read_data", "no scope device wired")
	}
	block, err := d.Scope.ReadData(d.ScopeDevice)
	if err != nil {
		return nil, errcode.Wrap(errcode.InternalError, "read_data", err)
	}
	return block.Channels, nil
}

func handleSetScalingFactors(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Factors [scope.NumChannels]float64 `json:"factors"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	d.Scope.SetScalingFactors(a.Factors)
	return nil, nil
}

func handleSetChannelStatus(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Status map[string]bool `json:"status"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	status := make(map[int]bool, len(a.Status))
	for k, v := range a.Status {
		var ch int
		if _, err := fmt.Sscanf(k, "%d", &ch); err != nil {
			continue
		}
		status[ch] = v
	}
	d.Scope.SetChannelStatus(status)
	return nil, nil
}

func handleDisableScopeDMA(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Disable bool `json:"disable"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, d.Scope.DisableDMA(a.Disable)
}

func handleGetAcquisitionStatus(d *Dispatcher, args json.RawMessage) (any, error) {
	status, err := d.Scope.GetAcquisitionStatus()
	if err != nil {
		return nil, err
	}
	return status.String(), nil
}

func handleSetAcquisition(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Mode          int     `json:"mode"`
		TriggerMode   int     `json:"trigger_mode"`
		TriggerSource int     `json:"trigger_source"`
		TriggerLevel  float64 `json:"trigger_level"`
		LevelType     string  `json:"level_type"`
		TriggerPoint  uint32  `json:"trigger_point"`
		Prescaler     uint32  `json:"prescaler"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, d.Scope.SetAcquisition(scope.AcquisitionConfig{
		Mode:          scope.AcqMode(a.Mode),
		TriggerMode:   scope.TriggerMode(a.TriggerMode),
		TriggerSource: a.TriggerSource,
		TriggerLevel:  a.TriggerLevel,
		LevelType:     scope.LevelType(a.LevelType),
		TriggerPoint:  a.TriggerPoint,
		Prescaler:     a.Prescaler,
	})
}

func handleSetScopeAddress(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Address uint64 `json:"address"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, d.Scope.SetScopeAddress(a.Address)
}

// --- platform ---

// set_pl_clock targets the timing manager's cached PS/PL base clocks
// (§4.8), distinct from control.set_frequency which drives the bridge's
// sysfs-backed dynamic clock wrapper (§4.2) — the two names cover the two
// different clock-setting paths the original exposes under overlapping
// "platform" and "control" groups.
func handleSetPLClock(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		ID uint8  `json:"id"`
		Hz uint64 `json:"hz"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return nil, d.Timing.SetBaseClock(a.ID, a.Hz)
}

func handleGetClock(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Name string `json:"name"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	return d.Timing.GetGeneratedClock(a.Name)
}

func handleGetVersion(d *Dispatcher, args json.RawMessage) (any, error) {
	return Version, nil
}

func handleSetDebugLevel(d *Dispatcher, args json.RawMessage) (any, error) {
	var a struct {
		Level int `json:"level"`
	}
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	d.debugLevel = a.Level
	return nil, nil
}

func handleGetDebugLevel(d *Dispatcher, args json.RawMessage) (any, error) {
	return d.debugLevel, nil
}

// --- infrastructure ---

func handleNull(d *Dispatcher, args json.RawMessage) (any, error) {
	return nil, nil
}
