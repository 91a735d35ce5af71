package emulator

import (
	"encoding/json"
	"fmt"
	"sort"

	"hilctl/internal/specmodel"
)

// CommandType enumerates the interactive_command.type values §4.7 names.
type CommandType string

const (
	CmdAddBreakpoint    CommandType = "add_breakpoint"
	CmdRemoveBreakpoint CommandType = "remove_breakpoint"
	CmdStepOver         CommandType = "step_over"
	CmdResume           CommandType = "resume"
	CmdInitialize       CommandType = "initialize"
	CmdStart            CommandType = "start"
	CmdGetBreakpoints   CommandType = "get_breakpoints"
)

// InteractiveCommand is the §4.7 run-command entry's argument shape.
type InteractiveCommand struct {
	Type              CommandType            `json:"type"`
	ID                string                 `json:"id"`
	TargetInstruction uint32                 `json:"target_instruction"`
	Spec              specmodel.EmulatorSpec `json:"spec"`
}

// debugSession is one hil_debug client's paused-emulation state, keyed
// by the interactive_command.id field across calls. Breakpoints are
// instruction indices shared across every core's program; the paused
// program counter is tracked per core, mirroring a breakpoint map keyed
// the same way on the original interactive data generator.
type debugSession struct {
	spec        specmodel.EmulatorSpec
	breakpoints map[uint32]struct{}
	paused      map[string]uint32
}

func newDebugSession(spec specmodel.EmulatorSpec) *debugSession {
	s := &debugSession{
		spec:        spec,
		breakpoints: make(map[uint32]struct{}),
		paused:      make(map[string]uint32, len(spec.Cores)),
	}
	for _, c := range spec.Cores {
		s.paused[c.ID] = 0
	}
	return s
}

// HandleInteractive dispatches one interactive_command, mirroring the
// original's run_command switch. initialize creates the session named
// by cmd.ID; every other command requires that session to already
// exist.
func (e *Emulator) HandleInteractive(cmd InteractiveCommand) (string, error) {
	if cmd.Type == CmdInitialize {
		e.sessions[cmd.ID] = newDebugSession(cmd.Spec)
		return "", nil
	}

	session, ok := e.sessions[cmd.ID]
	if !ok {
		return "", fmt.Errorf("hil_debug: unknown session %q", cmd.ID)
	}

	switch cmd.Type {
	case CmdStart:
		for id := range session.paused {
			session.paused[id] = 0
		}
		return "", nil
	case CmdAddBreakpoint:
		session.breakpoints[cmd.TargetInstruction] = struct{}{}
		return "", nil
	case CmdRemoveBreakpoint:
		delete(session.breakpoints, cmd.TargetInstruction)
		return "", nil
	case CmdGetBreakpoints:
		return encodeBreakpoints(session.breakpoints), nil
	case CmdStepOver:
		session.stepAll(1)
		return encodePaused(session.paused), nil
	case CmdResume:
		session.resumeAll()
		return encodePaused(session.paused), nil
	default:
		return "", fmt.Errorf("hil_debug: unknown command %q", cmd.Type)
	}
}

// stepAll advances every core's paused PC by n instructions, clamped to
// its program length.
func (s *debugSession) stepAll(n uint32) {
	for _, core := range s.spec.Cores {
		pc := s.paused[core.ID] + n
		if max := uint32(len(core.Program)); pc > max {
			pc = max
		}
		s.paused[core.ID] = pc
	}
}

// resumeAll advances every core's paused PC to its next breakpoint, or
// to the end of its program if none remains ahead.
func (s *debugSession) resumeAll() {
	for _, core := range s.spec.Cores {
		pc := s.paused[core.ID]
		end := uint32(len(core.Program))
		for pc < end {
			pc++
			if _, hit := s.breakpoints[pc]; hit {
				break
			}
		}
		s.paused[core.ID] = pc
	}
}

func encodeBreakpoints(bp map[uint32]struct{}) string {
	list := make([]uint32, 0, len(bp))
	for k := range bp {
		list = append(list, k)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	body, _ := json.Marshal(list)
	return string(body)
}

func encodePaused(paused map[string]uint32) string {
	body, _ := json.Marshal(paused)
	return string(body)
}
