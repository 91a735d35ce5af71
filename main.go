// Command hilctl is the HIL deployer driver's process entry point: it
// wires the bus accessor, bridge, scope manager, deployer, emulator and
// timing manager together behind the command dispatcher, then serves
// the §6.1 wire protocol over TCP.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"hilctl/evbus"
	"hilctl/internal/bridge"
	"hilctl/internal/busaccess"
	"hilctl/internal/config"
	"hilctl/internal/deployer"
	"hilctl/internal/dispatcher"
	"hilctl/internal/emulator"
	"hilctl/internal/scope"
	"hilctl/internal/timing"
)

func main() {
	archFlag := flag.String("arch", "zynq", "address family: zynq or zynqmp")
	listenAddr := flag.String("listen", ":9292", "TCP address the command dispatcher listens on")
	bitstreamDir := flag.String("bitstream-dir", "/lib/firmware", "directory load_bitstream resolves names against")
	controlDev := flag.String("control-dev", "", "control-plane mmap device file; empty runs sink-only")
	coresDev := flag.String("cores-dev", "", "cores-plane mmap device file; empty runs sink-only")
	mapSize := flag.Uint64("map-size", 0x10000, "bytes mapped per device file region")
	scopeDev := flag.String("scope-dev", "", "scope character device read_data reads DMA blocks from")
	fpgaTrigger := flag.String("fpga-manager-trigger", "", "sysfs node bridge.LoadBitstream writes to request a program cycle")
	fpgaState := flag.String("fpga-manager-state", "", "sysfs node bridge.LoadBitstream polls for completion")
	clockSysfsFmt := flag.String("clock-sysfs-fmt", "", "fmt pattern (takes a clock id) for set_frequency's sysfs node")
	dmaBufferAddrPath := flag.String("dma-buffer-addr-path", "", "sysfs node exposing the scope DMA buffer's physical address")
	baseClocksFlag := flag.String("base-clocks", "100000000,100000000,100000000,100000000", "comma-separated initial frequencies for the 4 PS/PL base clocks")
	flag.Parse()

	arch := config.Architecture(*archFlag)
	layout, err := config.DefaultLayout(arch)
	if err != nil {
		log.Fatalf("hilctl: loading default layout for %q: %v", arch, err)
	}

	baseClocks, err := parseBaseClocks(*baseClocksFlag)
	if err != nil {
		log.Fatalf("hilctl: %v", err)
	}

	acc := openAccessor(arch, *controlDev, *coresDev, *mapSize)

	br := bridge.New(acc, arch)
	br.BitstreamDir = *bitstreamDir
	br.FPGAManagerTrigger = *fpgaTrigger
	br.FPGAManagerState = *fpgaState
	br.ClockSysfsFmt = *clockSysfsFmt
	br.DMABufferAddrPath = *dmaBufferAddrPath

	dep := deployer.New(acc, layout, true)
	// The scope's own trigger/acquisition register offsets aren't part of
	// the layout map (internal/scope's Registers is deliberately a
	// caller-supplied table, see DESIGN.md); only Base is derived from the
	// layout here, the rest default to 0 until a real offset table exists.
	scp := scope.New(acc, scope.Registers{Base: layout.Bases.ScopeMux})
	em := emulator.New()
	tm := timing.New(acc, baseClocks)

	bus := evbus.NewBus(4)
	statusConn := bus.NewConnection("main")
	logStatus(bus)

	d := &dispatcher.Dispatcher{
		Bridge:   br,
		Deployer: dep,
		Scope:    scp,
		Emulator: em,
		Timing:   tm,
		Status:   statusConn,
	}
	if *scopeDev != "" {
		f, err := os.Open(*scopeDev)
		if err != nil {
			log.Fatalf("hilctl: opening scope device %s: %v", *scopeDev, err)
		}
		defer f.Close()
		d.ScopeDevice = f
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Printf("hilctl: caught %v, shutting down", sig)
		os.Exit(0)
	}()

	serve(*listenAddr, d)
}

func parseBaseClocks(s string) ([4]uint64, error) {
	var out [4]uint64
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return out, fmt.Errorf("base-clocks: expected 4 comma-separated values, got %d", len(parts))
	}
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return out, fmt.Errorf("base-clocks: %w", err)
		}
		out[i] = v
	}
	return out, nil
}

// openAccessor builds a live-backed DualAccessor when both device files
// are given, or a sink-only accessor otherwise (bring-up / the
// hardware-simulation dump path never needs live hardware).
func openAccessor(arch config.Architecture, controlDev, coresDev string, mapSize uint64) busaccess.Accessor {
	if controlDev == "" || coresDev == "" {
		return busaccess.NewSinkAccessor()
	}
	bases, err := config.LiveBusBases(arch)
	if err != nil {
		log.Fatalf("hilctl: %v", err)
	}
	live, err := busaccess.OpenLive(controlDev, bases.Control, coresDev, bases.Cores, mapSize)
	if err != nil {
		log.Fatalf("hilctl: opening live accessor: %v", err)
	}
	return busaccess.NewDualAccessor(live)
}

// logStatus subscribes to every internal status topic and logs it; a
// real deployment might fan this out to metrics or a supervisor instead.
func logStatus(bus *evbus.Bus) {
	conn := bus.NewConnection("status-log")
	sub := conn.Subscribe(evbus.T(evbus.Token("#")))
	go func() {
		for msg := range sub.Channel() {
			log.Printf("hilctl: status %v = %v", msg.Topic, msg.Payload)
		}
	}()
}

// serve implements the §6.1 framing: a 10-byte ASCII decimal length
// header followed by the request payload, and a 4-byte big-endian length
// prefix on each response body.
func serve(addr string, d *dispatcher.Dispatcher) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		log.Fatalf("hilctl: listening on %s: %v", addr, err)
	}
	log.Printf("hilctl: listening on %s", addr)
	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("hilctl: accept: %v", err)
			continue
		}
		go handleConn(conn, d)
	}
}

func handleConn(conn net.Conn, d *dispatcher.Dispatcher) {
	defer conn.Close()
	for {
		req, err := readFramed(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("hilctl: %v: %v", conn.RemoteAddr(), err)
			}
			return
		}
		resp := d.Dispatch(req)
		if err := writeFramed(conn, resp); err != nil {
			log.Printf("hilctl: %v: writing response: %v", conn.RemoteAddr(), err)
			return
		}
	}
}

func readFramed(r io.Reader) ([]byte, error) {
	var lenHdr [10]byte
	if _, err := io.ReadFull(r, lenHdr[:]); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(lenHdr[:])))
	if err != nil {
		return nil, fmt.Errorf("malformed length header: %w", err)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return body, nil
}

func writeFramed(w io.Writer, body []byte) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}
