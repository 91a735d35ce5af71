package busaccess

import (
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// liveMu is the single process-wide mutex serializing live MMIO (§4.1:
// "A single process-wide mutex serializes live access").
var liveMu sync.Mutex

// region is one memory-mapped device file plus the physical base address
// it was opened at.
type region struct {
	file *os.File
	mem  []byte
	base uint64
	size uint64
}

func openRegion(path string, base, size uint64) (*region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_SYNC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	mem, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &region{file: f, mem: mem, base: base, size: size}, nil
}

func (r *region) contains(addr uint64) bool {
	return addr >= r.base && addr < r.base+r.size
}

func (r *region) close() error {
	if err := unix.Munmap(r.mem); err != nil {
		return err
	}
	return r.file.Close()
}

// LiveAccessor maps the control-plane and cores-plane device files at
// their architecture-specific physical offsets (ZYNQ: 0x43C00000 /
// 0x83C00000; ZYNQMP: 0x400000000 / 0x500000000; §4.1) and performs real
// word-level MMIO through them.
type LiveAccessor struct {
	control *region
	cores   *region
}

// OpenLive maps controlPath at controlBase and coresPath at coresBase,
// each mapSize bytes. Base addresses typically come from
// internal/config.LiveBusBases for the target architecture.
func OpenLive(controlPath string, controlBase uint64, coresPath string, coresBase uint64, mapSize uint64) (*LiveAccessor, error) {
	ctrl, err := openRegion(controlPath, controlBase, mapSize)
	if err != nil {
		return nil, err
	}
	cores, err := openRegion(coresPath, coresBase, mapSize)
	if err != nil {
		ctrl.close()
		return nil, err
	}
	installFaultHandler()
	return &LiveAccessor{control: ctrl, cores: cores}, nil
}

func (l *LiveAccessor) Close() error {
	errCores := l.cores.close()
	errCtrl := l.control.close()
	if errCores != nil {
		return errCores
	}
	return errCtrl
}

func (l *LiveAccessor) regionFor(addr uint64) (*region, bool) {
	if l.cores.contains(addr) {
		return l.cores, true
	}
	if l.control.contains(addr) {
		return l.control, true
	}
	return nil, false
}

// fatalBelowBase terminates the process: "any address below its base is
// a fatal error" (§4.1) is not a recoverable condition — it signals a
// layout-map/driver mismatch, not a malformed client request.
func fatalBelowBase(addr uint64) {
	log.Fatalf("busaccess: address 0x%X resolves below every mapped region base", addr)
}

func (l *LiveAccessor) storeWord(addr uint64, data uint32) error {
	liveMu.Lock()
	defer liveMu.Unlock()
	r, ok := l.regionFor(addr)
	if !ok {
		fatalBelowBase(addr)
	}
	idx := (addr - r.base) / 4
	binary.LittleEndian.PutUint32(r.mem[idx*4:idx*4+4], data)
	return nil
}

func (l *LiveAccessor) loadWord(addr uint64) (uint32, error) {
	liveMu.Lock()
	defer liveMu.Unlock()
	r, ok := l.regionFor(addr)
	if !ok {
		fatalBelowBase(addr)
	}
	idx := (addr - r.base) / 4
	return binary.LittleEndian.Uint32(r.mem[idx*4 : idx*4+4]), nil
}

func (l *LiveAccessor) WriteRegister(addresses []uint64, data uint32) error {
	return writeRegisterVia(l, addresses, data)
}

func (l *LiveAccessor) ReadRegister(addresses []uint64) (uint32, error) {
	return readRegisterVia(l, addresses)
}

func (l *LiveAccessor) LoadProgram(address uint64, words []uint32) error {
	return loadProgramVia(l, address, words)
}

var faultHandlerOnce sync.Once

// installFaultHandler arms a best-effort SIGSEGV/SIGBUS watcher: a fault
// while touching mapped device memory is unrecoverable state and the
// process must abort rather than keep dispatching commands (§4.1, §7).
func installFaultHandler() {
	faultHandlerOnce.Do(func() {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGSEGV, syscall.SIGBUS)
		go func() {
			sig := <-ch
			log.Fatalf("busaccess: fatal signal %v touching mapped device memory", sig)
		}()
	})
}
