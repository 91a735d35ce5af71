package config

import "testing"

func TestLiveBusBases(t *testing.T) {
	zynq, err := LiveBusBases(Zynq)
	if err != nil || zynq.Control != 0x43C00000 || zynq.Cores != 0x83C00000 {
		t.Fatalf("zynq bases wrong: %+v err=%v", zynq, err)
	}
	mp, err := LiveBusBases(ZynqMP)
	if err != nil || mp.Control != 0x400000000 || mp.Cores != 0x500000000 {
		t.Fatalf("zynqmp bases wrong: %+v err=%v", mp, err)
	}
	if _, err := LiveBusBases("nope"); err == nil {
		t.Fatal("expected error for unknown architecture")
	}
}

func TestDefaultLayoutDecodes(t *testing.T) {
	for _, arch := range []Architecture{Zynq, ZynqMP} {
		l, err := DefaultLayout(arch)
		if err != nil {
			t.Fatalf("DefaultLayout(%s): %v", arch, err)
		}
		if l.Bases.CoresROM == 0 {
			t.Fatalf("DefaultLayout(%s): zero cores_rom base", arch)
		}
		if l.Offsets.DMA == 0 {
			t.Fatalf("DefaultLayout(%s): zero dma offset", arch)
		}
	}
}
