package memmap

import "testing"

func TestRegionsDoNotOverlap(t *testing.T) {
	regions := MCF54415.Regions
	for i := 1; i < len(regions); i++ {
		if regions[i].Start < regions[i-1].End {
			t.Fatalf("%s overlaps %s", regions[i].Name, regions[i-1].Name)
		}
	}
	last := regions[len(regions)-1]
	if last.End != 1<<32 {
		t.Fatalf("map ends at 0x%X, want the top of the 32-bit space", last.End)
	}
}

func TestFind(t *testing.T) {
	cases := map[uint64]string{
		0x00000000: "bootrom",
		0x000FFFFC: "bootrom",
		0x2001FFFC: "sram",
		0x40000400: "cs0",
		0xFFFFFFFC: "peripherals",
	}
	for addr, want := range cases {
		r, ok := MCF54415.Find(addr)
		if !ok || r.Name != want {
			t.Fatalf("Find(0x%08X) = %q, %v; want %q", addr, r.Name, ok, want)
		}
	}
	if _, ok := MCF54415.Find(0x30000000); ok {
		t.Fatalf("Find(0x30000000) found a region in a hole")
	}
}

func TestQuickDumps(t *testing.T) {
	d, ok := MCF54415.Dump("FLASH")
	if !ok {
		t.Fatalf("Dump(FLASH) not found")
	}
	if d.Start != 0x40000000 || d.Size() != 0x100000 || d.File != "mcf54415_flash.bin" {
		t.Fatalf("flash dump = %+v", d)
	}
	if _, ok := MCF54415.Dump("all"); ok {
		t.Fatalf("all is not a single region")
	}
	names := MCF54415.DumpNames()
	if len(names) != 3 || names[0] != "bootrom" || names[2] != "sram" {
		t.Fatalf("DumpNames() = %v", names)
	}
}

func TestRegionString(t *testing.T) {
	r, _ := MCF54415.Lookup("sram")
	if got := r.String(); got != "0x20000000 - 0x2001FFFF : Internal SRAM (128KB)" {
		t.Fatalf("String() = %q", got)
	}
}
