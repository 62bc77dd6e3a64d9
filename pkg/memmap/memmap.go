// Package memmap names the address regions of supported ColdFire parts.
package memmap

import (
	"fmt"
	"sort"
	"strings"
)

// Region is a half-open address range [Start, End).
type Region struct {
	Name        string
	Start       uint64
	End         uint64
	Description string
}

// Size is the region length in bytes.
func (r Region) Size() uint64 {
	return r.End - r.Start
}

// Contains reports whether addr falls inside the region.
func (r Region) Contains(addr uint64) bool {
	return addr >= r.Start && addr < r.End
}

func (r Region) String() string {
	return fmt.Sprintf("0x%08X - 0x%08X : %s", r.Start, r.End-1, r.Description)
}

// Map is the memory layout of one part.
type Map struct {
	Part    string
	Regions []Region

	// Dumps are the regions worth saving whole, with their default file
	// names.
	Dumps []Dump
}

// Dump is a region with the file name it is saved under.
type Dump struct {
	Region
	File string
}

// MCF54415 is the layout of the Freescale MCF54415 with the usual FlexBus
// wiring: external flash on CS0.
var MCF54415 = Map{
	Part: "MCF54415",
	Regions: []Region{
		{Name: "bootrom", Start: 0x00000000, End: 0x00100000, Description: "Boot ROM (1MB)"},
		{Name: "reserved", Start: 0x00100000, End: 0x00200000, Description: "Reserved"},
		{Name: "sram", Start: 0x20000000, End: 0x20020000, Description: "Internal SRAM (128KB)"},
		{Name: "cs0", Start: 0x40000000, End: 0x40100000, Description: "FlexBus CS0 (External Flash)"},
		{Name: "cs1", Start: 0x60000000, End: 0x60100000, Description: "FlexBus CS1"},
		{Name: "cs2", Start: 0x80000000, End: 0x80100000, Description: "FlexBus CS2"},
		{Name: "cs3", Start: 0xA0000000, End: 0xA0100000, Description: "FlexBus CS3"},
		{Name: "peripherals", Start: 0xFC000000, End: 0x100000000, Description: "Internal Peripherals"},
	},
	Dumps: []Dump{
		{Region: Region{Name: "bootrom", Start: 0x00000000, End: 0x00100000, Description: "Boot ROM"}, File: "mcf54415_bootrom.bin"},
		{Region: Region{Name: "flash", Start: 0x40000000, End: 0x40100000, Description: "External flash (main OS)"}, File: "mcf54415_flash.bin"},
		{Region: Region{Name: "sram", Start: 0x20000000, End: 0x20020000, Description: "Internal SRAM"}, File: "mcf54415_sram.bin"},
	},
}

// Notes lists where firmware usually lives.
var Notes = []string{
	"Boot ROM: 0x00000000 (reset vectors, boot code)",
	"External Flash: 0x40000000 (main OS image)",
	"Internal RAM: 0x20000000 (runtime data)",
}

// Lookup finds a region by name.
func (m Map) Lookup(name string) (Region, bool) {
	name = strings.ToLower(name)
	for _, r := range m.Regions {
		if r.Name == name {
			return r, true
		}
	}
	return Region{}, false
}

// Find returns the region containing addr.
func (m Map) Find(addr uint64) (Region, bool) {
	for _, r := range m.Regions {
		if r.Contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}

// Dump returns the named quick dump region. "all" is not a region; callers
// iterate Dumps for it.
func (m Map) Dump(name string) (Dump, bool) {
	name = strings.ToLower(name)
	for _, d := range m.Dumps {
		if d.Name == name {
			return d, true
		}
	}
	return Dump{}, false
}

// DumpNames lists the quick dump region names, sorted.
func (m Map) DumpNames() []string {
	names := make([]string, 0, len(m.Dumps))
	for _, d := range m.Dumps {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}
