package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/dump"
	"github.com/OpenTraceLab/OpenTraceBDM/pkg/memmap"
)

var (
	dumpFormat string
	dumpRegion string
)

var dumpCmd = &cobra.Command{
	Use:   "dump [<start> <end> <file>]",
	Short: "Dump a memory range to a file",
	Long: `Read the half-open range [start, end) from the halted target and save it.
Words the target refuses are written as zeros and reported. Ctrl-C stops the dump
between words.

Examples:
  bdm dump 0x40000000 0x40100000 os.bin
  bdm dump 0x0 0x100000 bootrom.txt --format hex
  bdm dump --region flash --format ihex`,
	RunE: runDump,
}

var mapCmd = &cobra.Command{
	Use:   "map",
	Short: "Show the MCF54415 memory map",
	Args:  cobra.NoArgs,
	RunE:  runMap,
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(mapCmd)

	dumpCmd.Flags().StringVarP(&dumpFormat, "format", "f", "bin",
		"output format (bin, hex, srec, ihex)")
	dumpCmd.Flags().StringVarP(&dumpRegion, "region", "r", "",
		"dump a named region (bootrom, flash, sram) instead of a range")
}

func runDump(cmd *cobra.Command, args []string) error {
	format, err := dump.ParseFormat(dumpFormat)
	if err != nil {
		return err
	}

	var start, end uint64
	var path string
	switch {
	case dumpRegion != "" && len(args) == 0:
		d, ok := memmap.MCF54415.Dump(dumpRegion)
		if !ok {
			return errors.Errorf("unknown region %q", dumpRegion)
		}
		start, end, path = d.Start, d.End, d.File
	case dumpRegion == "" && len(args) == 3:
		if start, err = parseNumber(args[0]); err != nil {
			return err
		}
		if end, err = parseNumber(args[1]); err != nil {
			return err
		}
		path = args[2]
	default:
		return errors.New("give either <start> <end> <file> or --region")
	}
	if start >= end {
		return errors.New("start address must be less than end address")
	}

	session, port, err := connect()
	if err != nil {
		return err
	}
	defer release(session, port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Dumping 0x%X bytes from 0x%08X to 0x%08X into %s\n", end-start, start, end, path)
	res, err := dump.Read(ctx, session, start, end, func(done, total, addr uint64) {
		fmt.Fprintf(os.Stderr, "\rProgress: %d%% (0x%08X)", done*100/total, addr)
	})
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return err
	}
	for _, f := range res.Faults {
		fmt.Printf("Error reading at 0x%08X: %v\n", f.Address, f.Err)
	}
	if err := dump.SaveFile(path, format, res.Start, res.Data); err != nil {
		return err
	}
	fmt.Printf("Successfully dumped %d bytes to %s\n", len(res.Data), path)
	return nil
}

func runMap(cmd *cobra.Command, args []string) error {
	m := memmap.MCF54415
	fmt.Printf("%s Memory Map:\n", m.Part)
	for _, r := range m.Regions {
		fmt.Println(r.String())
	}
	fmt.Println()
	fmt.Println("Quick dump regions:")
	for _, d := range m.Dumps {
		fmt.Printf("  %-8s 0x%08X - 0x%08X -> %s\n", d.Name, d.Start, d.End, d.File)
	}
	return nil
}
