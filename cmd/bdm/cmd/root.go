package cmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose       bool
	adapterType   string
	profileRef    string
	adapterSerial string
	maxRetries    int
	simMemory     []string
)

var rootCmd = &cobra.Command{
	Use:   "bdm",
	Short: "ColdFire BDM debugger over bit-banged GPIO",
	Long: `A ColdFire Background Debug Mode tool. It drives the five BDM lines
(DSI, DSO, DSCLK, BKPT, RESET) from Raspberry Pi GPIO or an FTDI chip in
bit-bang mode, halts the core and reads or writes memory and registers.

Examples:
  bdm interfaces                                     # List usable adapters
  bdm console --adapter rpio                         # Interactive console
  bdm read 0x20000000 4 --adapter ftdi               # Read four longwords
  bdm dump 0x40000000 0x40100000 os.bin              # Dump external flash
  bdm dump --region bootrom --format srec            # Dump the boot ROM`,
	Version: "0.9.0",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// glog reads its flags from the standard flag set.
		if err := flag.CommandLine.Parse(nil); err != nil {
			return err
		}
		if verbose && !cmd.Flags().Changed("v") {
			flag.Set("v", "1")
		}
		return nil
	},
}

// Execute runs the root command
func Execute() {
	defer glog.Flush()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		glog.Flush()
		os.Exit(1)
	}
}

func init() {
	flag.Set("logtostderr", "true")
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "verbose output (same as --v=1)")
	rootCmd.PersistentFlags().StringVarP(&adapterType, "adapter", "a", "",
		"adapter type (simulator, rpio, periph, ftdi); defaults to the profile's")
	rootCmd.PersistentFlags().StringVarP(&profileRef, "profile", "p", "",
		"board profile: built-in name or file[:name]")
	rootCmd.PersistentFlags().StringVarP(&adapterSerial, "serial", "s", "",
		"adapter serial number (if multiple adapters)")
	rootCmd.PersistentFlags().IntVar(&maxRetries, "retries", -1,
		"not-ready retry ceiling; -1 keeps the profile's")
	rootCmd.PersistentFlags().StringSliceVar(&simMemory, "sim-mem", nil,
		"simulator: preload memory (hex addr=value, e.g., 0x20000000=0xDEADBEEF)")
}
