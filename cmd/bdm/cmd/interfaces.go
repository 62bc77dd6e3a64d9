package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/adapter"
	"github.com/OpenTraceLab/OpenTraceBDM/pkg/profile"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List available BDM adapters",
	Long: `Scan the host for FTDI chips and local GPIO blocks and print a summary of the
adapters that can drive a BDM header. Use this to verify connectivity or select an
adapter before launching other commands.`,
	RunE: runInterfaces,
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List built-in board profiles",
	RunE:  runProfiles,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
	rootCmd.AddCommand(profilesCmd)
}

func runInterfaces(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	infos, err := adapter.DiscoverInterfaces(ctx)
	if err != nil {
		return errors.Wrap(err, "discover interfaces")
	}

	if len(infos) == 0 {
		fmt.Println("No interfaces found.")
		return nil
	}

	fmt.Println("Detected BDM interfaces:")
	for _, iface := range infos {
		fmt.Printf("  - %s [%s]", iface.Label(), iface.Kind)
		if iface.VendorID != 0 {
			fmt.Printf(" (VID:PID %04X:%04X)", iface.VendorID, iface.ProductID)
		}
		if iface.Serial != "" {
			fmt.Printf(" serial %s", iface.Serial)
		}
		fmt.Println()
	}

	return nil
}

func runProfiles(cmd *cobra.Command, args []string) error {
	fmt.Println("Built-in profiles:")
	for _, name := range profile.BuiltinNames() {
		p, _ := profile.Builtin(name)
		fmt.Printf("  - %-10s adapter=%-9s DSI=%d DSO=%d DSCLK=%d BKPT=%d RESET=%d clock=%v\n",
			p.Name, p.Adapter, p.Pins.DSI, p.Pins.DSO, p.Pins.DSCLK, p.Pins.BKPT, p.Pins.RESET, p.Timing.Period())
	}
	return nil
}
