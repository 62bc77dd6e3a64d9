package cmd

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/bdm"
)

var readCmd = &cobra.Command{
	Use:   "read <addr> [count]",
	Short: "Read 32-bit words from target memory",
	Long: `Connect to the target (reset, sync, halt) and read count longwords starting at
addr. Addresses are hexadecimal and must be 4-byte aligned.

Examples:
  bdm read 0x20000000
  bdm read 40000000 16 --adapter ftdi`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runRead,
}

var writeCmd = &cobra.Command{
	Use:   "write <addr> <value>",
	Short: "Write a 32-bit word to target memory",
	Args:  cobra.ExactArgs(2),
	RunE:  runWrite,
}

var regsCmd = &cobra.Command{
	Use:   "regs",
	Short: "Halt the target and print its registers",
	Args:  cobra.NoArgs,
	RunE:  runRegs,
}

func init() {
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(regsCmd)
}

func runRead(cmd *cobra.Command, args []string) error {
	addr, err := parseNumber32(args[0])
	if err != nil {
		return err
	}
	count := 1
	if len(args) == 2 {
		if count, err = strconv.Atoi(args[1]); err != nil || count < 1 {
			return errors.Errorf("invalid count %q", args[1])
		}
	}
	if addr%4 != 0 {
		return &bdm.AlignmentError{Address: addr}
	}

	session, port, err := connect()
	if err != nil {
		return err
	}
	defer release(session, port)

	for i := 0; i < count; i++ {
		cur := addr + uint32(i*4)
		v, err := session.ReadMemory32(cur)
		if err != nil {
			return err
		}
		fmt.Printf("0x%08X: 0x%08X\n", cur, v)
	}
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	addr, err := parseNumber32(args[0])
	if err != nil {
		return err
	}
	value, err := parseNumber32(args[1])
	if err != nil {
		return err
	}
	if addr%4 != 0 {
		return &bdm.AlignmentError{Address: addr}
	}

	session, port, err := connect()
	if err != nil {
		return err
	}
	defer release(session, port)

	if err := session.WriteMemory32(addr, value); err != nil {
		return err
	}
	if verbose {
		v, err := session.ReadMemory32(addr)
		if err != nil {
			return err
		}
		fmt.Printf("Read back 0x%08X\n", v)
	}
	fmt.Printf("Memory[0x%08X] = 0x%08X\n", addr, value)
	return nil
}

func runRegs(cmd *cobra.Command, args []string) error {
	session, port, err := connect()
	if err != nil {
		return err
	}
	defer release(session, port)

	regs, err := session.ReadRegisters()
	if err != nil {
		return err
	}
	fmt.Println("CPU Registers:")
	for i := 0; i < 8; i++ {
		fmt.Printf("D%d: 0x%08X    A%d: 0x%08X\n", i, regs[i], i, regs[i+8])
	}
	for _, cr := range bdm.ControlRegisters() {
		v, err := session.ReadControlRegister(cr)
		if err != nil {
			return err
		}
		fmt.Printf("%-6s 0x%08X\n", cr.String()+":", v)
	}
	return nil
}
