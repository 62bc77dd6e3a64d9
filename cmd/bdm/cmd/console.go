package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBDM/pkg/console"
)

var outputDir string

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Interactive BDM console",
	Long: `Open the adapter and read console commands from standard input. Type 'help'
inside the console for the command list; 'init' resets, synchronizes and halts the
target.

Examples:
  bdm console --adapter rpio
  echo -e "init\nregs" | bdm console --adapter simulator`,
	Args: cobra.NoArgs,
	RunE: runConsole,
}

func init() {
	rootCmd.AddCommand(consoleCmd)

	consoleCmd.Flags().StringVarP(&outputDir, "dir", "d", ".",
		"directory for dumpfile and quickdump output")
}

func runConsole(cmd *cobra.Command, args []string) error {
	session, port, prof, err := openSession()
	if err != nil {
		return err
	}
	defer port.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := console.New(session, os.Stdin, os.Stdout,
		console.WithPins(prof.Pins),
		console.WithOutputDir(outputDir),
		console.WithPrompt(console.IsInteractive(os.Stdin)))
	return c.Run(ctx)
}
