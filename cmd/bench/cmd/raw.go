package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var writeCmd = &cobra.Command{
	Use:   "write <command>...",
	Short: "Send a raw command",
	Long: `Send a command to the instrument verbatim. Several arguments are joined
with spaces.

Examples:
  bench write "*CLS" --address SIM0::dmm::INSTR
  bench write SYST:REM --gpib 5 --backend gpib`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWrite,
}

var queryCmd = &cobra.Command{
	Use:   "query <command>...",
	Short: "Send a raw query and print the reply",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

var identifyCmd = &cobra.Command{
	Use:   "identify",
	Short: "Print the identification of one instrument",
	RunE:  runIdentify,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Send *RST",
	RunE:  runReset,
}

func init() {
	for _, c := range []*cobra.Command{writeCmd, queryCmd, identifyCmd, resetCmd} {
		rootCmd.AddCommand(c)
		addTargetFlags(c)
	}
}

func runWrite(cmd *cobra.Command, args []string) error {
	in, err := connect(cmd, false)
	if err != nil {
		return err
	}
	defer in.Close()

	return in.Write(strings.Join(args, " "))
}

func runQuery(cmd *cobra.Command, args []string) error {
	in, err := connect(cmd, false)
	if err != nil {
		return err
	}
	defer in.Close()

	reply, err := in.Query(strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), reply)
	return nil
}

func runIdentify(cmd *cobra.Command, args []string) error {
	in, err := connect(cmd, false)
	if err != nil {
		return err
	}
	defer in.Close()

	dev, err := in.Identify()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Address:  %s\n", dev.Address)
	fmt.Fprintf(out, "Brand:    %s\n", dev.Brand)
	fmt.Fprintf(out, "Model:    %s\n", dev.Model)
	fmt.Fprintf(out, "Serial:   %s\n", dev.Serial)
	fmt.Fprintf(out, "Firmware: %s\n", dev.Firmware)
	return nil
}

func runReset(cmd *cobra.Command, args []string) error {
	in, err := connect(cmd, false)
	if err != nil {
		return err
	}
	defer in.Close()

	return in.Reset()
}
