package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Show the channel directory of an instrument",
	Long: `Count the channels of a multi-channel supply and list the device name of
each one. Single channel instruments report their identification.

Examples:
  bench channels --address SIM0::psu::INSTR --profile rigol-dp832`,
	RunE: runChannels,
}

func init() {
	rootCmd.AddCommand(channelsCmd)
	addTargetFlags(channelsCmd)
}

func runChannels(cmd *cobra.Command, args []string) error {
	in, err := connect(cmd, true)
	if err != nil {
		return err
	}
	defer in.Close()

	names, err := in.ChannelNames()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if in.Capabilities().Has(driver.CapChannels) {
		count, err := in.CountChannels()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Channels: %d\n", count)
	}
	for i, name := range names {
		fmt.Fprintf(out, "  %d: %s\n", i+1, name)
	}
	return nil
}
