package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/instrument"
)

var discoverTimeout time.Duration

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Identify every instrument reachable through the backend",
	Long: `Enumerate every resource of the selected backend and ask each one for its
*IDN? identification. Instruments that do not answer, or answer with an
unreadable identification, are still listed with Unknown fields so their
address can be used.

Examples:
  # Identify the simulated bench
  bench discover

  # Everything on the host, GPIB through a Prologix controller
  bench discover --backend all --prologix-port /dev/ttyUSB0

  # Verbose output shows why an identification failed
  bench discover -v --backend usb`,
	RunE: runDiscover,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List resource strings without opening them",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(listCmd)

	discoverCmd.Flags().DurationVar(&discoverTimeout, "timeout", 10*time.Second,
		"give up enumerating after this long")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	mgr, err := createManager(backendName)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), discoverTimeout)
	defer cancel()

	devices, err := instrument.Discover(ctx, mgr, logger)
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(devices) == 0 {
		fmt.Fprintln(out, "No instruments found.")
		return nil
	}

	fmt.Fprintf(out, "Found %d instrument(s)\n\n", len(devices))
	fmt.Fprintf(out, "%-28s %-28s %-12s %-16s %s\n", "ADDRESS", "BRAND", "MODEL", "SERIAL", "FIRMWARE")
	for _, d := range devices {
		fmt.Fprintf(out, "%-28s %-28s %-12s %-16s %s\n", d.Address, d.Brand, d.Model, d.Serial, d.Firmware)
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	mgr, err := createManager(backendName)
	if err != nil {
		return err
	}

	addresses, err := mgr.ListResources(cmd.Context())
	if err != nil {
		// Partial results are still worth printing.
		logger.Warn("listing incomplete", "error", err)
	}
	out := cmd.OutOrStdout()
	if len(addresses) == 0 {
		fmt.Fprintln(out, "No resources found.")
		return nil
	}
	for _, address := range addresses {
		fmt.Fprintln(out, address)
	}
	return nil
}
