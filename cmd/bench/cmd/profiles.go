package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/OpenTraceLab/OpenTraceBench/pkg/driver"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List driver profiles",
	Long: `List the built-in driver profiles and those defined under profiles: in the
config file, with the properties each one supports.`,
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	for _, p := range driver.Profiles() {
		fmt.Fprintf(out, "%-24s %-28s %s\n", p.Name, p.Descriptor.Kind(), p.Description)
		if verbose {
			fmt.Fprintf(out, "%-24s capabilities: %s\n", "", p.Descriptor.Capabilities())
		}
	}
	return nil
}
