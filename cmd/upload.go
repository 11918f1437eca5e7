package cmd

import (
	"fmt"

	"github.com/smazurov/tc420/internal/program"
	"github.com/spf13/cobra"
)

// CreateUploadCmd creates the upload command.
func CreateUploadCmd(newDevice DeviceFactory) *cobra.Command {
	var sortSteps bool
	var syncFirst bool

	cmd := &cobra.Command{
		Use:   "upload <program.toml|program.yaml|program.pmf>",
		Short: "Upload a program file to the controller",
		Long: `Reads a TOML or YAML program file, or a .pmf project exported by the PLed software, ` +
			`and replaces the program stored on the controller.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := program.LoadFile(args[0])
			if err != nil {
				return err
			}
			if sortSteps {
				p = p.Sorted()
			}

			dev, err := newDevice()
			if err != nil {
				return err
			}
			if syncFirst {
				if err := dev.Sequencer.SyncTime(cmd.Context()); err != nil {
					return err
				}
			}

			timing := dev.Sequencer.Timing()
			fmt.Fprintf(cmd.OutOrStdout(), "Uploading %q: %d steps (about %s)\n",
				p.Name, len(p.Steps), timing.UploadDuration(len(p.Steps)))
			if err := dev.Sequencer.UploadProgram(cmd.Context(), p.Steps); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Upload complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&sortSteps, "sort", false, "Order steps by time of day before uploading")
	cmd.Flags().BoolVar(&syncFirst, "sync", false, "Synchronize the clock before uploading")

	return cmd
}
