package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CreateStatusCmd creates the status command.
func CreateStatusCmd(newDevice DeviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the controller is attached",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dev, err := newDevice()
			if err != nil {
				return err
			}

			state := "not found"
			if dev.Sequencer.IsDeviceConnected() {
				state = "connected"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "TC420 %04x:%04x %s (timing %s)\n",
				dev.Transport.VendorID(), dev.Transport.ProductID(), state, dev.Sequencer.Timing().Name)
			return nil
		},
	}
}
