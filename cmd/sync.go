package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CreateSyncCmd creates the sync command.
func CreateSyncCmd(newDevice DeviceFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Set the controller clock to local time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dev, err := newDevice()
			if err != nil {
				return err
			}
			if err := dev.Sequencer.SyncTime(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Clock synchronized")
			return nil
		},
	}
}
