package cli

import (
	"github.com/spf13/cobra"
)

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Run one gap-interpolation pass over the stored snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Fill(cmd.Context())
	},
}
