package cli

import (
	"github.com/spf13/cobra"
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Run one retention pass over the stored history",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Prune(cmd.Context())
	},
}
