package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"clantracker/internal/app"
)

var (
	exportCSVPath   string
	exportPNGPath   string
	exportFrom      string
	exportTo        string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export historical snapshots as CSV and/or PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := app.ExportOptions{
			CSVPath:   exportCSVPath,
			PNGPath:   exportPNGPath,
			MaxPoints: exportMaxPoints,
		}

		if exportFrom != "" {
			from, err := time.Parse(time.RFC3339, exportFrom)
			if err != nil {
				return fmt.Errorf("parse --from: %w", err)
			}
			opts.From = &from
		}
		if exportTo != "" {
			to, err := time.Parse(time.RFC3339, exportTo)
			if err != nil {
				return fmt.Errorf("parse --to: %w", err)
			}
			opts.To = &to
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Write snapshots to this CSV file")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Render snapshots to this PNG file")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "Range start (RFC3339)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Range end (RFC3339)")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (0 = config default)")
}
