package cli

import (
	"errors"
	"time"

	"github.com/spf13/cobra"

	"prediction-arena/internal/app"
)

var (
	exportSeed int64
	exportCSV  string
	exportPNG  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a seeded match price path as CSV and/or PNG",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportCSV == "" && exportPNG == "" {
			return errors.New("at least one of --csv or --png must be provided")
		}

		seed := exportSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}

		opts := app.ExportOptions{
			Seed:    seed,
			CSVPath: exportCSV,
			PNGPath: exportPNG,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().Int64Var(&exportSeed, "seed", 0, "RNG seed (0 picks a random seed)")
	exportCmd.Flags().StringVar(&exportCSV, "csv", "", "Path to write CSV output")
	exportCmd.Flags().StringVar(&exportPNG, "png", "", "Path to write PNG chart")
}
