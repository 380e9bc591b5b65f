package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func newRunCmd(c *cli) *cobra.Command {
	var (
		exportPath string
		printJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `The run command extracts the students, courses and jobs tables from the
source database, cleans them, audits student references to jobs and courses,
and replaces the cleaned tables in the destination database.

Data-quality findings are logged as warnings and never fail the run. The
command exits non-zero when a table cannot be read, cleaned or written.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if exportPath != "" {
				c.cfg.Pipeline.ExportPath = exportPath
				if err := c.cfg.Validate(); err != nil {
					return err
				}
			}

			a, err := newApp(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			summary, runErr := a.runner.Run(cmd.Context())
			if printJSON && summary != nil {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(summary); err != nil {
					return err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&exportPath, "export", "", "also write cleaned tables and diagnostics to this .xlsx file")
	cmd.Flags().BoolVar(&printJSON, "json", false, "print the run summary as JSON to stdout")
	return cmd
}
