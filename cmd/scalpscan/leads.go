package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-scalpscan/internal/config"
	"github.com/teslashibe/go-scalpscan/pkg/intake"
)

func newLeadsCmd(g *globalFlags) *cobra.Command {
	var leadsPath string

	cmd := &cobra.Command{
		Use:   "leads",
		Short: "Inspect and export captured leads",
	}
	cmd.PersistentFlags().StringVar(&leadsPath, "leads", config.LeadsPath(), "Lead store JSON file (env LEADS_PATH)")

	list := &cobra.Command{
		Use:   "list",
		Short: "List leads, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := intake.NewJSONStore(leadsPath)
			if err != nil {
				return err
			}
			leads, err := store.List()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "CREATED\tNAME\tEMAIL\tSESSION\tFORWARDED")
			for _, l := range leads {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%v\n",
					l.CreatedAt.Format("2006-01-02 15:04"), l.Patient.FullName(), l.Patient.Email, l.SessionID, l.Forwarded)
			}
			return w.Flush()
		},
	}

	var out string
	export := &cobra.Command{
		Use:   "export",
		Short: "Export leads to a parquet file",
		Example: `  scalpscan leads export --out leads.parquet`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := intake.NewJSONStore(leadsPath)
			if err != nil {
				return err
			}
			leads, err := store.List()
			if err != nil {
				return err
			}
			f, err := os.Create(out)
			if err != nil {
				return err
			}
			if err := intake.ExportParquet(f, leads); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Printf("exported %d leads to %s\n", len(leads), out)
			return nil
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "leads.parquet", "Output parquet file")

	cmd.AddCommand(list, export)
	return cmd
}
