package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/markbryant-rw/aftercare/internal/app"
	"github.com/markbryant-rw/aftercare/internal/importer"
)

func matchCmd(cfgPath *string) *cobra.Command {
	var externalCSV, internalCSV string

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Reconcile an external CRM export against internal records",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(*cfgPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.Stop(ctx)

			external, err := importer.ReadRecordsCSV(externalCSV)
			if err != nil {
				return err
			}
			internal, err := importer.ReadRecordsCSV(internalCSV)
			if err != nil {
				return err
			}

			matches, err := a.Importer.Reconcile(ctx, external, internal)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "SOURCE\tTARGET\tSCORE\tCONFIDENCE\tADDRESS")
			for _, m := range matches {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", m.SourceID, m.TargetID, m.Score, m.Confidence, m.SourceAddress)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Printf("\n%d of %d external records matched\n", len(matches), len(external))
			return nil
		},
	}

	cmd.Flags().StringVar(&externalCSV, "external", "", "CSV of external records (id,address,owner_name,owner_email)")
	cmd.Flags().StringVar(&internalCSV, "internal", "", "CSV of internal records (id,address,owner_name,owner_email)")
	_ = cmd.MarkFlagRequired("external")
	_ = cmd.MarkFlagRequired("internal")
	return cmd
}
