package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markbryant-rw/aftercare/internal/app"
	"github.com/markbryant-rw/aftercare/internal/importer"
)

func importCmd(cfgPath *string) *cobra.Command {
	var recordsCSV string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import anchor records into storage without activating them",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(*cfgPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.Stop(ctx)

			records, err := importer.ReadAnchorRecordsCSV(recordsCSV)
			if err != nil {
				return err
			}
			if err := a.Importer.ImportAnchorRecords(ctx, records); err != nil {
				return err
			}
			fmt.Printf("%d records imported\n", len(records))
			return nil
		},
	}

	cmd.Flags().StringVar(&recordsCSV, "records", "", "CSV of anchor records (id,anchor_date,owner_id)")
	_ = cmd.MarkFlagRequired("records")
	return cmd
}
