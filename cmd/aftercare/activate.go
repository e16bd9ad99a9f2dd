package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markbryant-rw/aftercare/internal/aftercare"
	"github.com/markbryant-rw/aftercare/internal/app"
	"github.com/markbryant-rw/aftercare/internal/importer"
)

func activateCmd(cfgPath *string) *cobra.Command {
	var recordsCSV string

	cmd := &cobra.Command{
		Use:   "activate",
		Short: "Activate aftercare plans for pending or CSV-supplied records",
		Long: "Generates the multi-year task calendar for each anchor record and " +
			"persists it. Without --records, pending records are pulled from storage.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.New(*cfgPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			defer a.Stop(ctx)

			var sum aftercare.Summary
			if recordsCSV != "" {
				records, err := importer.ReadAnchorRecordsCSV(recordsCSV)
				if err != nil {
					return err
				}
				if a.Store != nil {
					if err := a.Importer.ImportAnchorRecords(ctx, records); err != nil {
						return err
					}
				}
				if sum, err = a.ActivateRecords(ctx, records); err != nil {
					return err
				}
			} else {
				if sum, err = a.ActivateOnce(ctx); err != nil {
					return err
				}
			}

			fmt.Printf("plans activated:   %d\n", sum.PlansActivated)
			fmt.Printf("tasks created:     %d\n", sum.TasksCreated)
			fmt.Printf("tasks skipped:     %d\n", sum.TasksSkipped)
			fmt.Printf("historical marked: %d\n", sum.TasksHistorical)
			fmt.Printf("evergreen plans:   %d\n", sum.EvergreenPlansCreated)
			return nil
		},
	}

	cmd.Flags().StringVar(&recordsCSV, "records", "", "CSV of anchor records (id,anchor_date,owner_id)")
	return cmd
}
