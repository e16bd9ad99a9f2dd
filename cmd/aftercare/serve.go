package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/markbryant-rw/aftercare/internal/app"
)

func serveCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run as a daemon with scheduled activation sweeps and config hot reload",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.New(*cfgPath)
			if err != nil {
				return err
			}
			if err := a.Start(ctx); err != nil {
				a.Stop(context.Background())
				return err
			}

			<-ctx.Done()
			a.Stop(context.Background())
			return nil
		},
	}
}
