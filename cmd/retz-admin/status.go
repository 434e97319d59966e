package main

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/retzproject/retz/internal/data"
	"github.com/retzproject/retz/internal/service"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue depth and running usage",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store *data.Store) error {
				// No offer cache here: a CLI run has no dispatcher feeding
				// one, so the report carries queue and usage figures only.
				status, err := service.NewStatusService(service.StatusServiceOptions{
					Store:   store,
					Version: version,
				})
				if err != nil {
					return err
				}
				report, err := status.Report(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("queued:  %s\n", humanize.Comma(int64(report.QueueLength)))
				cmd.Printf("running: %s\n", humanize.Comma(int64(report.RunningLength)))
				cmd.Printf("in use:  %d cpu, %s mem, %d gpu\n",
					report.TotalUsed.CPU,
					humanize.IBytes(uint64(report.TotalUsed.MemMB)*1024*1024),
					report.TotalUsed.GPU)
				return nil
			})
		},
	}
}
