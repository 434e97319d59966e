package main

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/retzproject/retz/internal/data"
)

func newGCCmd() *cobra.Command {
	var (
		leeway    time.Duration
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "gc",
		Short: "Delete finished jobs older than the leeway, in batches",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store *data.Store) error {
				var total int64
				for {
					deleted, err := store.DeleteOldJobs(ctx, leeway, batchSize)
					if err != nil {
						return err
					}
					total += deleted
					if deleted == 0 {
						break
					}
				}
				cmd.Printf("deleted %s job(s) finished before %s ago\n",
					humanize.Comma(total), humanize.RelTime(time.Now().Add(-leeway), time.Now(), "", ""))
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&leeway, "leeway", 7*24*time.Hour, "keep jobs that finished within this window")
	cmd.Flags().IntVar(&batchSize, "batch-size", 1000, "rows deleted per transaction")
	return cmd
}
