// retz-admin is the operator CLI: user management, retention sweeps and
// cluster status, all straight against the scheduler database.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/retzproject/retz/internal/bootstrap"
	"github.com/retzproject/retz/internal/data"
)

var version = "dev"

var envFile string

func addConfigFlags(fs *pflag.FlagSet) {
	fs.StringVar(&envFile, "env-file", "", "load environment overrides from this file before connecting")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "retz-admin",
		Short:         "Administration commands for the retz scheduler",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addConfigFlags(root.PersistentFlags())
	root.AddCommand(
		newCreateUserCmd(),
		newGetUserCmd(),
		newEnableUserCmd(),
		newDisableUserCmd(),
		newListUsersCmd(),
		newGCCmd(),
		newStatusCmd(),
	)
	return root
}

// withStore connects to the database, runs fn, and drains the pool.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store *data.Store) error) error {
	ctx := cmd.Context()

	if envFile != "" {
		if err := godotenv.Overload(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	// Keep log noise off stdout; command output is the interface here.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))

	db, err := bootstrap.ConnectDB(cfg.Postgres, nil)
	if err != nil {
		return err
	}
	store, err := bootstrap.OpenStore(ctx, db, logger)
	if err != nil {
		_ = db.Close()
		return err
	}

	runErr := fn(ctx, store)
	if stopErr := store.Stop(ctx); stopErr != nil && runErr == nil {
		runErr = stopErr
	}
	return runErr
}
