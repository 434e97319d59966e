package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/retzproject/retz/internal/data"
	"github.com/retzproject/retz/internal/domain/model"
)

func newCreateUserCmd() *cobra.Command {
	var info string

	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user with generated credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store *data.Store) error {
				u, err := store.CreateUser(ctx, info)
				if err != nil {
					return err
				}
				printUser(cmd, u)
				// The secret is shown exactly once, at creation.
				cmd.Printf("secret:  %s\n", u.Secret)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&info, "info", "", "free-form note stored with the user")
	return cmd
}

func newGetUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-user <key-id>",
		Short: "Show a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store *data.Store) error {
				u, err := store.GetUser(ctx, args[0])
				if err != nil {
					return err
				}
				if u == nil {
					return fmt.Errorf("no such user: %s", args[0])
				}
				printUser(cmd, u)
				return nil
			})
		},
	}
}

func newEnableUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable-user <key-id>",
		Short: "Enable a user",
		Args:  cobra.ExactArgs(1),
		RunE:  setEnabledRunE(true),
	}
}

func newDisableUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable-user <key-id>",
		Short: "Disable a user without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE:  setEnabledRunE(false),
	}
}

func setEnabledRunE(enabled bool) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return withStore(cmd, func(ctx context.Context, store *data.Store) error {
			if err := store.EnableUser(ctx, args[0], enabled); err != nil {
				return err
			}
			cmd.Printf("%s: enabled=%t\n", args[0], enabled)
			return nil
		})
	}
}

func newListUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List all users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, store *data.Store) error {
				users, err := store.AllUsers(ctx)
				if err != nil {
					return err
				}
				for _, u := range users {
					state := "enabled"
					if !u.Enabled {
						state = "disabled"
					}
					cmd.Printf("%s  %s  %s\n", u.KeyID, state, u.Info)
				}
				cmd.Printf("%d user(s)\n", len(users))
				return nil
			})
		},
	}
}

func printUser(cmd *cobra.Command, u *model.User) {
	cmd.Printf("key id:  %s\n", u.KeyID)
	cmd.Printf("enabled: %t\n", u.Enabled)
	if u.Info != "" {
		cmd.Printf("info:    %s\n", u.Info)
	}
}
