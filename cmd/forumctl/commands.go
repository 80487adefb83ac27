package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"

	"github.com/imeyer/tforum/pkg/forum"
	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"
)

func migrateCmd(with sessionRunner) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, args []string, s *session, logger *slog.Logger) error {
			if err := s.migrate(cmd.Context()); err != nil {
				return err
			}
			logger.Info("schema applied")
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		}),
	}
}

func nodeCmd(with sessionRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Manage nodes",
	}

	var summary string
	add := &cobra.Command{
		Use:   "add NAME",
		Short: "Create a node",
		Args:  cobra.ExactArgs(1),
		RunE: with(func(cmd *cobra.Command, args []string, s *session, logger *slog.Logger) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("node name is required")
			}

			n, err := s.store.CreateNode(cmd.Context(), forum.CreateNodeParams{Name: name, Summary: summary})
			if err != nil {
				return fmt.Errorf("create node: %w", err)
			}
			logger.Info("node created", slog.Int64("node_id", n.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", n.ID, n.Name)
			return nil
		}),
	}
	add.Flags().StringVar(&summary, "summary", "", "One-line description")

	list := &cobra.Command{
		Use:   "list",
		Short: "List nodes",
		Args:  cobra.NoArgs,
		RunE: with(func(cmd *cobra.Command, args []string, s *session, logger *slog.Logger) error {
			nodes, err := s.store.ListNodes(cmd.Context())
			if err != nil {
				return fmt.Errorf("list nodes: %w", err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSUMMARY")
			for _, n := range nodes {
				fmt.Fprintf(tw, "%d\t%s\t%s\n", n.ID, n.Name, n.Summary)
			}
			return tw.Flush()
		}),
	}

	cmd.AddCommand(add, list)
	return cmd
}

func adminCmd(with sessionRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Grant or revoke admin rights",
	}

	set := func(grant bool) func(*cobra.Command, []string) error {
		return with(func(cmd *cobra.Command, args []string, s *session, logger *slog.Logger) error {
			email := strings.TrimSpace(args[0])
			n, err := s.store.SetMemberAdmin(cmd.Context(), forum.SetMemberAdminParams{Email: email, IsAdmin: grant})
			if err != nil {
				return fmt.Errorf("update member: %w", err)
			}
			if n == 0 {
				return fmt.Errorf("no member with email %q; members appear after their first visit", email)
			}

			logger.Info("admin rights changed", slog.Bool("admin", grant))
			fmt.Fprintf(cmd.OutOrStdout(), "%s admin=%t\n", email, grant)
			return nil
		})
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "grant EMAIL",
			Short: "Make a member an admin",
			Args:  cobra.ExactArgs(1),
			RunE:  set(true),
		},
		&cobra.Command{
			Use:   "revoke EMAIL",
			Short: "Remove admin rights",
			Args:  cobra.ExactArgs(1),
			RunE:  set(false),
		},
	)
	return cmd
}

func settingsCmd(with sessionRunner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read and change runtime settings",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "get KEY",
			Short: "Print one setting",
			Args:  cobra.ExactArgs(1),
			RunE: with(func(cmd *cobra.Command, args []string, s *session, logger *slog.Logger) error {
				v, err := s.store.GetSetting(cmd.Context(), args[0])
				if errors.Is(err, pgx.ErrNoRows) {
					return fmt.Errorf("setting %q is not set", args[0])
				}
				if err != nil {
					return fmt.Errorf("get setting: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), v)
				return nil
			}),
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Change one setting",
			Args:  cobra.ExactArgs(2),
			RunE: with(func(cmd *cobra.Command, args []string, s *session, logger *slog.Logger) error {
				key, value := args[0], args[1]
				if err := forum.ValidateSetting(key, value); err != nil {
					return err
				}
				if err := s.store.UpsertSetting(cmd.Context(), forum.UpsertSettingParams{Key: key, Value: value}); err != nil {
					return fmt.Errorf("set setting: %w", err)
				}
				logger.Info("setting changed", slog.String("key", key))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "list",
			Short: "Print every stored setting",
			Args:  cobra.NoArgs,
			RunE: with(func(cmd *cobra.Command, args []string, s *session, logger *slog.Logger) error {
				settings, err := s.store.ListSettings(cmd.Context())
				if err != nil {
					return fmt.Errorf("list settings: %w", err)
				}
				for _, st := range settings {
					fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", st.Key, st.Value)
				}
				return nil
			}),
		},
	)
	return cmd
}
