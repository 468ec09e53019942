package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"ledgersync/internal/infra"
	"ledgersync/internal/ledger"
)

type deps struct {
	openService func(ctx context.Context) (*ledger.Service, func(), error)
	migrate     func(ctx context.Context) (infra.MigrationReport, error)
}

type target struct {
	tenant   string
	provider string
}

func (t *target) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&t.tenant, "tenant", "", "church id")
	cmd.Flags().StringVar(&t.provider, "provider", "", "ledger provider (quickbooks or xero)")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("provider")
}

func (t *target) normalized() (string, string) {
	return strings.TrimSpace(t.tenant), strings.ToLower(strings.TrimSpace(t.provider))
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:          "ledgerctl",
		Short:        "Operate church ledger integrations",
		SilenceUsage: true,
	}
	root.AddCommand(
		newMigrateCmd(d),
		newStatusCmd(d),
		newSyncCmd(d),
		newDisconnectCmd(d),
	)
	return root
}

func newMigrateCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := d.migrate(cmd.Context())
			for _, v := range report.Applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied version %d\n", v)
			}
			if err != nil {
				return err
			}
			if len(report.Applied) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date at version %d\n", report.Version)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema now at version %d\n", report.Version)
			return nil
		},
	}
}

// withService opens the service for the duration of fn.
func withService(cmd *cobra.Command, d deps, fn func(*ledger.Service) error) error {
	svc, cleanup, err := d.openService(cmd.Context())
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}
	return fn(svc)
}

func newStatusCmd(d deps) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show whether a church is connected to a provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, provider := t.normalized()
			return withService(cmd, d, func(svc *ledger.Service) error {
				st, err := svc.Status(cmd.Context(), tenant, provider)
				if err != nil {
					return err
				}
				if !st.Connected {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: not connected\n", provider)
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: connected (account %s)\n", provider, st.ExternalAccountID)
				return nil
			})
		},
	}
	t.bind(cmd)
	return cmd
}

func newSyncCmd(d deps) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Post one batch of unsynced donations to the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, provider := t.normalized()
			return withService(cmd, d, func(svc *ledger.Service) error {
				res, err := svc.Sync(cmd.Context(), tenant, provider)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d synced\n", res.Synced, res.Total)
				return nil
			})
		},
	}
	t.bind(cmd)
	return cmd
}

func newDisconnectCmd(d deps) *cobra.Command {
	var t target
	cmd := &cobra.Command{
		Use:   "disconnect",
		Short: "Remove a provider's stored credential from a church",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenant, provider := t.normalized()
			return withService(cmd, d, func(svc *ledger.Service) error {
				if err := svc.Disconnect(cmd.Context(), tenant, provider); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s disconnected\n", provider)
				return nil
			})
		},
	}
	t.bind(cmd)
	return cmd
}
