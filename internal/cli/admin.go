package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newAdminCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "admin", Short: "Admin grants and statistics"}
	cmd.AddCommand(newAdminBootstrapCommand(opts), newAdminStatsCommand(opts))
	return cmd
}

func newAdminBootstrapCommand(opts *RootOptions) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "bootstrap",
		Short: "Persist the admin flag on an existing account",
		Long: "bootstrap grants admin to the account registered under --email without an actor token.\n" +
			"The change reaches the account's access token on its next refresh.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				grant, err := env.Gate.Bootstrap(ctx, email)
				if err != nil {
					return err
				}
				out := map[string]string{
					"target_id":    grant.TargetID,
					"granted_by":   grant.GrantedBy,
					"effective_on": grant.EffectiveOn,
				}
				return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					fmt.Fprintf(w, "granted admin to %s (effective on %s)\n", grant.TargetID, grant.EffectiveOn)
				})
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email of the account to promote (required)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newAdminStatsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show account totals",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				c, err := env.Gate.Stats(ctx)
				if err != nil {
					return err
				}
				out := map[string]int{"total_users": c.Total, "verified_users": c.EmailVerified, "admin_users": c.Admins}
				return opts.print(cmd.OutOrStdout(), out, func(w io.Writer) {
					fmt.Fprintf(w, "total=%d verified=%d admins=%d\n", c.Total, c.EmailVerified, c.Admins)
				})
			})
		},
	}
}
