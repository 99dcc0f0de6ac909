package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func newDevicesCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "devices", Short: "Inspect and revoke verified devices"}
	cmd.AddCommand(newDevicesListCommand(opts), newDevicesRevokeCommand(opts))
	return cmd
}

type deviceView struct {
	DeviceID   string     `json:"device_id"`
	Label      string     `json:"label,omitempty"`
	VerifiedAt time.Time  `json:"verified_at"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

func newDevicesListCommand(opts *RootOptions) *cobra.Command {
	var accountID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List an account's verified devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				list, err := env.Devices.List(ctx, accountID)
				if err != nil {
					return err
				}
				views := make([]deviceView, 0, len(list))
				for _, d := range list {
					views = append(views, deviceView{DeviceID: d.DeviceID, Label: d.Label, VerifiedAt: d.VerifiedAt, RevokedAt: d.RevokedAt})
				}
				return opts.print(cmd.OutOrStdout(), views, func(w io.Writer) {
					tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "DEVICE\tLABEL\tVERIFIED\tREVOKED")
					for _, v := range views {
						revoked := "-"
						if v.RevokedAt != nil {
							revoked = v.RevokedAt.Format(time.RFC3339)
						}
						fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", v.DeviceID, v.Label, v.VerifiedAt.Format(time.RFC3339), revoked)
					}
					tw.Flush()
				})
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (required)")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}

func newDevicesRevokeCommand(opts *RootOptions) *cobra.Command {
	var accountID, deviceID string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a verified device so its next sign-in is challenged again",
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEnv(cmd, func(ctx context.Context, env *Env) error {
				if err := env.Devices.Revoke(ctx, accountID, deviceID); err != nil {
					return err
				}
				return opts.print(cmd.OutOrStdout(), map[string]string{"revoked": deviceID}, func(w io.Writer) {
					fmt.Fprintf(w, "revoked %s\n", deviceID)
				})
			})
		},
	}
	cmd.Flags().StringVar(&accountID, "account", "", "account id (required)")
	cmd.Flags().StringVar(&deviceID, "device", "", "device id (required)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("device")
	return cmd
}
